package pinata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nft-market-onchain/model"
)

// PinataGateway はPinata経由のIPFSピンニングを担当
type PinataGateway interface {
	// PinJSON はJSONドキュメントをIPFSにピン留めする
	PinJSON(ctx context.Context, content interface{}, opts *PinOptions) (*model.PinResult, error)

	// PinFile はファイルをmultipartでアップロードしてピン留めする
	PinFile(ctx context.Context, file io.Reader, filename string, opts *PinOptions) (*model.PinResult, error)

	// GatewayURL はCIDまたはipfs:// URIをゲートウェイURLに変換する（I/Oなし）
	GatewayURL(ref string) string

	// CheckPinStatus はCIDのピン状態を確認する。失敗時はエラーを返さずfalse
	CheckPinStatus(ctx context.Context, cid string) bool
}

// PinMetadata はピン留めするエントリに付けるPinata側のメタデータ
type PinMetadata struct {
	Name      string                 `json:"name"`
	KeyValues map[string]interface{} `json:"keyvalues,omitempty"`
}

// PinOptions はピン留め時のオプション
type PinOptions struct {
	Metadata   *PinMetadata
	CIDVersion int
}

// pinResponse はPinata APIの成功レスポンス
type pinResponse struct {
	IpfsHash    string `json:"IpfsHash"`
	PinSize     int64  `json:"PinSize"`
	Timestamp   string `json:"Timestamp"`
	IsDuplicate bool   `json:"isDuplicate"`
}

// pinErrorResponse はPinata APIのエラーレスポンス
type pinErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// Client はPinataGatewayのHTTP実装
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient は新しいPinataクライアントを作成する
func NewClient(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Gateway == "" {
		cfg.Gateway = DefaultGateway
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// setAuthHeaders は認証ヘッダーを設定する。JWTがあればBearer、
// なければAPIキー/シークレットのペアを使う
func (c *Client) setAuthHeaders(req *http.Request) {
	if c.config.JWT != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.JWT)
		return
	}
	req.Header.Set("pinata_api_key", c.config.APIKey)
	req.Header.Set("pinata_secret_api_key", c.config.APISecret)
}

// PinJSON はJSONドキュメントをIPFSにピン留めする
func (c *Client) PinJSON(ctx context.Context, content interface{}, opts *PinOptions) (*model.PinResult, error) {
	if !c.config.IsConfigured() {
		return nil, &model.ConfigError{Reason: "missing Pinata credentials (set PINATA_JWT or PINATA_API_KEY/PINATA_API_SECRET)"}
	}

	body := map[string]interface{}{
		"pinataContent": content,
	}
	if opts != nil && opts.Metadata != nil {
		body["pinataMetadata"] = opts.Metadata
	}
	if opts != nil && opts.CIDVersion != 0 {
		body["pinataOptions"] = map[string]interface{}{"cidVersion": opts.CIDVersion}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pin request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIBase+"/pinning/pinJSONToIPFS", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	return c.doPin(req)
}

// PinFile はファイルをmultipartでアップロードしてピン留めする
func (c *Client) PinFile(ctx context.Context, file io.Reader, filename string, opts *PinOptions) (*model.PinResult, error) {
	if !c.config.IsConfigured() {
		return nil, &model.ConfigError{Reason: "missing Pinata credentials (set PINATA_JWT or PINATA_API_KEY/PINATA_API_SECRET)"}
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}

	if opts != nil && opts.Metadata != nil {
		meta, err := json.Marshal(opts.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode pin metadata: %w", err)
		}
		if err := writer.WriteField("pinataMetadata", string(meta)); err != nil {
			return nil, err
		}
	}
	if opts != nil && opts.CIDVersion != 0 {
		options, err := json.Marshal(map[string]interface{}{"cidVersion": opts.CIDVersion})
		if err != nil {
			return nil, err
		}
		if err := writer.WriteField("pinataOptions", string(options)); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIBase+"/pinning/pinFileToIPFS", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setAuthHeaders(req)

	return c.doPin(req)
}

// doPin はピン留めリクエストを送信してレスポンスを解釈する
func (c *Client) doPin(req *http.Request) (*model.PinResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.remoteError(resp)
	}

	var result pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode pin response: %w", err)
	}

	pinnedAt, err := time.Parse(time.RFC3339, result.Timestamp)
	if err != nil {
		// タイムスタンプが読めなくてもピン自体は成功している
		log.Printf("Unparseable pin timestamp %q: %v", result.Timestamp, err)
	}

	return &model.PinResult{
		CID:         result.IpfsHash,
		SizeBytes:   result.PinSize,
		PinnedAt:    pinnedAt,
		IsDuplicate: result.IsDuplicate,
	}, nil
}

// remoteError は非成功レスポンスをRemoteErrorに変換する
func (c *Client) remoteError(resp *http.Response) error {
	var remote pinErrorResponse
	reason := ""
	if err := json.NewDecoder(resp.Body).Decode(&remote); err == nil {
		reason = remote.Reason
		if reason == "" {
			reason = remote.Error
		}
	}
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	log.Printf("Pinata returned status %d: %s", resp.StatusCode, reason)
	return &model.RemoteError{Status: resp.StatusCode, Reason: reason}
}

// GatewayURL はCIDまたはipfs:// URIをゲートウェイURLに変換する
func (c *Client) GatewayURL(ref string) string {
	cid := strings.TrimPrefix(ref, "ipfs://")
	gateway := strings.TrimSuffix(c.config.Gateway, "/")
	return gateway + "/ipfs/" + cid
}

// CheckPinStatus はCIDのピン状態を確認する。
// ヘルスチェック用途のため、失敗はすべてfalseとして扱う
func (c *Client) CheckPinStatus(ctx context.Context, cid string) bool {
	if !c.config.IsConfigured() {
		return false
	}

	endpoint := c.config.APIBase + "/pinning/pinJobs?ipfs_pin_hash=" + url.QueryEscape(cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var status struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false
	}
	return status.Count > 0
}
