package nftstorage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"nft-market-onchain/gateway/pinata"
	"nft-market-onchain/model"
)

// IPFSScheme はコンテンツアドレス参照のURIスキーム
const IPFSScheme = "ipfs://"

// NFTStorageUsecase はNFTの画像とメタデータをIPFSに保存するビジネスロジック
type NFTStorageUsecase interface {
	// UploadImage はNFT画像をピン留めし、ipfs://CID 形式のURIを返す
	UploadImage(ctx context.Context, file io.Reader, name string) (string, error)

	// UploadMetadata はNFTメタデータをピン留めし、ipfs://CID 形式のURIを返す
	UploadMetadata(ctx context.Context, metadata *model.NFTMetadata) (string, error)

	// CreateNFT は画像アップロードとメタデータアップロードを順に行い、
	// メタデータのURIを返す
	CreateNFT(ctx context.Context, file io.Reader, name, description string, attributes []model.Attribute) (string, error)

	// LoadNFTMetadata はURIからメタデータを取得してパースする
	LoadNFTMetadata(ctx context.Context, uri string) (*model.NFTMetadata, error)

	// GatewayURL はコンテンツ参照をゲートウェイURLに変換する
	GatewayURL(ref string) string
}

type nftStorageUsecase struct {
	pinataGW   pinata.PinataGateway
	httpClient *http.Client
}

func NewNFTStorageUsecase(gw pinata.PinataGateway) *nftStorageUsecase {
	return &nftStorageUsecase{
		pinataGW:   gw,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// UploadImage はNFT画像をピン留めし、ipfs://CID 形式のURIを返す
func (uc *nftStorageUsecase) UploadImage(ctx context.Context, file io.Reader, name string) (string, error) {
	opts := &pinata.PinOptions{
		Metadata: &pinata.PinMetadata{
			Name: "nft-image-" + name,
			KeyValues: map[string]interface{}{
				"type": "image",
				"name": name,
			},
		},
	}

	result, err := uc.pinataGW.PinFile(ctx, file, name, opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload NFT image: %w", err)
	}

	return IPFSScheme + result.CID, nil
}

// UploadMetadata はNFTメタデータをピン留めし、ipfs://CID 形式のURIを返す
func (uc *nftStorageUsecase) UploadMetadata(ctx context.Context, metadata *model.NFTMetadata) (string, error) {
	opts := &pinata.PinOptions{
		Metadata: &pinata.PinMetadata{
			Name: "nft-metadata-" + metadata.Name,
			KeyValues: map[string]interface{}{
				"type": "metadata",
				"name": metadata.Name,
			},
		},
	}

	result, err := uc.pinataGW.PinJSON(ctx, metadata, opts)
	if err != nil {
		return "", fmt.Errorf("failed to upload NFT metadata: %w", err)
	}

	return IPFSScheme + result.CID, nil
}

// CreateNFT は画像→メタデータの順でアップロードする逐次合成。
// トランザクショナルではない: メタデータのアップロードが失敗しても
// 画像のピンは残る（自動unpinはしない。再試行時は同一CIDに再ピンされる）
func (uc *nftStorageUsecase) CreateNFT(ctx context.Context, file io.Reader, name, description string, attributes []model.Attribute) (string, error) {
	imageURI, err := uc.UploadImage(ctx, file, name)
	if err != nil {
		return "", err
	}

	metadata := &model.NFTMetadata{
		Name:        name,
		Description: description,
		Image:       imageURI,
		Attributes:  attributes,
	}

	metadataURI, err := uc.UploadMetadata(ctx, metadata)
	if err != nil {
		log.Printf("Metadata pin failed; image %s remains pinned without a referencing document", imageURI)
		return "", err
	}

	log.Printf("Created NFT content: image=%s metadata=%s", imageURI, metadataURI)
	return metadataURI, nil
}

// LoadNFTMetadata はURIからメタデータを取得してパースする。
// ipfs:// スキームはゲートウェイURLに変換してから取得する
func (uc *nftStorageUsecase) LoadNFTMetadata(ctx context.Context, uri string) (*model.NFTMetadata, error) {
	url := uri
	if strings.HasPrefix(uri, IPFSScheme) {
		url = uc.pinataGW.GatewayURL(uri)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := uc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch NFT metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.RemoteError{Status: resp.StatusCode, Reason: fetchFailureReason(resp)}
	}

	var metadata model.NFTMetadata
	if err := json.NewDecoder(resp.Body).Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to parse NFT metadata: %w", err)
	}
	return &metadata, nil
}

// GatewayURL はコンテンツ参照をゲートウェイURLに変換する
func (uc *nftStorageUsecase) GatewayURL(ref string) string {
	return uc.pinataGW.GatewayURL(ref)
}

// fetchFailureReason は非成功レスポンスから理由文字列を取り出す。
// ボディは先頭のみ読み、空ならステータステキストで代用する
func fetchFailureReason(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	reason := strings.TrimSpace(string(body))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
