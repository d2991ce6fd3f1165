package model

import (
	"math/big"
	"time"
)

// SessionState はウォレットセッションの状態を表す列挙型
type SessionState string

const (
	SessionDisconnected SessionState = "DISCONNECTED" // 未接続
	SessionConnecting   SessionState = "CONNECTING"   // 接続処理中
	SessionConnected    SessionState = "CONNECTED"    // 接続済み
)

// PinResult はIPFSへのピン留めが成功した結果
type PinResult struct {
	CID         string    `json:"cid"`          // ピン留めされたコンテンツのCID
	SizeBytes   int64     `json:"size_bytes"`   // コンテンツのサイズ
	PinnedAt    time.Time `json:"pinned_at"`    // ピン留めされた時刻
	IsDuplicate bool      `json:"is_duplicate"` // 既にピン留め済みだったか
}

// Attribute はNFTメタデータの属性 (ERC-721 Metadata JSON Schema)
type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"` // string または number
}

// NFTMetadata はIPFSに保存されるNFTメタデータ
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"` // ipfs://CID 形式のURI
	Attributes  []Attribute `json:"attributes,omitempty"`
	// ERC-721 Metadata標準の追加フィールド
	ExternalURL     string `json:"external_url,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	AnimationURL    string `json:"animation_url,omitempty"`
}

// MarketItem はマーケットプレイスコントラクト上の出品情報
// コントラクトが所有するレコードであり、クライアントは読み取りと
// 状態遷移の要求（出品・購入・取り下げ）のみを行う
type MarketItem struct {
	MarketItemId uint64   `json:"market_item_id"`
	NFTContract  string   `json:"nft_contract"`
	TokenId      uint64   `json:"token_id"`
	Creator      string   `json:"creator"`
	Seller       string   `json:"seller"`
	Owner        string   `json:"owner"`
	Price        *big.Int `json:"price"` // Wei
	Sold         bool     `json:"sold"`
	Canceled     bool     `json:"canceled"`
}

// NFT は表示用の射影。出品情報と解決済みメタデータを統合したもので、
// ロードのたびに再構築され、永続化されない
type NFT struct {
	TokenId      string `json:"token_id"`
	Price        string `json:"price"` // Wei (文字列)
	Seller       string `json:"seller"`
	Owner        string `json:"owner"`
	Image        string `json:"image"` // ゲートウェイ経由のURL
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsListed     bool   `json:"is_listed"`
	MarketItemId uint64 `json:"market_item_id,omitempty"`
}

// TxResult はオンチェーン処理の確定結果
type TxResult struct {
	TxHash      string      `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
	Success     bool        `json:"success"`
	TokenId     uint64      `json:"token_id,omitempty"` // mint時に採番されたトークンID
	Item        *MarketItem `json:"item,omitempty"`     // 処理後の出品状態（取得できる場合）
}
