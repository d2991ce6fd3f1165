package pinata

import "os"

const (
	// DefaultAPIBase はPinata APIのベースURL
	DefaultAPIBase = "https://api.pinata.cloud"
	// DefaultGateway はデフォルトのIPFSゲートウェイ
	DefaultGateway = "https://gateway.pinata.cloud"
)

// Config はPinataサービスの設定
type Config struct {
	APIKey    string // pinata_api_key ヘッダー用
	APISecret string // pinata_secret_api_key ヘッダー用
	JWT       string // Bearerトークン（設定されていればこちらを優先）
	Gateway   string // ゲートウェイのベースURL
	APIBase   string // Pinning APIのベースURL
}

// ConfigFromEnv は環境変数から設定を読み込む
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:    os.Getenv("PINATA_API_KEY"),
		APISecret: os.Getenv("PINATA_API_SECRET"),
		JWT:       os.Getenv("PINATA_JWT"),
		Gateway:   os.Getenv("PINATA_GATEWAY"),
		APIBase:   os.Getenv("PINATA_API_BASE"),
	}
	if cfg.Gateway == "" {
		cfg.Gateway = DefaultGateway
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	return cfg
}

// IsConfigured は認証情報が揃っているかを返す。
// (APIキー AND シークレット) または JWT のいずれかが必要で、
// このチェックがすべてのネットワーク呼び出しの前提となる
func (c Config) IsConfigured() bool {
	return (c.APIKey != "" && c.APISecret != "") || c.JWT != ""
}
