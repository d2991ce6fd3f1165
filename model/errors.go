package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrProviderUnavailable はウォレットプロバイダが見つからない場合のエラー
var ErrProviderUnavailable = errors.New("wallet provider not available: install or configure a wallet")

// ErrUserRejected はユーザーが署名要求を拒否した場合のエラー
var ErrUserRejected = errors.New("request was rejected by the user")

// ConfigError は設定不足のエラー。対象の処理は失敗するがプロセスは継続する
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// RemoteError は外部サービス（ピンニングAPI・ゲートウェイ）からの
// 非成功レスポンス。リモート側のステータスと理由を保持する
type RemoteError struct {
	Status int
	Reason string
}

func (e *RemoteError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("remote service returned status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("remote service returned status %d", e.Status)
}

// TxFailedError はオンチェーンで失敗（revert）したトランザクション
type TxFailedError struct {
	Op     string
	TxHash string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("transaction failed on chain (reverted): op=%s tx=%s", e.Op, e.TxHash)
}

// TimeoutError はクライアント側のタイムアウト超過。
// 進行中のリクエスト自体はキャンセルされず、待機のみ打ち切られる
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Limit)
}
