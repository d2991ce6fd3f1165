package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// EventType はプロバイダが発行するイベントの種類
type EventType string

const (
	EventAccountsChanged EventType = "accountsChanged"
	EventChainChanged    EventType = "chainChanged"
	EventConnect         EventType = "connect"
	EventDisconnect      EventType = "disconnect"
)

// Event はウォレットプロバイダが発行するイベント
type Event struct {
	Type     EventType
	Accounts []common.Address // accountsChanged / connect 時の現在のアカウント一覧
	ChainID  *big.Int         // chainChanged 時の新しいチェーンID
}

// Provider はウォレットプロバイダの抽象。セッションに注入される
type Provider interface {
	// RequestAccounts はアカウントへのアクセスを要求する（接続操作に相当）
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Accounts は既に許可済みのアカウント一覧を返す
	Accounts(ctx context.Context) ([]common.Address, error)

	// ChainID は接続先ネットワークのチェーンIDを返す
	ChainID(ctx context.Context) (*big.Int, error)

	// Transactor は指定アカウントの署名付きトランザクション送信設定を返す
	Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error)

	// Subscribe はプロバイダ発のイベント購読を開始し、解除関数を返す。
	// 返された解除関数の呼び出し後、handlerは二度と呼ばれない
	Subscribe(handler func(Event)) (func(), error)
}
