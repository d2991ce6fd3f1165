package wallet

import (
	"context"
	"errors"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// KeystoreProvider はgo-ethereumのキーストアをウォレットプロバイダとして使う実装。
// キーストアディレクトリのウォレット増減がaccountsChangedイベントになる
type KeystoreProvider struct {
	ks         *keystore.KeyStore
	client     *ethclient.Client
	passphrase string
}

// NewKeystoreProvider は新しいキーストアプロバイダを作成する
func NewKeystoreProvider(client *ethclient.Client, keyDir, passphrase string) *KeystoreProvider {
	ks := keystore.NewKeyStore(keyDir, keystore.StandardScryptN, keystore.StandardScryptP)
	log.Printf("Keystore initialized: dir=%s accounts=%d", keyDir, len(ks.Accounts()))

	return &KeystoreProvider{
		ks:         ks,
		client:     client,
		passphrase: passphrase,
	}
}

// RequestAccounts はキーストア内の全アカウントをアンロックして返す
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accts := p.ks.Accounts()
	if len(accts) == 0 {
		return nil, errors.New("no accounts in keystore")
	}

	addresses := make([]common.Address, 0, len(accts))
	for _, acct := range accts {
		if err := p.ks.Unlock(acct, p.passphrase); err != nil {
			log.Printf("Failed to unlock account %s: %v", acct.Address.Hex(), err)
			return nil, errors.New("failed to unlock keystore account: " + err.Error())
		}
		addresses = append(addresses, acct.Address)
	}
	return addresses, nil
}

// Accounts はキーストア内のアカウント一覧を返す（アンロックはしない）
func (p *KeystoreProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	accts := p.ks.Accounts()
	addresses := make([]common.Address, 0, len(accts))
	for _, acct := range accts {
		addresses = append(addresses, acct.Address)
	}
	return addresses, nil
}

// ChainID は接続先ノードからチェーンIDを取得する
func (p *KeystoreProvider) ChainID(ctx context.Context) (*big.Int, error) {
	return p.client.ChainID(ctx)
}

// Transactor は指定アカウントの署名付きトランザクション送信設定を返す
func (p *KeystoreProvider) Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error) {
	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return nil, errors.New("failed to get chain ID: " + err.Error())
	}
	return bind.NewKeyStoreTransactorWithChainID(p.ks, accounts.Account{Address: account}, chainID)
}

// Subscribe はキーストアのウォレットイベントを購読し、
// accountsChangedイベントとしてhandlerに通知する
func (p *KeystoreProvider) Subscribe(handler func(Event)) (func(), error) {
	events := make(chan accounts.WalletEvent, 16)
	sub := p.ks.Subscribe(events)
	quit := make(chan struct{})

	go func() {
		for {
			select {
			case <-quit:
				return
			case err := <-sub.Err():
				if err != nil {
					log.Printf("Keystore subscription error: %v", err)
				}
				return
			case ev := <-events:
				switch ev.Kind {
				case accounts.WalletArrived, accounts.WalletDropped:
					// 解除関数の実行後に拾ってしまったイベントは通知しない
					select {
					case <-quit:
						return
					default:
					}
					current, _ := p.Accounts(context.Background())
					handler(Event{Type: EventAccountsChanged, Accounts: current})
				}
			}
		}
	}()

	return func() {
		sub.Unsubscribe()
		close(quit)
	}, nil
}
