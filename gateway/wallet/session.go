package wallet

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"nft-market-onchain/gateway/contract"
	"nft-market-onchain/model"
)

// Handles はセッションに紐づくコントラクトハンドル
type Handles struct {
	NFT    contract.NFTContract
	Market contract.MarketContract
}

// HandleFactory はアカウントに対するコントラクトハンドルを構築する。
// ノード接続を持たないテストでも差し替えられるよう注入にしている
type HandleFactory func(account common.Address) (*Handles, error)

// ErrSessionNotConnected はセッション未接続時の操作エラー
var ErrSessionNotConnected = errors.New("wallet session is not connected")

// Session はウォレット接続とそこから導出されるアカウント・署名設定・
// コントラクトハンドルを保持する。プロセス内で共有される唯一の
// 可変リソースであり、すべての状態遷移はミューテックスで直列化される
type Session struct {
	mu          sync.Mutex
	state       model.SessionState
	provider    Provider
	newHandles  HandleFactory
	account     common.Address
	auth        *bind.TransactOpts
	handles     *Handles
	unsubscribe func()
}

// NewSession は未接続状態のセッションを作成する
func NewSession(provider Provider, factory HandleFactory) *Session {
	return &Session{
		state:      model.SessionDisconnected,
		provider:   provider,
		newHandles: factory,
	}
}

// Connect は明示的な接続要求。Disconnected -> Connecting -> Connected と遷移し、
// アカウントが得られなければDisconnectedに戻る
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider == nil {
		return model.ErrProviderUnavailable
	}
	if s.state == model.SessionConnected {
		return nil
	}
	if s.state == model.SessionConnecting {
		return errors.New("wallet connection already in progress")
	}

	s.state = model.SessionConnecting

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		s.state = model.SessionDisconnected
		return errors.New("failed to connect wallet: " + err.Error())
	}
	if len(accounts) == 0 {
		s.state = model.SessionDisconnected
		return errors.New("no accounts returned by wallet provider")
	}

	if err := s.bindLocked(ctx, accounts[0]); err != nil {
		s.state = model.SessionDisconnected
		return err
	}

	unsubscribe, err := s.provider.Subscribe(s.handleEvent)
	if err != nil {
		s.teardownLocked()
		return errors.New("failed to subscribe to wallet events: " + err.Error())
	}
	s.unsubscribe = unsubscribe

	s.state = model.SessionConnected
	log.Printf("Wallet session connected: account=%s", s.account.Hex())
	return nil
}

// Resume は既に許可済みのアカウントがあればセッションを復元する。
// アカウントが無い場合はエラーにせずDisconnectedのままにする
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider == nil {
		return model.ErrProviderUnavailable
	}
	if s.state != model.SessionDisconnected {
		return nil
	}

	accounts, err := s.provider.Accounts(ctx)
	if err != nil || len(accounts) == 0 {
		return nil
	}

	s.state = model.SessionConnecting
	if err := s.bindLocked(ctx, accounts[0]); err != nil {
		s.state = model.SessionDisconnected
		return err
	}

	unsubscribe, err := s.provider.Subscribe(s.handleEvent)
	if err != nil {
		s.teardownLocked()
		return errors.New("failed to subscribe to wallet events: " + err.Error())
	}
	s.unsubscribe = unsubscribe

	s.state = model.SessionConnected
	log.Printf("Wallet session resumed: account=%s", s.account.Hex())
	return nil
}

// Disconnect は明示的な切断。ハンドルとイベント購読を破棄する
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	log.Printf("Wallet session disconnected")
}

// bindLocked はアカウントに対して署名設定とコントラクトハンドルを構築する。
// s.muを保持した状態で呼ぶこと
func (s *Session) bindLocked(ctx context.Context, account common.Address) error {
	auth, err := s.provider.Transactor(ctx, account)
	if err != nil {
		return errors.New("failed to create transactor: " + err.Error())
	}

	handles, err := s.newHandles(account)
	if err != nil {
		return errors.New("failed to initialize contract handles: " + err.Error())
	}

	s.account = account
	s.auth = auth
	s.handles = handles
	return nil
}

// teardownLocked はセッション状態をすべて破棄してDisconnectedへ戻す。
// s.muを保持した状態で呼ぶこと
func (s *Session) teardownLocked() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.account = common.Address{}
	s.auth = nil
	s.handles = nil
	s.state = model.SessionDisconnected
}

// handleEvent はプロバイダ発のイベントを処理する。
// 購読解除（teardown）と並行して配送中だったイベントが遅れて届くことが
// あるため、購読が破棄済みの場合は処理せずに捨てる
func (s *Session) handleEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe == nil {
		return
	}

	switch ev.Type {
	case EventAccountsChanged, EventConnect:
		if len(ev.Accounts) == 0 {
			// アカウントが無くなった場合は切断扱い
			log.Printf("All accounts removed; tearing down wallet session")
			s.teardownLocked()
			return
		}
		if s.state == model.SessionConnected && ev.Accounts[0] == s.account {
			return
		}
		// 新しいアカウントに対して署名設定とハンドルを再構築する（完全な破棄はしない）
		log.Printf("Account changed to %s; rebinding contract handles", ev.Accounts[0].Hex())
		if err := s.bindLocked(context.Background(), ev.Accounts[0]); err != nil {
			log.Printf("Failed to rebind after account change: %v", err)
			s.teardownLocked()
			return
		}
		s.state = model.SessionConnected

	case EventChainChanged:
		// ネットワークが変わるとコントラクトハンドルの前提が崩れるため、
		// セッションを無効化して明示的な再接続を要求する
		log.Printf("Chain changed; wallet session invalidated, reconnect required")
		s.teardownLocked()

	case EventDisconnect:
		log.Printf("Provider disconnected; tearing down wallet session")
		s.teardownLocked()
	}
}

// State は現在のセッション状態を返す
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Account は現在のアカウントを返す。未接続の場合は第2戻り値がfalse
func (s *Session) Account() (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.SessionConnected {
		return common.Address{}, false
	}
	return s.account, true
}

// Handles は現在のコントラクトハンドルを返す
func (s *Session) Handles() (*Handles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.SessionConnected || s.handles == nil {
		return nil, ErrSessionNotConnected
	}
	return s.handles, nil
}

// Transactor は現在のアカウントの署名付き送信設定のコピーを返す。
// 呼び出し側がValue等を設定しても他の操作に影響しない
func (s *Session) Transactor() (*bind.TransactOpts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != model.SessionConnected || s.auth == nil {
		return nil, ErrSessionNotConnected
	}
	opts := *s.auth
	return &opts, nil
}
