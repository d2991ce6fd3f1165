package market

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"nft-market-onchain/gateway/wallet"
	"nft-market-onchain/model"
)

var (
	testAccount = common.HexToAddress("0x1111111111111111111111111111111111111111")
	nftAddr     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	marketAddr  = common.HexToAddress("0x4444444444444444444444444444444444444444")
)

func dummyTx() *types.Transaction {
	to := common.HexToAddress("0x9999999999999999999999999999999999999999")
	return types.NewTx(&types.LegacyTx{Nonce: 1, To: &to, Gas: 21000, GasPrice: big.NewInt(1), Value: big.NewInt(0)})
}

// fakeBackend は即座に成功レシートを返すbind.DeployBackend実装
type fakeBackend struct{}

func (b *fakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: big.NewInt(10),
		GasUsed:     21000,
	}, nil
}

// fakeNFT はcontract.NFTContractのテスト用実装
type fakeNFT struct {
	uris  map[uint64]string
	owned []*big.Int
	calls *[]string
}

func (f *fakeNFT) Address() common.Address { return nftAddr }

func (f *fakeNFT) MintToken(opts *bind.TransactOpts, tokenURI string) (*types.Transaction, error) {
	*f.calls = append(*f.calls, "mint")
	return dummyTx(), nil
}

func (f *fakeNFT) TokenURI(ctx context.Context, tokenId *big.Int) (string, error) {
	uri, ok := f.uris[tokenId.Uint64()]
	if !ok {
		return "", errors.New("unknown token")
	}
	return uri, nil
}

func (f *fakeNFT) OwnerOf(ctx context.Context, tokenId *big.Int) (common.Address, error) {
	return testAccount, nil
}

func (f *fakeNFT) Approve(opts *bind.TransactOpts, to common.Address, tokenId *big.Int) (*types.Transaction, error) {
	*f.calls = append(*f.calls, "approve:"+to.Hex())
	return dummyTx(), nil
}

func (f *fakeNFT) TokensOwnedBy(ctx context.Context, owner common.Address) ([]*big.Int, error) {
	return f.owned, nil
}

func (f *fakeNFT) TokenCreator(ctx context.Context, tokenId *big.Int) (common.Address, error) {
	return testAccount, nil
}

func (f *fakeNFT) MintedTokenID(receipt *types.Receipt) (uint64, error) {
	return 42, nil
}

// fakeMarket はcontract.MarketContractのテスト用実装
type fakeMarket struct {
	items     []model.MarketItem
	latest    map[uint64]*model.MarketItem
	fee       *big.Int
	block     bool
	calls     *[]string
	itemValue *big.Int // CreateItem時のValue
	saleValue *big.Int // CreateSale時のValue
}

func (f *fakeMarket) Address() common.Address { return marketAddr }

func (f *fakeMarket) FetchAvailableItems(ctx context.Context) ([]model.MarketItem, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.items, nil
}

func (f *fakeMarket) FetchSellingItems(ctx context.Context, from common.Address) ([]model.MarketItem, error) {
	return f.items, nil
}

func (f *fakeMarket) FetchOwnedItems(ctx context.Context, from common.Address) ([]model.MarketItem, error) {
	return f.items, nil
}

func (f *fakeMarket) LatestItemByTokenID(ctx context.Context, tokenId *big.Int) (*model.MarketItem, bool, error) {
	item, ok := f.latest[tokenId.Uint64()]
	return item, ok, nil
}

func (f *fakeMarket) ListingFee(ctx context.Context) (*big.Int, error) {
	return f.fee, nil
}

func (f *fakeMarket) CreateItem(opts *bind.TransactOpts, nftContract common.Address, tokenId, price *big.Int) (*types.Transaction, error) {
	*f.calls = append(*f.calls, "createItem")
	f.itemValue = opts.Value
	return dummyTx(), nil
}

func (f *fakeMarket) CreateSale(opts *bind.TransactOpts, nftContract common.Address, marketItemId *big.Int) (*types.Transaction, error) {
	*f.calls = append(*f.calls, "createSale:"+marketItemId.String())
	f.saleValue = opts.Value
	return dummyTx(), nil
}

func (f *fakeMarket) CancelItem(opts *bind.TransactOpts, nftContract common.Address, marketItemId *big.Int) (*types.Transaction, error) {
	*f.calls = append(*f.calls, "cancelItem:"+marketItemId.String())
	return dummyTx(), nil
}

// fakeSession はSessionのテスト用実装
type fakeSession struct {
	handles *wallet.Handles
}

func (s *fakeSession) Handles() (*wallet.Handles, error) { return s.handles, nil }

func (s *fakeSession) Account() (common.Address, bool) { return testAccount, true }

func (s *fakeSession) Transactor() (*bind.TransactOpts, error) {
	return &bind.TransactOpts{From: testAccount}, nil
}

// fakeStorage はNFTStorageUsecaseのテスト用実装
type fakeStorage struct {
	metadata map[string]*model.NFTMetadata
}

func (s *fakeStorage) UploadImage(ctx context.Context, file io.Reader, name string) (string, error) {
	return "ipfs://QmImage", nil
}

func (s *fakeStorage) UploadMetadata(ctx context.Context, metadata *model.NFTMetadata) (string, error) {
	return "ipfs://QmMetadata", nil
}

func (s *fakeStorage) CreateNFT(ctx context.Context, file io.Reader, name, description string, attributes []model.Attribute) (string, error) {
	return "ipfs://QmMetadata", nil
}

func (s *fakeStorage) LoadNFTMetadata(ctx context.Context, uri string) (*model.NFTMetadata, error) {
	metadata, ok := s.metadata[uri]
	if !ok {
		return nil, &model.RemoteError{Status: 404, Reason: "not found"}
	}
	return metadata, nil
}

func (s *fakeStorage) GatewayURL(ref string) string {
	return "https://gw.example/ipfs/" + strings.TrimPrefix(ref, "ipfs://")
}

func newTestUsecase(nft *fakeNFT, market *fakeMarket, storage *fakeStorage) *marketUsecase {
	session := &fakeSession{handles: &wallet.Handles{NFT: nft, Market: market}}
	return NewMarketUsecase(session, storage, &fakeBackend{})
}

func TestFetchAvailableListings(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{
		calls: &calls,
		uris:  map[uint64]string{1: "ipfs://QmMeta1", 2: "ipfs://QmMeta2"},
	}
	market := &fakeMarket{
		calls: &calls,
		items: []model.MarketItem{
			{MarketItemId: 10, TokenId: 1, Seller: testAccount.Hex(), Price: big.NewInt(100)},
			{MarketItemId: 11, TokenId: 2, Seller: testAccount.Hex(), Price: big.NewInt(200)},
		},
	}
	storage := &fakeStorage{metadata: map[string]*model.NFTMetadata{
		"ipfs://QmMeta1": {Name: "One", Description: "first", Image: "ipfs://QmImg1"},
		"ipfs://QmMeta2": {Name: "Two", Description: "second", Image: "ipfs://QmImg2"},
	}}

	uc := newTestUsecase(nft, market, storage)

	nfts, err := uc.FetchAvailableListings(context.Background())
	if err != nil {
		t.Fatalf("FetchAvailableListings failed: %v", err)
	}
	if len(nfts) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(nfts))
	}
	if nfts[0].Name != "One" || !nfts[0].IsListed || nfts[0].Price != "100" {
		t.Errorf("unexpected listing %+v", nfts[0])
	}
	if nfts[0].Image != "https://gw.example/ipfs/QmImg1" {
		t.Errorf("unexpected image URL %q", nfts[0].Image)
	}
}

func TestFetchAvailableListingsSkipsBrokenMetadata(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls, uris: map[uint64]string{1: "ipfs://QmMeta1", 2: "ipfs://QmBroken"}}
	market := &fakeMarket{
		calls: &calls,
		items: []model.MarketItem{
			{MarketItemId: 10, TokenId: 1, Price: big.NewInt(100)},
			{MarketItemId: 11, TokenId: 2, Price: big.NewInt(200)},
		},
	}
	storage := &fakeStorage{metadata: map[string]*model.NFTMetadata{
		"ipfs://QmMeta1": {Name: "One", Image: "ipfs://QmImg1"},
	}}

	uc := newTestUsecase(nft, market, storage)

	nfts, err := uc.FetchAvailableListings(context.Background())
	if err != nil {
		t.Fatalf("FetchAvailableListings failed: %v", err)
	}
	if len(nfts) != 1 || nfts[0].Name != "One" {
		t.Fatalf("expected broken item to be skipped, got %+v", nfts)
	}
}

func TestFetchAvailableListingsKeepsHTTPImage(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls, uris: map[uint64]string{1: "ipfs://QmMeta1"}}
	market := &fakeMarket{
		calls: &calls,
		items: []model.MarketItem{{MarketItemId: 10, TokenId: 1, Price: big.NewInt(100)}},
	}
	storage := &fakeStorage{metadata: map[string]*model.NFTMetadata{
		"ipfs://QmMeta1": {Name: "One", Image: "https://example.com/one.png"},
	}}

	uc := newTestUsecase(nft, market, storage)

	nfts, err := uc.FetchAvailableListings(context.Background())
	if err != nil {
		t.Fatalf("FetchAvailableListings failed: %v", err)
	}
	if len(nfts) != 1 || nfts[0].Image != "https://example.com/one.png" {
		t.Errorf("HTTP image URL must pass through untranslated, got %+v", nfts)
	}
}

func TestFetchSellingListings(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls, uris: map[uint64]string{1: "ipfs://QmMeta1"}}
	market := &fakeMarket{
		calls: &calls,
		items: []model.MarketItem{
			{MarketItemId: 10, TokenId: 1, Seller: testAccount.Hex(), Price: big.NewInt(100)},
		},
	}
	storage := &fakeStorage{metadata: map[string]*model.NFTMetadata{
		"ipfs://QmMeta1": {Name: "One", Image: "ipfs://QmImg1"},
	}}

	uc := newTestUsecase(nft, market, storage)

	nfts, err := uc.FetchSellingListings(context.Background())
	if err != nil {
		t.Fatalf("FetchSellingListings failed: %v", err)
	}
	if len(nfts) != 1 {
		t.Fatalf("expected 1 selling listing, got %d", len(nfts))
	}
	if !nfts[0].IsListed || nfts[0].Seller != testAccount.Hex() {
		t.Errorf("unexpected selling listing %+v", nfts[0])
	}
}

func TestFetchPurchasedListings(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls, uris: map[uint64]string{2: "ipfs://QmMeta2"}}
	market := &fakeMarket{
		calls: &calls,
		items: []model.MarketItem{
			{MarketItemId: 11, TokenId: 2, Owner: testAccount.Hex(), Price: big.NewInt(200), Sold: true},
		},
	}
	storage := &fakeStorage{metadata: map[string]*model.NFTMetadata{
		"ipfs://QmMeta2": {Name: "Two", Image: "ipfs://QmImg2"},
	}}

	uc := newTestUsecase(nft, market, storage)

	nfts, err := uc.FetchPurchasedListings(context.Background())
	if err != nil {
		t.Fatalf("FetchPurchasedListings failed: %v", err)
	}
	if len(nfts) != 1 {
		t.Fatalf("expected 1 purchased listing, got %d", len(nfts))
	}
	if nfts[0].IsListed {
		t.Error("a sold listing must not be reported as listed")
	}
	if nfts[0].Owner != testAccount.Hex() {
		t.Errorf("unexpected owner %q", nfts[0].Owner)
	}
}

func TestFetchAvailableListingsTimeout(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls}
	market := &fakeMarket{calls: &calls, block: true}
	storage := &fakeStorage{}

	uc := newTestUsecase(nft, market, storage)
	uc.listingTimeout = 50 * time.Millisecond

	_, err := uc.FetchAvailableListings(context.Background())
	var timeoutErr *model.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
}

func TestFetchOwnedTokens(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{
		calls: &calls,
		uris:  map[uint64]string{5: "ipfs://QmMeta5"},
		owned: []*big.Int{big.NewInt(5)},
	}
	market := &fakeMarket{calls: &calls}
	storage := &fakeStorage{metadata: map[string]*model.NFTMetadata{
		"ipfs://QmMeta5": {Name: "Mine", Image: "ipfs://QmImg5"},
	}}

	uc := newTestUsecase(nft, market, storage)

	nfts, err := uc.FetchOwnedTokens(context.Background())
	if err != nil {
		t.Fatalf("FetchOwnedTokens failed: %v", err)
	}
	if len(nfts) != 1 {
		t.Fatalf("expected 1 owned token, got %d", len(nfts))
	}
	if nfts[0].IsListed {
		t.Error("ownership alone must not imply an active listing")
	}
	if nfts[0].Owner != testAccount.Hex() || nfts[0].Price != "0" {
		t.Errorf("unexpected owned token %+v", nfts[0])
	}
}

func TestMint(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls}
	market := &fakeMarket{calls: &calls}

	uc := newTestUsecase(nft, market, &fakeStorage{})

	result, err := uc.Mint(context.Background(), "ipfs://QmMetadata")
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if !result.Success {
		t.Error("expected successful result")
	}
	if result.TokenId != 42 {
		t.Errorf("expected minted token ID 42, got %d", result.TokenId)
	}
}

func TestListApprovesThenLists(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls}
	market := &fakeMarket{
		calls:  &calls,
		fee:    big.NewInt(25),
		latest: map[uint64]*model.MarketItem{1: {MarketItemId: 10, TokenId: 1, Price: big.NewInt(0)}},
	}

	uc := newTestUsecase(nft, market, &fakeStorage{})

	result, err := uc.List(context.Background(), 1, "1.0")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(calls) != 2 || !strings.HasPrefix(calls[0], "approve:") || calls[1] != "createItem" {
		t.Fatalf("expected approve then createItem, got %v", calls)
	}
	if !strings.Contains(calls[0], marketAddr.Hex()) {
		t.Errorf("approve must target the marketplace, got %s", calls[0])
	}
	if market.itemValue == nil || market.itemValue.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("listing must pay the listing fee, got %v", market.itemValue)
	}
	if result.Item == nil {
		t.Error("expected post-state listing in result")
	}
}

func TestBuyForwardsOnChainPrice(t *testing.T) {
	price := new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))
	calls := []string{}
	nft := &fakeNFT{calls: &calls}
	market := &fakeMarket{
		calls:  &calls,
		latest: map[uint64]*model.MarketItem{3: {MarketItemId: 7, TokenId: 3, Price: price}},
	}

	uc := newTestUsecase(nft, market, &fakeStorage{})

	result, err := uc.Buy(context.Background(), 3, "2.0")
	if err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if len(calls) != 1 || calls[0] != "createSale:7" {
		t.Fatalf("expected createSale for market item 7, got %v", calls)
	}
	if market.saleValue == nil || market.saleValue.Cmp(price) != 0 {
		t.Errorf("buy must forward the exact on-chain price, got %v", market.saleValue)
	}
	if result.Item == nil {
		t.Error("expected post-state listing in result")
	}
}

func TestBuyPriceMismatch(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls}
	market := &fakeMarket{
		calls:  &calls,
		latest: map[uint64]*model.MarketItem{3: {MarketItemId: 7, TokenId: 3, Price: big.NewInt(1e18)}},
	}

	uc := newTestUsecase(nft, market, &fakeStorage{})

	if _, err := uc.Buy(context.Background(), 3, "1.5"); err == nil {
		t.Fatal("expected price mismatch error")
	}
	if len(calls) != 0 {
		t.Errorf("no transaction must be sent on price mismatch, got %v", calls)
	}
}

func TestBuyNotListed(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls}
	market := &fakeMarket{calls: &calls, latest: map[uint64]*model.MarketItem{}}

	uc := newTestUsecase(nft, market, &fakeStorage{})

	if _, err := uc.Buy(context.Background(), 99, ""); err == nil {
		t.Fatal("expected error for unlisted token")
	}
}

func TestBuySoldListing(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls}
	market := &fakeMarket{
		calls:  &calls,
		latest: map[uint64]*model.MarketItem{3: {MarketItemId: 7, TokenId: 3, Price: big.NewInt(1), Sold: true}},
	}

	uc := newTestUsecase(nft, market, &fakeStorage{})

	if _, err := uc.Buy(context.Background(), 3, ""); err == nil {
		t.Fatal("expected error for sold listing")
	}
}

func TestCancel(t *testing.T) {
	calls := []string{}
	nft := &fakeNFT{calls: &calls}
	market := &fakeMarket{
		calls:  &calls,
		latest: map[uint64]*model.MarketItem{3: {MarketItemId: 7, TokenId: 3, Price: big.NewInt(1)}},
	}

	uc := newTestUsecase(nft, market, &fakeStorage{})

	result, err := uc.Cancel(context.Background(), 3)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(calls) != 1 || calls[0] != "cancelItem:7" {
		t.Fatalf("expected cancelItem for market item 7, got %v", calls)
	}
	if !result.Success {
		t.Error("expected successful result")
	}
}
