package market

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"nft-market-onchain/gateway/wallet"
	"nft-market-onchain/model"
	"nft-market-onchain/usecase/nftstorage"
)

// listingFetchTimeout は出品一覧取得全体に課すクライアント側の制限時間
const listingFetchTimeout = 15000 * time.Millisecond

// Session はマーケット操作が必要とするウォレットセッションの読み取り面
type Session interface {
	Handles() (*wallet.Handles, error)
	Account() (common.Address, bool)
	Transactor() (*bind.TransactOpts, error)
}

// MarketUsecase はマーケットプレイス操作のビジネスロジック
type MarketUsecase interface {
	// FetchAvailableListings は購入可能な出品をメタデータ込みで列挙する
	FetchAvailableListings(ctx context.Context) ([]model.NFT, error)

	// FetchOwnedTokens はセッションアカウントが所有するトークンを列挙する
	FetchOwnedTokens(ctx context.Context) ([]model.NFT, error)

	// FetchSellingListings はセッションアカウントが出品中の商品を列挙する
	FetchSellingListings(ctx context.Context) ([]model.NFT, error)

	// FetchPurchasedListings はセッションアカウントが購入した商品を列挙する
	FetchPurchasedListings(ctx context.Context) ([]model.NFT, error)

	// Mint はトークンURIを指定してNFTを発行し、確定を待つ
	Mint(ctx context.Context, tokenURI string) (*model.TxResult, error)

	// List はトークンを指定価格（ETH建て文字列）で出品する
	List(ctx context.Context, tokenId uint64, price string) (*model.TxResult, error)

	// Buy は出品中のトークンを購入する。priceは確認用（空なら省略可）
	Buy(ctx context.Context, tokenId uint64, price string) (*model.TxResult, error)

	// Cancel は自分の出品を取り下げる
	Cancel(ctx context.Context, tokenId uint64) (*model.TxResult, error)
}

type marketUsecase struct {
	session        Session
	storage        nftstorage.NFTStorageUsecase
	backend        bind.DeployBackend
	listingTimeout time.Duration
}

func NewMarketUsecase(session Session, storage nftstorage.NFTStorageUsecase, backend bind.DeployBackend) *marketUsecase {
	return &marketUsecase{
		session:        session,
		storage:        storage,
		backend:        backend,
		listingTimeout: listingFetchTimeout,
	}
}

// FetchAvailableListings は購入可能な出品をメタデータ込みで列挙する。
// バッチ全体を制限時間と競争させ、超過した場合はTimeoutErrorを返す
func (uc *marketUsecase) FetchAvailableListings(ctx context.Context) ([]model.NFT, error) {
	handles, err := uc.session.Handles()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, uc.listingTimeout)
	defer cancel()

	items, err := handles.Market.FetchAvailableItems(ctx)
	if err != nil {
		return nil, uc.listingError(err)
	}

	nfts := make([]model.NFT, 0, len(items))
	for _, item := range items {
		nft, err := uc.resolveItem(ctx, handles, item)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, uc.listingError(err)
			}
			// メタデータが壊れている出品は一覧から落とすだけにする
			log.Printf("Skipping market item %d (token %d): %v", item.MarketItemId, item.TokenId, err)
			continue
		}
		nfts = append(nfts, *nft)
	}

	return nfts, nil
}

// listingError はコンテキスト超過をTimeoutErrorに変換する
func (uc *marketUsecase) listingError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.TimeoutError{Op: "fetch market listings", Limit: uc.listingTimeout}
	}
	return fmt.Errorf("failed to fetch market listings: %w", err)
}

// resolveItem は出品情報とメタデータを統合して表示用NFTを構築する
func (uc *marketUsecase) resolveItem(ctx context.Context, handles *wallet.Handles, item model.MarketItem) (*model.NFT, error) {
	tokenURI, err := handles.NFT.TokenURI(ctx, new(big.Int).SetUint64(item.TokenId))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token URI: %w", err)
	}

	metadata, err := uc.storage.LoadNFTMetadata(ctx, tokenURI)
	if err != nil {
		return nil, err
	}

	return &model.NFT{
		TokenId:      fmt.Sprintf("%d", item.TokenId),
		Price:        item.Price.String(),
		Seller:       item.Seller,
		Owner:        item.Owner,
		Image:        uc.imageURL(metadata.Image),
		Name:         metadata.Name,
		Description:  metadata.Description,
		IsListed:     !item.Sold && !item.Canceled,
		MarketItemId: item.MarketItemId,
	}, nil
}

// imageURL はipfs参照のみゲートウェイURLに変換する。
// メタデータが最初からHTTP URLを持つ場合はそのまま使う
func (uc *marketUsecase) imageURL(ref string) string {
	if strings.HasPrefix(ref, nftstorage.IPFSScheme) {
		return uc.storage.GatewayURL(ref)
	}
	return ref
}

// FetchOwnedTokens はセッションアカウントが所有するトークンを
// コレクションコントラクトから直接列挙する。所有しているだけでは
// 出品中とは限らないためIsListedはfalse固定
func (uc *marketUsecase) FetchOwnedTokens(ctx context.Context) ([]model.NFT, error) {
	handles, err := uc.session.Handles()
	if err != nil {
		return nil, err
	}
	account, ok := uc.session.Account()
	if !ok {
		return nil, wallet.ErrSessionNotConnected
	}

	tokenIds, err := handles.NFT.TokensOwnedBy(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate owned tokens: %w", err)
	}

	nfts := make([]model.NFT, 0, len(tokenIds))
	for _, tokenId := range tokenIds {
		tokenURI, err := handles.NFT.TokenURI(ctx, tokenId)
		if err != nil {
			log.Printf("Skipping owned token %s: %v", tokenId.String(), err)
			continue
		}
		metadata, err := uc.storage.LoadNFTMetadata(ctx, tokenURI)
		if err != nil {
			log.Printf("Skipping owned token %s: %v", tokenId.String(), err)
			continue
		}
		nfts = append(nfts, model.NFT{
			TokenId:     tokenId.String(),
			Price:       "0",
			Seller:      account.Hex(),
			Owner:       account.Hex(),
			Image:       uc.imageURL(metadata.Image),
			Name:        metadata.Name,
			Description: metadata.Description,
			IsListed:    false,
		})
	}

	return nfts, nil
}

// FetchSellingListings はセッションアカウントが出品中の商品を列挙する
func (uc *marketUsecase) FetchSellingListings(ctx context.Context) ([]model.NFT, error) {
	return uc.fetchAccountItems(ctx, func(ctx context.Context, handles *wallet.Handles, account common.Address) ([]model.MarketItem, error) {
		return handles.Market.FetchSellingItems(ctx, account)
	})
}

// FetchPurchasedListings はセッションアカウントが購入した商品を列挙する
func (uc *marketUsecase) FetchPurchasedListings(ctx context.Context) ([]model.NFT, error) {
	return uc.fetchAccountItems(ctx, func(ctx context.Context, handles *wallet.Handles, account common.Address) ([]model.MarketItem, error) {
		return handles.Market.FetchOwnedItems(ctx, account)
	})
}

// fetchAccountItems はアカウント起点の出品ビューを取得して表示用に解決する
func (uc *marketUsecase) fetchAccountItems(ctx context.Context, fetch func(context.Context, *wallet.Handles, common.Address) ([]model.MarketItem, error)) ([]model.NFT, error) {
	handles, err := uc.session.Handles()
	if err != nil {
		return nil, err
	}
	account, ok := uc.session.Account()
	if !ok {
		return nil, wallet.ErrSessionNotConnected
	}

	items, err := fetch(ctx, handles, account)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market items: %w", err)
	}

	nfts := make([]model.NFT, 0, len(items))
	for _, item := range items {
		nft, err := uc.resolveItem(ctx, handles, item)
		if err != nil {
			log.Printf("Skipping market item %d (token %d): %v", item.MarketItemId, item.TokenId, err)
			continue
		}
		nfts = append(nfts, *nft)
	}
	return nfts, nil
}

// Mint はトークンURIを指定してNFTを発行し、オンチェーン確定を待つ
func (uc *marketUsecase) Mint(ctx context.Context, tokenURI string) (*model.TxResult, error) {
	handles, err := uc.session.Handles()
	if err != nil {
		return nil, err
	}
	auth, err := uc.session.Transactor()
	if err != nil {
		return nil, err
	}

	tx, err := handles.NFT.MintToken(auth, tokenURI)
	if err != nil {
		return nil, uc.transactError("mint", err)
	}

	receipt, err := uc.waitMined(ctx, "mint", tx)
	if err != nil {
		return nil, err
	}

	result := txResult(receipt)
	tokenId, err := handles.NFT.MintedTokenID(receipt)
	if err != nil {
		log.Printf("Mint confirmed but token ID not found in logs (tx %s): %v", result.TxHash, err)
	} else {
		result.TokenId = tokenId
	}

	log.Printf("Minted token %d (tx %s)", result.TokenId, result.TxHash)
	return result, nil
}

// List はトークンを出品する。マーケットプレイスへのapproveと
// createMarketItemの2トランザクションを順に送る。アトミックではなく、
// approve成功後にcreateMarketItemが失敗した場合は再度Listをやり直せば回復する
func (uc *marketUsecase) List(ctx context.Context, tokenId uint64, price string) (*model.TxResult, error) {
	handles, err := uc.session.Handles()
	if err != nil {
		return nil, err
	}
	auth, err := uc.session.Transactor()
	if err != nil {
		return nil, err
	}

	priceWei, err := ParseETHToWei(price)
	if err != nil {
		return nil, err
	}

	id := new(big.Int).SetUint64(tokenId)

	// 1. マーケットプレイスをトークンのoperatorとして承認
	approveTx, err := handles.NFT.Approve(auth, handles.Market.Address(), id)
	if err != nil {
		return nil, uc.transactError("approve", err)
	}
	if _, err := uc.waitMined(ctx, "approve", approveTx); err != nil {
		return nil, err
	}

	// 2. 出品手数料を添えてcreateMarketItemを送信
	fee, err := handles.Market.ListingFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing fee: %w", err)
	}

	listOpts := *auth
	listOpts.Value = fee
	listTx, err := handles.Market.CreateItem(&listOpts, handles.NFT.Address(), id, priceWei)
	if err != nil {
		return nil, uc.transactError("list", err)
	}

	receipt, err := uc.waitMined(ctx, "list", listTx)
	if err != nil {
		return nil, err
	}

	result := txResult(receipt)
	result.TokenId = tokenId
	result.Item = uc.readBack(ctx, handles, id)
	log.Printf("Listed token %d at %s wei (tx %s)", tokenId, priceWei.String(), result.TxHash)
	return result, nil
}

// Buy は出品中のトークンを購入する。送金額は常にオンチェーンの
// 出品価格を使い、呼び出し側が価格を渡した場合は食い違いを検査する
func (uc *marketUsecase) Buy(ctx context.Context, tokenId uint64, price string) (*model.TxResult, error) {
	handles, err := uc.session.Handles()
	if err != nil {
		return nil, err
	}
	auth, err := uc.session.Transactor()
	if err != nil {
		return nil, err
	}

	id := new(big.Int).SetUint64(tokenId)
	item, found, err := handles.Market.LatestItemByTokenID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up listing: %w", err)
	}
	if !found || item.Sold || item.Canceled {
		return nil, fmt.Errorf("token %d is not listed for sale", tokenId)
	}

	if price != "" {
		expected, err := ParseETHToWei(price)
		if err != nil {
			return nil, err
		}
		if expected.Cmp(item.Price) != 0 {
			return nil, fmt.Errorf("listing price changed: expected %s wei, on-chain price is %s wei", expected.String(), item.Price.String())
		}
	}

	buyOpts := *auth
	buyOpts.Value = item.Price
	tx, err := handles.Market.CreateSale(&buyOpts, handles.NFT.Address(), new(big.Int).SetUint64(item.MarketItemId))
	if err != nil {
		return nil, uc.transactError("buy", err)
	}

	receipt, err := uc.waitMined(ctx, "buy", tx)
	if err != nil {
		return nil, err
	}

	result := txResult(receipt)
	result.TokenId = tokenId
	result.Item = uc.readBack(ctx, handles, id)
	log.Printf("Bought token %d for %s wei (tx %s)", tokenId, item.Price.String(), result.TxHash)
	return result, nil
}

// Cancel は自分の出品を取り下げる
func (uc *marketUsecase) Cancel(ctx context.Context, tokenId uint64) (*model.TxResult, error) {
	handles, err := uc.session.Handles()
	if err != nil {
		return nil, err
	}
	auth, err := uc.session.Transactor()
	if err != nil {
		return nil, err
	}

	id := new(big.Int).SetUint64(tokenId)
	item, found, err := handles.Market.LatestItemByTokenID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up listing: %w", err)
	}
	if !found || item.Sold || item.Canceled {
		return nil, fmt.Errorf("token %d has no active listing to cancel", tokenId)
	}

	tx, err := handles.Market.CancelItem(auth, handles.NFT.Address(), new(big.Int).SetUint64(item.MarketItemId))
	if err != nil {
		return nil, uc.transactError("cancel", err)
	}

	receipt, err := uc.waitMined(ctx, "cancel", tx)
	if err != nil {
		return nil, err
	}

	result := txResult(receipt)
	result.TokenId = tokenId
	result.Item = uc.readBack(ctx, handles, id)
	log.Printf("Canceled listing for token %d (tx %s)", tokenId, result.TxHash)
	return result, nil
}

// waitMined はトランザクションの確定を待ち、revertをTxFailedErrorに変換する
func (uc *marketUsecase) waitMined(ctx context.Context, op string, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, uc.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s transaction %s: %w", op, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &model.TxFailedError{Op: op, TxHash: tx.Hash().Hex()}
	}
	return receipt, nil
}

// transactError は署名・送信段階のエラーを分類する
func (uc *marketUsecase) transactError(op string, err error) error {
	if errors.Is(err, keystore.ErrLocked) {
		return fmt.Errorf("%s: %w", op, model.ErrUserRejected)
	}
	return fmt.Errorf("failed to send %s transaction: %w", op, err)
}

// readBack は処理後の出品状態を再読み込みする。
// 失敗しても操作自体の結果には影響させない
func (uc *marketUsecase) readBack(ctx context.Context, handles *wallet.Handles, tokenId *big.Int) *model.MarketItem {
	item, found, err := handles.Market.LatestItemByTokenID(ctx, tokenId)
	if err != nil {
		log.Printf("Failed to re-read listing state for token %s: %v", tokenId.String(), err)
		return nil
	}
	if !found {
		return nil
	}
	return item
}

func txResult(receipt *types.Receipt) *model.TxResult {
	return &model.TxResult{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
	}
}
