package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"nft-market-onchain/gateway/wallet"
	"nft-market-onchain/model"
	"nft-market-onchain/usecase/market"
)

// MarketHandler はマーケットプレイス操作のHTTPハンドラー
type MarketHandler struct {
	marketUC market.MarketUsecase
}

func NewMarketHandler(uc market.MarketUsecase) *MarketHandler {
	return &MarketHandler{marketUC: uc}
}

// HandleGetItems は購入可能な出品一覧を返す
func (h *MarketHandler) HandleGetItems(w http.ResponseWriter, r *http.Request) {
	nfts, err := h.marketUC.FetchAvailableListings(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, nfts)
}

// HandleGetOwned はセッションアカウントが所有するトークン一覧を返す
func (h *MarketHandler) HandleGetOwned(w http.ResponseWriter, r *http.Request) {
	nfts, err := h.marketUC.FetchOwnedTokens(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, nfts)
}

// HandleGetSelling はセッションアカウントが出品中の商品一覧を返す
func (h *MarketHandler) HandleGetSelling(w http.ResponseWriter, r *http.Request) {
	nfts, err := h.marketUC.FetchSellingListings(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, nfts)
}

// HandleGetPurchased はセッションアカウントが購入した商品一覧を返す
func (h *MarketHandler) HandleGetPurchased(w http.ResponseWriter, r *http.Request) {
	nfts, err := h.marketUC.FetchPurchasedListings(r.Context())
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, nfts)
}

// MintRequest はmintリクエスト
type MintRequest struct {
	TokenURI string `json:"token_uri"`
}

// HandleMint はNFTを発行する
func (h *MarketHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.TokenURI == "" {
		respondError(w, http.StatusBadRequest, errors.New("token_uri is required"))
		return
	}

	result, err := h.marketUC.Mint(r.Context(), req.TokenURI)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, result)
}

// ListRequest は出品リクエスト。PriceはETH建ての文字列
type ListRequest struct {
	TokenId uint64 `json:"token_id"`
	Price   string `json:"price"`
}

// HandleList はトークンを出品する
func (h *MarketHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var req ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.Price == "" {
		respondError(w, http.StatusBadRequest, errors.New("price is required"))
		return
	}

	result, err := h.marketUC.List(r.Context(), req.TokenId, req.Price)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, result)
}

// BuyRequest は購入リクエスト。Priceは任意の確認用
type BuyRequest struct {
	TokenId uint64 `json:"token_id"`
	Price   string `json:"price,omitempty"`
}

// HandleBuy は出品中のトークンを購入する
func (h *MarketHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	result, err := h.marketUC.Buy(r.Context(), req.TokenId, req.Price)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, result)
}

// CancelRequest は出品取り下げリクエスト
type CancelRequest struct {
	TokenId uint64 `json:"token_id"`
}

// HandleCancel は出品を取り下げる
func (h *MarketHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	result, err := h.marketUC.Cancel(r.Context(), req.TokenId)
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, result)
}

func respondJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// respondFailure はエラー分類からHTTPステータスを決めてレスポンスする
func respondFailure(w http.ResponseWriter, err error) {
	var configErr *model.ConfigError
	var remoteErr *model.RemoteError
	var timeoutErr *model.TimeoutError
	var txErr *model.TxFailedError

	switch {
	case errors.As(err, &configErr):
		respondError(w, http.StatusInternalServerError, err)
	case errors.As(err, &remoteErr):
		respondError(w, http.StatusBadGateway, err)
	case errors.As(err, &timeoutErr):
		respondError(w, http.StatusGatewayTimeout, err)
	case errors.As(err, &txErr):
		respondError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, model.ErrProviderUnavailable):
		respondError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, wallet.ErrSessionNotConnected):
		respondError(w, http.StatusConflict, err)
	case errors.Is(err, model.ErrUserRejected):
		respondError(w, http.StatusForbidden, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}
