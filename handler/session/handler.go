package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"nft-market-onchain/gateway/wallet"
	"nft-market-onchain/model"
)

// SessionHandler はウォレットセッション操作のHTTPハンドラー
type SessionHandler struct {
	session *wallet.Session
}

func NewSessionHandler(session *wallet.Session) *SessionHandler {
	return &SessionHandler{session: session}
}

// HandleGet は現在のセッション状態を返す
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"state": h.session.State(),
	}
	if account, ok := h.session.Account(); ok {
		response["account"] = account.Hex()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HandleConnect はウォレット接続を要求する
func (h *SessionHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Connect(r.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrProviderUnavailable) {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	h.HandleGet(w, r)
}

// HandleDisconnect はウォレットを切断する
func (h *SessionHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect()
	h.HandleGet(w, r)
}
