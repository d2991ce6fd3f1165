package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"nft-market-onchain/gateway/pinata"
	"nft-market-onchain/model"
	"nft-market-onchain/usecase/market"
	"nft-market-onchain/usecase/nftstorage"
)

// maxUploadSize はアップロードの上限 (10MB)
const maxUploadSize = 10 << 20

// StorageHandler はIPFSアップロード関連のHTTPハンドラー
type StorageHandler struct {
	storageUC nftstorage.NFTStorageUsecase
	pinataGW  pinata.PinataGateway
	marketUC  market.MarketUsecase // mint付きNFT作成で使用（nil可）
}

func NewStorageHandler(storageUC nftstorage.NFTStorageUsecase, pinataGW pinata.PinataGateway, marketUC market.MarketUsecase) *StorageHandler {
	return &StorageHandler{
		storageUC: storageUC,
		pinataGW:  pinataGW,
		marketUC:  marketUC,
	}
}

// HandleUpload はファイル（multipart）またはJSONドキュメントをピン留めする
func (h *StorageHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")

	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var doc interface{}
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			respondError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
			return
		}
		result, err := h.pinataGW.PinJSON(r.Context(), doc, nil)
		if err != nil {
			respondFailure(w, err)
			return
		}
		log.Printf("Pinned JSON document: %s", result.CID)
		respondJSON(w, map[string]string{"ipfsHash": result.CID})

	case strings.HasPrefix(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, errors.New("invalid multipart body"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, errors.New("no file found in request"))
			return
		}
		defer file.Close()

		name := header.Filename
		if name == "" {
			name = "upload-" + uuid.NewString()
		}

		result, err := h.pinataGW.PinFile(r.Context(), file, name, nil)
		if err != nil {
			respondFailure(w, err)
			return
		}
		log.Printf("Pinned file %s: %s (%d bytes)", name, result.CID, result.SizeBytes)
		respondJSON(w, map[string]string{"ipfsHash": result.CID})

	default:
		respondError(w, http.StatusBadRequest, errors.New("unsupported content type"))
	}
}

// HandleCreateNFT は画像とメタデータを一括でピン留めしてトークンURIを返す。
// mint=true を指定するとそのままmintまで行う
func (h *StorageHandler) HandleCreateNFT(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid multipart body"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("no file found in request"))
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	if name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}
	description := r.FormValue("description")

	var attributes []model.Attribute
	if raw := r.FormValue("attributes"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &attributes); err != nil {
			respondError(w, http.StatusBadRequest, errors.New("attributes must be a JSON array of {trait_type, value}"))
			return
		}
	}

	tokenURI, err := h.storageUC.CreateNFT(r.Context(), file, name, description, attributes)
	if err != nil {
		respondFailure(w, err)
		return
	}

	response := map[string]interface{}{"tokenURI": tokenURI}

	if r.FormValue("mint") == "true" {
		if h.marketUC == nil {
			respondError(w, http.StatusServiceUnavailable, errors.New("minting is not available: contract features are disabled"))
			return
		}
		result, err := h.marketUC.Mint(r.Context(), tokenURI)
		if err != nil {
			respondFailure(w, err)
			return
		}
		response["mint"] = result
	}

	respondJSON(w, response)
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

	switch {
	case errors.As(err, &configErr):
		respondError(w, http.StatusInternalServerError, err)
	case errors.As(err, &remoteErr):
		respondError(w, http.StatusBadGateway, err)
	case errors.As(err, &timeoutErr):
		respondError(w, http.StatusGatewayTimeout, err)
	case errors.Is(err, model.ErrProviderUnavailable):
		respondError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, model.ErrUserRejected):
		respondError(w, http.StatusForbidden, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}
