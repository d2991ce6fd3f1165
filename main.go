package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	contractGateway "nft-market-onchain/gateway/contract"
	pinataGateway "nft-market-onchain/gateway/pinata"
	walletGateway "nft-market-onchain/gateway/wallet"
	marketHandler "nft-market-onchain/handler/market"
	sessionHandler "nft-market-onchain/handler/session"
	storageHandler "nft-market-onchain/handler/storage"
	marketUsecase "nft-market-onchain/usecase/market"
	storageUsecase "nft-market-onchain/usecase/nftstorage"
)

func main() {
	// --- 1. 初期設定 ---
	nodeURL := os.Getenv("ETH_NODE_URL")
	if nodeURL == "" {
		log.Fatal("ETH_NODE_URL environment variable not set")
	}

	nftAddr := os.Getenv("NFT_CONTRACT_ADDRESS")
	marketplaceAddr := os.Getenv("MARKETPLACE_CONTRACT_ADDRESS")
	if nftAddr == "" || marketplaceAddr == "" {
		log.Println("WARNING: contract addresses not set. Marketplace features will be disabled.")
	}

	keystoreDir := os.Getenv("KEYSTORE_DIR")
	if keystoreDir == "" {
		keystoreDir = "./keystore"
	}
	keystorePassphrase := os.Getenv("KEYSTORE_PASSPHRASE")

	// --- 2. Pinataクライアントの初期化 ---
	pinataCfg := pinataGateway.ConfigFromEnv()
	if !pinataCfg.IsConfigured() {
		log.Println("WARNING: Pinata credentials not set. Pinning operations will fail until configured.")
	}
	pinataClient := pinataGateway.NewClient(pinataCfg)
	log.Printf("IPFS gateway: %s", pinataCfg.Gateway)

	storageUC := storageUsecase.NewNFTStorageUsecase(pinataClient)

	// --- 3. ethclientの初期化 ---
	client, err := ethclient.Dial(nodeURL)
	if err != nil {
		log.Fatalf("Failed to connect to Ethereum node: %v", err)
	}
	log.Println("Successfully connected to Ethereum node.")

	// --- 4. ウォレットセッションとコントラクトの依存性注入 ---
	var marketHdlr *marketHandler.MarketHandler
	var sessionHdlr *sessionHandler.SessionHandler
	var marketUC marketUsecase.MarketUsecase

	if nftAddr != "" && marketplaceAddr != "" {
		provider := walletGateway.NewKeystoreProvider(client, keystoreDir, keystorePassphrase)

		factory := func(account common.Address) (*walletGateway.Handles, error) {
			nftGW, err := contractGateway.NewNFTGateway(client, nftAddr)
			if err != nil {
				return nil, err
			}
			marketGW, err := contractGateway.NewMarketGateway(client, marketplaceAddr)
			if err != nil {
				return nil, err
			}
			return &walletGateway.Handles{NFT: nftGW, Market: marketGW}, nil
		}

		session := walletGateway.NewSession(provider, factory)
		log.Printf("NFT Contract: %s", nftAddr)
		log.Printf("Marketplace Contract: %s", marketplaceAddr)

		// 既存の許可済みアカウントがあればセッションを復元する
		if err := session.Resume(context.Background()); err != nil {
			log.Printf("WARNING: Failed to resume wallet session: %v", err)
		} else {
			log.Printf("Wallet session state: %s", session.State())
		}

		marketUC = marketUsecase.NewMarketUsecase(session, storageUC, client)
		marketHdlr = marketHandler.NewMarketHandler(marketUC)
		sessionHdlr = sessionHandler.NewSessionHandler(session)
	}

	storageHdlr := storageHandler.NewStorageHandler(storageUC, pinataClient, marketUC)

	// --- 5. ルーティングの設定 ---
	router := mux.NewRouter()

	// ヘルスチェック用エンドポイント
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Storage API
	router.HandleFunc("/api/v1/storage/upload", storageHdlr.HandleUpload).Methods("POST")
	router.HandleFunc("/api/v1/nft/create", storageHdlr.HandleCreateNFT).Methods("POST")

	// Market / Session API
	if marketHdlr != nil {
		router.HandleFunc("/api/v1/market/items", marketHdlr.HandleGetItems).Methods("GET")
		router.HandleFunc("/api/v1/market/owned", marketHdlr.HandleGetOwned).Methods("GET")
		router.HandleFunc("/api/v1/market/selling", marketHdlr.HandleGetSelling).Methods("GET")
		router.HandleFunc("/api/v1/market/purchased", marketHdlr.HandleGetPurchased).Methods("GET")
		router.HandleFunc("/api/v1/market/mint", marketHdlr.HandleMint).Methods("POST")
		router.HandleFunc("/api/v1/market/list", marketHdlr.HandleList).Methods("POST")
		router.HandleFunc("/api/v1/market/buy", marketHdlr.HandleBuy).Methods("POST")
		router.HandleFunc("/api/v1/market/cancel", marketHdlr.HandleCancel).Methods("POST")

		router.HandleFunc("/api/v1/session", sessionHdlr.HandleGet).Methods("GET")
		router.HandleFunc("/api/v1/session/connect", sessionHdlr.HandleConnect).Methods("POST")
		router.HandleFunc("/api/v1/session/disconnect", sessionHdlr.HandleDisconnect).Methods("POST")
	}

	// --- 6. CORSミドルウェアの設定 ---
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	corsHandler := c.Handler(router)

	// --- 7. サーバー起動 ---
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("NFT Market Onchain Service starting on :%s", port)
	log.Println("Available endpoints:")
	log.Println("  - GET  /health")
	log.Println("  - POST /api/v1/storage/upload")
	log.Println("  - POST /api/v1/nft/create")
	if marketHdlr != nil {
		log.Println("  - GET  /api/v1/market/items")
		log.Println("  - GET  /api/v1/market/owned")
		log.Println("  - GET  /api/v1/market/selling")
		log.Println("  - GET  /api/v1/market/purchased")
		log.Println("  - POST /api/v1/market/mint")
		log.Println("  - POST /api/v1/market/list")
		log.Println("  - POST /api/v1/market/buy")
		log.Println("  - POST /api/v1/market/cancel")
		log.Println("  - GET  /api/v1/session")
		log.Println("  - POST /api/v1/session/connect")
		log.Println("  - POST /api/v1/session/disconnect")
	}

	if err := http.ListenAndServe(":"+port, corsHandler); err != nil {
		log.Fatalf("could not start server: %v", err)
	}
}
