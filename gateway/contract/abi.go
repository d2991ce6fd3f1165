package contract

// NFTCollectionABI はNFTコレクションコントラクトのABI
const NFTCollectionABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "string", "name": "tokenURI", "type": "string"}],
    "name": "mintToken",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "tokenURI",
    "outputs": [{"internalType": "string", "name": "", "type": "string"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "ownerOf",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "to", "type": "address"},
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"}
    ],
    "name": "approve",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "from", "type": "address"},
      {"internalType": "address", "name": "to", "type": "address"},
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"}
    ],
    "name": "transferFrom",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "getTokenCreatorById",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getTokensOwnedByMe",
    "outputs": [{"internalType": "uint256[]", "name": "", "type": "uint256[]"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

// marketItemComponents はMarketItemタプルの共通定義
const marketItemComponents = `[
  {"internalType": "uint256", "name": "marketItemId", "type": "uint256"},
  {"internalType": "address", "name": "nftContractAddress", "type": "address"},
  {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
  {"internalType": "address", "name": "creator", "type": "address"},
  {"internalType": "address payable", "name": "seller", "type": "address"},
  {"internalType": "address payable", "name": "owner", "type": "address"},
  {"internalType": "uint256", "name": "price", "type": "uint256"},
  {"internalType": "bool", "name": "sold", "type": "bool"},
  {"internalType": "bool", "name": "canceled", "type": "bool"}
]`

// MarketplaceABI はマーケットプレイスコントラクトのABI
const MarketplaceABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "marketItemId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "nftContractAddress", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "creator", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "seller", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "price", "type": "uint256"}
    ],
    "name": "MarketItemCreated",
    "type": "event"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "nftContractAddress", "type": "address"},
      {"internalType": "uint256", "name": "tokenId", "type": "uint256"},
      {"internalType": "uint256", "name": "price", "type": "uint256"}
    ],
    "name": "createMarketItem",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "nftContractAddress", "type": "address"},
      {"internalType": "uint256", "name": "marketItemId", "type": "uint256"}
    ],
    "name": "createMarketSale",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "nftContractAddress", "type": "address"},
      {"internalType": "uint256", "name": "marketItemId", "type": "uint256"}
    ],
    "name": "cancelMarketItem",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "tokenId", "type": "uint256"}],
    "name": "getLatestMarketItemByTokenId",
    "outputs": [
      {"internalType": "struct NFTMarketplace.MarketItem", "name": "", "type": "tuple", "components": ` + marketItemComponents + `},
      {"internalType": "bool", "name": "", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fetchAvailableMarketItems",
    "outputs": [{"internalType": "struct NFTMarketplace.MarketItem[]", "name": "", "type": "tuple[]", "components": ` + marketItemComponents + `}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fetchSellingMarketItems",
    "outputs": [{"internalType": "struct NFTMarketplace.MarketItem[]", "name": "", "type": "tuple[]", "components": ` + marketItemComponents + `}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fetchOwnedMarketItems",
    "outputs": [{"internalType": "struct NFTMarketplace.MarketItem[]", "name": "", "type": "tuple[]", "components": ` + marketItemComponents + `}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getListingFee",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`
