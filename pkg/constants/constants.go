package constants

import "time"

const (
	// FastPollInterval is used while a hydrated intent is pending destination
	// fulfillment. The order can settle within a block, so poll aggressively.
	FastPollInterval = 300 * time.Millisecond

	// SlowPollInterval is used while still waiting on the source-side payment
	// (external providers, deposit addresses). These rails take minutes.
	SlowPollInterval = 3 * time.Second

	APIRequestTimeout     = 30 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ResponseHeaderTimeout = 20 * time.Second
	ExpectContinueTimeout = 1 * time.Second
	MaxResponseBodySize   = 10 * 1024 * 1024 // maximum response body size in bytes (10MB)
)

const (
	// USDDisplayDecimals is the precision used for all USD-denominated display values.
	USDDisplayDecimals = 2

	// MaxAmountInputFractionDigits bounds the fractional digits accepted from
	// free-form amount entry before conversion.
	MaxAmountInputFractionDigits = 8
)

// Platform identifies the calling surface to the order API.
const (
	PlatformSDK = "sdk"
)

// Network names
const (
	NetworkEthereum    = "ethereum"
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"
	NetworkOptimism    = "optimism"
	NetworkArbitrum    = "arbitrum"
	NetworkPolygon     = "polygon"
	NetworkSolana      = "solana"
	NetworkBitcoin     = "bitcoin"
	NetworkTron        = "tron"
	NetworkZcash       = "zcash"
)

// NetworkToChainID maps EVM network names to their numeric chain IDs.
// Non-EVM rails (Solana, deposit-address chains) intentionally have no entry.
var NetworkToChainID = map[string]int64{
	NetworkEthereum:    1,
	NetworkBase:        8453,
	NetworkBaseSepolia: 84532,
	NetworkOptimism:    10,
	NetworkArbitrum:    42161,
	NetworkPolygon:     137,
}

// ChainIDToNetwork is the inverse of NetworkToChainID.
var ChainIDToNetwork = func() map[int64]string {
	m := make(map[int64]string, len(NetworkToChainID))
	for network, id := range NetworkToChainID {
		m[id] = network
	}
	return m
}()

const (
	USDCDecimals = 6

	USDCAddressEthereum = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	USDCAddressBase     = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	USDCAddressOptimism = "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"
	USDCAddressArbitrum = "0xaf88d065e77c8cC2239327C5EDb3A432268e5831"
	USDCAddressPolygon  = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
	USDCMintSolana      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// NativeTokenAddress marks an option as paying in the chain's native currency
// rather than an ERC-20 contract.
const NativeTokenAddress = "0x0000000000000000000000000000000000000000"
