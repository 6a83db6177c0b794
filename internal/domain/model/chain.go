package model

import "fmt"

type Chain string

const (
	ChainEthereum Chain = "Ethereum"
	ChainArbitrum Chain = "Arbitrum"
	ChainPolkadot Chain = "Polkadot"
	ChainBitcoin  Chain = "Bitcoin"
	ChainSolana   Chain = "Solana"
)

func (c Chain) String() string {
	return string(c)
}

// Valid reports whether c names a supported chain.
func (c Chain) Valid() bool {
	switch c {
	case ChainEthereum, ChainArbitrum, ChainPolkadot, ChainBitcoin, ChainSolana:
		return true
	}
	return false
}

// BlockSeconds is the target block interval of the external chain, used to
// estimate channel expiry timestamps from a block delta.
func (c Chain) BlockSeconds() float64 {
	switch c {
	case ChainEthereum:
		return 12
	case ChainArbitrum:
		return 0.25
	case ChainPolkadot:
		return 6
	case ChainBitcoin:
		return 600
	case ChainSolana:
		return 0.4
	default:
		return 0
	}
}

// RefPendingAtWitnessing reports whether deposit transaction references on
// this chain are only known after settlement and must be backfilled by the
// reconciliation queue.
func (c Chain) RefPendingAtWitnessing() bool {
	return c == ChainSolana
}

type Asset string

const (
	AssetEth     Asset = "Eth"
	AssetFlip    Asset = "Flip"
	AssetUsdc    Asset = "Usdc"
	AssetUsdt    Asset = "Usdt"
	AssetArbEth  Asset = "ArbEth"
	AssetArbUsdc Asset = "ArbUsdc"
	AssetDot     Asset = "Dot"
	AssetBtc     Asset = "Btc"
	AssetSol     Asset = "Sol"
	AssetSolUsdc Asset = "SolUsdc"
)

func (a Asset) String() string {
	return string(a)
}

// Chain returns the chain an asset lives on.
func (a Asset) Chain() Chain {
	switch a {
	case AssetEth, AssetFlip, AssetUsdc, AssetUsdt:
		return ChainEthereum
	case AssetArbEth, AssetArbUsdc:
		return ChainArbitrum
	case AssetDot:
		return ChainPolkadot
	case AssetBtc:
		return ChainBitcoin
	case AssetSol, AssetSolUsdc:
		return ChainSolana
	}
	return ""
}

// ParseAsset validates an asset name from an event payload.
func ParseAsset(s string) (Asset, error) {
	a := Asset(s)
	if a.Chain() == "" {
		return "", fmt.Errorf("unknown asset %q", s)
	}
	return a, nil
}

// ParseChain validates a chain name from an event payload.
func ParseChain(s string) (Chain, error) {
	c := Chain(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown chain %q", s)
	}
	return c, nil
}
