package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

// Per-chain address payloads arrive as raw byte encodings (hex pubkeys,
// script variants). Everything is converted to one canonical string form at
// this boundary so downstream lookups never need chain-specific decoding:
//
//	Ethereum/Arbitrum  EIP-55 checksummed hex
//	Polkadot           SS58 (network prefix 0)
//	Solana             base-58
//	Bitcoin            address text per script-pubkey variant (mainnet)

const ss58Prefix = 0 // Polkadot mainnet

// ss58Preimage is the checksum domain separator defined by the SS58 format.
var ss58Preimage = []byte("SS58PRE")

// CanonicalAddress decodes a chain-encoded address payload into its
// canonical string representation.
func CanonicalAddress(chain model.Chain, raw json.RawMessage) (string, error) {
	switch chain {
	case model.ChainEthereum, model.ChainArbitrum:
		b, err := hexBytes(raw, 20)
		if err != nil {
			return "", fmt.Errorf("%s address: %w", chain, err)
		}
		return common.BytesToAddress(b).Hex(), nil
	case model.ChainPolkadot:
		b, err := hexBytes(raw, 32)
		if err != nil {
			return "", fmt.Errorf("polkadot address: %w", err)
		}
		return ss58Encode(b), nil
	case model.ChainSolana:
		b, err := hexBytes(raw, 32)
		if err != nil {
			return "", fmt.Errorf("solana address: %w", err)
		}
		return base58.Encode(b), nil
	case model.ChainBitcoin:
		return bitcoinAddress(raw)
	}
	return "", fmt.Errorf("no address codec for chain %q", chain)
}

// hexBytes unmarshals a JSON "0x..." string of exactly n bytes.
func hexBytes(raw json.RawMessage, n int) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("expected hex string: %w", err)
	}
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	if n > 0 && len(b) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(b))
	}
	return b, nil
}

func ss58Encode(pubkey []byte) string {
	payload := append([]byte{ss58Prefix}, pubkey...)
	h, _ := blake2b.New512(nil)
	h.Write(ss58Preimage)
	h.Write(payload)
	sum := h.Sum(nil)
	return base58.Encode(append(payload, sum[:2]...))
}

// bitcoinScript is the tagged script-pubkey union carried by Bitcoin events.
type bitcoinScript struct {
	Kind  string          `json:"__kind"`
	Value json.RawMessage `json:"value"`
}

func bitcoinAddress(raw json.RawMessage) (string, error) {
	var script bitcoinScript
	if err := json.Unmarshal(raw, &script); err != nil {
		return "", fmt.Errorf("bitcoin script pubkey: %w", err)
	}
	switch script.Kind {
	case "P2PKH":
		b, err := hexBytes(script.Value, 20)
		if err != nil {
			return "", fmt.Errorf("p2pkh: %w", err)
		}
		return base58Check(0x00, b), nil
	case "P2SH":
		b, err := hexBytes(script.Value, 20)
		if err != nil {
			return "", fmt.Errorf("p2sh: %w", err)
		}
		return base58Check(0x05, b), nil
	case "P2WPKH":
		b, err := hexBytes(script.Value, 20)
		if err != nil {
			return "", fmt.Errorf("p2wpkh: %w", err)
		}
		return segwitAddress(0, b)
	case "P2WSH":
		b, err := hexBytes(script.Value, 32)
		if err != nil {
			return "", fmt.Errorf("p2wsh: %w", err)
		}
		return segwitAddress(0, b)
	case "Taproot":
		b, err := hexBytes(script.Value, 32)
		if err != nil {
			return "", fmt.Errorf("taproot: %w", err)
		}
		return segwitAddress(1, b)
	case "OtherSegwit":
		var v struct {
			Version byte            `json:"version"`
			Program json.RawMessage `json:"program"`
		}
		if err := json.Unmarshal(script.Value, &v); err != nil {
			return "", fmt.Errorf("other segwit: %w", err)
		}
		b, err := hexBytes(v.Program, 0)
		if err != nil {
			return "", fmt.Errorf("other segwit program: %w", err)
		}
		return segwitAddress(v.Version, b)
	}
	return "", fmt.Errorf("unknown bitcoin script kind %q", script.Kind)
}

func base58Check(version byte, payload []byte) string {
	data := append([]byte{version}, payload...)
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return base58.Encode(append(data, second[:4]...))
}

func segwitAddress(witnessVersion byte, program []byte) (string, error) {
	converted, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert witness program: %w", err)
	}
	data := append([]byte{witnessVersion}, converted...)
	if witnessVersion == 0 {
		return bech32.Encode("bc", data)
	}
	return bech32.EncodeM("bc", data)
}

// TxRefFromChainTxID derives the human-readable transaction reference from a
// chain-native transaction id payload. Returns nil for chains where the
// reference is only known at settlement.
func TxRefFromChainTxID(chain model.Chain, raw json.RawMessage) (*string, error) {
	switch chain {
	case model.ChainEthereum, model.ChainArbitrum:
		b, err := hexBytes(raw, 32)
		if err != nil {
			return nil, fmt.Errorf("%s tx id: %w", chain, err)
		}
		ref := "0x" + hex.EncodeToString(b)
		return &ref, nil
	case model.ChainPolkadot:
		var v struct {
			BlockNumber    *int64 `json:"blockNumber"`
			ExtrinsicIndex *int   `json:"extrinsicIndex"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("polkadot tx id: %w", err)
		}
		if v.BlockNumber == nil || v.ExtrinsicIndex == nil {
			return nil, fmt.Errorf("polkadot tx id: missing blockNumber/extrinsicIndex")
		}
		ref := model.BlockIndex{Height: *v.BlockNumber, Index: *v.ExtrinsicIndex}.String()
		return &ref, nil
	case model.ChainBitcoin:
		b, err := hexBytes(raw, 32)
		if err != nil {
			return nil, fmt.Errorf("bitcoin tx id: %w", err)
		}
		// Bitcoin displays tx ids byte-reversed relative to the wire hash.
		for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
			b[i], b[j] = b[j], b[i]
		}
		ref := hex.EncodeToString(b)
		return &ref, nil
	case model.ChainSolana:
		// Signature is only known once the deposit settles; resolved later
		// by the reconciliation queue.
		return nil, nil
	}
	return nil, fmt.Errorf("no tx ref codec for chain %q", chain)
}
