package normalizer

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/domain/model"
)

// u64 accepts the string and bare-number encodings of u64 ids.
type u64 uint64

func (u *u64) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n uint64
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("expected u64: %s", raw)
		}
		*u = u64(n)
		return nil
	}
	var n uint64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return fmt.Errorf("malformed u64 %q", s)
	}
	*u = u64(n)
	return nil
}

// encodedAddress is the tagged cross-chain address union used on the
// destination side of events.
type encodedAddress struct {
	Kind  string          `json:"__kind"`
	Value json.RawMessage `json:"value"`
}

func (e encodedAddress) canonical() (string, model.Chain, error) {
	var chain model.Chain
	switch e.Kind {
	case "Eth":
		chain = model.ChainEthereum
	case "Arb":
		chain = model.ChainArbitrum
	case "Dot":
		chain = model.ChainPolkadot
	case "Sol":
		chain = model.ChainSolana
	case "Btc":
		// Byte-encoded address text.
		b, err := hexBytes(e.Value, 0)
		if err != nil {
			return "", "", fmt.Errorf("btc encoded address: %w", err)
		}
		return string(b), model.ChainBitcoin, nil
	default:
		return "", "", fmt.Errorf("unknown address encoding %q", e.Kind)
	}
	addr, err := CanonicalAddress(chain, e.Value)
	if err != nil {
		return "", "", err
	}
	return addr, chain, nil
}

type rawDca struct {
	NumberOfChunks int `json:"numberOfChunks"`
	ChunkInterval  int `json:"chunkInterval"`
}

func (d *rawDca) canonical() *event.DcaParams {
	if d == nil {
		return nil
	}
	return &event.DcaParams{NumberOfChunks: d.NumberOfChunks, ChunkInterval: d.ChunkInterval}
}

type rawFok struct {
	MinPrice      *amount         `json:"minPrice"`
	RefundAddress json.RawMessage `json:"refundAddress"`
	RetryDuration int             `json:"retryDuration"`
}

func (f *rawFok) canonical(chain model.Chain) (*event.FokParams, error) {
	if f == nil {
		return nil, nil
	}
	if f.MinPrice == nil || f.RefundAddress == nil {
		return nil, fmt.Errorf("refund parameters missing minPrice/refundAddress")
	}
	addr, err := CanonicalAddress(chain, f.RefundAddress)
	if err != nil {
		return nil, fmt.Errorf("refund address: %w", err)
	}
	return &event.FokParams{
		MinPriceX128:  f.MinPrice.String(),
		RefundAddress: addr,
		RetryDuration: f.RetryDuration,
	}, nil
}

type rawCcmMetadata struct {
	ChannelMetadata struct {
		Message           *string `json:"message"`
		GasBudget         *amount `json:"gasBudget"`
		CcmAdditionalData *string `json:"ccmAdditionalData"`
	} `json:"channelMetadata"`
}

func (c *rawCcmMetadata) canonical() (*event.CcmParams, error) {
	if c == nil {
		return nil, nil
	}
	m := c.ChannelMetadata
	if m.Message == nil || m.GasBudget == nil {
		return nil, fmt.Errorf("ccm metadata missing message/gasBudget")
	}
	params := &event.CcmParams{Message: *m.Message, GasBudget: m.GasBudget.String()}
	if m.CcmAdditionalData != nil {
		params.AdditionalData = *m.CcmAdditionalData
	}
	return params, nil
}

type rawAffiliate struct {
	Account *string `json:"account"`
	Bps     int     `json:"bps"`
}

func decodeSwapDepositAddressReady(_ Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		DepositAddress         json.RawMessage `json:"depositAddress"`
		ChannelID              *u64            `json:"channelId"`
		SourceAsset            *string         `json:"sourceAsset"`
		DestinationAsset       *string         `json:"destinationAsset"`
		DestinationAddress     *encodedAddress `json:"destinationAddress"`
		BrokerID               *string         `json:"brokerId"`
		BrokerCommissionRate   *int            `json:"brokerCommissionRate"`
		AffiliateFees          []rawAffiliate  `json:"affiliateFees"`
		BoostFee               int             `json:"boostFee"`
		ChannelOpeningFee      *amount         `json:"channelOpeningFee"`
		SourceChainExpiryBlock *u64            `json:"sourceChainExpiryBlock"`
		DcaParameters          *rawDca         `json:"dcaParameters"`
		RefundParameters       *rawFok         `json:"refundParameters"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.DepositAddress == nil || p.ChannelID == nil || p.SourceAsset == nil ||
		p.DestinationAsset == nil || p.DestinationAddress == nil ||
		p.BrokerID == nil || p.BrokerCommissionRate == nil ||
		p.ChannelOpeningFee == nil || p.SourceChainExpiryBlock == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	srcAsset, err := model.ParseAsset(*p.SourceAsset)
	if err != nil {
		return nil, err
	}
	destAsset, err := model.ParseAsset(*p.DestinationAsset)
	if err != nil {
		return nil, err
	}
	srcChain := srcAsset.Chain()
	depositAddr, err := CanonicalAddress(srcChain, p.DepositAddress)
	if err != nil {
		return nil, fmt.Errorf("deposit address: %w", err)
	}
	destAddr, destChain, err := p.DestinationAddress.canonical()
	if err != nil {
		return nil, fmt.Errorf("destination address: %w", err)
	}
	if destChain != destAsset.Chain() {
		return nil, fmt.Errorf("destination address encoding %s does not match asset %s", destChain, destAsset)
	}
	fok, err := p.RefundParameters.canonical(srcChain)
	if err != nil {
		return nil, err
	}

	ev := event.SwapDepositAddressReady{
		Chain:                  srcChain,
		ChannelID:              uint64(*p.ChannelID),
		DepositAddress:         depositAddr,
		SrcAsset:               srcAsset,
		DestAsset:              destAsset,
		DestAddress:            destAddr,
		Broker:                 *p.BrokerID,
		BrokerCommissionBps:    *p.BrokerCommissionRate,
		MaxBoostFeeBps:         p.BoostFee,
		ChannelOpeningFee:      p.ChannelOpeningFee.String(),
		SourceChainExpiryBlock: int64(*p.SourceChainExpiryBlock),
		Dca:                    p.DcaParameters.canonical(),
		Fok:                    fok,
	}
	for _, aff := range p.AffiliateFees {
		if aff.Account == nil {
			return nil, fmt.Errorf("affiliate missing account")
		}
		ev.Affiliates = append(ev.Affiliates, event.BeneficiaryShare{
			Account:       *aff.Account,
			Type:          model.BeneficiaryAffiliate,
			CommissionBps: aff.Bps,
		})
	}
	return ev, nil
}

func decodeSwapRequested(_ Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		SwapRequestID *u64    `json:"swapRequestId"`
		InputAsset    *string `json:"inputAsset"`
		OutputAsset   *string `json:"outputAsset"`
		InputAmount   *amount `json:"inputAmount"`
		Origin        *struct {
			Kind               string          `json:"__kind"`
			ChannelID          *u64            `json:"channelId"`
			DepositAddress     json.RawMessage `json:"depositAddress"`
			DepositBlockHeight *u64            `json:"depositBlockHeight"`
			BrokerID           *string         `json:"brokerId"`
			TxID               *struct {
				Kind  string          `json:"__kind"`
				Value json.RawMessage `json:"value"`
			} `json:"txId"`
			Value *string `json:"value"` // on-chain account
		} `json:"origin"`
		RequestType *struct {
			Kind               string          `json:"__kind"`
			OutputAddress      *encodedAddress `json:"outputAddress"`
			CcmDepositMetadata *rawCcmMetadata `json:"ccmDepositMetadata"`
		} `json:"requestType"`
		DcaParameters    *rawDca `json:"dcaParameters"`
		RefundParameters *rawFok `json:"refundParameters"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.SwapRequestID == nil || p.InputAsset == nil || p.OutputAsset == nil ||
		p.InputAmount == nil || p.Origin == nil || p.RequestType == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	srcAsset, err := model.ParseAsset(*p.InputAsset)
	if err != nil {
		return nil, err
	}
	destAsset, err := model.ParseAsset(*p.OutputAsset)
	if err != nil {
		return nil, err
	}

	ev := event.SwapRequested{
		RequestID:   uint64(*p.SwapRequestID),
		SrcAsset:    srcAsset,
		DestAsset:   destAsset,
		InputAmount: p.InputAmount.String(),
	}

	switch p.Origin.Kind {
	case "DepositChannel":
		if p.Origin.ChannelID == nil || p.Origin.DepositAddress == nil || p.Origin.DepositBlockHeight == nil {
			return nil, fmt.Errorf("deposit channel origin missing fields")
		}
		addr, err := CanonicalAddress(srcAsset.Chain(), p.Origin.DepositAddress)
		if err != nil {
			return nil, fmt.Errorf("origin deposit address: %w", err)
		}
		ev.Origin = event.Origin{
			Kind:           model.OriginDepositChannel,
			ChannelID:      uint64(*p.Origin.ChannelID),
			DepositAddress: addr,
			DepositHeight:  int64(*p.Origin.DepositBlockHeight),
		}
		if p.Origin.BrokerID != nil {
			ev.Origin.Broker = *p.Origin.BrokerID
		}
	case "Vault":
		if p.Origin.TxID == nil {
			return nil, fmt.Errorf("vault origin missing txId")
		}
		ref, err := TxRefFromChainTxID(srcAsset.Chain(), p.Origin.TxID.Value)
		if err != nil {
			return nil, fmt.Errorf("vault tx id: %w", err)
		}
		ev.Origin = event.Origin{Kind: model.OriginVault, TxRef: ref}
	case "OnChainAccount":
		if p.Origin.Value == nil {
			return nil, fmt.Errorf("on-chain origin missing account")
		}
		ev.Origin = event.Origin{Kind: model.OriginOnChainAccount, Account: *p.Origin.Value}
	case "Internal":
		ev.Origin = event.Origin{Kind: model.OriginInternal}
	default:
		return nil, fmt.Errorf("unknown origin kind %q", p.Origin.Kind)
	}

	switch p.RequestType.Kind {
	case "Regular":
		if p.RequestType.OutputAddress == nil {
			return nil, fmt.Errorf("regular request missing outputAddress")
		}
		addr, destChain, err := p.RequestType.OutputAddress.canonical()
		if err != nil {
			return nil, fmt.Errorf("output address: %w", err)
		}
		if destChain != destAsset.Chain() {
			return nil, fmt.Errorf("output address encoding %s does not match asset %s", destChain, destAsset)
		}
		ev.Kind = model.RequestRegular
		ev.DestAddress = &addr
		ccm, err := p.RequestType.CcmDepositMetadata.canonical()
		if err != nil {
			return nil, err
		}
		ev.Ccm = ccm
	case "NetworkFee":
		ev.Kind = model.RequestNetworkFee
	case "IngressEgressFee":
		ev.Kind = model.RequestIngressEgressFee
	default:
		return nil, fmt.Errorf("unknown request type %q", p.RequestType.Kind)
	}

	ev.Dca = p.DcaParameters.canonical()
	fok, err := p.RefundParameters.canonical(srcAsset.Chain())
	if err != nil {
		return nil, err
	}
	ev.Fok = fok
	return ev, nil
}

func decodeSwapScheduled(_ Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		SwapID        *u64    `json:"swapId"`
		SwapRequestID *u64    `json:"swapRequestId"`
		InputAmount   *amount `json:"inputAmount"`
		SwapType      *struct {
			Kind string `json:"__kind"`
		} `json:"swapType"`
		ExecuteAt *u64 `json:"executeAt"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.SwapID == nil || p.SwapRequestID == nil || p.InputAmount == nil || p.ExecuteAt == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	kind := model.SwapPrincipal
	if p.SwapType != nil && strings.Contains(p.SwapType.Kind, "Gas") {
		kind = model.SwapGas
	}
	return event.SwapScheduled{
		SwapID:      uint64(*p.SwapID),
		RequestID:   uint64(*p.SwapRequestID),
		InputAmount: p.InputAmount.String(),
		Kind:        kind,
		ExecuteAt:   int64(*p.ExecuteAt),
	}, nil
}

func decodeSwapRescheduled(_ Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		SwapID    *u64 `json:"swapId"`
		ExecuteAt *u64 `json:"executeAt"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.SwapID == nil || p.ExecuteAt == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	return event.SwapRescheduled{SwapID: uint64(*p.SwapID), ExecuteAt: int64(*p.ExecuteAt)}, nil
}

func decodeSwapExecuted(_ Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		SwapID             *u64    `json:"swapId"`
		SwapRequestID      *u64    `json:"swapRequestId"`
		InputAmount        *amount `json:"inputAmount"`
		IntermediateAmount *amount `json:"intermediateAmount"`
		OutputAmount       *amount `json:"outputAmount"`
		NetworkFee         *amount `json:"networkFee"`
		BrokerFee          *amount `json:"brokerFee"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.SwapID == nil || p.SwapRequestID == nil || p.InputAmount == nil ||
		p.OutputAmount == nil || p.NetworkFee == nil || p.BrokerFee == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	ev := event.SwapExecuted{
		SwapID:       uint64(*p.SwapID),
		RequestID:    uint64(*p.SwapRequestID),
		InputAmount:  p.InputAmount.String(),
		OutputAmount: p.OutputAmount.String(),
		NetworkFee:   p.NetworkFee.String(),
		BrokerFee:    p.BrokerFee.String(),
	}
	if p.IntermediateAmount != nil {
		ev.IntermediateAmount = optString(p.IntermediateAmount.String())
	}
	return ev, nil
}

func decodeSwapRequestCompleted(_ Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		SwapRequestID *u64 `json:"swapRequestId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.SwapRequestID == nil {
		return nil, fmt.Errorf("missing swapRequestId")
	}
	return event.SwapRequestCompleted{RequestID: uint64(*p.SwapRequestID)}, nil
}

// rawEgressID is the (chain, id) tuple encoding of an egress id.
type rawEgressID struct {
	Chain model.Chain
	ID    uint64
}

func (e *rawEgressID) UnmarshalJSON(raw []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return fmt.Errorf("egress id must be a [chain, id] tuple: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("egress id tuple has %d elements", len(tuple))
	}
	var chain string
	if err := json.Unmarshal(tuple[0], &chain); err != nil {
		return fmt.Errorf("egress id chain: %w", err)
	}
	c, err := model.ParseChain(chain)
	if err != nil {
		return err
	}
	var id u64
	if err := json.Unmarshal(tuple[1], &id); err != nil {
		return fmt.Errorf("egress id: %w", err)
	}
	e.Chain = c
	e.ID = uint64(id)
	return nil
}

// decodeEgressScheduledV2 reads the (amount, asset) fee tuple introduced
// alongside per-asset egress fees.
func decodeEgressScheduledV2(kind model.EgressKind) decodeFunc {
	return func(_ Scope, raw json.RawMessage) (event.Canonical, error) {
		var p struct {
			SwapRequestID *u64              `json:"swapRequestId"`
			EgressID      *rawEgressID      `json:"egressId"`
			Asset         *string           `json:"asset"`
			Amount        *amount           `json:"amount"`
			EgressFee     []json.RawMessage `json:"egressFee"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.SwapRequestID == nil || p.EgressID == nil || p.Asset == nil ||
			p.Amount == nil || len(p.EgressFee) != 2 {
			return nil, fmt.Errorf("missing required fields")
		}
		asset, err := model.ParseAsset(*p.Asset)
		if err != nil {
			return nil, err
		}
		var fee amount
		if err := json.Unmarshal(p.EgressFee[0], &fee); err != nil {
			return nil, fmt.Errorf("egress fee: %w", err)
		}
		return event.EgressScheduled{
			RequestID:   uint64(*p.SwapRequestID),
			Kind:        kind,
			EgressChain: p.EgressID.Chain,
			EgressID:    p.EgressID.ID,
			Asset:       asset,
			Amount:      p.Amount.String(),
			Fee:         fee.String(),
		}, nil
	}
}

// decodeEgressScheduledV1 reads the legacy flat fee field.
func decodeEgressScheduledV1(kind model.EgressKind) decodeFunc {
	return func(_ Scope, raw json.RawMessage) (event.Canonical, error) {
		var p struct {
			SwapRequestID *u64         `json:"swapRequestId"`
			EgressID      *rawEgressID `json:"egressId"`
			Asset         *string      `json:"asset"`
			Amount        *amount      `json:"amount"`
			EgressFee     *amount      `json:"egressFee"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.SwapRequestID == nil || p.EgressID == nil || p.Asset == nil ||
			p.Amount == nil || p.EgressFee == nil {
			return nil, fmt.Errorf("missing required fields")
		}
		asset, err := model.ParseAsset(*p.Asset)
		if err != nil {
			return nil, err
		}
		return event.EgressScheduled{
			RequestID:   uint64(*p.SwapRequestID),
			Kind:        kind,
			EgressChain: p.EgressID.Chain,
			EgressID:    p.EgressID.ID,
			Asset:       asset,
			Amount:      p.Amount.String(),
			Fee:         p.EgressFee.String(),
		}, nil
	}
}

func decodeEgressIgnored(kind model.EgressKind) decodeFunc {
	return func(_ Scope, raw json.RawMessage) (event.Canonical, error) {
		var p struct {
			SwapRequestID *u64    `json:"swapRequestId"`
			Asset         *string `json:"asset"`
			Amount        *amount `json:"amount"`
			Reason        *struct {
				Kind  string `json:"__kind"`
				Value *struct {
					Index int     `json:"index"`
					Error *string `json:"error"`
				} `json:"value"`
			} `json:"reason"`
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if p.SwapRequestID == nil || p.Asset == nil || p.Amount == nil || p.Reason == nil {
			return nil, fmt.Errorf("missing required fields")
		}
		asset, err := model.ParseAsset(*p.Asset)
		if err != nil {
			return nil, err
		}
		ev := event.EgressIgnored{
			RequestID: uint64(*p.SwapRequestID),
			Kind:      kind,
			Asset:     asset,
			Amount:    p.Amount.String(),
		}
		if p.Reason.Kind == "Module" && p.Reason.Value != nil && p.Reason.Value.Error != nil {
			errBytes, err := hex.DecodeString(strings.TrimPrefix(*p.Reason.Value.Error, "0x"))
			if err != nil || len(errBytes) == 0 {
				return nil, fmt.Errorf("malformed module error %q", *p.Reason.Value.Error)
			}
			ev.Reason = event.ModuleError{
				PalletIndex: p.Reason.Value.Index,
				ErrorIndex:  int(errBytes[0]),
			}
		} else {
			// Non-module reason; resolves to the unknown-error sentinel.
			ev.Reason = event.ModuleError{PalletIndex: -1, ErrorIndex: -1}
		}
		return ev, nil
	}
}
