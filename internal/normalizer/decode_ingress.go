package normalizer

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/domain/model"
)

// depositDetailsRef derives the deposit transaction reference from the
// chain-specific depositDetails payload. Returns nil when the chain's
// reference is only known at settlement.
func depositDetailsRef(chain model.Chain, raw json.RawMessage, blockHeight int64) (*string, error) {
	if raw == nil || string(raw) == "null" {
		return nil, nil
	}
	switch chain {
	case model.ChainEthereum, model.ChainArbitrum:
		var v struct {
			TxHashes []json.RawMessage `json:"txHashes"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("deposit details: %w", err)
		}
		if len(v.TxHashes) == 0 {
			return nil, nil
		}
		return TxRefFromChainTxID(chain, v.TxHashes[0])
	case model.ChainBitcoin:
		var v struct {
			TxID json.RawMessage `json:"txId"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("deposit details: %w", err)
		}
		if v.TxID == nil {
			return nil, nil
		}
		return TxRefFromChainTxID(chain, v.TxID)
	case model.ChainPolkadot:
		var v struct {
			ExtrinsicIndex *int `json:"extrinsicIndex"`
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("deposit details: %w", err)
		}
		if v.ExtrinsicIndex == nil {
			return nil, nil
		}
		ref := model.BlockIndex{Height: blockHeight, Index: *v.ExtrinsicIndex}.String()
		return &ref, nil
	case model.ChainSolana:
		return nil, nil
	}
	return nil, fmt.Errorf("no deposit details codec for chain %q", chain)
}

func decodeDepositAction(raw json.RawMessage) (event.DepositAction, error) {
	if raw == nil || string(raw) == "null" {
		return event.DepositAction{Kind: event.DepositActionNoAction}, nil
	}
	var v struct {
		Kind          string `json:"__kind"`
		SwapRequestID *u64   `json:"swapRequestId"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return event.DepositAction{}, fmt.Errorf("deposit action: %w", err)
	}
	action := event.DepositAction{}
	switch v.Kind {
	case "Swap", "CcmTransfer":
		action.Kind = event.DepositActionSwap
	case "BoostersCredited":
		action.Kind = event.DepositActionBoosted
	default:
		action.Kind = event.DepositActionNoAction
	}
	if v.SwapRequestID != nil {
		id := uint64(*v.SwapRequestID)
		action.RequestID = &id
	}
	return action, nil
}

// decodeDepositFinalisedV2 is the current shape carrying maxBoostFeeBps.
func decodeDepositFinalisedV2(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		Asset          *string         `json:"asset"`
		Amount         *amount         `json:"amount"`
		BlockHeight    *u64            `json:"blockHeight"`
		DepositAddress json.RawMessage `json:"depositAddress"`
		ChannelID      *u64            `json:"channelId"`
		DepositDetails json.RawMessage `json:"depositDetails"`
		IngressFee     *amount         `json:"ingressFee"`
		MaxBoostFeeBps *int            `json:"maxBoostFeeBps"`
		Action         json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Asset == nil || p.Amount == nil || p.BlockHeight == nil ||
		p.IngressFee == nil || p.MaxBoostFeeBps == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	asset, err := model.ParseAsset(*p.Asset)
	if err != nil {
		return nil, err
	}
	if asset.Chain() != scope.Chain {
		return nil, fmt.Errorf("asset %s does not belong to %s", asset, scope.Chain)
	}
	ev := event.DepositFinalised{
		Chain:          scope.Chain,
		Asset:          asset,
		Amount:         p.Amount.String(),
		BlockHeight:    int64(*p.BlockHeight),
		IngressFee:     p.IngressFee.String(),
		MaxBoostFeeBps: *p.MaxBoostFeeBps,
	}
	if p.ChannelID != nil {
		id := uint64(*p.ChannelID)
		ev.ChannelID = &id
	}
	if p.DepositAddress != nil {
		addr, err := CanonicalAddress(scope.Chain, p.DepositAddress)
		if err != nil {
			return nil, fmt.Errorf("deposit address: %w", err)
		}
		ev.DepositAddress = &addr
	}
	ref, err := depositDetailsRef(scope.Chain, p.DepositDetails, ev.BlockHeight)
	if err != nil {
		return nil, err
	}
	ev.TxRef = ref
	action, err := decodeDepositAction(p.Action)
	if err != nil {
		return nil, err
	}
	ev.Action = action
	return ev, nil
}

// decodeDepositFinalisedV1 is the legacy shape without boost parameters.
func decodeDepositFinalisedV1(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		Asset          *string         `json:"asset"`
		Amount         *amount         `json:"amount"`
		BlockHeight    *u64            `json:"blockHeight"`
		DepositAddress json.RawMessage `json:"depositAddress"`
		ChannelID      *u64            `json:"channelId"`
		DepositDetails json.RawMessage `json:"depositDetails"`
		IngressFee     *amount         `json:"ingressFee"`
		Action         json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Asset == nil || p.Amount == nil || p.BlockHeight == nil || p.IngressFee == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	asset, err := model.ParseAsset(*p.Asset)
	if err != nil {
		return nil, err
	}
	if asset.Chain() != scope.Chain {
		return nil, fmt.Errorf("asset %s does not belong to %s", asset, scope.Chain)
	}
	ev := event.DepositFinalised{
		Chain:       scope.Chain,
		Asset:       asset,
		Amount:      p.Amount.String(),
		BlockHeight: int64(*p.BlockHeight),
		IngressFee:  p.IngressFee.String(),
	}
	if p.ChannelID != nil {
		id := uint64(*p.ChannelID)
		ev.ChannelID = &id
	}
	if p.DepositAddress != nil {
		addr, err := CanonicalAddress(scope.Chain, p.DepositAddress)
		if err != nil {
			return nil, fmt.Errorf("deposit address: %w", err)
		}
		ev.DepositAddress = &addr
	}
	ref, err := depositDetailsRef(scope.Chain, p.DepositDetails, ev.BlockHeight)
	if err != nil {
		return nil, err
	}
	ev.TxRef = ref
	action, err := decodeDepositAction(p.Action)
	if err != nil {
		return nil, err
	}
	ev.Action = action
	return ev, nil
}

func decodeDepositBoosted(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		Asset          *string             `json:"asset"`
		Amounts        [][]json.RawMessage `json:"amounts"`
		BlockHeight    *u64                `json:"blockHeight"`
		DepositAddress json.RawMessage     `json:"depositAddress"`
		ChannelID      *u64                `json:"channelId"`
		DepositDetails json.RawMessage     `json:"depositDetails"`
		IngressFee     *amount             `json:"ingressFee"`
		BoostFee       *amount             `json:"boostFee"`
		BoostFeeBps    *int                `json:"boostFeeBps"`
		Action         json.RawMessage     `json:"action"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Asset == nil || len(p.Amounts) == 0 || p.BlockHeight == nil ||
		p.IngressFee == nil || p.BoostFee == nil || p.BoostFeeBps == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	asset, err := model.ParseAsset(*p.Asset)
	if err != nil {
		return nil, err
	}
	if asset.Chain() != scope.Chain {
		return nil, fmt.Errorf("asset %s does not belong to %s", asset, scope.Chain)
	}
	total, err := sumTierAmounts(p.Amounts)
	if err != nil {
		return nil, err
	}
	ev := event.DepositBoosted{
		Chain:       scope.Chain,
		Asset:       asset,
		Amount:      total,
		BlockHeight: int64(*p.BlockHeight),
		IngressFee:  p.IngressFee.String(),
		BoostFee:    p.BoostFee.String(),
		BoostFeeBps: *p.BoostFeeBps,
	}
	if p.ChannelID != nil {
		id := uint64(*p.ChannelID)
		ev.ChannelID = &id
	}
	if p.DepositAddress != nil {
		addr, err := CanonicalAddress(scope.Chain, p.DepositAddress)
		if err != nil {
			return nil, fmt.Errorf("deposit address: %w", err)
		}
		ev.DepositAddress = &addr
	}
	ref, err := depositDetailsRef(scope.Chain, p.DepositDetails, ev.BlockHeight)
	if err != nil {
		return nil, err
	}
	ev.TxRef = ref
	action, err := decodeDepositAction(p.Action)
	if err != nil {
		return nil, err
	}
	ev.Action = action
	return ev, nil
}

// sumTierAmounts folds the [(boost tier, amount)] pairs of a boosted deposit
// into the total credited amount.
func sumTierAmounts(pairs [][]json.RawMessage) (string, error) {
	sum := newAmountSum()
	for _, pair := range pairs {
		if len(pair) != 2 {
			return "", fmt.Errorf("boost amount pair has %d elements", len(pair))
		}
		var a amount
		if err := json.Unmarshal(pair[1], &a); err != nil {
			return "", fmt.Errorf("boost amount: %w", err)
		}
		if err := sum.add(a.String()); err != nil {
			return "", err
		}
	}
	return sum.String(), nil
}

// decodeDepositFailedV2 is the current shape with the per-origin details
// union.
func decodeDepositFailedV2(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		Reason *struct {
			Kind string `json:"__kind"`
		} `json:"reason"`
		BlockHeight *u64 `json:"blockHeight"`
		Details     *struct {
			Kind           string          `json:"__kind"`
			DepositWitness json.RawMessage `json:"depositWitness"`
			VaultWitness   json.RawMessage `json:"vaultWitness"`
		} `json:"details"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Reason == nil || p.BlockHeight == nil || p.Details == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	ev := event.DepositFailed{
		Chain:       scope.Chain,
		Reason:      p.Reason.Kind,
		BlockHeight: int64(*p.BlockHeight),
	}
	switch p.Details.Kind {
	case "DepositChannel":
		channel, err := decodeDepositWitness(scope.Chain, p.Details.DepositWitness, ev.BlockHeight)
		if err != nil {
			return nil, err
		}
		ev.Details.Channel = channel
	case "Vault":
		vault, err := decodeVaultWitness(scope.Chain, p.Details.VaultWitness)
		if err != nil {
			return nil, err
		}
		ev.Details.Vault = vault
	default:
		return nil, fmt.Errorf("unknown deposit failure details kind %q", p.Details.Kind)
	}
	return ev, nil
}

// decodeDepositFailedV1 is the legacy flat shape (channel deposits only).
func decodeDepositFailedV1(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		Reason *struct {
			Kind string `json:"__kind"`
		} `json:"reason"`
		BlockHeight    *u64            `json:"blockHeight"`
		DepositWitness json.RawMessage `json:"depositWitness"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Reason == nil || p.BlockHeight == nil || p.DepositWitness == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	channel, err := decodeDepositWitness(scope.Chain, p.DepositWitness, int64(*p.BlockHeight))
	if err != nil {
		return nil, err
	}
	return event.DepositFailed{
		Chain:       scope.Chain,
		Reason:      p.Reason.Kind,
		BlockHeight: int64(*p.BlockHeight),
		Details:     event.DepositFailedDetails{Channel: channel},
	}, nil
}

func decodeDepositWitness(chain model.Chain, raw json.RawMessage, blockHeight int64) (*event.DepositFailedChannel, error) {
	var w struct {
		DepositAddress json.RawMessage `json:"depositAddress"`
		Asset          *string         `json:"asset"`
		Amount         *amount         `json:"amount"`
		DepositDetails json.RawMessage `json:"depositDetails"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("deposit witness: %w", err)
	}
	if w.DepositAddress == nil || w.Asset == nil || w.Amount == nil {
		return nil, fmt.Errorf("deposit witness missing fields")
	}
	asset, err := model.ParseAsset(*w.Asset)
	if err != nil {
		return nil, err
	}
	if asset.Chain() != chain {
		return nil, fmt.Errorf("asset %s does not belong to %s", asset, chain)
	}
	addr, err := CanonicalAddress(chain, w.DepositAddress)
	if err != nil {
		return nil, fmt.Errorf("deposit witness address: %w", err)
	}
	ref, err := depositDetailsRef(chain, w.DepositDetails, blockHeight)
	if err != nil {
		return nil, err
	}
	return &event.DepositFailedChannel{
		DepositAddress: addr,
		Asset:          asset,
		Amount:         w.Amount.String(),
		TxRef:          ref,
	}, nil
}

func decodeVaultWitness(chain model.Chain, raw json.RawMessage) (*event.DepositFailedVault, error) {
	var w struct {
		InputAsset         *string         `json:"inputAsset"`
		OutputAsset        *string         `json:"outputAsset"`
		DepositAmount      *amount         `json:"depositAmount"`
		DestinationAddress *encodedAddress `json:"destinationAddress"`
		TxID               json.RawMessage `json:"txId"`
		DepositMetadata    *rawCcmMetadata `json:"depositMetadata"`
		BrokerFee          *rawAffiliate   `json:"brokerFee"`
		AffiliateFees      []rawAffiliate  `json:"affiliateFees"`
		DcaParams          *rawDca         `json:"dcaParams"`
		RefundParams       *rawFok         `json:"refundParams"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("vault witness: %w", err)
	}
	if w.InputAsset == nil || w.DepositAmount == nil {
		return nil, fmt.Errorf("vault witness missing fields")
	}
	asset, err := model.ParseAsset(*w.InputAsset)
	if err != nil {
		return nil, err
	}
	if asset.Chain() != chain {
		return nil, fmt.Errorf("asset %s does not belong to %s", asset, chain)
	}
	v := &event.DepositFailedVault{
		Asset:  asset,
		Amount: w.DepositAmount.String(),
	}
	if w.OutputAsset != nil {
		destAsset, err := model.ParseAsset(*w.OutputAsset)
		if err != nil {
			return nil, err
		}
		v.DestAsset = &destAsset
	}
	if w.DestinationAddress != nil {
		addr, _, err := w.DestinationAddress.canonical()
		if err != nil {
			return nil, fmt.Errorf("vault witness destination: %w", err)
		}
		v.DestAddress = &addr
	}
	if w.TxID != nil {
		if chain == model.ChainSolana {
			// The id is the deposit account; the signature is resolved later.
			b, err := hexBytes(w.TxID, 32)
			if err != nil {
				return nil, fmt.Errorf("vault witness tx id: %w", err)
			}
			addr := base58.Encode(b)
			v.RefAddress = &addr
		} else {
			ref, err := TxRefFromChainTxID(chain, w.TxID)
			if err != nil {
				return nil, fmt.Errorf("vault witness tx id: %w", err)
			}
			v.TxRef = ref
		}
	}
	ccm, err := w.DepositMetadata.canonical()
	if err != nil {
		return nil, err
	}
	v.Ccm = ccm
	if w.BrokerFee != nil && w.BrokerFee.Account != nil {
		v.BrokerFees = append(v.BrokerFees, event.BeneficiaryShare{
			Account:       *w.BrokerFee.Account,
			Type:          model.BeneficiarySubmitter,
			CommissionBps: w.BrokerFee.Bps,
		})
	}
	for _, aff := range w.AffiliateFees {
		if aff.Account == nil {
			return nil, fmt.Errorf("vault witness affiliate missing account")
		}
		v.BrokerFees = append(v.BrokerFees, event.BeneficiaryShare{
			Account:       *aff.Account,
			Type:          model.BeneficiaryAffiliate,
			CommissionBps: aff.Bps,
		})
	}
	v.Dca = w.DcaParams.canonical()
	fok, err := w.RefundParams.canonical(chain)
	if err != nil {
		return nil, err
	}
	v.Fok = fok
	return v, nil
}

func decodeCcmFailed(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		Reason *struct {
			Kind string `json:"__kind"`
		} `json:"reason"`
		DestinationAddress *encodedAddress `json:"destinationAddress"`
		DepositMetadata    *rawCcmMetadata `json:"depositMetadata"`
		Origin             *struct {
			Kind      string          `json:"__kind"`
			TxID      json.RawMessage `json:"txId"`
			ChannelID *u64            `json:"channelId"`
		} `json:"origin"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.Reason == nil || p.DestinationAddress == nil || p.DepositMetadata == nil || p.Origin == nil {
		return nil, fmt.Errorf("missing required fields")
	}
	destAddr, _, err := p.DestinationAddress.canonical()
	if err != nil {
		return nil, fmt.Errorf("destination address: %w", err)
	}
	ccm, err := p.DepositMetadata.canonical()
	if err != nil {
		return nil, err
	}
	if ccm == nil {
		return nil, fmt.Errorf("missing ccm metadata")
	}
	ev := event.CcmFailed{
		Chain:       scope.Chain,
		Reason:      p.Reason.Kind,
		DestAddress: destAddr,
		Ccm:         *ccm,
	}
	switch p.Origin.Kind {
	case "Vault":
		if p.Origin.TxID == nil {
			return nil, fmt.Errorf("vault origin missing txId")
		}
		ref, err := TxRefFromChainTxID(scope.Chain, p.Origin.TxID)
		if err != nil {
			return nil, fmt.Errorf("origin tx id: %w", err)
		}
		ev.Origin.TxRef = ref
	case "DepositChannel":
		if p.Origin.ChannelID == nil {
			return nil, fmt.Errorf("deposit channel origin missing channelId")
		}
		id := uint64(*p.Origin.ChannelID)
		ev.Origin.ChannelID = &id
	default:
		return nil, fmt.Errorf("unknown ccm origin kind %q", p.Origin.Kind)
	}
	return ev, nil
}

func decodeTransactionRejectedByBroker(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		BroadcastID *u64 `json:"broadcastId"`
		TxID        *struct {
			Kind  string          `json:"__kind"`
			Value json.RawMessage `json:"value"`
		} `json:"txId"`
		ChannelID *u64 `json:"channelId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.BroadcastID == nil {
		return nil, fmt.Errorf("missing broadcastId")
	}
	ev := event.TransactionRejectedByBroker{
		Chain:       scope.Chain,
		BroadcastID: uint64(*p.BroadcastID),
	}
	if p.ChannelID != nil {
		id := uint64(*p.ChannelID)
		ev.ChannelID = &id
	}
	if p.TxID != nil {
		if scope.Chain == model.ChainSolana {
			var v struct {
				Address json.RawMessage `json:"address"`
			}
			if err := json.Unmarshal(p.TxID.Value, &v); err != nil {
				return nil, fmt.Errorf("solana tx id: %w", err)
			}
			b, err := hexBytes(v.Address, 32)
			if err != nil {
				return nil, fmt.Errorf("solana tx id address: %w", err)
			}
			addr := base58.Encode(b)
			ev.RefAddress = &addr
		} else {
			ref, err := TxRefFromChainTxID(scope.Chain, p.TxID.Value)
			if err != nil {
				return nil, fmt.Errorf("tx id: %w", err)
			}
			ev.TxRef = ref
		}
	}
	return ev, nil
}

func decodeBatchBroadcastRequested(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		BroadcastID *u64          `json:"broadcastId"`
		EgressIDs   []rawEgressID `json:"egressIds"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.BroadcastID == nil {
		return nil, fmt.Errorf("missing broadcastId")
	}
	ev := event.BatchBroadcastRequested{
		Chain:       scope.Chain,
		BroadcastID: uint64(*p.BroadcastID),
	}
	for _, id := range p.EgressIDs {
		if id.Chain != scope.Chain {
			return nil, fmt.Errorf("egress id chain %s inside %s broadcast", id.Chain, scope.Chain)
		}
		ev.EgressIDs = append(ev.EgressIDs, id.ID)
	}
	return ev, nil
}

func decodeBroadcastSuccess(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		BroadcastID    *u64            `json:"broadcastId"`
		TransactionRef json.RawMessage `json:"transactionRef"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.BroadcastID == nil {
		return nil, fmt.Errorf("missing broadcastId")
	}
	ev := event.BroadcastSuccess{
		Chain:       scope.Chain,
		BroadcastID: uint64(*p.BroadcastID),
	}
	if p.TransactionRef != nil {
		ref, err := broadcastRef(scope.Chain, p.TransactionRef)
		if err != nil {
			return nil, err
		}
		ev.TxRef = ref
	}
	return ev, nil
}

// broadcastRef derives the confirmed transaction reference of a broadcast.
// Unlike deposits, Solana broadcast signatures are known at confirmation.
func broadcastRef(chain model.Chain, raw json.RawMessage) (*string, error) {
	if chain == model.ChainSolana {
		b, err := hexBytes(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("solana signature: %w", err)
		}
		sig := base58.Encode(b)
		return &sig, nil
	}
	return TxRefFromChainTxID(chain, raw)
}

func decodeBroadcastAborted(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		BroadcastID *u64 `json:"broadcastId"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.BroadcastID == nil {
		return nil, fmt.Errorf("missing broadcastId")
	}
	return event.BroadcastAborted{Chain: scope.Chain, BroadcastID: uint64(*p.BroadcastID)}, nil
}

func decodeChainStateUpdated(scope Scope, raw json.RawMessage) (event.Canonical, error) {
	var p struct {
		NewChainState *struct {
			BlockHeight *u64 `json:"blockHeight"`
		} `json:"newChainState"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p.NewChainState == nil || p.NewChainState.BlockHeight == nil {
		return nil, fmt.Errorf("missing newChainState.blockHeight")
	}
	return event.ChainStateUpdated{
		Chain:  scope.Chain,
		Height: int64(*p.NewChainState.BlockHeight),
	}, nil
}
