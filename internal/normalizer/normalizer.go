// Package normalizer validates raw protocol events against the expected
// shape for (chain, event, protocol version) and produces canonical,
// chain-agnostic events. Schemas for the same event are registered as an
// ordered list of versioned variants and tried newest-first; the first
// variant that accepts the payload wins. A new protocol version is added by
// appending a variant, never by modifying an existing one.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/domain/model"
	"github.com/swapstream/swap-indexer/internal/fault"
)

// Scope is the chain context extracted from a pallet name prefix. It is the
// zero value for chain-agnostic pallets such as Swapping.
type Scope struct {
	Chain model.Chain
}

type decodeFunc func(scope Scope, raw json.RawMessage) (event.Canonical, error)

type variant struct {
	version int
	decode  decodeFunc
}

// Normalizer holds the decoder registry.
type Normalizer struct {
	registry map[string][]variant
	logger   *slog.Logger
}

// New builds a Normalizer with all known event schemas registered.
func New(logger *slog.Logger) *Normalizer {
	n := &Normalizer{
		registry: make(map[string][]variant),
		logger:   logger.With("component", "normalizer"),
	}

	n.register("Swapping.SwapDepositAddressReady", variant{1, decodeSwapDepositAddressReady})
	n.register("Swapping.SwapRequested", variant{1, decodeSwapRequested})
	n.register("Swapping.SwapScheduled", variant{1, decodeSwapScheduled})
	n.register("Swapping.SwapRescheduled", variant{1, decodeSwapRescheduled})
	n.register("Swapping.SwapExecuted", variant{1, decodeSwapExecuted})
	n.register("Swapping.SwapRequestCompleted", variant{1, decodeSwapRequestCompleted})
	n.register("Swapping.SwapEgressScheduled",
		variant{2, decodeEgressScheduledV2(model.EgressSwap)},
		variant{1, decodeEgressScheduledV1(model.EgressSwap)},
	)
	n.register("Swapping.RefundEgressScheduled",
		variant{2, decodeEgressScheduledV2(model.EgressRefund)},
		variant{1, decodeEgressScheduledV1(model.EgressRefund)},
	)
	n.register("Swapping.SwapEgressIgnored", variant{1, decodeEgressIgnored(model.EgressSwap)})
	n.register("Swapping.RefundEgressIgnored", variant{1, decodeEgressIgnored(model.EgressRefund)})

	n.register("IngressEgress.DepositFinalised",
		variant{2, decodeDepositFinalisedV2},
		variant{1, decodeDepositFinalisedV1},
	)
	n.register("IngressEgress.DepositBoosted", variant{1, decodeDepositBoosted})
	n.register("IngressEgress.DepositFailed",
		variant{2, decodeDepositFailedV2},
		variant{1, decodeDepositFailedV1},
	)
	n.register("IngressEgress.CcmFailed", variant{1, decodeCcmFailed})
	n.register("IngressEgress.TransactionRejectedByBroker", variant{1, decodeTransactionRejectedByBroker})
	n.register("IngressEgress.BatchBroadcastRequested", variant{1, decodeBatchBroadcastRequested})

	n.register("Broadcaster.BroadcastSuccess", variant{1, decodeBroadcastSuccess})
	n.register("Broadcaster.BroadcastAborted", variant{1, decodeBroadcastAborted})

	n.register("ChainTracking.ChainStateUpdated", variant{1, decodeChainStateUpdated})

	return n
}

func (n *Normalizer) register(family string, variants ...variant) {
	sort.Slice(variants, func(i, j int) bool { return variants[i].version > variants[j].version })
	n.registry[family] = variants
}

// Normalize validates env.Args against the registered schemas for the event
// and returns the canonical representation. Failure to match any version is
// a fault.SchemaError and must abort processing of this single event.
func (n *Normalizer) Normalize(env event.Envelope) (event.Canonical, error) {
	scope, family, err := splitEventName(env.Name)
	if err != nil {
		return nil, fault.Schema(env.Name, err)
	}
	variants := n.registry[family]
	if len(variants) == 0 {
		return nil, fault.Schemaf(env.Name, "no schema registered for %s", family)
	}

	var attempts []error
	for _, v := range variants {
		canonical, err := v.decode(scope, env.Args)
		if err == nil {
			return canonical, nil
		}
		attempts = append(attempts, fmt.Errorf("v%d: %w", v.version, err))
	}
	return nil, fault.Schema(env.Name, errors.Join(attempts...))
}

// chainScopedFamilies are the pallet families whose names carry a chain
// prefix, e.g. EthereumIngressEgress or BitcoinBroadcaster.
var chainScopedFamilies = []string{"IngressEgress", "Broadcaster", "ChainTracking"}

var scopedChains = []model.Chain{
	model.ChainEthereum,
	model.ChainArbitrum,
	model.ChainPolkadot,
	model.ChainBitcoin,
	model.ChainSolana,
}

func splitEventName(name string) (Scope, string, error) {
	pallet, eventName, ok := strings.Cut(name, ".")
	if !ok {
		return Scope{}, "", fmt.Errorf("malformed event name %q", name)
	}
	for _, chain := range scopedChains {
		rest, ok := strings.CutPrefix(pallet, string(chain))
		if !ok {
			continue
		}
		for _, family := range chainScopedFamilies {
			if rest == family {
				return Scope{Chain: chain}, family + "." + eventName, nil
			}
		}
	}
	return Scope{}, pallet + "." + eventName, nil
}

// EventNames returns every event name the engine consumes, used to filter
// the indexer block feed.
func EventNames() []string {
	names := []string{
		"Swapping.SwapDepositAddressReady",
		"Swapping.SwapRequested",
		"Swapping.SwapScheduled",
		"Swapping.SwapRescheduled",
		"Swapping.SwapExecuted",
		"Swapping.SwapRequestCompleted",
		"Swapping.SwapEgressScheduled",
		"Swapping.RefundEgressScheduled",
		"Swapping.SwapEgressIgnored",
		"Swapping.RefundEgressIgnored",
	}
	for _, chain := range scopedChains {
		for _, suffix := range []string{
			"IngressEgress.DepositFinalised",
			"IngressEgress.DepositBoosted",
			"IngressEgress.DepositFailed",
			"IngressEgress.CcmFailed",
			"IngressEgress.TransactionRejectedByBroker",
			"IngressEgress.BatchBroadcastRequested",
			"Broadcaster.BroadcastSuccess",
			"Broadcaster.BroadcastAborted",
			"ChainTracking.ChainStateUpdated",
		} {
			names = append(names, string(chain)+suffix)
		}
	}
	return names
}
