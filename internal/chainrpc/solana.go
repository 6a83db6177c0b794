// Package chainrpc looks up settled transactions on external chains. The
// reconciliation queue is its only consumer, so the surface is deliberately
// small: signatures for a deposit account, and single-transaction fetches.
package chainrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/swapstream/swap-indexer/internal/circuitbreaker"
	"github.com/swapstream/swap-indexer/internal/fault"
)

// SolanaClient issues JSON-RPC calls against a Solana node, rate limited so
// the reconciliation loop cannot saturate the endpoint. A circuit breaker
// turns a flapping node into fast transient errors instead of a stream of
// 30s timeouts.
type SolanaClient struct {
	httpClient *http.Client
	rpcURL     string
	requestID  atomic.Int64
	limiter    *rate.Limiter
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

func NewSolanaClient(rpcURL string, rps float64, logger *slog.Logger) *SolanaClient {
	if rps <= 0 {
		rps = 5
	}
	log := logger.With("component", "chainrpc", "chain", "Solana")
	return &SolanaClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		rpcURL:     rpcURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breaker: circuitbreaker.New(circuitbreaker.Config{
			OnStateChange: func(from, to circuitbreaker.State) {
				log.Warn("rpc circuit state changed", "from", from.String(), "to", to.String())
			},
		}),
		logger: log,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type signatureInfo struct {
	Signature string `json:"signature"`
	Slot      int64  `json:"slot"`
	Err       any    `json:"err"`
	BlockTime *int64 `json:"blockTime"`
}

// SignaturesForAddress returns the confirmed, non-errored transaction
// signatures of an account, oldest first. The node returns them newest
// first; ordering is flipped here so callers can consume front-to-back.
func (c *SolanaClient) SignaturesForAddress(ctx context.Context, address string) ([]string, error) {
	result, err := c.call(ctx, "getSignaturesForAddress", []any{
		address,
		map[string]any{"commitment": "confirmed"},
	})
	if err != nil {
		return nil, err
	}

	var infos []signatureInfo
	if err := json.Unmarshal(result, &infos); err != nil {
		return nil, fmt.Errorf("unmarshal signatures: %w", err)
	}

	out := make([]string, 0, len(infos))
	for i := len(infos) - 1; i >= 0; i-- {
		if infos[i].Err != nil {
			continue
		}
		out = append(out, infos[i].Signature)
	}
	return out, nil
}

// Transaction fetches one transaction by signature, nil when unknown.
func (c *SolanaClient) Transaction(ctx context.Context, signature string) (json.RawMessage, error) {
	result, err := c.call(ctx, "getTransaction", []any{
		signature,
		map[string]any{"encoding": "json", "maxSupportedTransactionVersion": 0},
	})
	if err != nil {
		return nil, err
	}
	if string(result) == "null" {
		return nil, nil
	}
	return result, nil
}

func (c *SolanaClient) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := c.breaker.Allow(); err != nil {
		return nil, fault.Transient(method, err)
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fault.Transient(method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fault.Transient(method, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		c.breaker.RecordFailure()
		return nil, fault.Transient(method, fmt.Errorf("http status %d", resp.StatusCode))
	}
	c.breaker.RecordSuccess()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http status %d: %s", method, resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, rpcResp.Error)
	}
	return rpcResp.Result, nil
}
