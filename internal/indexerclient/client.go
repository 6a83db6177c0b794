// Package indexerclient talks to the upstream block indexer over HTTP JSON.
// The indexer is the source of raw events; this client is read-only.
package indexerclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/swapstream/swap-indexer/internal/domain/event"
	"github.com/swapstream/swap-indexer/internal/fault"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger.With("component", "indexerclient"),
	}
}

// Block is one indexed block with the events that matched the requested
// name filter.
type Block struct {
	Height      int64        `json:"height"`
	Hash        string       `json:"hash"`
	Timestamp   time.Time    `json:"timestamp"`
	SpecVersion int          `json:"specVersion"`
	Events      []BlockEvent `json:"events"`
}

// BlockEvent is one raw event row as the indexer stores it.
type BlockEvent struct {
	Name         string          `json:"name"`
	Args         json.RawMessage `json:"args"`
	IndexInBlock int             `json:"indexInBlock"`
	CallID       *string         `json:"callId"`
}

// Call is one protocol call, fetched when an event alone does not carry
// enough context.
type Call struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Extrinsic is the signed transaction a call belongs to.
type Extrinsic struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
}

// LatestHeight returns the highest block the indexer has fully ingested.
func (c *Client) LatestHeight(ctx context.Context) (int64, error) {
	var out struct {
		Height int64 `json:"height"`
	}
	if err := c.get(ctx, "/v1/height", nil, &out); err != nil {
		return 0, err
	}
	return out.Height, nil
}

// GetBlock fetches one block with its events filtered to eventNames.
// Returns nil when the indexer has not ingested the height yet.
func (c *Client) GetBlock(ctx context.Context, height int64, eventNames []string) (*Block, error) {
	q := url.Values{}
	for _, name := range eventNames {
		q.Add("event", name)
	}
	var out Block
	err := c.get(ctx, "/v1/blocks/"+strconv.FormatInt(height, 10), q, &out)
	if isHTTPNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCall fetches one call by its indexer id. Returns nil when unknown.
func (c *Client) GetCall(ctx context.Context, id string) (*Call, error) {
	var out Call
	err := c.get(ctx, "/v1/calls/"+url.PathEscape(id), nil, &out)
	if isHTTPNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetExtrinsic fetches the extrinsic a call id belongs to. Returns nil when
// unknown.
func (c *Client) GetExtrinsic(ctx context.Context, id string) (*Extrinsic, error) {
	var out Extrinsic
	err := c.get(ctx, "/v1/extrinsics/"+url.PathEscape(id), nil, &out)
	if isHTTPNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Envelopes converts a block's raw events to normalizer input.
func (b *Block) Envelopes() []event.Envelope {
	out := make([]event.Envelope, 0, len(b.Events))
	for _, ev := range b.Events {
		out = append(out, event.Envelope{
			Name: ev.Name,
			Args: ev.Args,
			Block: event.Block{
				Height:      b.Height,
				Hash:        b.Hash,
				Timestamp:   b.Timestamp,
				SpecVersion: b.SpecVersion,
			},
			CallID:       ev.CallID,
			IndexInBlock: ev.IndexInBlock,
		})
	}
	return out
}

type httpStatusError struct {
	status int
	path   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("indexer returned %d for %s", e.status, e.path)
}

func isHTTPNotFound(err error) bool {
	var he *httpStatusError
	return errors.As(err, &he) && he.status == http.StatusNotFound
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.Transient("indexer "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fault.Transient("indexer "+path, &httpStatusError{status: resp.StatusCode, path: path})
	}
	if resp.StatusCode != http.StatusOK {
		return &httpStatusError{status: resp.StatusCode, path: path}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fault.Transient("indexer "+path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode indexer response for %s: %w", path, err)
	}
	return nil
}
