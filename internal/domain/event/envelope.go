package event

import (
	"encoding/json"
	"time"

	"github.com/swapstream/swap-indexer/internal/domain/model"
)

// Block is the originating block context delivered with every event.
type Block struct {
	Height      int64
	Hash        string
	Timestamp   time.Time
	SpecVersion int
}

// Envelope is one raw protocol event as delivered by the indexer feed.
// Args is validated by the normalizer before any handler sees it.
type Envelope struct {
	Name         string // "{Pallet}.{Event}", pallet may carry a chain prefix
	Args         json.RawMessage
	Block        Block
	CallID       *string
	IndexInBlock int
}

// BlockIndex returns the canonical ordering/dedup key of the event.
func (e Envelope) BlockIndex() model.BlockIndex {
	return model.BlockIndex{Height: e.Block.Height, Index: e.IndexInBlock}
}
