package model

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockIndex identifies one event position inside one indexed block. It is
// the ordering and dedup key for everything derived from the event feed.
//
// The canonical string encoding is "{height}-{index}" with unpadded decimal
// components. Upstream feeds mix zero-padded and unpadded encodings, so
// ParseBlockIndex accepts both and every comparison goes through Compare
// rather than string ordering.
type BlockIndex struct {
	Height int64
	Index  int
}

func (b BlockIndex) String() string {
	return strconv.FormatInt(b.Height, 10) + "-" + strconv.Itoa(b.Index)
}

// Compare defines the total order on block indices: by height, then by
// position within the block.
func (b BlockIndex) Compare(o BlockIndex) int {
	switch {
	case b.Height < o.Height:
		return -1
	case b.Height > o.Height:
		return 1
	case b.Index < o.Index:
		return -1
	case b.Index > o.Index:
		return 1
	}
	return 0
}

func (b BlockIndex) Before(o BlockIndex) bool { return b.Compare(o) < 0 }

// ParseBlockIndex parses a "{height}-{index}" string, tolerating zero-padded
// components, and returns the canonical value.
func ParseBlockIndex(s string) (BlockIndex, error) {
	height, index, ok := strings.Cut(s, "-")
	if !ok {
		return BlockIndex{}, fmt.Errorf("malformed block index %q", s)
	}
	h, err := strconv.ParseInt(height, 10, 64)
	if err != nil {
		return BlockIndex{}, fmt.Errorf("malformed block index height %q: %w", s, err)
	}
	i, err := strconv.Atoi(index)
	if err != nil {
		return BlockIndex{}, fmt.Errorf("malformed block index position %q: %w", s, err)
	}
	return BlockIndex{Height: h, Index: i}, nil
}
