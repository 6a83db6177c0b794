package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifiersSurviveWrapping(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"schema", Schema("Swapping.SwapRequested", errors.New("missing swapRequestId")), IsSchema},
		{"schemaf", Schemaf("Swapping.SwapRequested", "no variant matched %d", 2), IsSchema},
		{"invariant", Invariantf("request %d missing", 77), IsInvariant},
		{"not found", NotFound("swap deposit channel", "%s/%d", "Ethereum", 99), IsNotFound},
		{"transient", Transient("getSignaturesForAddress", errors.New("timeout")), IsTransient},
		{"ambiguous", Ambiguous("rejected tx 0xabc", 2), IsAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			// Handlers wrap errors with event context before returning them;
			// classification must hold through the chain.
			wrapped := fmt.Errorf("SwapRequested at 100-4: %w", tt.err)
			assert.True(t, tt.check(wrapped))
		})
	}
}

func TestClassifiersAreDisjoint(t *testing.T) {
	err := Transient("rpc", errors.New("http status 503"))
	assert.False(t, IsSchema(err))
	assert.False(t, IsInvariant(err))
	assert.False(t, IsNotFound(err))
	assert.False(t, IsAmbiguous(err))

	assert.False(t, IsTransient(errors.New("plain")))
	assert.False(t, IsTransient(nil))
}

func TestMessages(t *testing.T) {
	assert.Equal(t,
		"swap deposit channel not found in entity store (key Ethereum/99)",
		NotFound("swap deposit channel", "%s/%d", "Ethereum", 99).Error())
	assert.Equal(t,
		"ambiguous match for rejected tx 0xabc: 2 candidates",
		Ambiguous("rejected tx 0xabc", 2).Error())
	assert.Contains(t,
		Schema("Swapping.SwapRequested", errors.New("missing field")).Error(),
		"schema violation for Swapping.SwapRequested")
}
