package normalizer

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// amount accepts the numeric encodings that appear across protocol versions
// (JSON number, decimal string, 0x-hex string) and canonicalizes to a
// decimal string suitable for NUMERIC(78,0) columns.
type amount string

func (a *amount) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Bare JSON number.
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("amount must be a number or string: %s", raw)
		}
		s = n.String()
	}
	v := new(big.Int)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if _, ok := v.SetString(s[2:], 16); !ok {
			return fmt.Errorf("malformed hex amount %q", s)
		}
	} else {
		if _, ok := v.SetString(s, 10); !ok {
			return fmt.Errorf("malformed amount %q", s)
		}
	}
	if v.Sign() < 0 {
		return fmt.Errorf("negative amount %q", s)
	}
	*a = amount(v.String())
	return nil
}

func (a amount) String() string {
	return string(a)
}

// amountSum accumulates canonical decimal amounts.
type amountSum struct {
	v *big.Int
}

func newAmountSum() *amountSum {
	return &amountSum{v: new(big.Int)}
}

func (s *amountSum) add(dec string) error {
	n, ok := new(big.Int).SetString(dec, 10)
	if !ok {
		return fmt.Errorf("malformed amount %q", dec)
	}
	s.v.Add(s.v, n)
	return nil
}

func (s *amountSum) String() string {
	return s.v.String()
}

// optString returns a *string for optional canonical fields, nil for empty.
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
