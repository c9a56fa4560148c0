// Package occ parses OCC-style option ticker codes such as
// QQQ260224C00607000 (underlying, YYMMDD expiry, C/P, strike in thousandths).
package occ

import (
	"time"

	"github.com/atlasbuilds77/meridian-dashboard-sub001/internal/domain"
)

// Contract is a single listed option decoded from its ticker code.
type Contract struct {
	Underlying string            `json:"underlying"`
	Expiry     time.Time         `json:"expiry"`
	Type       domain.OptionType `json:"type"`
	Strike     float64           `json:"strike"`
}

// Two-digit years map onto 2000-2099. A fixed epoch, not a rolling window:
// acceptable while no tracked expiry falls outside that range.
const yearEpoch = 2000

// Parse decodes an option ticker code. It returns nil for any non-conforming
// input and never panics; callers treat nil as "not an option" and fall back
// to stock handling.
func Parse(symbol string) *Contract {
	// UNDERLYING (letters) + YYMMDD + C|P + 8-digit strike-in-thousandths.
	const tailLen = 6 + 1 + 8
	if len(symbol) <= tailLen {
		return nil
	}
	root := symbol[:len(symbol)-tailLen]
	tail := symbol[len(symbol)-tailLen:]

	for _, r := range root {
		if r < 'A' || r > 'Z' {
			return nil
		}
	}

	date := tail[:6]
	cp := tail[6]
	strikeDigits := tail[7:]

	yy, ok := parseDigits(date[0:2])
	if !ok {
		return nil
	}
	mm, ok := parseDigits(date[2:4])
	if !ok || mm < 1 || mm > 12 {
		return nil
	}
	dd, ok := parseDigits(date[4:6])
	if !ok || dd < 1 {
		return nil
	}
	expiry := time.Date(yearEpoch+yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	if expiry.Day() != dd || expiry.Month() != time.Month(mm) {
		// time.Date normalizes out-of-range days (e.g. Feb 30); reject those.
		return nil
	}

	var optType domain.OptionType
	switch cp {
	case 'C':
		optType = domain.OptionCall
	case 'P':
		optType = domain.OptionPut
	default:
		return nil
	}

	thousandths, ok := parseDigits(strikeDigits)
	if !ok {
		return nil
	}

	return &Contract{
		Underlying: root,
		Expiry:     expiry,
		Type:       optType,
		Strike:     float64(thousandths) / 1000,
	}
}

// IsOptionSymbol reports whether the symbol conforms to the option ticker
// format. It is the fast classification gate in front of Parse.
func IsOptionSymbol(symbol string) bool {
	return Parse(symbol) != nil
}

func parseDigits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
