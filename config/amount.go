package config

import (
	"fmt"
	"regexp"
	"strconv"
)

// Amount is a parsed `<integer><CCY>/<period>` expression, e.g.
// "100000USD/1M" (spec §6). Period is one of S (second), M (minute),
// H (hour); the router only ever needs the per-second equivalent, which
// ParseAmount stores in Micros.
type Amount struct {
	Micros   int64
	Currency string
	raw      string
}

var amountPattern = regexp.MustCompile(`^(\d+)([A-Z]{3})/(\d+)([SMH])$`)

// ParseAmount parses a spend-rate or slow-mode-money-limit expression.
func ParseAmount(s string) (Amount, error) {
	m := amountPattern.FindStringSubmatch(s)
	if m == nil {
		return Amount{}, fmt.Errorf("malformed amount expression %q, want <int><CCY>/<n><S|M|H>", s)
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("amount expression %q: %w", s, err)
	}
	periodCount, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil || periodCount == 0 {
		return Amount{}, fmt.Errorf("amount expression %q: invalid period count", s)
	}

	var periodSeconds int64
	switch m[4] {
	case "S":
		periodSeconds = 1
	case "M":
		periodSeconds = 60
	case "H":
		periodSeconds = 3600
	}

	return Amount{
		// Micros of currency per second, rounded down.
		Micros:   value / (periodCount * periodSeconds),
		Currency: m[2],
		raw:      s,
	}, nil
}

func (a Amount) String() string { return a.raw }

// amountFlag adapts Amount to the pflag.Value interface so it can be used
// directly as a flag destination.
type amountFlag struct {
	value *Amount
}

func (f *amountFlag) String() string {
	if f.value == nil {
		return ""
	}
	return f.value.String()
}

func (f *amountFlag) Set(s string) error {
	a, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*f.value = a
	return nil
}

func (f *amountFlag) Type() string { return "amount" }
