// Package domain defines core data structures used throughout the treasury agent.
package domain

import (
	"fmt"
	"strings"
)

// Pair is the two-asset pair the agent rebalances between.
type Pair struct {
	// From base (volatile) asset symbol.
	From string
	// To quote asset symbol.
	To string
}

// String returns the string representation.
func (p *Pair) String() string {
	return fmt.Sprintf("%s_%s", p.From, p.To)
}

// Symbol returns the concatenated symbol representation used by exchange tickers.
func (p *Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.From, p.To)
}

// ParsePair parses "ETH_USDT" into a Pair.
func ParsePair(raw string) (Pair, error) {
	elements := strings.Split(strings.TrimSpace(raw), "_")
	if len(elements) != 2 || elements[0] == "" || elements[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q, expected BASE_QUOTE", raw)
	}

	return Pair{From: strings.ToUpper(elements[0]), To: strings.ToUpper(elements[1])}, nil
}
