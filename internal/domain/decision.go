package domain

import "github.com/shopspring/decimal"

// Decision rebalancing decision computed once per cycle.
type Decision struct {
	ShouldRebalance bool            `json:"should_rebalance"`
	Reason          string          `json:"reason"`
	Action          Action          `json:"action"`
	TargetPrice     decimal.Decimal `json:"target_price"`
}

// HoldDecision is the initial decision every cycle starts from.
func HoldDecision() Decision {
	return Decision{
		ShouldRebalance: false,
		Reason:          "",
		Action:          ActionHold,
		TargetPrice:     decimal.Zero,
	}
}

// Equal reports whether two decisions carry the same values.
func (d Decision) Equal(other Decision) bool {
	return d.ShouldRebalance == other.ShouldRebalance &&
		d.Reason == other.Reason &&
		d.Action == other.Action &&
		d.TargetPrice.Equal(other.TargetPrice)
}
