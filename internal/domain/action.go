package domain

import "fmt"

// Action is the rebalancing action chosen by the decision engine.
type Action int

const (
	ActionHold Action = iota
	ActionBuyBase
	ActionSellBase
	ActionRebalanceToA
	ActionRebalanceToB
)

// action string constants to avoid magic strings
const (
	actionStringHold         = "HOLD"
	actionStringBuyBase      = "BUY_BASE"
	actionStringSellBase     = "SELL_BASE"
	actionStringRebalanceToA = "REBALANCE_TO_A"
	actionStringRebalanceToB = "REBALANCE_TO_B"
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionHold:
		return actionStringHold
	case ActionBuyBase:
		return actionStringBuyBase
	case ActionSellBase:
		return actionStringSellBase
	case ActionRebalanceToA:
		return actionStringRebalanceToA
	case ActionRebalanceToB:
		return actionStringRebalanceToB
	default:
		return "unknown"
	}
}

// ParseAction converts the string form back to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case actionStringHold:
		return ActionHold, nil
	case actionStringBuyBase:
		return ActionBuyBase, nil
	case actionStringSellBase:
		return ActionSellBase, nil
	case actionStringRebalanceToA:
		return ActionRebalanceToA, nil
	case actionStringRebalanceToB:
		return ActionRebalanceToB, nil
	}
	return ActionHold, fmt.Errorf("invalid action: %s", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
