package domain

import "time"

// IntentStatus execution state machine position.
type IntentStatus string

const (
	IntentPhase1Pending   IntentStatus = "phase1_pending"
	IntentPhase1Failed    IntentStatus = "phase1_failed"
	IntentPhase1Confirmed IntentStatus = "phase1_confirmed"
	IntentPhase2Pending   IntentStatus = "phase2_pending"
	IntentPhase2Failed    IntentStatus = "phase2_failed"
	IntentPhase2Confirmed IntentStatus = "phase2_confirmed"
	// IntentPhase2Unknown the swap was submitted but its outcome was never observed.
	IntentPhase2Unknown IntentStatus = "phase2_unknown"
)

// Terminal reports whether no further transition can happen.
func (s IntentStatus) Terminal() bool {
	switch s {
	case IntentPhase1Failed, IntentPhase2Failed, IntentPhase2Confirmed:
		return true
	}
	return false
}

// ExecutionIntent journal entry tracking an in-flight two-phase execution.
type ExecutionIntent struct {
	ID               string       `json:"id"`
	Status           IntentStatus `json:"status"`
	Action           string       `json:"action"`
	TargetPrice      string       `json:"target_price"`
	TradeSize        string       `json:"trade_size"`
	OracleUpdateTxID string       `json:"oracle_update_tx_id,omitempty"`
	// SwapSubmittedTxID hash of a submitted but not confirmed swap.
	SwapSubmittedTxID string    `json:"swap_submitted_tx_id,omitempty"`
	SwapTxID          string    `json:"swap_tx_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
