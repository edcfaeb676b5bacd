package domain

import "fmt"

// ErrorKind classifies why a cycle did not complete.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindUpstreamDataUnavailable
	ErrorKindOracleUpdateFailed
	ErrorKindSwapFailed
	ErrorKindCycleInProgress
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return ""
	case ErrorKindUpstreamDataUnavailable:
		return "UPSTREAM_DATA_UNAVAILABLE"
	case ErrorKindOracleUpdateFailed:
		return "ORACLE_UPDATE_FAILED"
	case ErrorKindSwapFailed:
		return "SWAP_FAILED"
	case ErrorKindCycleInProgress:
		return "CYCLE_IN_PROGRESS"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for _, candidate := range []ErrorKind{
		ErrorKindNone,
		ErrorKindUpstreamDataUnavailable,
		ErrorKindOracleUpdateFailed,
		ErrorKindSwapFailed,
		ErrorKindCycleInProgress,
	} {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("invalid error kind: %s", text)
}

// ReasonWithinThresholds is the no-op result reason.
const ReasonWithinThresholds = "within thresholds"

// ExecutionResult outcome of one orchestrator invocation. Never mutated after return.
type ExecutionResult struct {
	Success          bool      `json:"success"`
	OracleUpdateTxID string    `json:"oracle_update_tx_id,omitempty"`
	SwapTxID         string    `json:"swap_tx_id,omitempty"`
	Decision         Decision  `json:"decision"`
	Error            ErrorKind `json:"error,omitempty"`
	// ErrorDetail underlying error message for operators.
	ErrorDetail string `json:"error_detail,omitempty"`
	// Reason set for no-op results.
	Reason string `json:"reason,omitempty"`
}

// NoopResult is returned when the decision does not require action.
func NoopResult(decision Decision) ExecutionResult {
	return ExecutionResult{
		Success:  true,
		Decision: decision,
		Reason:   ReasonWithinThresholds,
	}
}

// FailedResult builds a failed result of the given kind.
func FailedResult(decision Decision, kind ErrorKind, err error) ExecutionResult {
	result := ExecutionResult{
		Success:  false,
		Decision: decision,
		Error:    kind,
	}
	if err != nil {
		result.ErrorDetail = err.Error()
	}
	return result
}

// Partial reports whether the oracle update committed but the swap did not.
func (r ExecutionResult) Partial() bool {
	return !r.Success && r.OracleUpdateTxID != "" && r.SwapTxID == ""
}

// Receipt confirmation data of a mined transaction.
type Receipt struct {
	TxID        string `json:"tx_id"`
	BlockNumber uint64 `json:"block_number"`
	GasUsed     uint64 `json:"gas_used"`
}
