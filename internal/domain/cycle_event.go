package domain

import (
	"time"
)

// CycleTrigger who started a decision cycle.
type CycleTrigger string

const (
	CycleTriggerSchedule CycleTrigger = "schedule"
	CycleTriggerChat     CycleTrigger = "chat"
	CycleTriggerAPI      CycleTrigger = "api"
)

// CycleEvent full record of one decision cycle, persisted and streamed to the UI.
// Numeric fields are strings to avoid float precision issues in web layers.
type CycleEvent struct {
	ID               string       `json:"id"`
	Timestamp        time.Time    `json:"ts"`
	Trigger          CycleTrigger `json:"trigger"`
	Pair             string       `json:"pair"`
	MarketPrice      string       `json:"market_price,omitempty"`
	Change24h        string       `json:"change_24h,omitempty"`
	OraclePrice      string       `json:"oracle_price,omitempty"`
	OracleStaleness  string       `json:"oracle_staleness_s,omitempty"`
	ExposureA        string       `json:"exposure_a,omitempty"`
	ExposureB        string       `json:"exposure_b,omitempty"`
	Action           string       `json:"action"`
	ShouldRebalance  bool         `json:"should_rebalance"`
	Reason           string       `json:"reason"`
	TargetPrice      string       `json:"target_price,omitempty"`
	Success          bool         `json:"success"`
	OracleUpdateTxID string       `json:"oracle_update_tx_id,omitempty"`
	SwapTxID         string       `json:"swap_tx_id,omitempty"`
	Error            string       `json:"error,omitempty"`
	ErrorDetail      string       `json:"error_detail,omitempty"`
}

// NewCycleEvent flattens snapshots, decision and result into a CycleEvent.
func NewCycleEvent(
	id string,
	timestamp time.Time,
	trigger CycleTrigger,
	pair Pair,
	cfg StrategyConfig,
	market MarketSnapshot,
	oracle OracleSnapshot,
	exposure ExposureSnapshot,
	result ExecutionResult,
) CycleEvent {
	event := CycleEvent{
		ID:               id,
		Timestamp:        timestamp,
		Trigger:          trigger,
		Pair:             pair.String(),
		MarketPrice:      market.Price.String(),
		Change24h:        market.Change24h.StringFixed(2),
		OraclePrice:      oracle.Price.String(),
		OracleStaleness:  oracle.StalenessSeconds.String(),
		ExposureA:        exposure.Exposure(cfg.AssetA).StringFixed(1),
		ExposureB:        exposure.Exposure(cfg.AssetB).StringFixed(1),
		Action:           result.Decision.Action.String(),
		ShouldRebalance:  result.Decision.ShouldRebalance,
		Reason:           result.Decision.Reason,
		TargetPrice:      result.Decision.TargetPrice.String(),
		Success:          result.Success,
		OracleUpdateTxID: result.OracleUpdateTxID,
		SwapTxID:         result.SwapTxID,
		Error:            result.Error.String(),
		ErrorDetail:      result.ErrorDetail,
	}
	if event.Reason == "" {
		event.Reason = result.Reason
	}

	return event
}

// CycleEventRecord bundles a cycle event with its WAL index.
type CycleEventRecord struct {
	Index uint64
	Event CycleEvent
}

// ExposureRecord treasury state captured during a cycle.
type ExposureRecord struct {
	Timestamp  time.Time         `json:"ts"`
	Pair       string            `json:"pair"`
	Account    string            `json:"account"`
	Balances   map[string]string `json:"balances"`
	Exposure   map[string]string `json:"exposure"`
	TotalValue string            `json:"total_value"`
	Price      string            `json:"price,omitempty"`
}

// NewExposureRecord converts an exposure snapshot into its persisted form.
func NewExposureRecord(timestamp time.Time, pair Pair, account string, snapshot ExposureSnapshot, price string) ExposureRecord {
	balances := make(map[string]string, len(snapshot.Balances))
	exposure := make(map[string]string, len(snapshot.ExposurePercent))
	for symbol, balance := range snapshot.Balances {
		balances[symbol] = balance.String()
	}
	for symbol, percent := range snapshot.ExposurePercent {
		exposure[symbol] = percent.StringFixed(1)
	}

	return ExposureRecord{
		Timestamp:  timestamp,
		Pair:       pair.String(),
		Account:    account,
		Balances:   balances,
		Exposure:   exposure,
		TotalValue: snapshot.TotalValue.String(),
		Price:      price,
	}
}

// ExposureRecordEntry bundles an exposure record with its WAL index.
type ExposureRecordEntry struct {
	Index  uint64
	Record ExposureRecord
}
