package chat

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text   string
		intent Intent
	}{
		{"Check if treasury needs rebalancing", IntentRebalance},
		{"run autonomous REBALANCE", IntentRebalance},
		{"what's the oracle price?", IntentOracle},
		{"is the stork feed stale", IntentOracle},
		{"show RWA prices", IntentRWA},
		{"what does the treasury oracle say", IntentRWA},
		{"USYC yield?", IntentRWA},
		{"ETH price", IntentPrice},
		{"how did the market move in 24h", IntentPrice},
		{"show me your holdings", IntentPortfolio},
		{"current exposure", IntentPortfolio},
		{"explain your strategy", IntentStrategy},
		{"vault status", IntentStatus},
		{"what is the TVL", IntentStatus},
		{"deposit 1,500.50 USDC", IntentDeposit},
		{"why did you do that?", IntentAsk},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.intent, ParseCommand(tt.text).Intent)
		})
	}
}

func TestParseCommand_DepositAmount(t *testing.T) {
	cmd := ParseCommand("  deposit 1,500.50 USDC please ")
	assert.Equal(t, IntentDeposit, cmd.Intent)
	assert.True(t, decimal.RequireFromString("1500.50").Equal(cmd.Amount), cmd.Amount.String())
	assert.Equal(t, "deposit 1,500.50 USDC please", cmd.Text)

	cmd = ParseCommand("how many shares would I get?")
	assert.Equal(t, IntentDeposit, cmd.Intent)
	assert.True(t, DefaultDepositAmount.Equal(cmd.Amount))

	cmd = ParseCommand("price")
	assert.True(t, cmd.Amount.IsZero())
}
