// Package chat turns operator messages into agent actions and renders the outcome as text.
package chat

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Intent what a chat message asks for.
type Intent string

const (
	IntentRebalance Intent = "rebalance"
	IntentStatus    Intent = "status"
	IntentPortfolio Intent = "portfolio"
	IntentPrice     Intent = "price"
	IntentOracle    Intent = "oracle"
	IntentRWA       Intent = "rwa"
	IntentStrategy  Intent = "strategy"
	IntentDeposit   Intent = "deposit"
	IntentAsk       Intent = "ask"
)

// DefaultDepositAmount is previewed when a deposit message carries no amount.
var DefaultDepositAmount = decimal.NewFromInt(1000)

var amountPattern = regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d+)?)`)

// keywords are matched in order, the first intent with a hit wins.
var keywords = []struct {
	intent Intent
	words  []string
}{
	{IntentRebalance, []string{"rebalanc", "auto trade", "optimize treasury", "run cycle", "run a cycle"}},
	{IntentDeposit, []string{"deposit", "how many shares", "buy shares", "mint shares"}},
	{IntentRWA, []string{"rwa", "usyc", "buidl", "treasury oracle", "treasury prices", "tokenized"}},
	{IntentOracle, []string{"oracle", "stork", "stale"}},
	{IntentPrice, []string{"price", "market", "24h"}},
	{IntentPortfolio, []string{"portfolio", "holdings", "allocation", "exposure", "what do you own", "assets"}},
	{IntentStrategy, []string{"strategy", "thesis", "threshold", "how do you invest", "why invest"}},
	{IntentStatus, []string{"status", "tvl", "vault", "apy", "treasury"}},
}

// Command parsed chat message.
type Command struct {
	Intent Intent
	// Amount deposit amount, set only for IntentDeposit.
	Amount decimal.Decimal
	Text   string
}

// ParseCommand routes free text to an intent. Unmatched text becomes IntentAsk.
func ParseCommand(text string) Command {
	cmd := Command{Intent: IntentAsk, Text: strings.TrimSpace(text)}
	lower := strings.ToLower(cmd.Text)

	for _, k := range keywords {
		if containsAny(lower, k.words) {
			cmd.Intent = k.intent
			break
		}
	}

	if cmd.Intent == IntentDeposit {
		cmd.Amount = DefaultDepositAmount
		if m := amountPattern.FindString(lower); m != "" {
			if amount, err := decimal.NewFromString(strings.ReplaceAll(m, ",", "")); err == nil {
				cmd.Amount = amount
			}
		}
	}

	return cmd
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
