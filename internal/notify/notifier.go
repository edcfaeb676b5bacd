// Package notify alerts operators about cycles that need attention.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
)

// Sender delivers a notification through one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to every sender. A failing sender does not block the others.
type Notifier struct {
	l       *zap.Logger
	senders []Sender
}

// NewNotifier creates a notifier. With no senders every call is a no-op.
func NewNotifier(l *zap.Logger, senders ...Sender) *Notifier {
	return &Notifier{l: l, senders: senders}
}

// NotifyResult alerts about failed executions. Successful and no-op results are ignored.
func (n *Notifier) NotifyResult(ctx context.Context, cycleID string, result domain.ExecutionResult) error {
	if n == nil || result.Success {
		return nil
	}

	switch result.Error {
	case domain.ErrorKindOracleUpdateFailed, domain.ErrorKindSwapFailed:
	default:
		return nil
	}

	title := fmt.Sprintf("orbit: %s", result.Error)

	return n.dispatch(ctx, title, FormatResult(cycleID, result))
}

// FormatResult renders a failed execution for operators.
func FormatResult(cycleID string, result domain.ExecutionResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("cycle: %s\n", cycleID))
	sb.WriteString(fmt.Sprintf("action: %s\n", result.Decision.Action))
	sb.WriteString(fmt.Sprintf("target price: %s\n", result.Decision.TargetPrice))

	switch result.Error {
	case domain.ErrorKindOracleUpdateFailed:
		sb.WriteString("phase 1 (oracle update) failed, no swap was attempted\n")
	case domain.ErrorKindSwapFailed:
		sb.WriteString("phase 2 (swap) failed after the oracle update confirmed\n")
		sb.WriteString(fmt.Sprintf("oracle tx: %s\n", result.OracleUpdateTxID))
	}
	if result.ErrorDetail != "" {
		sb.WriteString(fmt.Sprintf("detail: %s\n", result.ErrorDetail))
	}

	return sb.String()
}

func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.l.Error("notification sender failed", zap.String("sender", s.Name()), zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.l.Debug("notification sent", zap.String("sender", s.Name()), zap.String("title", title))
	}

	if len(errs) > 0 {
		return errors.Errorf("%d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
