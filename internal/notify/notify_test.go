package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/orbit/internal/domain"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, title, message string) error {
	args := m.Called(ctx, title, message)
	return args.Error(0)
}

func (m *mockSender) Name() string {
	return "mock"
}

func swapFailedResult() domain.ExecutionResult {
	return domain.ExecutionResult{
		Success:          false,
		OracleUpdateTxID: "0xoracle",
		Decision: domain.Decision{
			ShouldRebalance: true,
			Action:          domain.ActionBuyBase,
			TargetPrice:     decimal.RequireFromString("2150.45"),
		},
		Error:       domain.ErrorKindSwapFailed,
		ErrorDetail: "await swap 0xswap: transaction reverted",
	}
}

func TestNotifier_NotifyResult_SwapFailed(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "orbit: SWAP_FAILED", mock.MatchedBy(func(msg string) bool {
		return assert.Contains(t, msg, "phase 2 (swap) failed") &&
			assert.Contains(t, msg, "oracle tx: 0xoracle") &&
			assert.Contains(t, msg, "cycle: c1")
	})).Return(nil).Once()

	n := NewNotifier(zap.NewNop(), sender)
	require.NoError(t, n.NotifyResult(context.Background(), "c1", swapFailedResult()))

	sender.AssertExpectations(t)
}

func TestNotifier_NotifyResult_IgnoresSuccessAndUpstream(t *testing.T) {
	sender := &mockSender{}
	n := NewNotifier(zap.NewNop(), sender)

	require.NoError(t, n.NotifyResult(context.Background(), "c1", domain.NoopResult(domain.HoldDecision())))
	require.NoError(t, n.NotifyResult(context.Background(), "c2",
		domain.FailedResult(domain.HoldDecision(), domain.ErrorKindUpstreamDataUnavailable, errors.New("timeout"))))

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestNotifier_SenderFailureIsReported(t *testing.T) {
	failing := &mockSender{}
	failing.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("boom"))

	n := NewNotifier(zap.NewNop(), failing)
	result := domain.FailedResult(domain.HoldDecision(), domain.ErrorKindOracleUpdateFailed, errors.New("nonce too low"))

	err := n.NotifyResult(context.Background(), "c1", result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock: boom")
}

func TestFormatResult_OracleFailed(t *testing.T) {
	result := domain.FailedResult(domain.HoldDecision(), domain.ErrorKindOracleUpdateFailed, errors.New("nonce too low"))

	msg := FormatResult("c9", result)
	assert.Contains(t, msg, "phase 1 (oracle update) failed, no swap was attempted")
	assert.Contains(t, msg, "detail: nonce too low")
	assert.NotContains(t, msg, "oracle tx:")
}

func TestTelegramSender_Send(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewTelegramSender(srv.URL+"/", "TOKEN", "42")
	require.NoError(t, sender.Send(context.Background(), "title", "body"))

	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "*title*\nbody", payload["text"])
	assert.Equal(t, "telegram", sender.Name())
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewTelegramSender(srv.URL, "TOKEN", "42").Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
