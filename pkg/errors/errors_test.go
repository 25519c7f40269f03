package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", ErrWalletInactive)
	assert.ErrorIs(t, wrapped, ErrWalletInactive)
	assert.NotErrorIs(t, wrapped, ErrWalletNotFound)
}

func TestError_WithMessagePreservesIdentity(t *testing.T) {
	err := ErrInvalidAmount.WithMessage("order amount must be positive")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, "order amount must be positive", err.Message)

	// 原型不被修改
	assert.Equal(t, "invalid amount", ErrInvalidAmount.Message)
}

func TestError_WithCauseUnwraps(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := ErrRpcUnavailable.WithCause(cause)

	assert.ErrorIs(t, err, ErrRpcUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestError_WithDetail(t *testing.T) {
	err := ErrBroadcastRejected.WithDetail("code", "BANDWITH_ERROR")
	assert.Equal(t, "BANDWITH_ERROR", err.Details["code"])
	assert.Empty(t, ErrBroadcastRejected.Details)
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	biz := AsError(ErrWalletNotFound)
	assert.Equal(t, "WALLET_NOT_FOUND", biz.Code)

	wrapped := AsError(fmt.Errorf("outer: %w", ErrChecksum))
	assert.Equal(t, "CHECKSUM_ERROR", wrapped.Code)

	plain := AsError(stderrors.New("something broke"))
	assert.Equal(t, "INTERNAL", plain.Code)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRpcUnavailable.WithCause(stderrors.New("timeout"))))
	assert.False(t, IsRetryable(ErrBroadcastRejected))
	assert.False(t, IsRetryable(ErrInsufficientUserBalance))
}
