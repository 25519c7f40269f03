package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := New(&Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             time.Hour,
		MaxHalfOpenRequests: 1,
	})

	failing := errors.New("boom")
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return failing })
	}

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := New(&Config{
		FailureThreshold:    1,
		SuccessThreshold:    2,
		Timeout:             time.Millisecond,
		MaxHalfOpenRequests: 3,
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New(&Config{
		FailureThreshold:    1,
		SuccessThreshold:    1,
		Timeout:             time.Millisecond,
		MaxHalfOpenRequests: 1,
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	time.Sleep(5 * time.Millisecond)

	_ = cb.Execute(func() error { return errors.New("boom again") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := New(&Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Hour,
		MaxHalfOpenRequests: 1,
	})

	_ = cb.Execute(func() error { return errors.New("boom") })
	assert.NoError(t, cb.Execute(func() error { return nil }))
	_ = cb.Execute(func() error { return errors.New("boom") })

	// 中间的成功重置了连续失败计数
	assert.Equal(t, StateClosed, cb.State())
}
