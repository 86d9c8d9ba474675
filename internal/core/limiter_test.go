package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportLimiterSlots(t *testing.T) {
	l := NewImportLimiter(2, 20*time.Millisecond)

	assert.True(t, l.TryAcquire())
	require.NoError(t, l.Acquire(context.Background()))
	assert.False(t, l.TryAcquire())
	assert.Equal(t, LimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}, l.Status())

	err := l.Acquire(context.Background())
	assert.True(t, errors.Is(err, ErrTooManyImports))
	assert.Equal(t, "IMP001", MapError(err).Code)

	l.Release()
	assert.Equal(t, 1, l.ActiveCount())
	assert.Equal(t, 1, l.Available())
	l.Release()
	assert.Equal(t, 0, l.ActiveCount())
}

func TestImportLimiterCallerCancel(t *testing.T) {
	l := NewImportLimiter(1, time.Minute)
	require.True(t, l.TryAcquire())
	defer l.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Acquire(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestImportLimiterWaitsForSlot(t *testing.T) {
	l := NewImportLimiter(1, time.Second)
	require.True(t, l.TryAcquire())

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Release()
	}()

	require.NoError(t, l.Acquire(context.Background()))
	l.Release()
}

func TestImportLimiterDefaults(t *testing.T) {
	l := NewImportLimiter(0, 0)
	assert.Equal(t, DefaultMaxConcurrentImports, l.MaxConcurrent())
	assert.Equal(t, DefaultMaxWaitTime, l.maxWait)
}

func TestImportLimiterWaitForDrain(t *testing.T) {
	l := NewImportLimiter(1, time.Second)
	require.NoError(t, l.WaitForDrain(context.Background()))

	require.True(t, l.TryAcquire())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.WaitForDrain(ctx), context.DeadlineExceeded)

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Release()
	}()
	assert.NoError(t, l.WaitForDrain(context.Background()))
}
