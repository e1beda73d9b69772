package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDeleter struct {
	calls atomic.Int64
	err   error
}

func (d *countingDeleter) DeleteExpiredTokens(context.Context) (int64, error) {
	d.calls.Add(1)
	if d.err != nil {
		return 0, d.err
	}
	return 3, nil
}

func TestSweeperRunsPeriodically(t *testing.T) {
	deleter := &countingDeleter{}
	sweeper := NewSweeper(deleter, 10*time.Millisecond, nil)
	sweeper.Start()

	require.Eventually(t, func() bool {
		return deleter.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sweeper.Shutdown(ctx))

	calls := deleter.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, deleter.calls.Load())
}

func TestSweeperShutdownWithoutStart(t *testing.T) {
	sweeper := NewSweeper(&countingDeleter{}, time.Hour, nil)
	require.NoError(t, sweeper.Shutdown(context.Background()))
	require.NoError(t, sweeper.Shutdown(context.Background()))
}

func TestSweepOnce(t *testing.T) {
	sweeper := NewSweeper(&countingDeleter{}, time.Hour, nil)
	n, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	failing := NewSweeper(&countingDeleter{err: errors.New("db down")}, time.Hour, nil)
	_, err = failing.SweepOnce(context.Background())
	assert.Error(t, err)
}
