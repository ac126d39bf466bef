package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var ticks int
	err := Run(ctx, "test", time.Millisecond, zap.NewNop(), func(context.Context) error {
		ticks++
		return nil
	})
	require.NoError(t, err)
	assert.Greater(t, ticks, 0)
}

func TestRunFailsAfterFiveConsecutiveErrors(t *testing.T) {
	var calls int
	err := Run(context.Background(), "test", time.Millisecond, zap.NewNop(), func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 consecutive")
	assert.Equal(t, 5, calls)
}

func TestRunResetsConsecutiveCountOnSuccess(t *testing.T) {
	var calls int
	err := Run(context.Background(), "test", time.Millisecond, zap.NewNop(), func(context.Context) error {
		calls++
		if calls%2 == 0 {
			return errors.New("boom")
		}
		if calls > 20 {
			return errors.New("stop")
		}
		return nil
	})
	require.Error(t, err)
	assert.Greater(t, calls, 20)
}
