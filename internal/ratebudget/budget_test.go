package ratebudget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	b := New(Limits{Hourly: 50})
	assert.Equal(t, Limits{Daily: 600, Hourly: 50, Minute: 50, PerCall: 10}, b.Limits())
	assert.Equal(t, DefaultMinutePause, b.MinutePause)
	assert.Equal(t, Unknown, b.DailyRemaining())
}

func TestPlanRunSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		hourly     int
		candidates int
		want       int
	}{
		{"fewer candidates than hourly", 50, 7, 7},
		{"more candidates than hourly", 50, 120, 50},
		{"equal", 50, 50, 50},
		{"no candidates", 50, 0, 0},
		{"negative candidates", 50, -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := New(Limits{Hourly: tt.hourly})
			assert.Equal(t, tt.want, b.PlanRunSize(tt.candidates))
			assert.Equal(t, tt.want, b.Remaining())
		})
	}
}

func TestPlanRunSizeClampedByDailyCeiling(t *testing.T) {
	t.Parallel()

	b := New(Limits{Daily: 30, Hourly: 50, Minute: 10, PerCall: 5})
	assert.Equal(t, 30, b.PlanRunSize(120))
	assert.Equal(t, 30, b.Remaining())

	b = New(Limits{Daily: 600, Hourly: 50})
	assert.Equal(t, 50, b.PlanRunSize(120))
}

func TestObserveTightens(t *testing.T) {
	t.Parallel()

	b := New(Limits{Hourly: 50})
	b.PlanRunSize(20)
	b.Consume(3)

	b.Observe(3, 100)
	assert.Equal(t, 3, b.Limit())
	assert.Equal(t, 100, b.DailyRemaining())
	assert.True(t, b.Exhausted())
}

func TestObserveNeverLoosens(t *testing.T) {
	t.Parallel()

	b := New(Limits{Hourly: 50})
	b.PlanRunSize(20)
	b.Observe(180, 500)
	assert.Equal(t, 20, b.Limit())
}

func TestObserveUnknownDoesNotTighten(t *testing.T) {
	t.Parallel()

	b := New(Limits{Hourly: 50})
	b.PlanRunSize(20)
	b.Consume(5)
	b.Observe(Unknown, Unknown)

	assert.Equal(t, 20, b.Limit())
	assert.Equal(t, 15, b.Remaining())
	assert.False(t, b.Exhausted())
	assert.Equal(t, Unknown, b.DailyRemaining())
}

func TestObserveDailyTightens(t *testing.T) {
	t.Parallel()

	b := New(Limits{Hourly: 50})
	b.PlanRunSize(40)
	b.Observe(Unknown, 12)
	assert.Equal(t, 12, b.Limit())
}

func TestObserveZeroExhausts(t *testing.T) {
	t.Parallel()

	b := New(Limits{Hourly: 50})
	b.PlanRunSize(10)
	b.Consume(5)
	b.Observe(0, Unknown)
	assert.True(t, b.Exhausted())
	assert.Equal(t, -5, b.Remaining())
}

func TestParseRemaining(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int
	}{
		{"", Unknown},
		{"   ", Unknown},
		{"abc", Unknown},
		{"-1", Unknown},
		{"0", 0},
		{" 42 ", 42},
		{"199", 199},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseRemaining(tt.in))
		})
	}
}

func TestWaitBetweenMinuteWindowsUsesSleep(t *testing.T) {
	t.Parallel()

	b := New(DefaultLimits())
	var got time.Duration
	b.Sleep = func(_ context.Context, d time.Duration) error {
		got = d
		return nil
	}

	require.NoError(t, b.WaitBetweenMinuteWindows(context.Background()))
	assert.Equal(t, 60*time.Second, got)
}

func TestWaitBetweenMinuteWindowsCancelled(t *testing.T) {
	t.Parallel()

	b := New(DefaultLimits())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.WaitBetweenMinuteWindows(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitBetweenMinuteWindowsZeroPause(t *testing.T) {
	t.Parallel()

	b := New(DefaultLimits())
	b.MinutePause = 0
	assert.NoError(t, b.WaitBetweenMinuteWindows(context.Background()))
}
