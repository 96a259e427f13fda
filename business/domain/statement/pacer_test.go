package statement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPacer_NextDelay(t *testing.T) {

	testData := []struct {
		name     string
		wait     time.Duration
		jitter   time.Duration
		random   int64
		expected time.Duration
	}{
		{
			name:     "TestNextDelay_WaitOnly",
			wait:     time.Second,
			jitter:   0,
			expected: time.Second,
		},
		{
			name:     "TestNextDelay_WaitAndJitter",
			wait:     time.Second,
			jitter:   500 * time.Millisecond,
			random:   int64(200 * time.Millisecond),
			expected: 1200 * time.Millisecond,
		},
		{
			name:     "TestNextDelay_NegativeJitter",
			wait:     2 * time.Second,
			jitter:   -time.Second,
			random:   int64(time.Second),
			expected: 2 * time.Second,
		},
		{
			name:     "TestNextDelay_NegativeWait",
			wait:     -time.Second,
			jitter:   0,
			expected: 0,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			pacer := NewPacer(testRun.wait, testRun.jitter)
			pacer.randN = func(n int64) int64 {
				require.Equal(t, int64(testRun.jitter), n)
				return testRun.random
			}
			require.Equal(t, testRun.expected, pacer.nextDelay())
		})
	}
}

func TestPacer_Wait(t *testing.T) {
	pacer := NewPacer(3*time.Second, time.Second)
	pacer.randN = func(n int64) int64 { return n - 1 }

	var slept []time.Duration
	pacer.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	require.NoError(t, pacer.Wait(context.Background()))
	require.NoError(t, pacer.Wait(context.Background()))

	expected := 3*time.Second + time.Second - 1
	require.Equal(t, []time.Duration{expected, expected}, slept)
}

func TestPacer_WaitCancelled(t *testing.T) {
	pacer := NewPacer(time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	started := time.Now()
	err := pacer.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(started), time.Minute)
}

func TestPacer_WaitElapses(t *testing.T) {
	pacer := NewPacer(10*time.Millisecond, 5*time.Millisecond)

	started := time.Now()
	err := pacer.Wait(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(started), 10*time.Millisecond)
}
