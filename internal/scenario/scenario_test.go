package scenario_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llxisdsh/qsync/internal/scenario"
)

func TestRunMutex(t *testing.T) {
	t.Parallel()

	for name, fair := range map[string]bool{"barging": false, "fair": true} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r, err := scenario.RunMutex(context.Background(), scenario.MutexConfig{
				Workers:    3,
				Iterations: 100,
				Fair:       fair,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(300), r.Acquisitions)
			assert.Equal(t, int64(1), r.MaxHolders)
		})
	}
}

func TestRunMutexCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scenario.RunMutex(ctx, scenario.MutexConfig{Workers: 2, Iterations: 10})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunSemaphore(t *testing.T) {
	t.Parallel()

	r, err := scenario.RunSemaphore(context.Background(), scenario.SemaphoreConfig{
		Permits:        2,
		Workers:        6,
		Iterations:     20,
		Hold:           100 * time.Microsecond,
		SampleInterval: 50 * time.Microsecond,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(120), r.Acquisitions)
	assert.LessOrEqual(t, r.MaxHolders, int64(2))
	assert.Positive(t, r.MaxHolders)
}

func TestRunProducerConsumer(t *testing.T) {
	t.Parallel()

	r, err := scenario.RunProducerConsumer(context.Background(), scenario.QueueConfig{
		Producers: 3,
		Consumers: 2,
		Items:     200,
		Capacity:  4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(600), r.Acquisitions)
	assert.Contains(t, r.String(), "prodcons")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		err   error
		count int
	}{
		"mutex": {
			err:   scenario.MutexConfig{Hold: -time.Second}.Validate(),
			count: 3,
		},
		"semaphore": {
			err:   scenario.SemaphoreConfig{Workers: 1, Iterations: 1}.Validate(),
			count: 2,
		},
		"queue": {
			err:   scenario.QueueConfig{Producers: 1, Consumers: 1}.Validate(),
			count: 2,
		},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.ErrorIs(t, tc.err, scenario.ErrInvalidConfig)
			// One line per problem after the multierror header.
			assert.Contains(t, tc.err.Error(), "errors occurred")
			assert.Equal(t, tc.count, countBullets(tc.err.Error()))
		})
	}

	require.NoError(t, scenario.QueueConfig{Producers: 1, Consumers: 1, Items: 1, Capacity: 1}.Validate())
}

func countBullets(s string) int {
	n := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '*' && s[i+1] == ' ' {
			n++
		}
	}
	return n
}
