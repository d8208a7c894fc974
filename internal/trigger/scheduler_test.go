package trigger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_AddsEntries(t *testing.T) {
	sched := NewScheduler()
	noop := func(context.Context) (int, error) { return 0, nil }

	require.NoError(t, sched.Register("memory_sweep", "*/10 * * * *", noop))
	require.NoError(t, sched.Register("other", "@every 1h", noop))
	assert.Equal(t, 2, sched.Entries())
}

func TestRegister_InvalidCron(t *testing.T) {
	sched := NewScheduler()
	err := sched.Register("bad", "not a valid cron", func(context.Context) (int, error) { return 0, nil })
	assert.Error(t, err)
	assert.Equal(t, 0, sched.Entries())
}

func TestStartStop_RunsJobs(t *testing.T) {
	sched := NewScheduler()
	var runs atomic.Int32
	require.NoError(t, sched.Register("tick", "@every 1s", func(context.Context) (int, error) {
		runs.Add(1)
		return 1, errors.New("job errors are logged, not fatal")
	}))

	sched.Start()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	sched.Stop()
}
