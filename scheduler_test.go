package cfddns

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCycler struct {
	mu   sync.Mutex
	runs int
	fn   func(run int) (Outcome, error)
}

func (f *fakeCycler) RunOnce(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	f.runs++
	run := f.runs
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(run)
	}
	return Outcome{From: "10.0.0.1", To: "10.0.0.1"}, nil
}

func (f *fakeCycler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func waitForStop(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop in time")
		return nil
	}
}

func TestSchedulerFirstCycleRunsImmediately(t *testing.T) {
	cycler := &fakeCycler{}
	s := &Scheduler{Cycler: cycler, Interval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return cycler.count() == 1 },
		time.Second, 5*time.Millisecond,
		"the first cycle must not wait for the interval",
	)
	cancel()
	assert.NoError(t, waitForStop(t, done))
}

func TestSchedulerHaltsOnFirstFailure(t *testing.T) {
	boom := errors.New("cycle failed")
	cycler := &fakeCycler{
		fn: func(int) (Outcome, error) { return Outcome{}, boom },
	}
	s := &Scheduler{Cycler: cycler, Interval: 5 * time.Millisecond}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	err := waitForStop(t, done)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, cycler.count(), "a failed cycle halts the scheduler permanently")

	// the interval is tiny; prove no further cycle sneaks in after the halt
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, cycler.count())
}

func TestSchedulerRepeatsOnInterval(t *testing.T) {
	cycler := &fakeCycler{}
	s := &Scheduler{Cycler: cycler, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return cycler.count() >= 3 },
		time.Second, time.Millisecond,
	)
	cancel()
	assert.NoError(t, waitForStop(t, done))
}

func TestSchedulerStopsDuringWait(t *testing.T) {
	cycler := &fakeCycler{}
	s := &Scheduler{Cycler: cycler, Interval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return cycler.count() == 1 },
		time.Second, 5*time.Millisecond,
	)
	cancel()
	assert.NoError(t, waitForStop(t, done))
	assert.Equal(t, 1, cycler.count(), "cancellation during the wait must not start another cycle")
}

func TestSchedulerRejectsNonPositiveInterval(t *testing.T) {
	cycler := &fakeCycler{}
	s := &Scheduler{Cycler: cycler, Interval: 0}

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 0, cycler.count(), "no cycle may run with invalid configuration")
}

// End to end: the record holds 10.0.0.1, the public address is 10.0.0.2, so
// the first scheduled cycle issues exactly one write with the new address and
// the scheduler keeps running.
func TestSchedulerEndToEndUpdate(t *testing.T) {
	provider := &fakeProvider{content: "10.0.0.1"}
	updater := &Updater{Provider: provider, Resolver: staticResolver("10.0.0.2")}
	s := &Scheduler{Cycler: updater, Interval: 300 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(provider.writes()) == 1 },
		time.Second, 5*time.Millisecond,
	)
	assert.Equal(t, []string{"10.0.0.2"}, provider.writes())

	cancel()
	assert.NoError(t, waitForStop(t, done))
}
