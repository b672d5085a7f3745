package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/chosahoo/cafe24-cs-bot/internal/apperr"
	"github.com/chosahoo/cafe24-cs-bot/internal/orchestrator"
	"github.com/chosahoo/cafe24-cs-bot/internal/progress"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSweeper struct {
	mu       sync.Mutex
	calls    []string
	failOn   string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeSweeper) Sweep(ctx context.Context, boardID string, _ progress.Reporter) (*orchestrator.SweepReport, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, boardID)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if boardID == f.failOn {
		return nil, apperr.ErrUpstreamUnavailable
	}
	return &orchestrator.SweepReport{BoardID: boardID, Unanswered: 1, Posted: 1}, nil
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type toggle struct {
	enabled atomic.Bool
	err     error
}

func (t *toggle) MonitoringEnabled(context.Context) (bool, error) {
	return t.enabled.Load(), t.err
}

func enabledToggle() *toggle {
	t := &toggle{}
	t.enabled.Store(true)
	return t
}

func TestSweepAllIsolatesFailures(t *testing.T) {
	sw := &fakeSweeper{failOn: "2"}
	p := New(sw, enabledToggle(), Options{Boards: []string{"1", "2", "3"}, Workers: 2}, zaptest.NewLogger(t))

	reports, err := p.SweepAll(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "board 2")

	require.Len(t, reports, 3)
	assert.Equal(t, "1", reports[0].BoardID)
	assert.Nil(t, reports[1])
	assert.Equal(t, "3", reports[2].BoardID)
	assert.Equal(t, 3, sw.callCount())
}

func TestSweepAllRespectsWorkerLimit(t *testing.T) {
	sw := &fakeSweeper{delay: 20 * time.Millisecond}
	p := New(sw, enabledToggle(), Options{Boards: []string{"1", "2", "3", "4", "5"}, Workers: 2}, nil)

	_, err := p.SweepAll(context.Background(), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, sw.peak.Load(), int32(2))
	assert.Equal(t, 5, sw.callCount())
}

func TestSweepAllUsesPerBoardReporter(t *testing.T) {
	sw := &fakeSweeper{}
	p := New(sw, enabledToggle(), Options{Boards: []string{"1", "2"}}, nil)

	var mu sync.Mutex
	var seen []string
	_, err := p.SweepAll(context.Background(), func(boardID string) progress.Reporter {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, boardID)
		return progress.Nop{}
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, seen)
}

func TestStartSweepsImmediatelyAndStopWaits(t *testing.T) {
	sw := &fakeSweeper{}
	p := New(sw, enabledToggle(), Options{Boards: []string{"1"}, Interval: time.Hour}, zaptest.NewLogger(t))

	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return sw.callCount() == 1 }, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()
}

func TestTicksRepeat(t *testing.T) {
	sw := &fakeSweeper{}
	p := New(sw, enabledToggle(), Options{Boards: []string{"1"}, Interval: 10 * time.Millisecond}, nil)

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return sw.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestDisabledMonitoringSkipsSweeps(t *testing.T) {
	sw := &fakeSweeper{}
	tg := &toggle{}
	p := New(sw, tg, Options{Boards: []string{"1"}, Interval: 10 * time.Millisecond}, nil)

	require.NoError(t, p.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sw.callCount())

	tg.enabled.Store(true)
	assert.Eventually(t, func() bool { return sw.callCount() > 0 }, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestToggleErrorSkipsSweep(t *testing.T) {
	sw := &fakeSweeper{}
	tg := enabledToggle()
	tg.err = errors.New("db closed")
	p := New(sw, tg, Options{Boards: []string{"1"}, Interval: time.Hour}, nil)

	p.tick(context.Background())
	assert.Zero(t, sw.callCount())
}

func TestStopCancelsInFlightSweep(t *testing.T) {
	sw := &fakeSweeper{delay: time.Hour}
	p := New(sw, enabledToggle(), Options{Boards: []string{"1"}, Interval: time.Hour}, nil)

	require.NoError(t, p.Start(context.Background()))
	assert.Eventually(t, func() bool { return sw.inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
