// Package poller periodically sweeps the configured boards for new questions.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chosahoo/cafe24-cs-bot/internal/orchestrator"
	"github.com/chosahoo/cafe24-cs-bot/internal/progress"
)

// Sweeper runs one sweep of a board.
type Sweeper interface {
	Sweep(ctx context.Context, boardID string, rep progress.Reporter) (*orchestrator.SweepReport, error)
}

// Toggle reports whether background monitoring is switched on.
type Toggle interface {
	MonitoringEnabled(ctx context.Context) (bool, error)
}

// Options configures the poller.
type Options struct {
	Boards   []string
	Interval time.Duration
	Workers  int
}

// Poller sweeps every board on a fixed interval.
type Poller struct {
	sweeper Sweeper
	toggle  Toggle
	opts    Options
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a poller. Interval defaults to five minutes and Workers to one.
func New(sweeper Sweeper, toggle Toggle, opts Options, logger *zap.Logger) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{sweeper: sweeper, toggle: toggle, opts: opts, logger: logger.Named("poller")}
}

// Start launches the polling loop. It sweeps once immediately, then on
// every tick until ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return errors.New("poller already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	p.logger.Info("poller started",
		zap.Strings("boards", p.opts.Boards),
		zap.Duration("interval", p.opts.Interval),
		zap.Int("workers", p.opts.Workers))
	return nil
}

// Stop cancels the loop and waits for in-flight sweeps to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("poller stopped")
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	enabled, err := p.toggle.MonitoringEnabled(ctx)
	if err != nil {
		p.logger.Error("reading monitoring toggle", zap.Error(err))
		return
	}
	if !enabled {
		p.logger.Debug("monitoring disabled, skipping sweep")
		return
	}
	if _, err := p.SweepAll(ctx, nil); err != nil && ctx.Err() == nil {
		p.logger.Warn("sweep finished with errors", zap.Error(err))
	}
}

// SweepAll sweeps every configured board with bounded concurrency. A
// failing board does not stop the others; its error is joined into the
// returned error. reporter, when set, gives each board its own progress
// reporter.
func (p *Poller) SweepAll(ctx context.Context, reporter func(boardID string) progress.Reporter) ([]*orchestrator.SweepReport, error) {
	reports := make([]*orchestrator.SweepReport, len(p.opts.Boards))
	errs := make([]error, len(p.opts.Boards))

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, boardID := range p.opts.Boards {
		g.Go(func() error {
			var rep progress.Reporter = progress.Nop{}
			if reporter != nil {
				rep = reporter(boardID)
			}
			report, err := p.sweeper.Sweep(ctx, boardID, rep)
			if err != nil {
				p.logger.Error("sweeping board", zap.String("board_id", boardID), zap.Error(err))
				errs[i] = fmt.Errorf("board %s: %w", boardID, err)
				return nil
			}
			reports[i] = report
			return nil
		})
	}
	g.Wait()
	return reports, errors.Join(errs...)
}
