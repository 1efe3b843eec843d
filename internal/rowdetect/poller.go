package rowdetect

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrPollTimeout is returned by Poller.Run when no outcome arrived in time.
var ErrPollTimeout = errors.New("row detection did not finish in time")

// Defaults for Poller.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollTimeout  = 5 * time.Minute
)

// pollSource is the part of the Coordinator a Poller drives.
type pollSource interface {
	PollOnce(ctx context.Context) []DetectionResult
	Awaiting() bool
}

// Poller is an external poll trigger: it calls PollOnce on a fixed
// interval until the outcome is known. The interval may be changed while
// Run is in progress with SetInterval.
type Poller struct {
	Source   pollSource
	Interval time.Duration
	Timeout  time.Duration
	Logger   *slog.Logger

	mu   sync.Mutex
	wake chan struct{}
}

// SetInterval changes the poll interval. A running Run picks it up at once.
// Non-positive intervals are ignored.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.Interval = d
	wake := p.wakeChan()
	p.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
}

// wakeChan must be called with p.mu held.
func (p *Poller) wakeChan() chan struct{} {
	if p.wake == nil {
		p.wake = make(chan struct{}, 1)
	}
	return p.wake
}

func (p *Poller) interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

// Run polls until the awaited outcome is consumed, ctx is done or the
// timeout elapses. It returns the detected rows, which are empty when the
// job ended without usable results or was consumed by another trigger.
func (p *Poller) Run(ctx context.Context) ([]DetectionResult, error) {
	interval := p.interval()
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.mu.Lock()
	wake := p.wakeChan()
	p.mu.Unlock()

	polls := 0
	for {
		if !p.Source.Awaiting() {
			return nil, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrPollTimeout
			}
			return nil, ctx.Err()
		case <-wake:
			if d := p.interval(); d != interval {
				interval = d
				ticker.Reset(interval)
				logger.Debug("poll interval changed", "interval", interval)
			}
			continue
		case <-ticker.C:
		}

		polls++
		if rows := p.Source.PollOnce(ctx); len(rows) > 0 {
			logger.Debug("poller got rows", "polls", polls, "rows", len(rows))
			return rows, nil
		}
	}
}
