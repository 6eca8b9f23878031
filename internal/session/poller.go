package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/bandlink/internal/groutine"
	"golang.org/x/sync/semaphore"
)

// poller runs fn every interval. A tick that fires while the previous fn call is
// still running is skipped, so at most one request per endpoint is outstanding.
type poller struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context) error
	onError  func(err error)
	logger   *logrus.Logger

	inflight *semaphore.Weighted
	skipped  atomic.Int64
}

func newPoller(name string, interval time.Duration, fn func(ctx context.Context) error, onError func(error), logger *logrus.Logger) *poller {
	return &poller{
		name:     name,
		interval: interval,
		fn:       fn,
		onError:  onError,
		logger:   logger,
		inflight: semaphore.NewWeighted(1),
	}
}

// run ticks until ctx is done. Each call of fn is tracked by wg.
func (p *poller) run(ctx context.Context, wg *sync.WaitGroup) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, wg)
		}
	}
}

func (p *poller) tick(ctx context.Context, wg *sync.WaitGroup) {
	if !p.inflight.TryAcquire(1) {
		p.skipped.Add(1)
		p.logger.WithField("poll", p.name).Debug("Previous poll still in flight, skipping tick")
		return
	}

	groutine.GoTracked(ctx, wg, "poll-"+p.name, func(ctx context.Context) {
		defer p.inflight.Release(1)

		err := p.fn(ctx)
		if err == nil || ctx.Err() != nil {
			// results of requests that outlive cancellation are dropped
			return
		}

		p.logger.WithFields(logrus.Fields{
			"poll":      p.name,
			"goroutine": groutine.GetName(ctx),
			"error":     err,
		}).Warn("Poll failed")
		if p.onError != nil {
			p.onError(err)
		}
	})
}

// Skipped returns how many ticks were skipped because a request was in flight.
func (p *poller) Skipped() int64 {
	return p.skipped.Load()
}
