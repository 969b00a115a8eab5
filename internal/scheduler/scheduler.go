// Package scheduler runs the periodic flush of locally cached registrants.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

const DefaultSpec = "@every 5m"

type Flusher interface {
	Flush(ctx context.Context) (int, error)
}

// Executor serializes the flush with the rest of the store writes.
type Executor interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

type Scheduler struct {
	c       *cron.Cron
	spec    string
	flusher Flusher
	exec    Executor
	timeout time.Duration
	logger  *slog.Logger
}

// New registers the flush job. exec may be nil, in which case the flush runs
// on the cron goroutine.
func New(spec string, flusher Flusher, exec Executor, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		c:       cron.New(),
		spec:    spec,
		flusher: flusher,
		exec:    exec,
		timeout: time.Minute,
		logger:  logger,
	}
	if _, err := s.c.AddFunc(spec, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce flushes immediately. The cron job calls it on every tick.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var moved atomic.Int64
	flush := func(loopCtx context.Context) error {
		// the loop hands over its own context; keep the job deadline
		fctx, fcancel := context.WithTimeout(loopCtx, s.timeout)
		defer fcancel()
		n, err := s.flusher.Flush(fctx)
		moved.Store(int64(n))
		return err
	}

	var err error
	if s.exec != nil {
		err = s.exec.Execute(ctx, flush)
	} else {
		err = flush(ctx)
	}
	if err != nil {
		s.logger.Warn("pending flush stopped", "moved", moved.Load(), "error", err)
		return
	}
	if n := moved.Load(); n > 0 {
		s.logger.Info("pending flush done", "moved", n)
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("starting cache sync scheduler", "cron", s.spec)
	s.c.Start()
}

// Stop waits for a running flush to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
