package session

import (
	"context"
	"time"
)

// RefreshResult describes one periodic refresh.
type RefreshResult struct {
	Generation uint64
	Duration   time.Duration
	At         time.Time
	Err        error
}

// RefreshHook is called after every periodic refresh, on the Run
// goroutine. Hooks must not block for long.
type RefreshHook func(ctx context.Context, r RefreshResult)

// Run refreshes the session every interval (the configured interval when
// zero) until ctx is cancelled. Each refresh is bounded by the interval.
// A failed refresh is logged and retried at the next tick. Run returns
// only after its last refresh and hooks have finished.
func (s *Session) Run(ctx context.Context, interval time.Duration, hooks ...RefreshHook) {
	if interval <= 0 {
		interval = s.cfg.RefreshInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("session refresher started", "hub", s.cfg.BaseURL, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session refresher stopped", "hub", s.cfg.BaseURL)
			return
		case <-ticker.C:
			r := s.refreshOnce(ctx, interval)
			for _, hook := range hooks {
				hook(ctx, r)
			}
		}
	}
}

func (s *Session) refreshOnce(ctx context.Context, timeout time.Duration) RefreshResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := s.now()
	var err error
	if s.Ready() {
		err = s.Update(ctx)
	} else {
		err = s.Init(ctx)
	}
	return RefreshResult{
		Generation: s.model.Generation(),
		Duration:   s.now().Sub(start),
		At:         start,
		Err:        err,
	}
}
