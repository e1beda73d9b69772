package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ExpiredTokenDeleter removes refresh tokens past their expiry.
type ExpiredTokenDeleter interface {
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired refresh tokens.
type Sweeper struct {
	deleter  ExpiredTokenDeleter
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	start  sync.Once
	stop   sync.Once
}

// NewSweeper constructs a sweeper. It does nothing until Start is called.
func NewSweeper(deleter ExpiredTokenDeleter, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		deleter:  deleter,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the background loop.
func (s *Sweeper) Start() {
	s.start.Do(func() {
		go s.run()
	})
}

// Shutdown stops the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	started := true
	s.start.Do(func() {
		started = false
	})
	s.stop.Do(s.cancel)
	if !started {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return nil
	}
}

// SweepOnce deletes expired tokens a single time.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.deleter.DeleteExpiredTokens(ctx)
	if err != nil {
		s.logger.Error("refresh token sweep failed", "error", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Info("deleted expired refresh tokens", "count", n)
	}
	return n, nil
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(s.ctx)
		}
	}
}
