package cfddns

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Cycler runs one update cycle. *Updater is the production implementation.
type Cycler interface {
	RunOnce(ctx context.Context) (Outcome, error)
}

// Scheduler runs update cycles on a fixed interval, strictly one at a time.
//
// Its failure policy is blunt on purpose: the first cycle that fails stops
// the scheduler for good. Failures here are usually permanent
// misconfiguration or provider trouble that needs an operator, and polling
// on after one only floods the provider with more failing calls.
type Scheduler struct {
	Cycler   Cycler
	Interval time.Duration
	Logger   *zap.Logger
}

// Run performs one cycle immediately and then one per interval until a cycle
// fails or ctx is canceled. It returns nil on cancellation and the cycle's
// error otherwise. Cancellation is observed during the inter-cycle wait,
// never during a cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if s.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		logger.Debug("starting update cycle")
		outcome, err := s.Cycler.RunOnce(ctx)
		if err != nil {
			logger.Error("update cycle failed, stopping", zap.Error(err))
			return err
		}
		if outcome.Changed {
			logger.Info("record updated",
				zap.String("from", outcome.From),
				zap.String("to", outcome.To),
			)
		} else {
			logger.Info("record is current", zap.String("address", outcome.To))
		}

		select {
		case <-ctx.Done():
			logger.Info("shutdown requested, stopping")
			return nil
		case <-ticker.C:
		}
	}
}
