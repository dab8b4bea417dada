package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultReconcileSchedule runs the sweep every ten minutes.
const DefaultReconcileSchedule = "*/10 * * * *"

// Reconciler periodically materializes events for accepted suggestions
// whose event write was lost.
type Reconciler struct {
	planner  Materializer
	schedule string
	logger   *zap.Logger
}

// NewReconciler validates schedule (standard five-field cron syntax).
func NewReconciler(m Materializer, schedule string, logger *zap.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultReconcileSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse reconcile schedule %q: %w", schedule, err)
	}
	return &Reconciler{planner: m, schedule: schedule, logger: logger}, nil
}

// RunOnce performs one sweep.
func (r *Reconciler) RunOnce(ctx context.Context) {
	n, err := r.planner.Reconcile(ctx)
	if err != nil {
		r.logger.Warn("reconcile sweep incomplete", zap.Int("repaired", n), zap.Error(err))
		return
	}
	r.logger.Debug("reconcile sweep done", zap.Int("repaired", n))
}

// Run sweeps once immediately, then on schedule until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() { r.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	r.RunOnce(ctx)
	c.Start()
	r.logger.Info("reconciler started", zap.String("schedule", r.schedule))
	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("reconciler stopped")
	return nil
}
