// Package worker runs background jobs: materializing events that an accept
// could not write and re-publishing calendar feeds.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/planner"
	"github.com/daeli/backend/pkg/queue"
)

// Materializer repairs accepted suggestions that have no event.
type Materializer interface {
	Materialize(ctx context.Context, suggestionID string) (*models.Event, bool, error)
	Reconcile(ctx context.Context) (int, error)
}

// CalendarPublisher renders and uploads a couple's feed.
type CalendarPublisher interface {
	Publish(ctx context.Context, coupleToken string) (string, error)
}

// JobSource is the job queue the processor consumes.
type JobSource interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Processor executes queued jobs.
type Processor struct {
	planner   Materializer
	publisher CalendarPublisher
	queue     JobSource
	logger    *zap.Logger
	backoff   time.Duration
}

// NewProcessor creates a job processor. publisher may be nil, in which case
// calendar jobs are dropped.
func NewProcessor(m Materializer, publisher CalendarPublisher, q JobSource, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{planner: m, publisher: publisher, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job. Jobs that can never succeed return nil so they
// are not retried.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeMaterializeEvent:
		var payload queue.MaterializePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			p.logger.Warn("dropping malformed job", zap.String("job_id", job.ID), zap.Error(err))
			return nil
		}
		ev, created, err := p.planner.Materialize(ctx, payload.SuggestionID)
		switch planner.KindOf(err) {
		case "":
		case planner.KindNotFound, planner.KindConflict:
			p.logger.Info("materialize no longer applies", zap.String("suggestion_id", payload.SuggestionID), zap.Error(err))
			return nil
		default:
			return fmt.Errorf("materialize %s: %w", payload.SuggestionID, err)
		}
		if created {
			p.logger.Info("event materialized", zap.String("suggestion_id", payload.SuggestionID), zap.String("event_id", ev.ID))
		}
		return nil

	case queue.JobTypePublishCalendar:
		var payload queue.PublishCalendarPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			p.logger.Warn("dropping malformed job", zap.String("job_id", job.ID), zap.Error(err))
			return nil
		}
		if p.publisher == nil {
			p.logger.Debug("calendar publishing disabled, dropping job", zap.String("job_id", job.ID))
			return nil
		}
		if _, err := p.publisher.Publish(ctx, payload.CoupleToken); err != nil {
			return fmt.Errorf("publish calendar: %w", err)
		}
		return nil
	}
	p.logger.Warn("dropping unknown job type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *Processor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("worker stopping")
			return
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *Processor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
