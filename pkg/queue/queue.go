package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEvents is the Redis list key for event materialization jobs.
	QueueEvents = "worker:events"
	// QueueCalendars is the Redis list key for calendar publish jobs.
	QueueCalendars = "worker:calendars"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// PollTimeout bounds a single blocking dequeue so callers can observe ctx.
	PollTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeMaterializeEvent JobType = "materialize_event"
	JobTypePublishCalendar  JobType = "publish_calendar"
)

// MaterializePayload asks the worker to create the missing event of an
// accepted suggestion.
type MaterializePayload struct {
	SuggestionID string `json:"suggestion_id"`
}

// PublishCalendarPayload asks the worker to re-render and upload a couple's feed.
type PublishCalendarPayload struct {
	CoupleToken string `json:"couple_token"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis lists.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

func queueFor(t JobType) string {
	if t == JobTypePublishCalendar {
		return QueueCalendars
	}
	return QueueEvents
}

func (q *Queue) enqueue(ctx context.Context, t JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, queueFor(t), raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	return &job, nil
}

// EnqueueMaterialize enqueues an event materialization job.
func (q *Queue) EnqueueMaterialize(ctx context.Context, suggestionID string) error {
	job, err := q.enqueue(ctx, JobTypeMaterializeEvent, MaterializePayload{SuggestionID: suggestionID})
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued materialize job", zap.String("job_id", job.ID), zap.String("suggestion_id", suggestionID))
	return nil
}

// EnqueueCalendarPublish enqueues a calendar publish job.
func (q *Queue) EnqueueCalendarPublish(ctx context.Context, coupleToken string) error {
	job, err := q.enqueue(ctx, JobTypePublishCalendar, PublishCalendarPayload{CoupleToken: coupleToken})
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued calendar publish job", zap.String("job_id", job.ID))
	return nil
}

// Dequeue waits up to PollTimeout for a job. A nil job with nil error means
// the wait timed out or the payload was unreadable.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, PollTimeout, QueueEvents, QueueCalendars).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, queueFor(job.Type), raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
