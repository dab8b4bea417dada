package calendar

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/daeli/backend/internal/models"
)

// Events lists a couple's resolved events.
type Events interface {
	ListEvents(ctx context.Context, coupleToken string) ([]models.EventView, error)
}

// Bucket stores rendered feeds.
type Bucket interface {
	PublishCalendar(ctx context.Context, coupleToken string, body []byte) (string, error)
	CalendarURL(ctx context.Context, coupleToken string) (string, error)
}

// Publisher renders a couple's feed and uploads it.
type Publisher struct {
	events Events
	bucket Bucket
	name   string
	logger *zap.Logger
	now    func() time.Time
}

// NewPublisher creates a publisher. name becomes the calendar's display name.
func NewPublisher(events Events, bucket Bucket, name string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{events: events, bucket: bucket, name: name, logger: logger, now: time.Now}
}

// Render builds the couple's current feed.
func (p *Publisher) Render(ctx context.Context, coupleToken string) ([]byte, error) {
	views, err := p.events.ListEvents(ctx, coupleToken)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return Build(p.name, views, p.now().UTC()), nil
}

// Publish renders and uploads the couple's feed, returning its object URL.
func (p *Publisher) Publish(ctx context.Context, coupleToken string) (string, error) {
	body, err := p.Render(ctx, coupleToken)
	if err != nil {
		return "", err
	}
	url, err := p.bucket.PublishCalendar(ctx, coupleToken, body)
	if err != nil {
		return "", fmt.Errorf("upload calendar: %w", err)
	}
	p.logger.Info("calendar published", zap.String("url", url), zap.Int("bytes", len(body)))
	return url, nil
}

// Link publishes the latest feed and returns a presigned subscription URL.
func (p *Publisher) Link(ctx context.Context, coupleToken string) (string, error) {
	if _, err := p.Publish(ctx, coupleToken); err != nil {
		return "", err
	}
	url, err := p.bucket.CalendarURL(ctx, coupleToken)
	if err != nil {
		return "", fmt.Errorf("presign calendar: %w", err)
	}
	return url, nil
}
