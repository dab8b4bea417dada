// Package planner implements the idea -> suggestion -> event workflow:
// display resolution, tag propagation, voting and acceptance.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/store"
)

// Notifier receives couple-scoped change notifications (realtime fan-out).
type Notifier interface {
	Notify(coupleToken, event string, payload interface{})
}

// Jobs schedules background work.
type Jobs interface {
	EnqueueMaterialize(ctx context.Context, suggestionID string) error
	EnqueueCalendarPublish(ctx context.Context, coupleToken string) error
}

// Service exposes the planner operations over a Store.
type Service struct {
	store     store.Store
	logger    *zap.Logger
	notifier  Notifier
	jobs      Jobs
	generator IdeaGenerator
	strict    bool
	now       func() time.Time
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the realtime notifier.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithJobs sets the background job scheduler.
func WithJobs(j Jobs) Option { return func(s *Service) { s.jobs = j } }

// WithGenerator replaces the built-in idea catalog.
func WithGenerator(g IdeaGenerator) Option { return func(s *Service) { s.generator = g } }

// WithStrictReferences makes creates verify their parents exist and refuses
// to delete ideas that suggestions still point at.
func WithStrictReferences(strict bool) Option { return func(s *Service) { s.strict = strict } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService creates a planner service.
func NewService(st store.Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     st,
		logger:    logger,
		generator: NewCatalogGenerator(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) notify(coupleToken, event string, payload interface{}) {
	if s.notifier == nil || coupleToken == "" {
		return
	}
	s.notifier.Notify(coupleToken, event, payload)
}

// calendarChanged asks the worker to republish the couple's feed.
func (s *Service) calendarChanged(ctx context.Context, coupleToken string) {
	if s.jobs == nil || coupleToken == "" {
		return
	}
	if err := s.jobs.EnqueueCalendarPublish(ctx, coupleToken); err != nil {
		s.logger.Warn("enqueue calendar publish failed", zap.Error(err))
	}
}

// create writes a new record and indexes it.
func (s *Service) create(ctx context.Context, op string, kind store.Kind, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	if err := s.store.Insert(ctx, kind, id, data); err != nil {
		if errors.Is(err, store.ErrExists) {
			return conflict(op, fmt.Sprintf("%s %s already exists", kind, id))
		}
		return storeError(op, string(kind), id, err)
	}
	if err := s.store.AppendID(ctx, kind, id); err != nil {
		return storeError(op, string(kind), id, err)
	}
	return nil
}

// remove deletes a record and drops it from the index.
func (s *Service) remove(ctx context.Context, op string, kind store.Kind, id string) error {
	if err := s.store.Delete(ctx, kind, id); err != nil {
		return storeError(op, string(kind), id, err)
	}
	if err := s.store.RemoveID(ctx, kind, id); err != nil {
		return storeError(op, string(kind), id, err)
	}
	return nil
}

func decodeSuggestion(data []byte) (models.Suggestion, error) {
	var sug models.Suggestion
	if err := json.Unmarshal(data, &sug); err != nil {
		return sug, fmt.Errorf("decode suggestion: %w", err)
	}
	if sug.Status == "" {
		sug.Status = models.StatusPending
	}
	if sug.Votes == nil {
		sug.Votes = make(map[string]models.Vote)
	}
	return sug, nil
}

func (s *Service) loadIdea(ctx context.Context, op, id string) (*models.Idea, error) {
	data, err := s.store.Get(ctx, store.KindIdea, id)
	if err != nil {
		return nil, storeError(op, "idea", id, err)
	}
	var idea models.Idea
	if err := json.Unmarshal(data, &idea); err != nil {
		return nil, storeError(op, "idea", id, fmt.Errorf("decode idea: %w", err))
	}
	return &idea, nil
}

// lookupIdea is loadIdea for references that may dangle: a missing idea is
// (nil, nil).
func (s *Service) lookupIdea(ctx context.Context, op, id string) (*models.Idea, error) {
	if id == "" {
		return nil, nil
	}
	idea, err := s.loadIdea(ctx, op, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return idea, err
}

func (s *Service) loadSuggestion(ctx context.Context, op, id string) (*models.Suggestion, error) {
	data, err := s.store.Get(ctx, store.KindSuggestion, id)
	if err != nil {
		return nil, storeError(op, "suggestion", id, err)
	}
	sug, err := decodeSuggestion(data)
	if err != nil {
		return nil, storeError(op, "suggestion", id, err)
	}
	return &sug, nil
}

func (s *Service) lookupSuggestion(ctx context.Context, op, id string) (*models.Suggestion, error) {
	if id == "" {
		return nil, nil
	}
	sug, err := s.loadSuggestion(ctx, op, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return sug, err
}

func (s *Service) loadEvent(ctx context.Context, op, id string) (*models.Event, error) {
	data, err := s.store.Get(ctx, store.KindEvent, id)
	if err != nil {
		return nil, storeError(op, "event", id, err)
	}
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, storeError(op, "event", id, fmt.Errorf("decode event: %w", err))
	}
	return &ev, nil
}

// listRaw loads every indexed record of kind, skipping ids whose record is gone.
func (s *Service) listRaw(ctx context.Context, op string, kind store.Kind) ([][]byte, error) {
	ids, err := s.store.ListIDs(ctx, kind)
	if err != nil {
		return nil, storeError(op, string(kind), "", err)
	}
	raws, err := s.store.GetMany(ctx, kind, ids)
	if err != nil {
		return nil, storeError(op, string(kind), "", err)
	}
	out := raws[:0]
	for _, raw := range raws {
		if raw != nil {
			out = append(out, raw)
		}
	}
	return out, nil
}

// visible reports whether a record with recordToken belongs to the caller.
// An empty caller token means unscoped access.
func visible(callerToken, recordToken string) bool {
	return callerToken == "" || callerToken == recordToken
}
