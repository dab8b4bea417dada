package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/store"
)

// uidDomain is appended to event ids to form calendar UIDs.
const uidDomain = "daeli"

// AcceptResult is returned by Accept.
type AcceptResult struct {
	Suggestion models.SuggestionPublic `json:"suggestion"`
	Event      *models.Event           `json:"event"`
	Display    models.ResolvedView     `json:"display"`
	Created    bool                    `json:"created"`
}

// Accept moves a pending suggestion to accepted and materializes its event.
//
// The status flip and the event id reservation are committed in one atomic
// update before the event is written, so a suggestion is always accepted
// before its event exists and concurrent accepts converge on one event id.
// Accepting an already accepted suggestion writes nothing and returns the
// existing event with Created=false.
func (s *Service) Accept(ctx context.Context, suggestionID, partnerID string) (*AcceptResult, error) {
	const op = "accept suggestion"
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return nil, validationError(op, "partner id is required", map[string]string{"partnerId": "required"})
	}

	var (
		sug     models.Suggestion
		flipped bool
	)
	err := s.store.Update(ctx, store.KindSuggestion, suggestionID, func(cur []byte) ([]byte, error) {
		var err error
		if sug, err = decodeSuggestion(cur); err != nil {
			return nil, err
		}
		flipped = false
		switch sug.Status {
		case models.StatusCancelled:
			return nil, conflict(op, fmt.Sprintf("suggestion %s is cancelled", suggestionID))
		case models.StatusAccepted:
			if sug.EventRemovedAt != nil {
				return nil, conflict(op, fmt.Sprintf("the event of suggestion %s was deleted", suggestionID))
			}
			if sug.EventID != "" {
				return nil, nil
			}
			sug.EventID = s.newID()
		default:
			now := s.now()
			sug.Status = models.StatusAccepted
			sug.AcceptedBy = partnerID
			sug.AcceptedAt = &now
			sug.UpdatedAt = now
			if sug.EventID == "" {
				sug.EventID = s.newID()
			}
			flipped = true
		}
		return json.Marshal(&sug)
	})
	if err != nil {
		return nil, storeError(op, "suggestion", suggestionID, err)
	}
	if flipped {
		s.notify(sug.CoupleToken, "suggestion_accepted", sug.ToPublic())
	}

	idea, err := s.lookupIdea(ctx, op, sug.IdeaID)
	if err != nil {
		s.scheduleMaterialize(ctx, sug.ID)
		return nil, err
	}
	ev, created, err := s.materialize(ctx, &sug, idea)
	if err != nil {
		s.logger.Error("event write after accept failed",
			zap.String("suggestion_id", sug.ID),
			zap.String("event_id", sug.EventID),
			zap.Error(err))
		s.scheduleMaterialize(ctx, sug.ID)
		return nil, storeError(op, "event", sug.EventID, err)
	}
	if created {
		s.eventCreated(ctx, ev)
	}
	return &AcceptResult{
		Suggestion: sug.ToPublic(),
		Event:      ev,
		Display:    Resolve(&sug, idea),
		Created:    created,
	}, nil
}

// Cancel moves a pending suggestion to cancelled. Cancelling twice is a
// no-op; an accepted suggestion cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, suggestionID string) (*models.Suggestion, error) {
	const op = "cancel suggestion"
	var (
		sug     models.Suggestion
		changed bool
	)
	err := s.store.Update(ctx, store.KindSuggestion, suggestionID, func(cur []byte) ([]byte, error) {
		var err error
		if sug, err = decodeSuggestion(cur); err != nil {
			return nil, err
		}
		changed = false
		switch sug.Status {
		case models.StatusCancelled:
			return nil, nil
		case models.StatusAccepted:
			return nil, conflict(op, fmt.Sprintf("suggestion %s is already accepted", suggestionID))
		}
		sug.Status = models.StatusCancelled
		sug.UpdatedAt = s.now()
		changed = true
		return json.Marshal(&sug)
	})
	if err != nil {
		return nil, storeError(op, "suggestion", suggestionID, err)
	}
	if changed {
		s.notify(sug.CoupleToken, "suggestion_cancelled", sug.ToPublic())
	}
	return &sug, nil
}

// Materialize makes sure an accepted suggestion has its event. It reports
// whether the event had to be created.
func (s *Service) Materialize(ctx context.Context, suggestionID string) (*models.Event, bool, error) {
	const op = "materialize event"
	sug, err := s.loadSuggestion(ctx, op, suggestionID)
	if err != nil {
		return nil, false, err
	}
	if sug.Status != models.StatusAccepted {
		return nil, false, conflict(op, fmt.Sprintf("suggestion %s is %s", suggestionID, sug.Status))
	}
	if sug.EventRemovedAt != nil {
		return nil, false, conflict(op, fmt.Sprintf("the event of suggestion %s was deleted", suggestionID))
	}
	if sug.EventID == "" {
		if sug, err = s.reserveEventID(ctx, op, suggestionID); err != nil {
			return nil, false, err
		}
	}
	idea, err := s.lookupIdea(ctx, op, sug.IdeaID)
	if err != nil {
		return nil, false, err
	}
	ev, created, err := s.materialize(ctx, sug, idea)
	if err != nil {
		return nil, false, storeError(op, "event", sug.EventID, err)
	}
	if created {
		s.eventCreated(ctx, ev)
	}
	return ev, created, nil
}

// Reconcile materializes every accepted suggestion whose event is missing and
// returns how many events it created. Suggestions whose event was deleted
// through DeleteEvent are left alone.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	const op = "reconcile events"
	sugs, err := s.ListSuggestions(ctx, "", models.StatusAccepted)
	if err != nil {
		return 0, err
	}
	var (
		repaired int
		errs     []error
	)
	for _, sug := range sugs {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		if sug.EventRemovedAt != nil {
			continue
		}
		if sug.EventID != "" {
			_, err := s.store.Get(ctx, store.KindEvent, sug.EventID)
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrNotFound) {
				errs = append(errs, storeError(op, "event", sug.EventID, err))
				continue
			}
		}
		_, created, err := s.Materialize(ctx, sug.ID)
		if err != nil {
			s.logger.Warn("reconcile: materialize failed", zap.String("suggestion_id", sug.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if created {
			repaired++
		}
	}
	if repaired > 0 {
		s.logger.Info("reconcile: events repaired", zap.Int("count", repaired))
	}
	return repaired, errors.Join(errs...)
}

// reserveEventID assigns an event id to an accepted suggestion that lacks one.
func (s *Service) reserveEventID(ctx context.Context, op, suggestionID string) (*models.Suggestion, error) {
	var sug models.Suggestion
	err := s.store.Update(ctx, store.KindSuggestion, suggestionID, func(cur []byte) ([]byte, error) {
		var err error
		if sug, err = decodeSuggestion(cur); err != nil {
			return nil, err
		}
		if sug.Status != models.StatusAccepted {
			return nil, conflict(op, fmt.Sprintf("suggestion %s is %s", suggestionID, sug.Status))
		}
		if sug.EventRemovedAt != nil {
			return nil, conflict(op, fmt.Sprintf("the event of suggestion %s was deleted", suggestionID))
		}
		if sug.EventID != "" {
			return nil, nil
		}
		sug.EventID = s.newID()
		sug.UpdatedAt = s.now()
		return json.Marshal(&sug)
	})
	if err != nil {
		return nil, storeError(op, "suggestion", suggestionID, err)
	}
	return &sug, nil
}

// materialize writes the event under the suggestion's reserved id unless it
// already exists, then indexes it.
func (s *Service) materialize(ctx context.Context, sug *models.Suggestion, idea *models.Idea) (*models.Event, bool, error) {
	ev, err := s.readEvent(ctx, sug.EventID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	created := false
	if ev == nil {
		var ideaTags []string
		if idea != nil {
			ideaTags = idea.Tags
		}
		now := s.now()
		ev = &models.Event{
			ID:           sug.EventID,
			CoupleToken:  sug.CoupleToken,
			SuggestionID: sug.ID,
			UID:          sug.EventID + "@" + uidDomain,
			Tags:         PropagateTags(nil, sug.Tags, ideaTags),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, false, fmt.Errorf("marshal event: %w", err)
		}
		switch err := s.store.Insert(ctx, store.KindEvent, ev.ID, data); {
		case err == nil:
			created = true
			s.indexDerivedUID(ctx, ev)
		case errors.Is(err, store.ErrExists):
			if ev, err = s.readEvent(ctx, sug.EventID); err != nil {
				return nil, false, err
			}
		default:
			return nil, false, err
		}
	}
	if err := s.store.AppendID(ctx, store.KindEvent, ev.ID); err != nil {
		return nil, false, err
	}
	return ev, created, nil
}

// indexDerivedUID claims the generated UID of a materialized event so an
// import of the couple's own feed cannot duplicate it.
func (s *Service) indexDerivedUID(ctx context.Context, ev *models.Event) {
	data, err := json.Marshal(uidClaim{EventID: ev.ID})
	if err != nil {
		return
	}
	err = s.store.Insert(ctx, store.KindEventUID, uidKey(ev.CoupleToken, ev.UID), data)
	if err != nil && !errors.Is(err, store.ErrExists) {
		s.logger.Warn("index event uid failed", zap.String("uid", ev.UID), zap.Error(err))
	}
}

func (s *Service) readEvent(ctx context.Context, id string) (*models.Event, error) {
	data, err := s.store.Get(ctx, store.KindEvent, id)
	if err != nil {
		return nil, err
	}
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

func (s *Service) scheduleMaterialize(ctx context.Context, suggestionID string) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.EnqueueMaterialize(ctx, suggestionID); err != nil {
		s.logger.Warn("enqueue materialize failed", zap.String("suggestion_id", suggestionID), zap.Error(err))
	}
}

func (s *Service) eventCreated(ctx context.Context, ev *models.Event) {
	s.notify(ev.CoupleToken, "event_created", ev)
	s.calendarChanged(ctx, ev.CoupleToken)
}
