package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/store"
)

// CreateEvent is the administrative and import path. It does not go through
// Accept and so does not enforce one event per suggestion. Events without a
// suggestion must carry their own title and timeslot.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (*models.Event, error) {
	const op = "create event"
	in.SuggestionID = strings.TrimSpace(in.SuggestionID)
	in.UID = strings.TrimSpace(in.UID)
	in.Tags = cleanTags(in.Tags)
	if err := checkStruct(op, in); err != nil {
		return nil, err
	}

	title := optional(in.Title)
	var start, end *time.Time
	if in.StartUTC != nil {
		t, err := parseTime(op, "startUtc", *in.StartUTC)
		if err != nil {
			return nil, err
		}
		start = &t
	}
	if in.EndUTC != nil {
		t, err := parseTime(op, "endUtc", *in.EndUTC)
		if err != nil {
			return nil, err
		}
		end = &t
	}
	if in.SuggestionID == "" {
		fields := map[string]string{}
		if title == nil {
			fields["title"] = "required"
		}
		if start == nil {
			fields["startUtc"] = "required"
		}
		if end == nil {
			fields["endUtc"] = "required"
		}
		if len(fields) > 0 {
			return nil, validationError(op, "events without a suggestion need a title and timeslot", fields)
		}
	}
	if start != nil && end != nil {
		if err := checkSlot(op, *start, *end); err != nil {
			return nil, err
		}
	}

	sug, err := s.lookupSuggestion(ctx, op, in.SuggestionID)
	if err != nil {
		return nil, err
	}
	if sug != nil && !visible(in.CoupleToken, sug.CoupleToken) {
		return nil, notFound(op, "suggestion", in.SuggestionID)
	}
	if sug == nil && in.SuggestionID != "" && s.strict {
		return nil, notFound(op, "suggestion", in.SuggestionID)
	}
	var sugTags, ideaTags []string
	if sug != nil {
		sugTags = sug.Tags
		idea, err := s.lookupIdea(ctx, op, sug.IdeaID)
		if err != nil {
			return nil, err
		}
		if idea != nil {
			ideaTags = idea.Tags
		}
	}

	now := s.now()
	ev := &models.Event{
		ID:           s.newID(),
		CoupleToken:  in.CoupleToken,
		SuggestionID: in.SuggestionID,
		UID:          in.UID,
		Tags:         PropagateTags(in.Tags, sugTags, ideaTags),
		IsSurprise:   in.IsSurprise,
		Title:        title,
		Description:  optional(in.Description),
		Location:     optional(in.Location),
		StartUTC:     start,
		EndUTC:       end,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ev.UID == "" {
		ev.UID = ev.ID + "@" + uidDomain
	}
	if err := s.claimUID(ctx, op, ev); err != nil {
		return nil, err
	}
	if err := s.create(ctx, op, store.KindEvent, ev.ID, ev); err != nil {
		s.releaseUID(ctx, ev)
		return nil, err
	}
	s.eventCreated(ctx, ev)
	return ev, nil
}

// uidClaim is the record stored under a couple's calendar UID.
type uidClaim struct {
	EventID string `json:"eventId"`
}

func uidKey(coupleToken, uid string) string {
	return coupleToken + ":" + uid
}

// claimUID reserves ev.UID within its couple so a feed never carries two
// VEVENTs with the same UID. A claim whose event no longer exists is taken
// over.
func (s *Service) claimUID(ctx context.Context, op string, ev *models.Event) error {
	key := uidKey(ev.CoupleToken, ev.UID)
	data, err := json.Marshal(uidClaim{EventID: ev.ID})
	if err != nil {
		return fmt.Errorf("marshal uid claim: %w", err)
	}
	err = s.store.Insert(ctx, store.KindEventUID, key, data)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrExists) {
		return storeError(op, "event uid", ev.UID, err)
	}

	taken := conflict(op, fmt.Sprintf("an event with uid %s already exists", ev.UID))
	raw, err := s.store.Get(ctx, store.KindEventUID, key)
	if err != nil {
		return storeError(op, "event uid", ev.UID, err)
	}
	var holder uidClaim
	if err := json.Unmarshal(raw, &holder); err != nil {
		return storeError(op, "event uid", ev.UID, fmt.Errorf("decode uid claim: %w", err))
	}
	switch _, err := s.store.Get(ctx, store.KindEvent, holder.EventID); {
	case err == nil:
		return taken
	case !errors.Is(err, store.ErrNotFound):
		return storeError(op, "event", holder.EventID, err)
	}
	err = s.store.Update(ctx, store.KindEventUID, key, func(cur []byte) ([]byte, error) {
		var c uidClaim
		if err := json.Unmarshal(cur, &c); err != nil {
			return nil, fmt.Errorf("decode uid claim: %w", err)
		}
		if c.EventID != holder.EventID {
			return nil, taken
		}
		return data, nil
	})
	if err != nil {
		return storeError(op, "event uid", ev.UID, err)
	}
	return nil
}

// releaseUID drops ev's UID claim if ev still holds it.
func (s *Service) releaseUID(ctx context.Context, ev *models.Event) {
	key := uidKey(ev.CoupleToken, ev.UID)
	raw, err := s.store.Get(ctx, store.KindEventUID, key)
	if err != nil {
		return
	}
	var c uidClaim
	if json.Unmarshal(raw, &c) != nil || c.EventID != ev.ID {
		return
	}
	if err := s.store.Delete(ctx, store.KindEventUID, key); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("release event uid failed", zap.String("uid", ev.UID), zap.Error(err))
	}
}

// GetEvent returns one event record.
func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	return s.loadEvent(ctx, "get event", id)
}

// UpdateEvent patches an event and bumps its sequence so calendar clients
// pick up the change. Display fields of an event derived from a suggestion
// live on the suggestion and cannot be patched here.
func (s *Service) UpdateEvent(ctx context.Context, id string, patch EventPatch) (*models.Event, error) {
	const op = "update event"
	if err := checkStruct(op, patch); err != nil {
		return nil, err
	}
	var start, end *time.Time
	if patch.StartUTC != nil {
		t, err := parseTime(op, "startUtc", *patch.StartUTC)
		if err != nil {
			return nil, err
		}
		start = &t
	}
	if patch.EndUTC != nil {
		t, err := parseTime(op, "endUtc", *patch.EndUTC)
		if err != nil {
			return nil, err
		}
		end = &t
	}
	var tags []string
	if patch.Tags != nil {
		tags = cleanTags(*patch.Tags)
		if err := checkTags(op, tags); err != nil {
			return nil, err
		}
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, validationError(op, "title must not be empty", map[string]string{"title": "required"})
	}
	display := patch.Title != nil || patch.Description != nil || patch.Location != nil || start != nil || end != nil

	var ev models.Event
	err := s.store.Update(ctx, store.KindEvent, id, func(cur []byte) ([]byte, error) {
		ev = models.Event{}
		if err := json.Unmarshal(cur, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		if display && ev.SuggestionID != "" {
			return nil, validationError(op, "edit the suggestion to change this event's details",
				map[string]string{"suggestionId": "derived"})
		}
		if patch.Title != nil {
			ev.Title = optional(patch.Title)
		}
		if patch.Description != nil {
			ev.Description = optional(patch.Description)
		}
		if patch.Location != nil {
			ev.Location = optional(patch.Location)
		}
		if start != nil {
			ev.StartUTC = start
		}
		if end != nil {
			ev.EndUTC = end
		}
		if ev.StartUTC != nil && ev.EndUTC != nil {
			if err := checkSlot(op, *ev.StartUTC, *ev.EndUTC); err != nil {
				return nil, err
			}
		}
		if patch.Tags != nil {
			ev.Tags = tags
		}
		if patch.IsSurprise != nil {
			ev.IsSurprise = *patch.IsSurprise
		}
		ev.Sequence++
		ev.UpdatedAt = s.now()
		return json.Marshal(&ev)
	})
	if err != nil {
		return nil, storeError(op, "event", id, err)
	}
	s.notify(ev.CoupleToken, "event_updated", &ev)
	s.calendarChanged(ctx, ev.CoupleToken)
	return &ev, nil
}

// DeleteEvent removes an event. The suggestion it came from stays accepted
// and is marked so that Materialize and Reconcile do not bring the event back.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	const op = "delete event"
	ev, err := s.loadEvent(ctx, op, id)
	if err != nil {
		return err
	}
	if err := s.markEventRemoved(ctx, op, ev); err != nil {
		return err
	}
	if err := s.remove(ctx, op, store.KindEvent, id); err != nil {
		return err
	}
	s.releaseUID(ctx, ev)
	s.notify(ev.CoupleToken, "event_deleted", map[string]string{"id": id})
	s.calendarChanged(ctx, ev.CoupleToken)
	return nil
}

// markEventRemoved tombstones the source suggestion of ev when ev is its
// materialized event. A missing suggestion is not an error.
func (s *Service) markEventRemoved(ctx context.Context, op string, ev *models.Event) error {
	if ev.SuggestionID == "" {
		return nil
	}
	err := s.store.Update(ctx, store.KindSuggestion, ev.SuggestionID, func(cur []byte) ([]byte, error) {
		sug, err := decodeSuggestion(cur)
		if err != nil {
			return nil, err
		}
		if sug.EventID != ev.ID || sug.EventRemovedAt != nil {
			return nil, nil
		}
		now := s.now()
		sug.EventRemovedAt = &now
		sug.UpdatedAt = now
		return json.Marshal(&sug)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return storeError(op, "suggestion", ev.SuggestionID, err)
	}
	return nil
}

// ListEvents returns the couple's events with display data resolved through
// their suggestions and ideas.
func (s *Service) ListEvents(ctx context.Context, coupleToken string) ([]models.EventView, error) {
	const op = "list events"
	raws, err := s.listRaw(ctx, op, store.KindEvent)
	if err != nil {
		return nil, err
	}
	events := make([]models.Event, 0, len(raws))
	for _, raw := range raws {
		var ev models.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Warn("skipping undecodable event", zap.Error(err))
			continue
		}
		if visible(coupleToken, ev.CoupleToken) {
			events = append(events, ev)
		}
	}
	return s.viewEvents(ctx, op, events)
}

// viewEvents resolves events in two batched reads: their suggestions, then
// those suggestions' ideas.
func (s *Service) viewEvents(ctx context.Context, op string, events []models.Event) ([]models.EventView, error) {
	sugIDs := uniqueIDs(len(events), func(i int) string { return events[i].SuggestionID })
	sugs := make(map[string]*models.Suggestion, len(sugIDs))
	if len(sugIDs) > 0 {
		raws, err := s.store.GetMany(ctx, store.KindSuggestion, sugIDs)
		if err != nil {
			return nil, storeError(op, "suggestion", "", err)
		}
		for i, raw := range raws {
			if raw == nil {
				continue
			}
			sug, err := decodeSuggestion(raw)
			if err != nil {
				s.logger.Warn("skipping undecodable suggestion", zap.String("suggestion_id", sugIDs[i]), zap.Error(err))
				continue
			}
			sugs[sugIDs[i]] = &sug
		}
	}

	sugList := make([]*models.Suggestion, 0, len(sugs))
	for _, id := range sugIDs {
		if sug, ok := sugs[id]; ok {
			sugList = append(sugList, sug)
		}
	}
	ideaIDs := uniqueIDs(len(sugList), func(i int) string { return sugList[i].IdeaID })
	ideas := make(map[string]*models.Idea, len(ideaIDs))
	if len(ideaIDs) > 0 {
		raws, err := s.store.GetMany(ctx, store.KindIdea, ideaIDs)
		if err != nil {
			return nil, storeError(op, "idea", "", err)
		}
		for i, raw := range raws {
			if raw == nil {
				continue
			}
			var idea models.Idea
			if err := json.Unmarshal(raw, &idea); err != nil {
				s.logger.Warn("skipping undecodable idea", zap.String("idea_id", ideaIDs[i]), zap.Error(err))
				continue
			}
			ideas[ideaIDs[i]] = &idea
		}
	}

	views := make([]models.EventView, 0, len(events))
	for i := range events {
		ev := &events[i]
		var idea *models.Idea
		sug := sugs[ev.SuggestionID]
		if sug != nil {
			idea = ideas[sug.IdeaID]
		}
		display, resolved := ResolveEvent(ev, sug, idea)
		views = append(views, models.EventView{Event: *ev, Display: display, Resolved: resolved})
	}
	return views, nil
}

// uniqueIDs collects the non-empty ids produced by at, in first-seen order.
func uniqueIDs(n int, at func(int) string) []string {
	seen := make(map[string]struct{}, n)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := at(i)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
