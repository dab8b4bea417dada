package planner

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/store"
)

// CreateSuggestion proposes a timeslot for an idea. Tags default to the
// idea's tags at this moment.
func (s *Service) CreateSuggestion(ctx context.Context, in SuggestionInput) (*models.Suggestion, error) {
	const op = "create suggestion"
	in.IdeaID = strings.TrimSpace(in.IdeaID)
	in.Tags = cleanTags(in.Tags)
	if err := checkStruct(op, in); err != nil {
		return nil, err
	}
	start, err := parseTime(op, "startUtc", in.StartUTC)
	if err != nil {
		return nil, err
	}
	end, err := parseTime(op, "endUtc", in.EndUTC)
	if err != nil {
		return nil, err
	}
	if err := checkSlot(op, start, end); err != nil {
		return nil, err
	}

	idea, err := s.lookupIdea(ctx, op, in.IdeaID)
	if err != nil {
		return nil, err
	}
	if idea != nil && !visible(in.CoupleToken, idea.CoupleToken) {
		return nil, notFound(op, "idea", in.IdeaID)
	}
	if idea == nil && s.strict {
		return nil, notFound(op, "idea", in.IdeaID)
	}
	var ideaTags []string
	if idea != nil {
		ideaTags = idea.Tags
	}

	now := s.now()
	sug := &models.Suggestion{
		ID:                  s.newID(),
		CoupleToken:         in.CoupleToken,
		IdeaID:              in.IdeaID,
		StartUTC:            start,
		EndUTC:              end,
		TitleOverride:       optional(in.TitleOverride),
		DescriptionOverride: optional(in.DescriptionOverride),
		LocationOverride:    optional(in.LocationOverride),
		Tags:                PropagateTags(in.Tags, ideaTags),
		Votes:               make(map[string]models.Vote),
		Status:              models.StatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.create(ctx, op, store.KindSuggestion, sug.ID, sug); err != nil {
		return nil, err
	}
	s.notify(sug.CoupleToken, "suggestion_created", sug.ToPublic())
	return sug, nil
}

// GetSuggestion returns one suggestion.
func (s *Service) GetSuggestion(ctx context.Context, id string) (*models.Suggestion, error) {
	return s.loadSuggestion(ctx, "get suggestion", id)
}

// ListSuggestions returns the couple's suggestions in index order, optionally
// filtered by status.
func (s *Service) ListSuggestions(ctx context.Context, coupleToken string, status models.SuggestionStatus) ([]models.Suggestion, error) {
	raws, err := s.listRaw(ctx, "list suggestions", store.KindSuggestion)
	if err != nil {
		return nil, err
	}
	sugs := make([]models.Suggestion, 0, len(raws))
	for _, raw := range raws {
		sug, err := decodeSuggestion(raw)
		if err != nil {
			s.logger.Warn("skipping undecodable suggestion", zap.Error(err))
			continue
		}
		if !visible(coupleToken, sug.CoupleToken) {
			continue
		}
		if status != "" && sug.Status != status {
			continue
		}
		sugs = append(sugs, sug)
	}
	return sugs, nil
}

// UpdateSuggestion edits overrides, the timeslot or tags.
func (s *Service) UpdateSuggestion(ctx context.Context, id string, patch SuggestionPatch) (*models.Suggestion, error) {
	const op = "update suggestion"
	if err := checkStruct(op, patch); err != nil {
		return nil, err
	}
	var startPatch, endPatch *time.Time
	if patch.StartUTC != nil {
		t, err := parseTime(op, "startUtc", *patch.StartUTC)
		if err != nil {
			return nil, err
		}
		startPatch = &t
	}
	if patch.EndUTC != nil {
		t, err := parseTime(op, "endUtc", *patch.EndUTC)
		if err != nil {
			return nil, err
		}
		endPatch = &t
	}
	var tags []string
	if patch.Tags != nil {
		tags = cleanTags(*patch.Tags)
		if err := checkTags(op, tags); err != nil {
			return nil, err
		}
	}

	var sug models.Suggestion
	err := s.store.Update(ctx, store.KindSuggestion, id, func(cur []byte) ([]byte, error) {
		var err error
		if sug, err = decodeSuggestion(cur); err != nil {
			return nil, err
		}
		start, end := sug.StartUTC, sug.EndUTC
		if startPatch != nil {
			start = *startPatch
		}
		if endPatch != nil {
			end = *endPatch
		}
		if err := checkSlot(op, start, end); err != nil {
			return nil, err
		}
		sug.StartUTC, sug.EndUTC = start, end
		if patch.TitleOverride != nil {
			sug.TitleOverride = optional(patch.TitleOverride)
		}
		if patch.DescriptionOverride != nil {
			sug.DescriptionOverride = optional(patch.DescriptionOverride)
		}
		if patch.LocationOverride != nil {
			sug.LocationOverride = optional(patch.LocationOverride)
		}
		if patch.Tags != nil {
			sug.Tags = tags
		}
		sug.UpdatedAt = s.now()
		return json.Marshal(&sug)
	})
	if err != nil {
		return nil, storeError(op, "suggestion", id, err)
	}
	s.notify(sug.CoupleToken, "suggestion_updated", sug.ToPublic())
	if sug.Status == models.StatusAccepted {
		s.calendarChanged(ctx, sug.CoupleToken)
	}
	return &sug, nil
}

// DeleteSuggestion is the administrative removal. Events derived from the
// suggestion are kept and resolve as dangling.
func (s *Service) DeleteSuggestion(ctx context.Context, id string) error {
	const op = "delete suggestion"
	sug, err := s.loadSuggestion(ctx, op, id)
	if err != nil {
		return err
	}
	if err := s.remove(ctx, op, store.KindSuggestion, id); err != nil {
		return err
	}
	s.notify(sug.CoupleToken, "suggestion_deleted", map[string]string{"id": id})
	if sug.Status == models.StatusAccepted {
		s.calendarChanged(ctx, sug.CoupleToken)
	}
	return nil
}

// ResolveDisplay returns the suggestion's current display fields. A missing
// idea degrades to overrides and the placeholder title.
func (s *Service) ResolveDisplay(ctx context.Context, suggestionID string) (models.ResolvedView, error) {
	const op = "resolve display"
	sug, err := s.loadSuggestion(ctx, op, suggestionID)
	if err != nil {
		return models.ResolvedView{}, err
	}
	idea, err := s.lookupIdea(ctx, op, sug.IdeaID)
	if err != nil {
		return models.ResolvedView{}, err
	}
	return Resolve(sug, idea), nil
}
