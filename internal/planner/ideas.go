package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/store"
)

// DefaultGenerateBatch is how many ideas GenerateIdeas adds when no limit is given.
const DefaultGenerateBatch = 3

// CreateIdea validates and stores a new idea.
func (s *Service) CreateIdea(ctx context.Context, in IdeaInput) (*models.Idea, error) {
	const op = "create idea"
	in.Title = strings.TrimSpace(in.Title)
	in.Tags = cleanTags(in.Tags)
	if err := checkStruct(op, in); err != nil {
		return nil, err
	}
	source := in.Source
	if source == "" {
		source = models.IdeaSourceManual
	}
	now := s.now()
	idea := &models.Idea{
		ID:          s.newID(),
		CoupleToken: in.CoupleToken,
		Source:      source,
		Title:       in.Title,
		Description: optional(in.Description),
		Location:    optional(in.Location),
		Tags:        in.Tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.create(ctx, op, store.KindIdea, idea.ID, idea); err != nil {
		return nil, err
	}
	s.notify(idea.CoupleToken, "idea_created", idea)
	return idea, nil
}

// GetIdea returns one idea.
func (s *Service) GetIdea(ctx context.Context, id string) (*models.Idea, error) {
	return s.loadIdea(ctx, "get idea", id)
}

// ListIdeas returns the couple's ideas in index order.
func (s *Service) ListIdeas(ctx context.Context, coupleToken string) ([]models.Idea, error) {
	raws, err := s.listRaw(ctx, "list ideas", store.KindIdea)
	if err != nil {
		return nil, err
	}
	ideas := make([]models.Idea, 0, len(raws))
	for _, raw := range raws {
		var idea models.Idea
		if err := json.Unmarshal(raw, &idea); err != nil {
			s.logger.Warn("skipping undecodable idea", zap.Error(err))
			continue
		}
		if visible(coupleToken, idea.CoupleToken) {
			ideas = append(ideas, idea)
		}
	}
	return ideas, nil
}

// UpdateIdea applies a patch. Suggestions pick up title, description and
// location changes on their next read; their stored tags are not touched.
func (s *Service) UpdateIdea(ctx context.Context, id string, patch IdeaPatch) (*models.Idea, error) {
	const op = "update idea"
	if err := checkStruct(op, patch); err != nil {
		return nil, err
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, validationError(op, "title must not be empty", map[string]string{"title": "required"})
		}
		patch.Title = &t
	}
	var tags []string
	if patch.Tags != nil {
		tags = cleanTags(*patch.Tags)
		if err := checkTags(op, tags); err != nil {
			return nil, err
		}
	}

	var idea models.Idea
	err := s.store.Update(ctx, store.KindIdea, id, func(cur []byte) ([]byte, error) {
		idea = models.Idea{}
		if err := json.Unmarshal(cur, &idea); err != nil {
			return nil, fmt.Errorf("decode idea: %w", err)
		}
		if patch.Title != nil {
			idea.Title = *patch.Title
		}
		if patch.Description != nil {
			idea.Description = optional(patch.Description)
		}
		if patch.Location != nil {
			idea.Location = optional(patch.Location)
		}
		if patch.Tags != nil {
			idea.Tags = tags
		}
		idea.UpdatedAt = s.now()
		return json.Marshal(&idea)
	})
	if err != nil {
		return nil, storeError(op, "idea", id, err)
	}
	s.notify(idea.CoupleToken, "idea_updated", &idea)
	s.calendarChanged(ctx, idea.CoupleToken)
	return &idea, nil
}

// DeleteIdea removes an idea. Suggestions referencing it are left dangling
// unless strict references are on, in which case the delete is refused.
func (s *Service) DeleteIdea(ctx context.Context, id string) error {
	const op = "delete idea"
	idea, err := s.loadIdea(ctx, op, id)
	if err != nil {
		return err
	}
	if s.strict {
		sugs, err := s.ListSuggestions(ctx, "", "")
		if err != nil {
			return err
		}
		for _, sug := range sugs {
			if sug.IdeaID == id {
				return conflict(op, fmt.Sprintf("idea %s is referenced by suggestion %s", id, sug.ID))
			}
		}
	}
	if err := s.remove(ctx, op, store.KindIdea, id); err != nil {
		return err
	}
	s.notify(idea.CoupleToken, "idea_deleted", map[string]string{"id": id})
	return nil
}

// GenerateIdeas runs the batch "AI suggestion" action: it stores up to limit
// generated ideas with source=ai, skipping titles the couple already has.
func (s *Service) GenerateIdeas(ctx context.Context, coupleToken string, limit int) ([]models.Idea, error) {
	const op = "generate ideas"
	if limit <= 0 {
		limit = DefaultGenerateBatch
	}
	candidates, err := s.generator.Generate(ctx, coupleToken)
	if err != nil {
		return nil, &Error{Kind: KindStore, Op: op, Message: "idea generator unavailable", Err: err}
	}
	existing, err := s.ListIdeas(ctx, coupleToken)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]struct{}, len(existing))
	for _, idea := range existing {
		taken[strings.ToLower(idea.Title)] = struct{}{}
	}

	created := make([]models.Idea, 0, limit)
	for _, c := range candidates {
		if len(created) >= limit {
			break
		}
		key := strings.ToLower(strings.TrimSpace(c.Title))
		if _, ok := taken[key]; ok {
			continue
		}
		c.CoupleToken = coupleToken
		c.Source = models.IdeaSourceAI
		idea, err := s.CreateIdea(ctx, c)
		if err != nil {
			return created, err
		}
		taken[key] = struct{}{}
		created = append(created, *idea)
	}
	return created, nil
}
