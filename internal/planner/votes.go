package planner

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/store"
)

// CastVote records or replaces one partner's vote. Votes on a suggestion
// that is no longer pending are ignored and the current state is returned.
// Couple membership is checked by the caller.
func (s *Service) CastVote(ctx context.Context, suggestionID, partnerID string, vote models.Vote) (*models.Suggestion, error) {
	const op = "cast vote"
	partnerID = strings.TrimSpace(partnerID)
	if partnerID == "" {
		return nil, validationError(op, "partner id is required", map[string]string{"partnerId": "required"})
	}
	if !vote.Valid() {
		return nil, validationError(op, "vote must be up or down", map[string]string{"vote": "oneof"})
	}

	var (
		sug     models.Suggestion
		changed bool
	)
	err := s.store.Update(ctx, store.KindSuggestion, suggestionID, func(cur []byte) ([]byte, error) {
		var err error
		if sug, err = decodeSuggestion(cur); err != nil {
			return nil, err
		}
		changed = applyVote(&sug, partnerID, vote)
		if !changed {
			return nil, nil
		}
		sug.UpdatedAt = s.now()
		return json.Marshal(&sug)
	})
	if err != nil {
		return nil, storeError(op, "suggestion", suggestionID, err)
	}
	if changed {
		up, down := sug.Tally()
		s.notify(sug.CoupleToken, "vote_cast", map[string]interface{}{
			"suggestionId": sug.ID,
			"partnerId":    partnerID,
			"vote":         vote,
			"upCount":      up,
			"downCount":    down,
		})
	}
	return &sug, nil
}

// applyVote upserts a vote in place and reports whether anything changed.
func applyVote(sug *models.Suggestion, partnerID string, vote models.Vote) bool {
	if sug.Status != models.StatusPending {
		return false
	}
	if sug.Votes == nil {
		sug.Votes = make(map[string]models.Vote)
	}
	if sug.Votes[partnerID] == vote {
		return false
	}
	sug.Votes[partnerID] = vote
	return true
}
