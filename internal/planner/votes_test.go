package planner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeli/backend/internal/models"
)

func TestCastVoteUpsert(t *testing.T) {
	ctx := context.Background()
	notes := &recordingNotifier{}
	svc := newTestService(t, nil, WithNotifier(notes))
	idea := mustIdea(t, svc, IdeaInput{CoupleToken: "c1", Title: "Picnic"})
	sug := mustSuggestion(t, svc, SuggestionInput{CoupleToken: "c1", IdeaID: idea.ID})

	got, err := svc.CastVote(ctx, sug.ID, "p1", models.VoteUp)
	require.NoError(t, err)
	up, down := got.Tally()
	assert.Equal(t, 1, up)
	assert.Equal(t, 0, down)

	got, err = svc.CastVote(ctx, sug.ID, "p1", models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.Vote{"p1": models.VoteDown}, got.Votes)
	up, down = got.Tally()
	assert.Equal(t, 0, up)
	assert.Equal(t, 1, down)

	// same vote again is not a change
	_, err = svc.CastVote(ctx, sug.ID, "p1", models.VoteDown)
	require.NoError(t, err)

	votes := 0
	for _, e := range notes.seen() {
		if e == "vote_cast" {
			votes++
		}
	}
	assert.Equal(t, 2, votes)
}

func TestCastVoteValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	sug := mustSuggestion(t, svc, SuggestionInput{IdeaID: "missing"})

	_, err := svc.CastVote(ctx, sug.ID, "p1", models.Vote("meh"))
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.CastVote(ctx, sug.ID, "  ", models.VoteUp)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.CastVote(ctx, "nope", "p1", models.VoteUp)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCastVoteIgnoredWhenNotPending(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	sug := mustSuggestion(t, svc, SuggestionInput{IdeaID: "i"})
	_, err := svc.CastVote(ctx, sug.ID, "p1", models.VoteUp)
	require.NoError(t, err)
	_, err = svc.Accept(ctx, sug.ID, "p1")
	require.NoError(t, err)

	got, err := svc.CastVote(ctx, sug.ID, "p2", models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, got.Status)
	assert.Equal(t, map[string]models.Vote{"p1": models.VoteUp}, got.Votes)
}

func TestCastVoteConcurrentPartnersBothPersist(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	sug := mustSuggestion(t, svc, SuggestionInput{IdeaID: "i"})

	var wg sync.WaitGroup
	for _, p := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(partner string) {
			defer wg.Done()
			_, err := svc.CastVote(ctx, sug.ID, partner, models.VoteUp)
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()

	got, err := svc.GetSuggestion(ctx, sug.ID)
	require.NoError(t, err)
	up, _ := got.Tally()
	assert.Equal(t, 2, up)
}

func TestApplyVote(t *testing.T) {
	sug := &models.Suggestion{Status: models.StatusPending}
	assert.True(t, applyVote(sug, "p1", models.VoteUp))
	assert.False(t, applyVote(sug, "p1", models.VoteUp))
	assert.True(t, applyVote(sug, "p1", models.VoteDown))

	sug.Status = models.StatusCancelled
	assert.False(t, applyVote(sug, "p2", models.VoteUp))
	assert.Len(t, sug.Votes, 1)
}
