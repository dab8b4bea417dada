package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeli/backend/internal/models"
)

func TestCreateSuggestionPropagatesTags(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	idea := mustIdea(t, svc, IdeaInput{Title: "Picnic", Tags: []string{"outdoor", "food"}})

	inherited := mustSuggestion(t, svc, SuggestionInput{IdeaID: idea.ID})
	assert.Equal(t, []string{"outdoor", "food"}, inherited.Tags)
	assert.Equal(t, models.StatusPending, inherited.Status)
	assert.Empty(t, inherited.Votes)

	explicit := mustSuggestion(t, svc, SuggestionInput{IdeaID: idea.ID, Tags: []string{"date-night"}})
	assert.Equal(t, []string{"date-night"}, explicit.Tags)

	_, err := svc.UpdateIdea(ctx, idea.ID, IdeaPatch{Tags: &[]string{"changed"}})
	require.NoError(t, err)
	got, err := svc.GetSuggestion(ctx, inherited.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"outdoor", "food"}, got.Tags)
}

func TestCreateSuggestionTimeslot(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		start, end string
	}{
		{"start equals end", "2025-06-07T17:00:00Z", "2025-06-07T17:00:00Z"},
		{"start after end", "2025-06-07T19:00:00Z", "2025-06-07T17:00:00Z"},
		{"bad start", "tomorrow", "2025-06-07T17:00:00Z"},
		{"missing end", "2025-06-07T17:00:00Z", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSuggestion(ctx, SuggestionInput{IdeaID: "i", StartUTC: tt.start, EndUTC: tt.end})
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
		})
	}

	sugs, err := svc.ListSuggestions(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, sugs)
}

func TestCreateSuggestionNormalizesToUTC(t *testing.T) {
	svc := newTestService(t, nil)
	sug := mustSuggestion(t, svc, SuggestionInput{
		IdeaID:   "i",
		StartUTC: "2025-06-07T19:00:00+02:00",
		EndUTC:   "2025-06-07T21:00:00+02:00",
	})
	assert.Equal(t, time.Date(2025, 6, 7, 17, 0, 0, 0, time.UTC), sug.StartUTC)
}

func TestCreateSuggestionReferences(t *testing.T) {
	ctx := context.Background()
	valid := SuggestionInput{IdeaID: "missing", StartUTC: "2025-06-07T17:00:00Z", EndUTC: "2025-06-07T18:00:00Z"}

	lenient := newTestService(t, nil)
	sug, err := lenient.CreateSuggestion(ctx, valid)
	require.NoError(t, err)
	view, err := lenient.ResolveDisplay(ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderTitle, view.Title)

	strict := newTestService(t, nil, WithStrictReferences(true))
	_, err = strict.CreateSuggestion(ctx, valid)
	assert.True(t, errors.Is(err, ErrNotFound))

	idea := mustIdea(t, lenient, IdeaInput{CoupleToken: "c1", Title: "Private"})
	other := valid
	other.IdeaID = idea.ID
	other.CoupleToken = "c2"
	_, err = lenient.CreateSuggestion(ctx, other)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListSuggestionsFilters(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	a := mustSuggestion(t, svc, SuggestionInput{CoupleToken: "c1", IdeaID: "i"})
	b := mustSuggestion(t, svc, SuggestionInput{CoupleToken: "c1", IdeaID: "i"})
	mustSuggestion(t, svc, SuggestionInput{CoupleToken: "c2", IdeaID: "i"})
	_, err := svc.Cancel(ctx, b.ID)
	require.NoError(t, err)

	mine, err := svc.ListSuggestions(ctx, "c1", "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	pending, err := svc.ListSuggestions(ctx, "c1", models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)
}

func TestUpdateSuggestion(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	idea := mustIdea(t, svc, IdeaInput{Title: "Picnic"})
	sug := mustSuggestion(t, svc, SuggestionInput{IdeaID: idea.ID, TitleOverride: strPtr("Sunset picnic")})

	got, err := svc.UpdateSuggestion(ctx, sug.ID, SuggestionPatch{
		EndUTC:           strPtr("2025-06-07T20:00:00Z"),
		LocationOverride: strPtr("Beach"),
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 7, 20, 0, 0, 0, time.UTC), got.EndUTC)
	assert.Equal(t, "Beach", *got.LocationOverride)

	// empty override clears and falls back to the idea
	got, err = svc.UpdateSuggestion(ctx, sug.ID, SuggestionPatch{TitleOverride: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, got.TitleOverride)
	view, err := svc.ResolveDisplay(ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, "Picnic", view.Title)

	_, err = svc.UpdateSuggestion(ctx, sug.ID, SuggestionPatch{StartUTC: strPtr("2025-06-07T21:00:00Z")})
	assert.True(t, errors.Is(err, ErrValidation))
	stored, err := svc.GetSuggestion(ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 7, 17, 0, 0, 0, time.UTC), stored.StartUTC)
}

func TestDeleteSuggestionKeepsEvent(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	sug := mustSuggestion(t, svc, SuggestionInput{IdeaID: "i", TitleOverride: strPtr("Dinner")})
	res, err := svc.Accept(ctx, sug.ID, "p1")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSuggestion(ctx, sug.ID))
	_, err = svc.GetSuggestion(ctx, sug.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	views, err := svc.ListEvents(ctx, "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, res.Event.ID, views[0].Event.ID)
	assert.False(t, views[0].Resolved)
	assert.Equal(t, PlaceholderTitle, views[0].Display.Title)
}

func TestPicnicScenario(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	idea := mustIdea(t, svc, IdeaInput{CoupleToken: "c1", Title: "Picnic", Tags: []string{"outdoor"}})
	sug := mustSuggestion(t, svc, SuggestionInput{
		CoupleToken:      "c1",
		IdeaID:           idea.ID,
		StartUTC:         "2025-06-07T17:00:00Z",
		EndUTC:           "2025-06-07T19:00:00Z",
		LocationOverride: strPtr("Riverside park"),
	})

	_, err := svc.CastVote(ctx, sug.ID, "p1", models.VoteUp)
	require.NoError(t, err)
	voted, err := svc.CastVote(ctx, sug.ID, "p2", models.VoteUp)
	require.NoError(t, err)
	up, down := voted.Tally()
	assert.Equal(t, 2, up)
	assert.Equal(t, 0, down)

	res, err := svc.Accept(ctx, sug.ID, "p2")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, []string{"outdoor"}, res.Event.Tags)

	_, err = svc.UpdateIdea(ctx, idea.ID, IdeaPatch{Title: strPtr("Picnic by the river")})
	require.NoError(t, err)

	views, err := svc.ListEvents(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	v := views[0]
	assert.True(t, v.Resolved)
	assert.Equal(t, "Picnic by the river", v.Display.Title)
	assert.Equal(t, "Riverside park", *v.Display.Location)
	assert.Equal(t, time.Date(2025, 6, 7, 17, 0, 0, 0, time.UTC), v.Display.Start)
	assert.Equal(t, time.Date(2025, 6, 7, 19, 0, 0, 0, time.UTC), v.Display.End)

	others, err := svc.ListEvents(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, others)
}
