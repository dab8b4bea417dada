package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeli/backend/internal/models"
)

func TestCreateIdea(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	idea, err := svc.CreateIdea(ctx, IdeaInput{
		CoupleToken: "c1",
		Title:       "  Picnic ",
		Description: strPtr(" "),
		Tags:        []string{"outdoor", " outdoor", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "Picnic", idea.Title)
	assert.Equal(t, models.IdeaSourceManual, idea.Source)
	assert.Nil(t, idea.Description)
	assert.Equal(t, []string{"outdoor"}, idea.Tags)
	assert.Equal(t, testNow, idea.CreatedAt)

	got, err := svc.GetIdea(ctx, idea.ID)
	require.NoError(t, err)
	assert.Equal(t, idea.Title, got.Title)

	_, err = svc.CreateIdea(ctx, IdeaInput{Title: "   "})
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindValidation, perr.Kind)
	assert.Equal(t, "required", perr.Fields["title"])
}

func TestListIdeasScopedByCouple(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	a := mustIdea(t, svc, IdeaInput{CoupleToken: "c1", Title: "A"})
	mustIdea(t, svc, IdeaInput{CoupleToken: "c2", Title: "B"})
	c := mustIdea(t, svc, IdeaInput{CoupleToken: "c1", Title: "C"})

	ideas, err := svc.ListIdeas(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	assert.Equal(t, a.ID, ideas[0].ID)
	assert.Equal(t, c.ID, ideas[1].ID)

	all, err := svc.ListIdeas(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateIdea(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	idea := mustIdea(t, svc, IdeaInput{Title: "Picnic", Location: strPtr("Park"), Tags: []string{"outdoor"}})
	sug := mustSuggestion(t, svc, SuggestionInput{IdeaID: idea.ID})

	got, err := svc.UpdateIdea(ctx, idea.ID, IdeaPatch{Title: strPtr("Beach picnic"), Location: strPtr(""), Tags: &[]string{"beach"}})
	require.NoError(t, err)
	assert.Equal(t, "Beach picnic", got.Title)
	assert.Nil(t, got.Location)
	assert.Equal(t, []string{"beach"}, got.Tags)

	// display follows the idea, stored tags do not
	view, err := svc.ResolveDisplay(ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, "Beach picnic", view.Title)
	assert.Nil(t, view.Location)
	stored, err := svc.GetSuggestion(ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"outdoor"}, stored.Tags)

	_, err = svc.UpdateIdea(ctx, idea.ID, IdeaPatch{Title: strPtr(" ")})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.UpdateIdea(ctx, "missing", IdeaPatch{Title: strPtr("x")})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteIdeaLeavesSuggestionsDangling(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)
	idea := mustIdea(t, svc, IdeaInput{Title: "Picnic"})
	sug := mustSuggestion(t, svc, SuggestionInput{IdeaID: idea.ID, LocationOverride: strPtr("Beach")})

	require.NoError(t, svc.DeleteIdea(ctx, idea.ID))

	view, err := svc.ResolveDisplay(ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, PlaceholderTitle, view.Title)
	assert.Equal(t, "Beach", *view.Location)

	ideas, err := svc.ListIdeas(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, ideas)

	err = svc.DeleteIdea(ctx, idea.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteIdeaStrict(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil, WithStrictReferences(true))
	idea := mustIdea(t, svc, IdeaInput{Title: "Picnic"})
	sug := mustSuggestion(t, svc, SuggestionInput{IdeaID: idea.ID})

	err := svc.DeleteIdea(ctx, idea.ID)
	assert.True(t, errors.Is(err, ErrConflict))

	require.NoError(t, svc.DeleteSuggestion(ctx, sug.ID))
	require.NoError(t, svc.DeleteIdea(ctx, idea.ID))
}

type fixedGenerator []IdeaInput

func (g fixedGenerator) Generate(context.Context, string) ([]IdeaInput, error) {
	return g, nil
}

func TestGenerateIdeas(t *testing.T) {
	ctx := context.Background()
	gen := fixedGenerator{{Title: "Sunset kayak"}, {Title: "Picnic"}, {Title: "Night market"}, {Title: "Museum"}}
	svc := newTestService(t, nil, WithGenerator(gen))
	mustIdea(t, svc, IdeaInput{CoupleToken: "c1", Title: "picnic"})

	ideas, err := svc.GenerateIdeas(ctx, "c1", 2)
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	assert.Equal(t, "Sunset kayak", ideas[0].Title)
	assert.Equal(t, "Night market", ideas[1].Title)
	for _, idea := range ideas {
		assert.Equal(t, models.IdeaSourceAI, idea.Source)
		assert.Equal(t, "c1", idea.CoupleToken)
	}

	ideas, err = svc.GenerateIdeas(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, ideas, 1)
	assert.Equal(t, "Museum", ideas[0].Title)
}

func TestCatalogGenerator(t *testing.T) {
	gen := NewCatalogGenerator()
	got, err := gen.Generate(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, got, 8)
	for _, in := range got {
		assert.NotEmpty(t, in.Title)
	}
}
