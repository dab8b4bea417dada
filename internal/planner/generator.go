package planner

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// IdeaGenerator proposes ideas for the "surprise me" batch action.
type IdeaGenerator interface {
	Generate(ctx context.Context, coupleToken string) ([]IdeaInput, error)
}

// CatalogGenerator draws candidates from a built-in catalog in random order.
type CatalogGenerator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	catalog []IdeaInput
}

func strPtr(s string) *string { return &s }

// NewCatalogGenerator returns a generator over the default catalog.
func NewCatalogGenerator() *CatalogGenerator {
	return &CatalogGenerator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		catalog: []IdeaInput{
			{Title: "Storm-watching coffee date", Tags: []string{"rain", "cozy"}},
			{Title: "Sunrise beach stretch", Tags: []string{"outdoor", "sunrise"}, Location: strPtr("My Khe Beach")},
			{Title: "Puzzle & pasta night", Tags: []string{"home", "cozy"}},
			{Title: "Film photo mini-mission", Tags: []string{"creative", "city"}, Description: strPtr("36 shots challenge around the old town.")},
			{Title: "Board-game & bánh mì night", Tags: []string{"cozy", "indoors"}, Location: strPtr("At home")},
			{Title: "Night market food crawl", Tags: []string{"food", "city"}},
			{Title: "Sunset kayak", Tags: []string{"outdoor", "water"}},
			{Title: "Cook a new cuisine together", Tags: []string{"home", "food"}},
		},
	}
}

// Generate returns the catalog shuffled.
func (g *CatalogGenerator) Generate(_ context.Context, _ string) ([]IdeaInput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]IdeaInput, len(g.catalog))
	copy(out, g.catalog)
	g.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}
