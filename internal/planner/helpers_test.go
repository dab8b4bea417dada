package planner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/store"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type recordingJobs struct {
	mu          sync.Mutex
	materialize []string
	publish     []string
}

func (j *recordingJobs) EnqueueMaterialize(_ context.Context, id string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.materialize = append(j.materialize, id)
	return nil
}

func (j *recordingJobs) EnqueueCalendarPublish(_ context.Context, token string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.publish = append(j.publish, token)
	return nil
}

// flakyStore fails Insert for one kind while failing is set.
type flakyStore struct {
	store.Store
	kind    store.Kind
	failing atomic.Bool
}

func (f *flakyStore) Insert(ctx context.Context, kind store.Kind, id string, data []byte) error {
	if kind == f.kind && f.failing.Load() {
		return fmt.Errorf("insert %s: connection reset", kind)
	}
	return f.Store.Insert(ctx, kind, id, data)
}

func newTestService(t *testing.T, st store.Store, opts ...Option) *Service {
	t.Helper()
	if st == nil {
		st = store.NewMemory()
	}
	var seq atomic.Int64
	base := []Option{
		WithClock(func() time.Time { return testNow }),
	}
	svc := NewService(st, nil, append(base, opts...)...)
	svc.newID = func() string { return fmt.Sprintf("id-%03d", seq.Add(1)) }
	return svc
}

func mustIdea(t *testing.T, svc *Service, in IdeaInput) *models.Idea {
	t.Helper()
	idea, err := svc.CreateIdea(context.Background(), in)
	require.NoError(t, err)
	return idea
}

func mustSuggestion(t *testing.T, svc *Service, in SuggestionInput) *models.Suggestion {
	t.Helper()
	if in.StartUTC == "" {
		in.StartUTC = "2025-06-07T17:00:00Z"
	}
	if in.EndUTC == "" {
		in.EndUTC = "2025-06-07T19:00:00Z"
	}
	sug, err := svc.CreateSuggestion(context.Background(), in)
	require.NoError(t, err)
	return sug
}


// readOutageStore fails Get for one kind while failing is set.
type readOutageStore struct {
	store.Store
	kind    store.Kind
	failing atomic.Bool
}

func (r *readOutageStore) Get(ctx context.Context, kind store.Kind, id string) ([]byte, error) {
	if kind == r.kind && r.failing.Load() {
		return nil, fmt.Errorf("get %s: connection reset", kind)
	}
	return r.Store.Get(ctx, kind, id)
}
