package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueAndDequeueMaterialize(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.EnqueueMaterialize(ctx, "s1"))

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueEvents, key)
	assert.Equal(t, JobTypeMaterializeEvent, job.Type)

	var p MaterializePayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, "s1", p.SuggestionID)
}

func TestCalendarJobsUseTheirOwnQueue(t *testing.T) {
	q, mr := setupQueue(t)
	require.NoError(t, q.EnqueueCalendarPublish(context.Background(), "couple-1"))

	items, err := mr.List(QueueCalendars)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.False(t, mr.Exists(QueueEvents))
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()
	job := &Job{ID: "j1", Type: JobTypeMaterializeEvent, Payload: json.RawMessage(`{}`)}

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
	}
	events, err := mr.List(QueueEvents)
	require.NoError(t, err)
	assert.Len(t, events, MaxRetries-1)

	require.NoError(t, q.Retry(ctx, job))
	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	assert.Len(t, dlq, 1)
}

func TestDequeueSkipsGarbage(t *testing.T) {
	q, mr := setupQueue(t)
	_, err := mr.Push(QueueEvents, "not-json")
	require.NoError(t, err)

	job, _, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}
