// Package store persists idea, suggestion and event records as JSON documents
// together with a per-kind ordering index.
package store

import (
	"context"
	"errors"
)

// Kind identifies a record collection.
type Kind string

const (
	KindIdea       Kind = "idea"
	KindSuggestion Kind = "suggestion"
	KindEvent      Kind = "event"

	// KindEventUID holds per-couple calendar UID claims under
	// "uid:{coupleToken}:{uid}". It has no ordering index.
	KindEventUID Kind = "uid"
)

// Kinds lists every record collection.
var Kinds = []Kind{KindIdea, KindSuggestion, KindEvent}

// RecordKey returns the key a record is stored under, e.g. "idea:42".
func (k Kind) RecordKey(id string) string {
	return string(k) + ":" + id
}

// ListKey returns the key of the kind's ordering index, e.g. "ideas:list".
func (k Kind) ListKey() string {
	return string(k) + "s:list"
}

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrExists is returned by Insert when the id is already taken.
	ErrExists = errors.New("store: record already exists")
	// ErrConflict is returned by Update when optimistic retries are exhausted.
	ErrConflict = errors.New("store: concurrent update conflict")
)

// maxUpdateRetries bounds optimistic Update loops.
const maxUpdateRetries = 16

// UpdateFunc receives the current document and returns the replacement.
// Returning a nil slice leaves the record untouched.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is the persistence contract the planner depends on.
type Store interface {
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, kind Kind, id string) ([]byte, error)
	// GetMany returns records in ids order; missing records are nil.
	GetMany(ctx context.Context, kind Kind, ids []string) ([][]byte, error)
	// Put overwrites the record.
	Put(ctx context.Context, kind Kind, id string, data []byte) error
	// Insert writes the record only if the id is free, else ErrExists.
	Insert(ctx context.Context, kind Kind, id string, data []byte) error
	// Update applies fn as one atomic read-modify-write.
	Update(ctx context.Context, kind Kind, id string, fn UpdateFunc) error
	// Delete removes the record or returns ErrNotFound.
	Delete(ctx context.Context, kind Kind, id string) error
	// ListIDs returns the ordering index.
	ListIDs(ctx context.Context, kind Kind) ([]string, error)
	// AppendID adds id to the ordering index; an id is kept at most once.
	AppendID(ctx context.Context, kind Kind, id string) error
	// RemoveID drops every occurrence of id from the ordering index.
	RemoveID(ctx context.Context, kind Kind, id string) error
}
