package models

import "time"

// Event is the calendar artifact created when a suggestion is accepted.
// Events derived from a suggestion store no display data of their own; the
// inline Title/Description/Location/StartUTC/EndUTC fields are only populated
// for imported events that have no suggestion.
type Event struct {
	ID           string     `json:"id"`
	CoupleToken  string     `json:"coupleToken,omitempty"`
	SuggestionID string     `json:"suggestionId,omitempty"`
	UID          string     `json:"uid"`
	Sequence     int        `json:"sequence"`
	Tags         []string   `json:"tags,omitempty"`
	IsSurprise   bool       `json:"isSurprise"`
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	Location     *string    `json:"location,omitempty"`
	StartUTC     *time.Time `json:"startUtc,omitempty"`
	EndUTC       *time.Time `json:"endUtc,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ResolvedView holds the display attributes of a suggestion or event.
type ResolvedView struct {
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// EventView pairs an event with its resolved display data. Resolved is false
// when the referenced suggestion no longer exists.
type EventView struct {
	Event    Event        `json:"event"`
	Display  ResolvedView `json:"display"`
	Resolved bool         `json:"resolved"`
}
