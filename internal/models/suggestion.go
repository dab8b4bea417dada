package models

import "time"

// SuggestionStatus is the lifecycle state of a suggestion.
type SuggestionStatus string

const (
	StatusPending   SuggestionStatus = "pending"
	StatusAccepted  SuggestionStatus = "accepted"
	StatusCancelled SuggestionStatus = "cancelled"
)

// Vote is a partner's opinion on a suggestion.
type Vote string

const (
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

// Valid reports whether v is one of the known vote values.
func (v Vote) Valid() bool {
	return v == VoteUp || v == VoteDown
}

// Suggestion proposes doing an idea at a concrete timeslot.
// Title, description and location are overrides only; display values are
// resolved against the parent idea on every read.
type Suggestion struct {
	ID                  string           `json:"id"`
	CoupleToken         string           `json:"coupleToken,omitempty"`
	IdeaID              string           `json:"ideaId"`
	StartUTC            time.Time        `json:"startUtc"`
	EndUTC              time.Time        `json:"endUtc"`
	TitleOverride       *string          `json:"titleOverride,omitempty"`
	DescriptionOverride *string          `json:"descriptionOverride,omitempty"`
	LocationOverride    *string          `json:"locationOverride,omitempty"`
	Tags                []string         `json:"tags,omitempty"`
	Votes               map[string]Vote  `json:"votes"`
	Status              SuggestionStatus `json:"status"`
	AcceptedBy          string           `json:"acceptedBy,omitempty"`
	AcceptedAt          *time.Time       `json:"acceptedAt,omitempty"`
	EventID             string           `json:"eventId,omitempty"`
	// EventRemovedAt is set when the materialized event was deleted on
	// purpose; such suggestions are never re-materialized.
	EventRemovedAt      *time.Time       `json:"eventRemovedAt,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
}

// Tally counts up and down votes from the current votes map.
func (s *Suggestion) Tally() (up, down int) {
	for _, v := range s.Votes {
		switch v {
		case VoteUp:
			up++
		case VoteDown:
			down++
		}
	}
	return up, down
}

// SuggestionPublic is the API shape of a suggestion, with derived vote counts.
type SuggestionPublic struct {
	Suggestion
	UpCount   int `json:"upCount"`
	DownCount int `json:"downCount"`
}

// ToPublic attaches derived vote counts.
func (s *Suggestion) ToPublic() SuggestionPublic {
	up, down := s.Tally()
	return SuggestionPublic{Suggestion: *s, UpCount: up, DownCount: down}
}
