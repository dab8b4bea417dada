package models

import "time"

// IdeaSource records who came up with an idea.
type IdeaSource string

const (
	IdeaSourceManual IdeaSource = "manual"
	IdeaSourceAI     IdeaSource = "ai"
)

// Idea is a reusable date concept with no fixed time.
type Idea struct {
	ID          string     `json:"id"`
	CoupleToken string     `json:"coupleToken,omitempty"`
	Source      IdeaSource `json:"source"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}
