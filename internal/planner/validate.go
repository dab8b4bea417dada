package planner

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/daeli/backend/internal/models"
)

var validate = newValidator()

const (
	maxTags   = 20
	maxTagLen = 40
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// IdeaInput is the payload of CreateIdea.
type IdeaInput struct {
	CoupleToken string            `json:"coupleToken"`
	Source      models.IdeaSource `json:"source" validate:"omitempty,oneof=manual ai"`
	Title       string            `json:"title" validate:"required,max=200"`
	Description *string           `json:"description" validate:"omitempty,max=2000"`
	Location    *string           `json:"location" validate:"omitempty,max=500"`
	Tags        []string          `json:"tags" validate:"omitempty,max=20,dive,max=40"`
}

// IdeaPatch edits an idea; nil fields are left alone and an empty
// description or location clears it.
type IdeaPatch struct {
	Title       *string   `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Location    *string   `json:"location" validate:"omitempty,max=500"`
	Tags        *[]string `json:"tags"`
}

// SuggestionInput is the payload of CreateSuggestion. Times are RFC 3339.
type SuggestionInput struct {
	CoupleToken         string   `json:"coupleToken"`
	IdeaID              string   `json:"ideaId" validate:"required"`
	StartUTC            string   `json:"startUtc" validate:"required"`
	EndUTC              string   `json:"endUtc" validate:"required"`
	TitleOverride       *string  `json:"titleOverride" validate:"omitempty,max=200"`
	DescriptionOverride *string  `json:"descriptionOverride" validate:"omitempty,max=2000"`
	LocationOverride    *string  `json:"locationOverride" validate:"omitempty,max=500"`
	Tags                []string `json:"tags" validate:"omitempty,max=20,dive,max=40"`
}

// SuggestionPatch edits overrides, timeslot or tags. Status is not editable;
// it only moves through Accept and Cancel. An empty override clears it.
type SuggestionPatch struct {
	StartUTC            *string   `json:"startUtc"`
	EndUTC              *string   `json:"endUtc"`
	TitleOverride       *string   `json:"titleOverride" validate:"omitempty,max=200"`
	DescriptionOverride *string   `json:"descriptionOverride" validate:"omitempty,max=2000"`
	LocationOverride    *string   `json:"locationOverride" validate:"omitempty,max=500"`
	Tags                *[]string `json:"tags"`
}

// EventInput is the payload of the administrative CreateEvent path.
type EventInput struct {
	CoupleToken  string   `json:"coupleToken"`
	SuggestionID string   `json:"suggestionId"`
	UID          string   `json:"uid" validate:"omitempty,max=255"`
	Title        *string  `json:"title" validate:"omitempty,max=200"`
	Description  *string  `json:"description" validate:"omitempty,max=2000"`
	Location     *string  `json:"location" validate:"omitempty,max=500"`
	StartUTC     *string  `json:"startUtc"`
	EndUTC       *string  `json:"endUtc"`
	Tags         []string `json:"tags" validate:"omitempty,max=20,dive,max=40"`
	IsSurprise   bool     `json:"isSurprise"`
}

// EventPatch edits an event and bumps its sequence.
type EventPatch struct {
	Title       *string   `json:"title" validate:"omitempty,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Location    *string   `json:"location" validate:"omitempty,max=500"`
	StartUTC    *string   `json:"startUtc"`
	EndUTC      *string   `json:"endUtc"`
	Tags        *[]string `json:"tags"`
	IsSurprise  *bool     `json:"isSurprise"`
}

// checkStruct runs tag validation and flattens failures into a field map.
func checkStruct(op string, v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return validationError(op, err.Error(), nil)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return validationError(op, "invalid input", fields)
}

// checkTags applies the tag limits to patch values, which are pointers.
func checkTags(op string, tags []string) error {
	if len(tags) > maxTags {
		return validationError(op, "too many tags", map[string]string{"tags": "max"})
	}
	for _, t := range tags {
		if len(t) > maxTagLen {
			return validationError(op, "tag too long", map[string]string{"tags": "max"})
		}
	}
	return nil
}

// parseTime parses an RFC 3339 timestamp and normalizes it to UTC.
func parseTime(op, field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, validationError(op, "invalid timestamp", map[string]string{field: "rfc3339"})
	}
	return t.UTC(), nil
}

// checkSlot enforces start < end.
func checkSlot(op string, start, end time.Time) error {
	if !start.Before(end) {
		return validationError(op, "end must be after start", map[string]string{"endUtc": "gtfield"})
	}
	return nil
}

// optional trims s and maps blank to nil.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// cleanTags trims, drops blanks and de-duplicates while keeping order.
func cleanTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
