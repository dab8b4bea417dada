package planner

import "github.com/daeli/backend/internal/models"

// PlaceholderTitle is shown when neither the suggestion nor its idea has a title.
const PlaceholderTitle = "(Idea)"

// Resolve derives display fields for a suggestion, falling back to its idea.
// idea may be nil when the reference dangles.
func Resolve(s *models.Suggestion, idea *models.Idea) models.ResolvedView {
	view := models.ResolvedView{
		Title:       PlaceholderTitle,
		Description: s.DescriptionOverride,
		Location:    s.LocationOverride,
		Start:       s.StartUTC,
		End:         s.EndUTC,
	}
	switch {
	case s.TitleOverride != nil:
		view.Title = *s.TitleOverride
	case idea != nil && idea.Title != "":
		view.Title = idea.Title
	}
	if idea != nil {
		if view.Description == nil {
			view.Description = idea.Description
		}
		if view.Location == nil {
			view.Location = idea.Location
		}
	}
	return view
}

// ResolveEvent derives display fields for an event. Imported events use their
// inline fields. Derived events resolve through their suggestion; when that
// suggestion is gone the result falls back to the inline fields and reports
// resolved=false.
func ResolveEvent(ev *models.Event, s *models.Suggestion, idea *models.Idea) (models.ResolvedView, bool) {
	if ev.SuggestionID != "" && s != nil {
		return Resolve(s, idea), true
	}
	view := models.ResolvedView{
		Title:       PlaceholderTitle,
		Description: ev.Description,
		Location:    ev.Location,
	}
	if ev.Title != nil && *ev.Title != "" {
		view.Title = *ev.Title
	}
	if ev.StartUTC != nil {
		view.Start = *ev.StartUTC
	}
	if ev.EndUTC != nil {
		view.End = *ev.EndUTC
	}
	return view, ev.SuggestionID == ""
}
