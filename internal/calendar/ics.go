// Package calendar renders a couple's events as an iCalendar feed, imports
// external feeds and publishes the feed to object storage.
package calendar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/planner"
)

const (
	productID = "-//daeli//date planner//EN"
	// SurpriseTitle replaces the summary of surprise events in the feed.
	SurpriseTitle = "Surprise date"
)

// Build renders events as an iCalendar document. Events without a usable
// timeslot are skipped. Surprise events hide their details.
func Build(name string, views []models.EventView, stamp time.Time) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if name != "" {
		cal.SetXWRCalName(name)
	}
	for i := range views {
		v := &views[i]
		if v.Display.Start.IsZero() || !v.Display.Start.Before(v.Display.End) {
			continue
		}
		ev := cal.AddEvent(v.Event.UID)
		ev.SetDtStampTime(stamp)
		ev.SetCreatedTime(v.Event.CreatedAt)
		ev.SetModifiedAt(v.Event.UpdatedAt)
		ev.SetProperty(ical.ComponentPropertySequence, strconv.Itoa(v.Event.Sequence))
		ev.SetStartAt(v.Display.Start)
		ev.SetEndAt(v.Display.End)
		if v.Event.IsSurprise {
			ev.SetSummary(SurpriseTitle)
			continue
		}
		ev.SetSummary(v.Display.Title)
		if v.Display.Description != nil {
			ev.SetDescription(*v.Display.Description)
		}
		if v.Display.Location != nil {
			ev.SetLocation(*v.Display.Location)
		}
		if len(v.Event.Tags) > 0 {
			ev.SetProperty(ical.ComponentPropertyCategories, strings.Join(v.Event.Tags, ","))
		}
	}
	return []byte(cal.Serialize())
}

// Parse reads VEVENTs from an iCalendar document into event inputs for the
// import path. Events missing a UID, summary or timeslot are skipped and
// counted.
func Parse(r io.Reader) ([]planner.EventInput, int, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read calendar: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, 0, errors.New("empty calendar")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("parse calendar: %w", err)
	}

	var (
		out     []planner.EventInput
		skipped int
	)
	for _, ve := range cal.Events() {
		in, ok := parseEvent(ve)
		if !ok {
			skipped++
			continue
		}
		out = append(out, in)
	}
	return out, skipped, nil
}

func parseEvent(ve *ical.VEvent) (planner.EventInput, bool) {
	var in planner.EventInput
	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	summary := ve.GetProperty(ical.ComponentPropertySummary)
	if uid == nil || uid.Value == "" || summary == nil || strings.TrimSpace(summary.Value) == "" {
		return in, false
	}
	start, err := ve.GetStartAt()
	if err != nil {
		return in, false
	}
	end, err := ve.GetEndAt()
	if err != nil {
		return in, false
	}
	in.UID = uid.Value
	in.Title = strPtr(summary.Value)
	in.StartUTC = strPtr(start.UTC().Format(time.RFC3339))
	in.EndUTC = strPtr(end.UTC().Format(time.RFC3339))
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil && p.Value != "" {
		in.Description = strPtr(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil && p.Value != "" {
		in.Location = strPtr(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		for _, tag := range strings.Split(p.Value, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				in.Tags = append(in.Tags, tag)
			}
		}
	}
	return in, true
}

func strPtr(s string) *string { return &s }
