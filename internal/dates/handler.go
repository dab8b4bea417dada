// Package dates exposes the planner over HTTP.
package dates

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/daeli/backend/internal/auth"
	"github.com/daeli/backend/internal/planner"
	"github.com/daeli/backend/pkg/response"
)

// CalendarLinks hands out a subscription URL for a couple's published feed.
type CalendarLinks interface {
	Link(ctx context.Context, coupleToken string) (string, error)
}

// Handler handles idea, suggestion, event and calendar endpoints. Every
// request is scoped to the caller's couple; records of another couple are
// reported as not found.
type Handler struct {
	svc          *planner.Service
	links        CalendarLinks
	calendarName string
	logger       *zap.Logger
}

// NewHandler creates a dates handler. links may be nil when no bucket is
// configured.
func NewHandler(svc *planner.Service, links CalendarLinks, calendarName string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, links: links, calendarName: calendarName, logger: logger}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/ideas", h.ListIdeas)
	g.POST("/ideas", h.CreateIdea)
	g.POST("/ideas/generate", h.GenerateIdeas)
	g.GET("/ideas/:id", h.GetIdea)
	g.PATCH("/ideas/:id", h.UpdateIdea)
	g.DELETE("/ideas/:id", h.DeleteIdea)

	g.GET("/suggestions", h.ListSuggestions)
	g.POST("/suggestions", h.CreateSuggestion)
	g.GET("/suggestions/:id", h.GetSuggestion)
	g.PATCH("/suggestions/:id", h.UpdateSuggestion)
	g.DELETE("/suggestions/:id", h.DeleteSuggestion)
	g.POST("/suggestions/:id/votes", h.CastVote)
	g.POST("/suggestions/:id/accept", h.Accept)
	g.POST("/suggestions/:id/cancel", h.Cancel)
	g.GET("/suggestions/:id/display", h.Display)

	g.GET("/events", h.ListEvents)
	g.POST("/events", h.CreateEvent)
	g.POST("/events/import", h.ImportEvents)
	g.GET("/events/:id", h.GetEvent)
	g.PATCH("/events/:id", h.UpdateEvent)
	g.DELETE("/events/:id", h.DeleteEvent)

	g.GET("/calendar.ics", h.CalendarFeed)
	g.GET("/calendar/link", h.CalendarLink)
}

// respondError maps planner error kinds to statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var perr *planner.Error
	if !errors.As(err, &perr) {
		h.logger.Error("unexpected error", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
		return
	}
	msg := perr.Message
	if len(perr.Fields) > 0 {
		parts := make([]string, 0, len(perr.Fields))
		for field, rule := range perr.Fields {
			parts = append(parts, field+": "+rule)
		}
		sort.Strings(parts)
		msg += " (" + strings.Join(parts, ", ") + ")"
	}
	switch perr.Kind {
	case planner.KindValidation:
		response.UnprocessableEntity(c, msg)
	case planner.KindNotFound:
		response.NotFound(c, msg)
	case planner.KindConflict:
		response.Conflict(c, msg)
	case planner.KindStore:
		h.logger.Warn("store failure", zap.String("op", perr.Op), zap.Error(perr.Err))
		response.ServiceUnavailable(c, msg)
	default:
		response.Internal(c, "internal error")
	}
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

func coupleOf(c *gin.Context) string { return auth.CoupleToken(c) }

// owns reports whether a record stamped with token belongs to the caller.
func owns(c *gin.Context, token string) bool {
	return token == coupleOf(c)
}
