package dates

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/daeli/backend/internal/calendar"
	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/planner"
	"github.com/daeli/backend/pkg/response"
)

// ImportResult is the body returned by POST /events/import.
type ImportResult struct {
	Imported []models.Event `json:"imported"`
	Skipped  int            `json:"skipped"`
}

// ListEvents handles GET /events.
func (h *Handler) ListEvents(c *gin.Context) {
	views, err := h.svc.ListEvents(c.Request.Context(), coupleOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, views)
}

// CreateEvent handles POST /events, the administrative path.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req planner.EventInput
	if !bindJSON(c, &req) {
		return
	}
	req.CoupleToken = coupleOf(c)
	ev, err := h.svc.CreateEvent(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, ev)
}

// ImportEvents handles POST /events/import with a text/calendar body.
func (h *Handler) ImportEvents(c *gin.Context) {
	inputs, skipped, err := calendar.Parse(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "invalid calendar: "+err.Error())
		return
	}
	ctx := c.Request.Context()
	out := ImportResult{Imported: make([]models.Event, 0, len(inputs)), Skipped: skipped}
	for _, in := range inputs {
		in.CoupleToken = coupleOf(c)
		ev, err := h.svc.CreateEvent(ctx, in)
		if err != nil {
			switch planner.KindOf(err) {
			case planner.KindValidation, planner.KindConflict:
				h.logger.Debug("import: event rejected", zap.String("uid", in.UID), zap.Error(err))
				out.Skipped++
				continue
			}
			h.respondError(c, err)
			return
		}
		out.Imported = append(out.Imported, *ev)
	}
	response.Created(c, out)
}

// GetEvent handles GET /events/:id.
func (h *Handler) GetEvent(c *gin.Context) {
	ev, ok := h.event(c)
	if !ok {
		return
	}
	response.OK(c, ev)
}

// UpdateEvent handles PATCH /events/:id.
func (h *Handler) UpdateEvent(c *gin.Context) {
	if !h.ownsEvent(c) {
		return
	}
	var patch planner.EventPatch
	if !bindJSON(c, &patch) {
		return
	}
	ev, err := h.svc.UpdateEvent(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, ev)
}

// DeleteEvent handles DELETE /events/:id.
func (h *Handler) DeleteEvent(c *gin.Context) {
	if !h.ownsEvent(c) {
		return
	}
	if err := h.svc.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) ownsEvent(c *gin.Context) bool {
	_, ok := h.event(c)
	return ok
}

func (h *Handler) event(c *gin.Context) (*models.Event, bool) {
	id := c.Param("id")
	ev, err := h.svc.GetEvent(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if !owns(c, ev.CoupleToken) {
		response.NotFound(c, "event "+id+" not found")
		return nil, false
	}
	return ev, true
}
