package dates

import (
	"github.com/gin-gonic/gin"

	"github.com/daeli/backend/internal/auth"
	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/planner"
	"github.com/daeli/backend/pkg/response"
)

// VoteRequest is the body for POST /suggestions/:id/votes. The voter is the
// authenticated partner.
type VoteRequest struct {
	Vote models.Vote `json:"vote" binding:"required,oneof=up down"`
}

// ListSuggestions handles GET /suggestions?status=pending|accepted|cancelled.
func (h *Handler) ListSuggestions(c *gin.Context) {
	status := models.SuggestionStatus(c.Query("status"))
	switch status {
	case "", models.StatusPending, models.StatusAccepted, models.StatusCancelled:
	default:
		response.BadRequest(c, "invalid status filter")
		return
	}
	sugs, err := h.svc.ListSuggestions(c.Request.Context(), coupleOf(c), status)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]models.SuggestionPublic, 0, len(sugs))
	for i := range sugs {
		out = append(out, sugs[i].ToPublic())
	}
	response.OK(c, out)
}

// CreateSuggestion handles POST /suggestions.
func (h *Handler) CreateSuggestion(c *gin.Context) {
	var req planner.SuggestionInput
	if !bindJSON(c, &req) {
		return
	}
	req.CoupleToken = coupleOf(c)
	sug, err := h.svc.CreateSuggestion(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, sug.ToPublic())
}

// GetSuggestion handles GET /suggestions/:id.
func (h *Handler) GetSuggestion(c *gin.Context) {
	sug, ok := h.suggestion(c)
	if !ok {
		return
	}
	response.OK(c, sug.ToPublic())
}

// UpdateSuggestion handles PATCH /suggestions/:id.
func (h *Handler) UpdateSuggestion(c *gin.Context) {
	if _, ok := h.suggestion(c); !ok {
		return
	}
	var patch planner.SuggestionPatch
	if !bindJSON(c, &patch) {
		return
	}
	sug, err := h.svc.UpdateSuggestion(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, sug.ToPublic())
}

// DeleteSuggestion handles DELETE /suggestions/:id.
func (h *Handler) DeleteSuggestion(c *gin.Context) {
	if _, ok := h.suggestion(c); !ok {
		return
	}
	if err := h.svc.DeleteSuggestion(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	response.NoContent(c)
}

// CastVote handles POST /suggestions/:id/votes.
func (h *Handler) CastVote(c *gin.Context) {
	if _, ok := h.suggestion(c); !ok {
		return
	}
	var req VoteRequest
	if !bindJSON(c, &req) {
		return
	}
	sug, err := h.svc.CastVote(c.Request.Context(), c.Param("id"), auth.PartnerID(c), req.Vote)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, sug.ToPublic())
}

// Accept handles POST /suggestions/:id/accept. A repeated accept answers
// 200 with the existing event; the first one answers 201.
func (h *Handler) Accept(c *gin.Context) {
	if _, ok := h.suggestion(c); !ok {
		return
	}
	res, err := h.svc.Accept(c.Request.Context(), c.Param("id"), auth.PartnerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if res.Created {
		response.Created(c, res)
		return
	}
	response.OK(c, res)
}

// Cancel handles POST /suggestions/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	if _, ok := h.suggestion(c); !ok {
		return
	}
	sug, err := h.svc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, sug.ToPublic())
}

// Display handles GET /suggestions/:id/display.
func (h *Handler) Display(c *gin.Context) {
	if _, ok := h.suggestion(c); !ok {
		return
	}
	view, err := h.svc.ResolveDisplay(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, view)
}

func (h *Handler) suggestion(c *gin.Context) (*models.Suggestion, bool) {
	id := c.Param("id")
	sug, err := h.svc.GetSuggestion(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if !owns(c, sug.CoupleToken) {
		response.NotFound(c, "suggestion "+id+" not found")
		return nil, false
	}
	return sug, true
}
