package dates

import (
	"github.com/gin-gonic/gin"

	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/planner"
	"github.com/daeli/backend/pkg/response"
)

// GenerateRequest is the optional body for POST /ideas/generate.
type GenerateRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=1,max=10"`
}

// ListIdeas handles GET /ideas.
func (h *Handler) ListIdeas(c *gin.Context) {
	ideas, err := h.svc.ListIdeas(c.Request.Context(), coupleOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, ideas)
}

// CreateIdea handles POST /ideas.
func (h *Handler) CreateIdea(c *gin.Context) {
	var req planner.IdeaInput
	if !bindJSON(c, &req) {
		return
	}
	req.CoupleToken = coupleOf(c)
	idea, err := h.svc.CreateIdea(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, idea)
}

// GenerateIdeas handles POST /ideas/generate.
func (h *Handler) GenerateIdeas(c *gin.Context) {
	var req GenerateRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	ideas, err := h.svc.GenerateIdeas(c.Request.Context(), coupleOf(c), req.Limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.Created(c, ideas)
}

// GetIdea handles GET /ideas/:id.
func (h *Handler) GetIdea(c *gin.Context) {
	idea, ok := h.idea(c)
	if !ok {
		return
	}
	response.OK(c, idea)
}

// UpdateIdea handles PATCH /ideas/:id.
func (h *Handler) UpdateIdea(c *gin.Context) {
	if _, ok := h.idea(c); !ok {
		return
	}
	var patch planner.IdeaPatch
	if !bindJSON(c, &patch) {
		return
	}
	idea, err := h.svc.UpdateIdea(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	response.OK(c, idea)
}

// DeleteIdea handles DELETE /ideas/:id.
func (h *Handler) DeleteIdea(c *gin.Context) {
	if _, ok := h.idea(c); !ok {
		return
	}
	if err := h.svc.DeleteIdea(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	response.NoContent(c)
}

// idea loads the :id idea and checks it belongs to the caller's couple.
func (h *Handler) idea(c *gin.Context) (*models.Idea, bool) {
	id := c.Param("id")
	idea, err := h.svc.GetIdea(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	if !owns(c, idea.CoupleToken) {
		response.NotFound(c, "idea "+id+" not found")
		return nil, false
	}
	return idea, true
}
