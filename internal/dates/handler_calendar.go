package dates

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/daeli/backend/internal/calendar"
	"github.com/daeli/backend/pkg/response"
	"github.com/daeli/backend/pkg/storage"
)

// CalendarFeed handles GET /calendar.ics.
func (h *Handler) CalendarFeed(c *gin.Context) {
	views, err := h.svc.ListEvents(c.Request.Context(), coupleOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	body := calendar.Build(h.calendarName, views, time.Now().UTC())
	c.Header("Content-Disposition", `inline; filename="daeli.ics"`)
	c.Data(http.StatusOK, storage.CalendarContentType, body)
}

// CalendarLink handles GET /calendar/link: it publishes the feed and returns
// a presigned subscription URL.
func (h *Handler) CalendarLink(c *gin.Context) {
	if h.links == nil {
		response.ServiceUnavailable(c, "calendar publishing is not configured")
		return
	}
	url, err := h.links.Link(c.Request.Context(), coupleOf(c))
	if err != nil {
		h.logger.Error("calendar link failed", zap.Error(err))
		response.ServiceUnavailable(c, "could not publish calendar, try again")
		return
	}
	response.OK(c, gin.H{"url": url})
}
