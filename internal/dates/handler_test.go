package dates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daeli/backend/internal/auth"
	"github.com/daeli/backend/internal/middleware"
	"github.com/daeli/backend/internal/models"
	"github.com/daeli/backend/internal/planner"
	"github.com/daeli/backend/internal/store"
)

func init() { gin.SetMode(gin.TestMode) }

type stubLinks struct{ err error }

func (s stubLinks) Link(_ context.Context, token string) (string, error) {
	return "https://bucket/" + token + ".ics", s.err
}

type api struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
}

func newAPI(t *testing.T, links CalendarLinks) *api {
	t.Helper()
	svc := planner.NewService(store.NewMemory(), nil)
	jwtSvc := auth.NewJWTService("secret", 1)
	r := gin.New()
	g := r.Group("/api", middleware.JWT(jwtSvc), middleware.RequireCouple())
	NewHandler(svc, links, "Our dates", nil).Register(g)
	return &api{t: t, router: r, jwt: jwtSvc}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

// do sends a request as partner of couple and decodes the envelope.
func (a *api) do(method, path, partner, couple string, body interface{}) (int, envelope) {
	a.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	token, err := a.jwt.Generate(partner, couple, partner+"@example.com")
	require.NoError(a.t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestPlannerFlowOverHTTP(t *testing.T) {
	a := newAPI(t, stubLinks{})

	code, env := a.do(http.MethodPost, "/api/ideas", "p1", "c1", gin.H{"title": "Picnic", "tags": []string{"outdoor"}})
	require.Equal(t, http.StatusCreated, code)
	idea := decode[models.Idea](t, env)
	assert.Equal(t, "c1", idea.CoupleToken)

	code, env = a.do(http.MethodPost, "/api/suggestions", "p1", "c1", gin.H{
		"ideaId": idea.ID, "startUtc": "2025-06-07T17:00:00Z", "endUtc": "2025-06-07T19:00:00Z",
	})
	require.Equal(t, http.StatusCreated, code)
	sug := decode[models.SuggestionPublic](t, env)
	assert.Equal(t, []string{"outdoor"}, sug.Tags)

	code, env = a.do(http.MethodPost, "/api/suggestions/"+sug.ID+"/votes", "p1", "c1", gin.H{"vote": "up"})
	require.Equal(t, http.StatusOK, code)
	code, env = a.do(http.MethodPost, "/api/suggestions/"+sug.ID+"/votes", "p2", "c1", gin.H{"vote": "up"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, decode[models.SuggestionPublic](t, env).UpCount)

	code, env = a.do(http.MethodPost, "/api/suggestions/"+sug.ID+"/accept", "p2", "c1", nil)
	require.Equal(t, http.StatusCreated, code)
	res := decode[planner.AcceptResult](t, env)
	assert.True(t, res.Created)
	assert.Equal(t, "Picnic", res.Display.Title)

	code, env = a.do(http.MethodPost, "/api/suggestions/"+sug.ID+"/accept", "p1", "c1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decode[planner.AcceptResult](t, env).Created)

	code, env = a.do(http.MethodGet, "/api/events", "p1", "c1", nil)
	require.Equal(t, http.StatusOK, code)
	views := decode[[]models.EventView](t, env)
	require.Len(t, views, 1)
	assert.Equal(t, "Picnic", views[0].Display.Title)

	code, env = a.do(http.MethodGet, "/api/suggestions/"+sug.ID+"/display", "p1", "c1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Picnic", decode[models.ResolvedView](t, env).Title)
}

func TestErrorMapping(t *testing.T) {
	a := newAPI(t, nil)

	code, env := a.do(http.MethodPost, "/api/suggestions", "p1", "c1", gin.H{
		"ideaId": "i", "startUtc": "2025-06-07T17:00:00Z", "endUtc": "2025-06-07T17:00:00Z",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "validation", env.Code)

	code, env = a.do(http.MethodGet, "/api/ideas/missing", "p1", "c1", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Code)

	code, env = a.do(http.MethodPost, "/api/suggestions", "p1", "c1", gin.H{
		"ideaId": "i", "startUtc": "2025-06-07T17:00:00Z", "endUtc": "2025-06-07T18:00:00Z",
	})
	require.Equal(t, http.StatusCreated, code)
	sug := decode[models.SuggestionPublic](t, env)
	code, _ = a.do(http.MethodPost, "/api/suggestions/"+sug.ID+"/cancel", "p1", "c1", nil)
	require.Equal(t, http.StatusOK, code)
	code, env = a.do(http.MethodPost, "/api/suggestions/"+sug.ID+"/accept", "p1", "c1", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", env.Code)

	code, _ = a.do(http.MethodPost, "/api/suggestions/"+sug.ID+"/votes", "p1", "c1", gin.H{"vote": "sideways"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(http.MethodGet, "/api/suggestions?status=weird", "p1", "c1", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = a.do(http.MethodGet, "/api/calendar/link", "p1", "c1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "store_failure", env.Code)
}

func TestCoupleIsolation(t *testing.T) {
	a := newAPI(t, nil)
	code, env := a.do(http.MethodPost, "/api/ideas", "p1", "c1", gin.H{"title": "Private"})
	require.Equal(t, http.StatusCreated, code)
	idea := decode[models.Idea](t, env)

	code, _ = a.do(http.MethodGet, "/api/ideas/"+idea.ID, "p3", "c2", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = a.do(http.MethodDelete, "/api/ideas/"+idea.ID, "p3", "c2", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env = a.do(http.MethodGet, "/api/ideas", "p3", "c2", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]models.Idea](t, env))

	code, _ = a.do(http.MethodPost, "/api/suggestions", "p3", "c2", gin.H{
		"ideaId": idea.ID, "startUtc": "2025-06-07T17:00:00Z", "endUtc": "2025-06-07T18:00:00Z",
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(http.MethodDelete, "/api/ideas/"+idea.ID, "p1", "c1", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestGenerateIdeas(t *testing.T) {
	a := newAPI(t, nil)
	code, env := a.do(http.MethodPost, "/api/ideas/generate", "p1", "c1", gin.H{"limit": 2})
	require.Equal(t, http.StatusCreated, code)
	ideas := decode[[]models.Idea](t, env)
	require.Len(t, ideas, 2)
	assert.Equal(t, models.IdeaSourceAI, ideas[0].Source)

	code, env = a.do(http.MethodPost, "/api/ideas/generate", "p1", "c1", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Len(t, decode[[]models.Idea](t, env), planner.DefaultGenerateBatch)
}

func TestCalendarEndpoints(t *testing.T) {
	a := newAPI(t, stubLinks{})
	code, _ := a.do(http.MethodPost, "/api/events", "p1", "c1", gin.H{
		"title": "Concert", "startUtc": "2025-07-01T18:00:00Z", "endUtc": "2025-07-01T21:00:00Z",
	})
	require.Equal(t, http.StatusCreated, code)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar.ics", nil)
	token, err := a.jwt.Generate("p1", "c1", "p1@example.com")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Body.String(), "SUMMARY:Concert")

	code, env := a.do(http.MethodGet, "/api/calendar/link", "p1", "c1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "https://bucket/c1.ics", decode[map[string]string](t, env)["url"])

	failing := newAPI(t, stubLinks{err: errors.New("s3 down")})
	code, _ = failing.do(http.MethodGet, "/api/calendar/link", "p1", "c1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestImportEvents(t *testing.T) {
	a := newAPI(t, nil)
	const doc = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:x@test\r\nSUMMARY:Concert\r\nDTSTART:20250701T180000Z\r\nDTEND:20250701T210000Z\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:y@test\r\nSUMMARY:Backwards\r\nDTSTART:20250701T210000Z\r\nDTEND:20250701T180000Z\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	token, err := a.jwt.Generate("p1", "c1", "p1@example.com")
	require.NoError(t, err)
	importDoc := func() ImportResult {
		req := httptest.NewRequest(http.MethodPost, "/api/events/import", strings.NewReader(doc))
		req.Header.Set("Content-Type", "text/calendar")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		return decode[ImportResult](t, env)
	}

	out := importDoc()
	require.Len(t, out.Imported, 1)
	assert.Equal(t, "x@test", out.Imported[0].UID)
	assert.Equal(t, "c1", out.Imported[0].CoupleToken)
	assert.Equal(t, 1, out.Skipped)

	// importing the same file again skips the known uid
	out = importDoc()
	assert.Empty(t, out.Imported)
	assert.Equal(t, 2, out.Skipped)

	req := httptest.NewRequest(http.MethodGet, "/api/calendar.ics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(w.Body.String(), "UID:x@test"))
}
