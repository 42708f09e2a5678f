package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/api/http/handlers"
	"github.com/spec-kit/complaint-desk/internal/auth"
	"github.com/spec-kit/complaint-desk/internal/config"
	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/events"
	"github.com/spec-kit/complaint-desk/internal/repository/memory"
	"github.com/spec-kit/complaint-desk/internal/service"
)

type testServer struct {
	app    *fiber.App
	tokens map[string]string
}

type response struct {
	status int
	etag   string
	body   map[string]any
}

func (r response) data() map[string]any {
	data, _ := r.body["data"].(map[string]any)
	return data
}

func (r response) errorCode() string {
	errBody, _ := r.body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func (r response) errorField() string {
	errBody, _ := r.body["error"].(map[string]any)
	details, _ := errBody["details"].(map[string]any)
	field, _ := details["field"].(string)
	return field
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	dept := "dept-1"
	now := time.Now().UTC().Add(-time.Hour)
	store.PutDepartment(domain.Department{ID: dept, OrganizationID: "org-1", Name: "Support", IsActive: true, CreatedAt: now})
	users := []domain.User{
		{ID: "admin", OrganizationID: "org-1", Role: domain.RoleAdmin},
		{ID: "user", OrganizationID: "org-1", Role: domain.RoleUser, DepartmentID: &dept},
		{ID: "other-admin", OrganizationID: "org-2", Role: domain.RoleAdmin},
	}

	tokenManager := auth.NewTokenManager("router-secret", "", time.Hour)
	tokens := make(map[string]string, len(users))
	for _, u := range users {
		u.Name, u.Email = u.ID, u.ID+"@example.com"
		u.Status = domain.UserStatusActive
		u.CreatedAt = now
		store.PutUser(u)
		token, _, err := tokenManager.GenerateToken(u.ID)
		require.NoError(t, err)
		tokens[u.ID] = token
	}

	logger := zap.NewNop()
	deps := service.TicketDependencies{Store: store, Dispatcher: events.NewInMemoryDispatcher(logger), Logger: logger}
	ticketService := service.NewTicketService(deps, config.TicketsConfig{NumberPrefix: "TCK", MaxAttachmentBytes: 1 << 20, CommentRetries: 3})
	validate := handlers.NewValidator()

	app := fiber.New()
	RegisterMiddlewares(app, logger, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:      handlers.NewHealthHandler("complaint-desk", "test", store, nil),
		Tickets:     handlers.NewTicketsHandler(ticketService, service.NewAssignmentService(deps), validate),
		Thread:      handlers.NewThreadHandler(ticketService, service.NewActivityService(store), validate),
		Analytics:   handlers.NewAnalyticsHandler(service.NewAnalyticsService(store, nil, 0, logger)),
		Departments: handlers.NewDepartmentsHandler(service.NewDepartmentService(store, logger), validate),
		Identity:    auth.NewIdentityMiddleware(service.NewIdentityService(tokenManager, store.Repositories().Users, logger)),
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path, as string, body any, headers map[string]string) response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if as != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.tokens[as])
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{status: resp.StatusCode, etag: resp.Header.Get(fiber.HeaderETag)}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.body), string(raw))
	}
	return out
}

func (s *testServer) createTicket(t *testing.T, as string) map[string]any {
	t.Helper()
	resp := s.do(t, fiber.MethodPost, "/api/v1/tickets", as, map[string]any{
		"title":       "Door lock broken",
		"description": "The front door lock is jammed",
		"priority":    "high",
	}, nil)
	require.Equal(t, fiber.StatusCreated, resp.status, resp.body)
	return resp.data()
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)

	live := s.do(t, fiber.MethodGet, "/health/live", "", nil, nil)
	require.Equal(t, fiber.StatusOK, live.status)

	ready := s.do(t, fiber.MethodGet, "/health/ready", "", nil, nil)
	require.Equal(t, fiber.StatusOK, ready.status)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, fiber.MethodGet, "/api/v1/tickets", "", nil, nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.status)
	require.Equal(t, "UNAUTHORIZED", resp.errorCode())

	resp = s.do(t, fiber.MethodGet, "/api/v1/tickets", "", nil, map[string]string{fiber.HeaderAuthorization: "Bearer nope"})
	require.Equal(t, fiber.StatusUnauthorized, resp.status)
}

func TestCreateAndFetchTicket(t *testing.T) {
	s := newTestServer(t)

	created := s.do(t, fiber.MethodPost, "/api/v1/tickets", "user", map[string]any{
		"title":       "Door lock broken",
		"description": "The front door lock is jammed",
	}, nil)
	require.Equal(t, fiber.StatusCreated, created.status)
	require.Equal(t, `"1"`, created.etag)
	ticket := created.data()
	require.Equal(t, "TCK-000001", ticket["ticket_number"])
	require.Equal(t, "open", ticket["status"])
	require.Equal(t, "medium", ticket["priority"])

	id := ticket["id"].(string)
	fetched := s.do(t, fiber.MethodGet, "/api/v1/tickets/"+id, "user", nil, nil)
	require.Equal(t, fiber.StatusOK, fetched.status)
	require.Equal(t, id, fetched.data()["id"])

	byNumber := s.do(t, fiber.MethodGet, "/api/v1/tickets/number/TCK-000001", "admin", nil, nil)
	require.Equal(t, fiber.StatusOK, byNumber.status)

	list := s.do(t, fiber.MethodGet, "/api/v1/tickets?status=open", "admin", nil, nil)
	require.Equal(t, fiber.StatusOK, list.status)
	require.Len(t, list.body["data"], 1)

	foreign := s.do(t, fiber.MethodGet, "/api/v1/tickets/"+id, "other-admin", nil, nil)
	require.Equal(t, fiber.StatusNotFound, foreign.status)
	require.Equal(t, "NOT_FOUND", foreign.errorCode())
}

func TestValidationErrorsNameTheField(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, fiber.MethodPost, "/api/v1/tickets", "user", map[string]any{"description": "no title"}, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.status)
	require.Equal(t, "VALIDATION_FAILED", resp.errorCode())
	require.Equal(t, "title", resp.errorField())

	resp = s.do(t, fiber.MethodPost, "/api/v1/tickets", "user", map[string]any{"title": "t", "description": "d", "priority": "asap"}, nil)
	require.Equal(t, "priority", resp.errorField())

	resp = s.do(t, fiber.MethodGet, "/api/v1/tickets?page=0", "user", nil, nil)
	require.Equal(t, fiber.StatusBadRequest, resp.status)
	require.Equal(t, "page", resp.errorField())
}

func TestUpdateHonoursIfMatch(t *testing.T) {
	s := newTestServer(t)
	id := s.createTicket(t, "user")["id"].(string)

	stale := s.do(t, fiber.MethodPatch, "/api/v1/tickets/"+id, "user", map[string]any{"title": "Lock still broken"}, map[string]string{fiber.HeaderIfMatch: `"7"`})
	require.Equal(t, fiber.StatusConflict, stale.status)
	require.Equal(t, "CONFLICT", stale.errorCode())

	fresh := s.do(t, fiber.MethodPatch, "/api/v1/tickets/"+id, "user", map[string]any{"title": "Lock still broken"}, map[string]string{fiber.HeaderIfMatch: `"1"`})
	require.Equal(t, fiber.StatusOK, fresh.status)
	require.Equal(t, `"2"`, fresh.etag)
	require.Equal(t, "Lock still broken", fresh.data()["title"])

	status := s.do(t, fiber.MethodPost, "/api/v1/tickets/"+id+"/status", "user", map[string]any{"status": "in_progress"}, nil)
	require.Equal(t, fiber.StatusForbidden, status.status)

	status = s.do(t, fiber.MethodPost, "/api/v1/tickets/"+id+"/status", "admin", map[string]any{"status": "in_progress", "version": 2}, nil)
	require.Equal(t, fiber.StatusOK, status.status)
	require.Equal(t, `"3"`, status.etag)

	lost := s.do(t, fiber.MethodPost, "/api/v1/tickets/"+id+"/status", "admin", map[string]any{"from": "open", "status": "closed"}, nil)
	require.Equal(t, fiber.StatusConflict, lost.status)
	require.Equal(t, "CONFLICT", lost.errorCode())

	activities := s.do(t, fiber.MethodGet, "/api/v1/tickets/"+id+"/activities", "user", nil, nil)
	require.Equal(t, fiber.StatusOK, activities.status)
	require.Len(t, activities.body["data"], 3)
}

func TestThreadEndpoints(t *testing.T) {
	s := newTestServer(t)
	id := s.createTicket(t, "user")["id"].(string)
	base := "/api/v1/tickets/" + id

	internal := s.do(t, fiber.MethodPost, base+"/comments", "user", map[string]any{"content": "secret", "is_internal": true}, nil)
	require.Equal(t, fiber.StatusForbidden, internal.status)

	comment := s.do(t, fiber.MethodPost, base+"/comments", "admin", map[string]any{"content": "Technician booked", "is_internal": false}, nil)
	require.Equal(t, fiber.StatusCreated, comment.status)

	comments := s.do(t, fiber.MethodGet, base+"/comments", "user", nil, nil)
	require.Len(t, comments.body["data"], 1)

	watch := s.do(t, fiber.MethodPost, base+"/watch", "admin", nil, nil)
	require.Equal(t, fiber.StatusNoContent, watch.status)
	watchers := s.do(t, fiber.MethodGet, base+"/watchers", "admin", nil, nil)
	require.Len(t, watchers.body["data"], 2)

	attachment := s.do(t, fiber.MethodPost, base+"/attachments", "user", map[string]any{
		"path": "s3://bucket/photo.jpg", "file_name": "photo.jpg", "size_bytes": 2048, "mime_type": "image/jpeg",
	}, nil)
	require.Equal(t, fiber.StatusCreated, attachment.status)
}

func TestRoleGuards(t *testing.T) {
	s := newTestServer(t)

	analytics := s.do(t, fiber.MethodGet, "/api/v1/analytics/overview", "user", nil, nil)
	require.Equal(t, fiber.StatusForbidden, analytics.status)

	analytics = s.do(t, fiber.MethodGet, "/api/v1/analytics/overview?range=7d", "admin", nil, nil)
	require.Equal(t, fiber.StatusOK, analytics.status)
	require.Equal(t, "7d", analytics.data()["range"])

	departments := s.do(t, fiber.MethodGet, "/api/v1/departments", "user", nil, nil)
	require.Equal(t, fiber.StatusOK, departments.status)
	require.Len(t, departments.body["data"], 1)

	create := s.do(t, fiber.MethodPost, "/api/v1/departments", "user", map[string]any{"name": "Facilities"}, nil)
	require.Equal(t, fiber.StatusForbidden, create.status)

	create = s.do(t, fiber.MethodPost, "/api/v1/departments", "admin", map[string]any{"name": "Facilities"}, nil)
	require.Equal(t, fiber.StatusCreated, create.status)
	require.Equal(t, "Facilities", create.data()["name"])

	busy := s.do(t, fiber.MethodDelete, "/api/v1/departments/dept-1", "admin", nil, nil)
	require.Equal(t, fiber.StatusConflict, busy.status)
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, fiber.MethodGet, "/nowhere", "", nil, nil)
	require.Equal(t, fiber.StatusNotFound, resp.status)
	require.Equal(t, "NOT_FOUND", resp.errorCode())
}
