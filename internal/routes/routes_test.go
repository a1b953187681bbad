package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jaiguru/astro-remedy/internal/handlers"
	"github.com/jaiguru/astro-remedy/internal/models"
	"github.com/jaiguru/astro-remedy/internal/relay"
	"github.com/jaiguru/astro-remedy/internal/repositories"
	"github.com/jaiguru/astro-remedy/internal/response"
	"github.com/jaiguru/astro-remedy/internal/services"
	"github.com/jaiguru/astro-remedy/internal/timer"
	"github.com/jaiguru/astro-remedy/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "routes-test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := utils.RegisterValidators(v); err != nil {
			panic(err)
		}
	}
	os.Exit(m.Run())
}

type memConsultations struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.Consultation
}

func (m *memConsultations) Create(_ context.Context, c *models.Consultation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = *c
	return nil
}

func (m *memConsultations) GetByID(_ context.Context, id uuid.UUID) (*models.Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, repositories.ErrConsultationNotFound
	}
	return &c, nil
}

func (m *memConsultations) List(_ context.Context, f repositories.ConsultationFilter) ([]*models.Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Consultation
	for _, c := range m.byID {
		if f.ParticipantID != nil && !c.IsParticipant(*f.ParticipantID) {
			continue
		}
		c := c
		out = append(out, &c)
	}
	return out, nil
}

func (m *memConsultations) UpdateDetails(ctx context.Context, c *models.Consultation) error {
	return m.Create(ctx, c)
}

func (m *memConsultations) UpdateStatus(_ context.Context, c *models.Consultation, from models.ConsultationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID[c.ID].Status != from {
		return repositories.ErrStatusConflict
	}
	m.byID[c.ID] = *c
	return nil
}

func (m *memConsultations) ListOverdueScheduled(context.Context, time.Time, int) ([]*models.Consultation, error) {
	return nil, nil
}

// noSessions never has a stored timer
type noSessions struct{}

func (noSessions) Create(context.Context, *models.ConsultationSession) error { return nil }
func (noSessions) GetByConsultationID(context.Context, uuid.UUID) (*models.ConsultationSession, error) {
	return nil, repositories.ErrSessionNotFound
}
func (noSessions) SaveTimerState(context.Context, *models.ConsultationSession) error { return nil }
func (noSessions) MarkActive(context.Context, uuid.UUID) error                       { return nil }
func (noSessions) RecordJoined(context.Context, uuid.UUID, string) error             { return nil }
func (noSessions) RecordLeft(context.Context, uuid.UUID, string) error               { return nil }
func (noSessions) EndSession(context.Context, uuid.UUID, int, string) error          { return nil }

type testServer struct {
	router        *gin.Engine
	consultations *memConsultations
	c             models.Consultation
	client        uuid.UUID
	astrologer    uuid.UUID
}

func newTestServer(t *testing.T, typ models.ConsultationType, status models.ConsultationStatus) *testServer {
	t.Helper()

	ts := &testServer{
		consultations: &memConsultations{byID: make(map[uuid.UUID]models.Consultation)},
		client:        uuid.New(),
		astrologer:    uuid.New(),
	}
	ts.c = models.Consultation{
		ID:              uuid.New(),
		ClientID:        ts.client,
		AstrologerID:    ts.astrologer,
		Type:            typ,
		Status:          status,
		ScheduledAt:     time.Now().Add(time.Hour),
		DurationMinutes: 30,
	}
	require.NoError(t, ts.consultations.Create(context.Background(), &ts.c))

	consultationSvc := services.NewConsultationService(ts.consultations, nil)
	sessionSvc := services.NewSessionService(consultationSvc, noSessions{}, relay.NewLocalRelay(), timer.NewManualClock(time.Now()), services.SessionOptions{})
	t.Cleanup(func() { sessionSvc.Shutdown(context.Background()) })
	chatSvc := services.NewChatService(consultationSvc, nil, relay.NewLocalRelay())
	composer := services.NewSurfaceComposer(services.VideoConfig{Domain: "meet.jit.si", RoomPrefix: "jaiguru"})

	ts.router = gin.New()
	RegisterProtectedEndpoints(ts.router,
		handlers.NewConsultationHandler(consultationSvc, sessionSvc),
		handlers.NewSessionHandler(consultationSvc, sessionSvc, composer),
		handlers.NewMessageHandler(chatSvc),
		testSecret,
	)
	return ts
}

func token(t *testing.T, id uuid.UUID, role models.UserRole) string {
	t.Helper()
	tok, _, err := utils.GenerateAccessToken(id, "user-"+string(role), string(role), testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, tok string, body interface{}) (int, response.Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func TestAuthenticationRequired(t *testing.T) {
	ts := newTestServer(t, models.ConsultationTypeVideo, models.ConsultationStatusScheduled)
	path := "/api/consultations/" + ts.c.ID.String()

	code, resp := ts.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)

	code, _ = ts.do(t, http.MethodGet, path, "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestGetConsultationAccess(t *testing.T) {
	ts := newTestServer(t, models.ConsultationTypeVideo, models.ConsultationStatusScheduled)
	path := "/api/consultations/" + ts.c.ID.String()

	code, resp := ts.do(t, http.MethodGet, path, token(t, ts.client, models.UserRoleClient), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	code, _ = ts.do(t, http.MethodGet, path, token(t, uuid.New(), models.UserRoleAdmin), nil)
	assert.Equal(t, http.StatusOK, code)

	code, resp = ts.do(t, http.MethodGet, path, token(t, uuid.New(), models.UserRoleClient), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", resp.Error.Code)

	code, _ = ts.do(t, http.MethodGet, "/api/consultations/"+uuid.NewString(), token(t, ts.client, models.UserRoleClient), nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(t, http.MethodGet, "/api/consultations/not-an-id", token(t, ts.client, models.UserRoleClient), nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t, models.ConsultationTypeVideo, models.ConsultationStatusScheduled)
	path := "/api/admin/consultations/" + ts.c.ID.String() + "/cancel"

	code, _ := ts.do(t, http.MethodPost, path, token(t, ts.astrologer, models.UserRoleAstrologer), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := ts.do(t, http.MethodPost, path, token(t, uuid.New(), models.UserRoleAdmin), nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	// Cancelled is terminal
	code, resp = ts.do(t, http.MethodPost, path, token(t, uuid.New(), models.UserRoleAdmin), nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
}

func TestUpdateStatusValidation(t *testing.T) {
	ts := newTestServer(t, models.ConsultationTypeVideo, models.ConsultationStatusScheduled)
	path := "/api/consultations/" + ts.c.ID.String() + "/status"
	admin := token(t, uuid.New(), models.UserRoleAdmin)

	code, resp := ts.do(t, http.MethodPatch, path, admin, map[string]string{"status": "postponed"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)

	// Scheduled an hour from now is outside the start window
	code, _ = ts.do(t, http.MethodPatch, path, admin, map[string]string{"status": "ongoing"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = ts.do(t, http.MethodPatch, path, admin, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, code)

	code, resp = ts.do(t, http.MethodPatch, path, admin, map[string]string{"status": "no-show"})
	assert.Equal(t, http.StatusOK, code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "no-show", data["status"])
}

func TestSurfaceForLiveAudio(t *testing.T) {
	ts := newTestServer(t, models.ConsultationTypeAudio, models.ConsultationStatusOngoing)
	path := "/api/consultations/" + ts.c.ID.String() + "/surface"

	code, resp := ts.do(t, http.MethodGet, path, token(t, ts.client, models.UserRoleClient), nil)
	require.Equal(t, http.StatusOK, code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["is_active"])
	assert.NotNil(t, data["chat"])

	video, ok := data["video"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "jaiguru-"+ts.c.ID.String(), video["room_name"])
	assert.Equal(t, true, video["start_with_video_muted"])
}

func TestSessionControlWithoutTimer(t *testing.T) {
	ts := newTestServer(t, models.ConsultationTypeVideo, models.ConsultationStatusScheduled)
	base := "/api/consultations/" + ts.c.ID.String() + "/session"
	astrologer := token(t, ts.astrologer, models.UserRoleAstrologer)

	code, _ := ts.do(t, http.MethodPost, base+"/pause", astrologer, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, resp := ts.do(t, http.MethodPost, base+"/extend", astrologer, map[string]int{"minutes": 0})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)

	code, resp = ts.do(t, http.MethodGet, base, token(t, ts.client, models.UserRoleClient), nil)
	require.Equal(t, http.StatusOK, code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "waiting", data["status"])
	assert.Equal(t, float64(1800), data["remaining_seconds"])
}
