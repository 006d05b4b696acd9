package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lujainibrahim/dyad-study/internal/config"
	"github.com/lujainibrahim/dyad-study/internal/models"
	"github.com/lujainibrahim/dyad-study/internal/service"
	"github.com/lujainibrahim/dyad-study/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeScheduler struct {
	registerErr error
	requests    []models.ScheduleRequest
	slots       []models.TimeSlot
	state       *models.ScheduleState
}

func (s *fakeScheduler) Register(_ context.Context, req models.ScheduleRequest) (models.ScheduledRegistration, bool, error) {
	s.requests = append(s.requests, req)
	if s.registerErr != nil {
		return models.ScheduledRegistration{}, false, s.registerErr
	}
	return models.ScheduledRegistration{
		ParticipantID: req.ParticipantID,
		Role:          req.Role,
		RequestedTime: req.RequestedTime.UTC(),
	}, len(s.requests) > 1, nil
}

func (s *fakeScheduler) TimeSlots(_ time.Time) []models.TimeSlot {
	return s.slots
}

func (s *fakeScheduler) Snapshot() *models.ScheduleState {
	return s.state.Clone()
}

type fakeSessions struct {
	stats models.CoordinatorStats
	pairs []models.PairSummary
}

func (s *fakeSessions) Stats() models.CoordinatorStats { return s.stats }
func (s *fakeSessions) Pairs() []models.PairSummary    { return s.pairs }

const testAdminPassword = "correct horse"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := models.HashPassword(testAdminPassword)
	require.NoError(t, err)

	return &config.Config{
		Env:                "test",
		StaticDir:          t.TempDir(),
		CORSAllowedOrigins: []string{"*"},
		MatchPolicy:        "typed",
		TurnTaking:         true,
		MinMessages:        7,
		MinMessagesMode:    config.ThresholdTotal,
		Timezone:           "America/New_York",
		AdminPasswordHash:  hash,
		JWTSecret:          "test-jwt-secret",
		JWTExpiration:      time.Hour,
	}
}

func doRequest(router http.Handler, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestRouter_HealthAndConfig(t *testing.T) {
	router := SetupRouter(testConfig(t), Dependencies{Sessions: &fakeSessions{}, Scheduler: &fakeScheduler{}})

	w := doRequest(router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = doRequest(router, http.MethodGet, "/config", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 7, body["minMessages"])
	assert.Equal(t, "total", body["minMessagesMode"])
	assert.Equal(t, "typed", body["matchPolicy"])
	assert.Equal(t, true, body["turnTaking"])

	w = doRequest(router, http.MethodGet, "/nowhere", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_TimeSlots(t *testing.T) {
	scheduler := &fakeScheduler{}
	router := SetupRouter(testConfig(t), Dependencies{Sessions: &fakeSessions{}, Scheduler: scheduler})

	w := doRequest(router, http.MethodGet, "/timeslots", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "America/New_York", body["timezone"])
	assert.Equal(t, []interface{}{}, body["slots"])

	scheduler.slots = []models.TimeSlot{{Time: time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC), Label: "3:00 PM", PendingA: 1}}
	w = doRequest(router, http.MethodGet, "/timeslots", nil, nil)
	slots := decode(t, w)["slots"].([]interface{})
	require.Len(t, slots, 1)
	assert.EqualValues(t, 1, slots[0].(map[string]interface{})["pendingA"])
}

func TestRouter_ScheduleRegister(t *testing.T) {
	scheduler := &fakeScheduler{}
	router := SetupRouter(testConfig(t), Dependencies{Sessions: &fakeSessions{}, Scheduler: scheduler})

	payload := map[string]string{
		"participantId": "p1",
		"role":          "A",
		"requestedTime": "2025-03-10T15:00:00-04:00",
	}

	w := doRequest(router, http.MethodPost, "/schedule", payload, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, false, body["updated"])
	registration := body["registration"].(map[string]interface{})
	assert.Equal(t, "p1", registration["participantId"])
	assert.Equal(t, "2025-03-10T19:00:00Z", registration["requestedTime"])

	w = doRequest(router, http.MethodPost, "/schedule", payload, nil)
	assert.Equal(t, true, decode(t, w)["updated"])
}

func TestRouter_ScheduleErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       interface{}
		err        error
		wantStatus int
	}{
		{"malformed body", "{", nil, http.StatusBadRequest},
		{"bad time", map[string]string{"participantId": "p1", "role": "A", "requestedTime": "soon"}, nil, http.StatusBadRequest},
		{"missing field", map[string]string{"role": "A"}, fmt.Errorf("%w: participantId", service.ErrMissingField), http.StatusBadRequest},
		{"invalid role", map[string]string{"participantId": "p1", "role": "Z"}, fmt.Errorf("%w: Z", service.ErrInvalidRole), http.StatusBadRequest},
		{"already scheduled", map[string]string{"participantId": "p1", "role": "A"}, service.ErrAlreadyScheduled, http.StatusConflict},
		{"store failure", map[string]string{"participantId": "p1", "role": "A"}, errors.New("redis unavailable"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := &fakeScheduler{registerErr: tt.err}
			router := SetupRouter(testConfig(t), Dependencies{Sessions: &fakeSessions{}, Scheduler: scheduler})

			w := doRequest(router, http.MethodPost, "/schedule", tt.body, nil)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestRouter_ScheduleRateLimit(t *testing.T) {
	router := SetupRouter(testConfig(t), Dependencies{
		Sessions:     &fakeSessions{},
		Scheduler:    &fakeScheduler{},
		ScheduleRate: ratelimit.NewRateLimiter(1, time.Minute),
	})
	payload := map[string]string{"participantId": "p1", "role": "A", "requestedTime": "2025-03-10T15:00:00Z"}

	w := doRequest(router, http.MethodPost, "/schedule", payload, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = doRequest(router, http.MethodPost, "/schedule", payload, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// 조회 엔드포인트는 제한하지 않는다
	w = doRequest(router, http.MethodGet, "/timeslots", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminFlow(t *testing.T) {
	sessions := &fakeSessions{
		stats: models.CoordinatorStats{Connected: 3, Waiting: map[string]int{"A": 1}, ActivePairs: 1, Completed: 4},
		pairs: []models.PairSummary{{PairID: "pair_1", Participants: []string{"a1", "b1"}, Counts: [2]int{2, 1}}},
	}
	scheduler := &fakeScheduler{state: &models.ScheduleState{
		Pending: []models.ScheduledRegistration{{ParticipantID: "a9", Role: models.RoleA}},
	}}
	router := SetupRouter(testConfig(t), Dependencies{Sessions: sessions, Scheduler: scheduler})

	w := doRequest(router, http.MethodPost, "/admin/login", map[string]string{"password": "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodPost, "/admin/login", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/admin/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodGet, "/admin/stats", nil, http.Header{"Authorization": {"Bearer not-a-token"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(router, http.MethodPost, "/admin/login", map[string]string{"password": testAdminPassword}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	token, ok := decode(t, w)["token"].(string)
	require.True(t, ok)
	auth := http.Header{"Authorization": {"Bearer " + token}}

	w = doRequest(router, http.MethodGet, "/admin/stats", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.EqualValues(t, 1, stats["activePairs"])
	assert.EqualValues(t, 4, stats["completed"])
	assert.Equal(t, map[string]interface{}{"A": float64(1)}, stats["waiting"])

	w = doRequest(router, http.MethodGet, "/admin/pairs", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	pairs := decode(t, w)["pairs"].([]interface{})
	require.Len(t, pairs, 1)
	assert.Equal(t, "pair_1", pairs[0].(map[string]interface{})["pairId"])

	w = doRequest(router, http.MethodGet, "/admin/schedule", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode(t, w)["pending"].([]interface{})
	assert.Len(t, pending, 1)
}

func TestRouter_AdminDisabledWithoutPasswordHash(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminPasswordHash = ""
	router := SetupRouter(cfg, Dependencies{Sessions: &fakeSessions{}, Scheduler: &fakeScheduler{}})

	w := doRequest(router, http.MethodPost, "/admin/login", map[string]string{"password": testAdminPassword}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := testConfig(t)
	cfg.CORSAllowedOrigins = []string{"https://study.example.com"}
	router := SetupRouter(cfg, Dependencies{Sessions: &fakeSessions{}, Scheduler: &fakeScheduler{}})

	w := doRequest(router, http.MethodOptions, "/schedule", nil, http.Header{"Origin": {"https://study.example.com"}})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://study.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = doRequest(router, http.MethodGet, "/health", nil, http.Header{"Origin": {"https://evil.example.com"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
