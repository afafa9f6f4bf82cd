package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elgomatiae/muslim-space-sub000/internal/application"
	"github.com/elgomatiae/muslim-space-sub000/internal/domain"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/auth"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/logging"
	"github.com/elgomatiae/muslim-space-sub000/internal/infrastructure/memory"
)

const testSecret = "test-jwt-secret"

var testNow = time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)

// everyPrayerPassed reports the five prayers as already past at testNow.
type everyPrayerPassed struct{}

func (everyPrayerPassed) ScheduleForToday(_ context.Context, _ domain.Location, now time.Time) (domain.ObligationSchedule, error) {
	var schedule domain.ObligationSchedule
	for i, name := range domain.StandardObligations() {
		schedule = append(schedule, domain.Obligation{Name: name, At: now.Add(-time.Duration(10-i) * time.Hour)})
	}
	return schedule, nil
}

type testAPI struct {
	echo  *echo.Echo
	store *memory.Store
}

func newTestAPI(t *testing.T, mutate func(*RouterConfig)) *testAPI {
	t.Helper()

	logger := logging.NewNop()
	store := memory.NewStore()
	locker := application.NewLocalUserLocker()

	compute := application.NewComputeScoresUseCase(
		store.Goals(), store.Momentum(), store.Markers(), store.Scores(),
		everyPrayerPassed{}, application.DefaultScoringConfig(), logger,
	).WithTimeProvider(func() time.Time { return testNow }).WithLocker(locker)

	config := RouterConfig{
		ComputeScoresUseCase: compute,
		QueryScoresUseCase:   application.NewQueryScoresUseCase(store.Scores(), logger),
		ResetMomentumUseCase: application.NewResetMomentumUseCase(store.Momentum(), logger).WithLocker(locker),
		ManageGoalsUseCase: application.NewManageGoalsUseCase(store.Goals(), store.Markers(), application.DefaultScoringConfig(), logger).
			WithLocker(locker).
			WithTimeProvider(func() time.Time { return testNow }),
		JWTValidator: auth.NewJWTValidator(testSecret),
		Logger:       logger,
	}
	if mutate != nil {
		mutate(&config)
	}

	server := NewServer(DefaultServerConfig(), logger)
	RegisterRoutes(server.Echo(), config)
	return &testAPI{echo: server.Echo(), store: store}
}

func signToken(t *testing.T, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := auth.SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: "authenticated",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Status)
}

func TestReady_ReportsFailingCheck(t *testing.T) {
	api := newTestAPI(t, func(c *RouterConfig) {
		c.ReadinessChecks = []ReadinessCheck{
			{Name: "database", Check: func(context.Context) error { return nil }},
			{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
		}
	})

	rec := api.do(t, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestAuth_RejectsMissingAndExpiredTokens(t *testing.T) {
	api := newTestAPI(t, nil)
	user := uuid.NewString()

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"expired", signToken(t, user, time.Now().Add(-time.Hour))},
		{"garbage", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/api/v1/me/scores", tt.token, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestScores_ComputeThenQuery(t *testing.T) {
	api := newTestAPI(t, nil)
	user := uuid.NewString()
	token := signToken(t, user, time.Now().Add(time.Hour))

	rec := api.do(t, http.MethodGet, "/api/v1/me/scores", token, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/me/goals/worship", token,
		`{"components":[{"key":"dhikr","target":100,"completed":100}],"completed_obligations":["fajr","dhuhr","asr","maghrib","isha"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/me/scores", token,
		`{"latitude":21.42,"longitude":39.82,"method":4,"time_zone":"UTC"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	computed := decode[ComputeScoresResponse](t, rec)
	assert.Equal(t, user, computed.UserID)
	assert.Equal(t, string(domain.ComputeStatusComputed), computed.Status)
	assert.Empty(t, computed.Fallbacks)
	assert.True(t, computed.Persisted)
	assert.Equal(t, 5, computed.DueObligations)
	assert.Greater(t, computed.Final.Worship, 0)

	rec = api.do(t, http.MethodGet, "/api/v1/me/scores", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[LatestScoreResponse](t, rec)
	assert.Equal(t, computed.Overall, latest.Overall)
	// no redis leaderboard configured
	assert.Nil(t, latest.Rank)
	assert.NotContains(t, rec.Body.String(), `"rank"`)

	rec = api.do(t, http.MethodGet, "/api/v1/me/scores/history?limit=5", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ScoreHistoryResponse](t, rec).Scores, 1)

	rec = api.do(t, http.MethodGet, "/api/v1/leaderboard", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[LeaderboardResponse](t, rec)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, user, board.Entries[0].UserID)
}

type fixedRank int64

func (r fixedRank) GetUserRank(context.Context, string) (int64, error) { return int64(r), nil }

func TestScores_LatestIncludesRank(t *testing.T) {
	api := newTestAPI(t, func(c *RouterConfig) {
		c.QueryScoresUseCase = c.QueryScoresUseCase.WithRanks(fixedRank(2))
	})
	token := signToken(t, uuid.NewString(), time.Now().Add(time.Hour))

	rec := api.do(t, http.MethodPost, "/api/v1/me/scores", token, `{"time_zone":"UTC"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/me/scores", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	latest := decode[LatestScoreResponse](t, rec)
	require.NotNil(t, latest.Rank)
	assert.Equal(t, 3, *latest.Rank)
}

func TestScores_WithoutLocationFallsBack(t *testing.T) {
	api := newTestAPI(t, nil)
	token := signToken(t, uuid.NewString(), time.Now().Add(time.Hour))

	rec := api.do(t, http.MethodPost, "/api/v1/me/scores", token, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ComputeScoresResponse](t, rec)
	assert.Equal(t, string(domain.ComputeStatusFallbackUsed), resp.Status)
	assert.Contains(t, resp.Fallbacks, string(domain.FallbackScheduleUnavailable))
	assert.Equal(t, 5, resp.DueObligations)
}

func TestScores_BadInput(t *testing.T) {
	api := newTestAPI(t, nil)
	token := signToken(t, uuid.NewString(), time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"latitude out of range", http.MethodPost, "/api/v1/me/scores", `{"latitude":91,"longitude":0}`},
		{"malformed body", http.MethodPost, "/api/v1/me/scores", `{"latitude":`},
		{"non numeric limit", http.MethodGet, "/api/v1/me/scores/history?limit=all", ""},
		{"non numeric offset", http.MethodGet, "/api/v1/leaderboard?offset=x", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestScores_RateLimited(t *testing.T) {
	api := newTestAPI(t, func(c *RouterConfig) {
		c.ComputeRate = 0.001
		c.ComputeBurst = 1
	})
	token := signToken(t, uuid.NewString(), time.Now().Add(time.Hour))

	rec := api.do(t, http.MethodPost, "/api/v1/me/scores", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/me/scores", token, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// reads are not limited
	rec = api.do(t, http.MethodGet, "/api/v1/me/scores", token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMomentumReset(t *testing.T) {
	api := newTestAPI(t, nil)
	user := uuid.NewString()
	token := signToken(t, user, time.Now().Add(time.Hour))

	rec := api.do(t, http.MethodPost, "/api/v1/me/scores", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	id, err := domain.ParseUserID(user)
	require.NoError(t, err)
	_, err = api.store.Momentum().Get(context.Background(), id)
	require.NoError(t, err)

	rec = api.do(t, http.MethodPost, "/api/v1/me/momentum/reset", token, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = api.store.Momentum().Get(context.Background(), id)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGoals(t *testing.T) {
	api := newTestAPI(t, nil)
	token := signToken(t, uuid.NewString(), time.Now().Add(time.Hour))

	rec := api.do(t, http.MethodGet, "/api/v1/me/goals", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListGoalsResponse](t, rec)
	require.Len(t, list.Goals, 3)
	assert.Equal(t, "worship", list.Goals[0].Category)

	rec = api.do(t, http.MethodPut, "/api/v1/me/goals/knowledge", token,
		`{"components":[{"key":"lectures","target":3,"completed":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/me/goals/knowledge", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	record := decode[GoalRecordResponse](t, rec)
	var lectures GoalComponentDTO
	for _, comp := range record.Components {
		if comp.Key == "lectures" {
			lectures = comp
		}
	}
	assert.Equal(t, GoalComponentDTO{Key: "lectures", Target: 3, Completed: 1}, lectures)
}

func TestGoals_Rejected(t *testing.T) {
	api := newTestAPI(t, nil)
	token := signToken(t, uuid.NewString(), time.Now().Add(time.Hour))

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown category", "/api/v1/me/goals/fitness", `{"components":[]}`},
		{"unknown component", "/api/v1/me/goals/worship", `{"components":[{"key":"lectures","target":1}]}`},
		{"negative target", "/api/v1/me/goals/wellbeing", `{"components":[{"key":"water_glasses","target":-1}]}`},
		{"unknown obligation", "/api/v1/me/goals/worship", `{"completed_obligations":["witr"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPut, tt.path, token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrStorageRead, http.StatusServiceUnavailable},
		{domain.ErrStorageWrite, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, mapDomainError(tt.err).Code)
		})
	}
}
