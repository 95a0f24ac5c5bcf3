package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/albapepper/execassist/docs"
	"github.com/albapepper/execassist/internal/api/handler"
	"github.com/albapepper/execassist/internal/config"
	"github.com/albapepper/execassist/internal/engine"
	"github.com/albapepper/execassist/internal/metrics"
	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

const testSecret = "test-secret"

type stubEngine struct{}

func (stubEngine) Start(context.Context) error { return nil }
func (stubEngine) Stop() error                 { return nil }
func (stubEngine) Status() engine.Status       { return engine.Status{IntervalMs: 900000} }
func (stubEngine) RunNow(context.Context) (engine.CycleReport, error) {
	return engine.CycleReport{}, nil
}
func (stubEngine) SetInterval(int) (engine.Status, error) { return engine.Status{}, nil }

type stubScheduler struct{}

func (stubScheduler) Start(context.Context) error { return nil }
func (stubScheduler) Stop() error                 { return nil }
func (stubScheduler) Status() notifications.SchedulerStatus {
	return notifications.SchedulerStatus{Enabled: true}
}
func (stubScheduler) RunUrgentScan(context.Context) notifications.ScanResult {
	return notifications.ScanResult{}
}
func (stubScheduler) RunDigestScan(context.Context) notifications.ScanResult {
	return notifications.ScanResult{}
}

func newTestRouter(t *testing.T, auth *Authenticator, cfg *config.Config) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	h := handler.New(handler.Deps{
		Engine:    stubEngine{},
		Scheduler: stubScheduler{},
		Version:   "test",
	})
	if cfg == nil {
		cfg = &config.Config{CORSAllowOrigins: []string{"*"}}
	}
	return NewRouter(h, auth, reg, cfg)
}

func token(t *testing.T, a *Authenticator, userID int64, role string) string {
	t.Helper()
	tok, err := a.IssueToken(userID, role, time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

func get(router http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	router := newTestRouter(t, NewAuthenticator(testSecret, 0), nil)

	rec := get(router, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	rec = get(router, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Execassist API")

	rec = get(router, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "execassist_engine_interval_seconds")

	rec = get(router, "/docs/doc.json", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/v1/admin/engine/interval")
}

func TestAdminRequiresAdminRole(t *testing.T) {
	auth := NewAuthenticator(testSecret, 0)
	router := newTestRouter(t, auth, nil)
	const path = "/api/v1/admin/engine/status"

	assert.Equal(t, http.StatusUnauthorized, get(router, path, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, path, "garbage").Code)
	assert.Equal(t, http.StatusForbidden, get(router, path, token(t, auth, 7, models.RoleUser)).Code)
	assert.Equal(t, http.StatusOK, get(router, path, token(t, auth, 7, models.RoleAdmin)).Code)

	other := NewAuthenticator("other-secret", 0)
	assert.Equal(t, http.StatusUnauthorized, get(router, path, token(t, other, 7, models.RoleAdmin)).Code)
}

func TestAdminBootstrapUser(t *testing.T) {
	auth := NewAuthenticator(testSecret, 42)
	router := newTestRouter(t, auth, nil)

	assert.Equal(t, http.StatusOK,
		get(router, "/api/v1/admin/scheduler/status", token(t, auth, 42, models.RoleUser)).Code)
	assert.Equal(t, http.StatusForbidden,
		get(router, "/api/v1/admin/scheduler/status", token(t, auth, 43, models.RoleUser)).Code)
}

func TestAdminDisabledWithoutSecret(t *testing.T) {
	router := newTestRouter(t, NewAuthenticator("", 0), nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(router, "/api/v1/admin/engine/status", "x").Code)
}

func TestAuthenticate_RejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(testSecret, 0)
	sign := func(method jwt.SigningMethod, claims Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return s
	}
	now := time.Now()
	valid := jwt.RegisteredClaims{Subject: "7", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}

	cases := map[string]string{
		"expired": sign(jwt.SigningMethodHS256, Claims{Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			Subject: "7", ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
		}}),
		"no expiry":   sign(jwt.SigningMethodHS256, Claims{Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "7"}}),
		"wrong alg":   sign(jwt.SigningMethodHS512, Claims{Role: models.RoleAdmin, RegisteredClaims: valid}),
		"bad subject": sign(jwt.SigningMethodHS256, Claims{Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{Subject: "abc", ExpiresAt: valid.ExpiresAt}}),
	}
	for name, tok := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		_, err := auth.Authenticate(req)
		assert.Error(t, err, name)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sign(jwt.SigningMethodHS256, Claims{Role: models.RoleAdmin, RegisteredClaims: valid}))
	p, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: 7, Role: models.RoleAdmin}, p)
}

func TestRequireRole_StoresPrincipal(t *testing.T) {
	auth := NewAuthenticator(testSecret, 0)
	var got Principal
	h := auth.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, auth, 9, models.RoleAdmin))
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, Principal{UserID: 9, Role: models.RoleAdmin}, got)
}

func TestRateLimit(t *testing.T) {
	cfg := &config.Config{
		CORSAllowOrigins:  []string{"*"},
		RateLimitEnabled:  true,
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	}
	router := newTestRouter(t, NewAuthenticator(testSecret, 0), cfg)

	assert.Equal(t, http.StatusOK, get(router, "/health", "").Code)
	rec := get(router, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
