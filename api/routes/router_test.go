package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/materiel-backend/internal/access"
	"github.com/angelmondragon/materiel-backend/internal/materiel"
	"github.com/angelmondragon/materiel-backend/internal/materiellogs"
	"github.com/angelmondragon/materiel-backend/internal/materieltypes"
	pkgAuth "github.com/angelmondragon/materiel-backend/pkg/auth"
	"github.com/angelmondragon/materiel-backend/pkg/config"
	"github.com/angelmondragon/materiel-backend/pkg/db"
	"github.com/angelmondragon/materiel-backend/pkg/metrics"
	"github.com/angelmondragon/materiel-backend/pkg/migrate"
)

const (
	managerID  = int64(2)
	outsiderID = int64(3)
)

type testServer struct {
	handler http.Handler
	cfg     *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migrate.AutoMigrateModels(context.Background(), conn))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	cfg := &config.Config{
		App:         config.AppConfig{Env: "dev", ServiceName: "materiel-api"},
		JWT:         config.JWTConfig{Secret: "test-secret", Issuer: "materiel", ExpirationMinutes: 60},
		RateLimit:   config.RateLimitConfig{Requests: 1000, Window: time.Minute},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
	}

	client := db.NewFromGorm(conn)
	policy := access.NewStaticPolicy(managerID)
	reg := prometheus.NewRegistry()

	logRepo := materiellogs.NewRepository(conn)
	recorder, err := materiellogs.NewRecorder(logRepo)
	require.NoError(t, err)
	history, err := materiellogs.NewService(logRepo, recorder, policy)
	require.NoError(t, err)
	types, err := materieltypes.NewService(materieltypes.NewRepository(conn), client, policy, nil)
	require.NoError(t, err)
	svc, err := materiel.NewService(materiel.NewRepository(conn), recorder, client, policy, materiel.Options{
		AllowRetiredReactivation: true,
		Metrics:                  metrics.NewMaterielMetrics(reg),
	})
	require.NoError(t, err)

	handler := NewRouter(cfg, nil, client, nil, reg, metrics.NewHTTPMetrics(reg), svc, types, history)
	return &testServer{handler: handler, cfg: cfg}
}

func (s *testServer) do(t *testing.T, method, path, body string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		token, err := pkgAuth.MintAccessToken(s.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{UserID: userID})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data any `json:"data"`
	}{Data: dest}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/health/live", "", 0).Code)
	ready := srv.do(t, http.MethodGet, "/health/ready", "", 0)
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), `"redis":"skipped"`)
}

func TestAPIRequiresToken(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, http.MethodGet, "/api/v1/materiels", "", 0).Code)
}

func TestAPIEnforcesAccessPolicy(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, http.StatusForbidden, srv.do(t, http.MethodGet, "/api/v1/materiels", "", outsiderID).Code)
}

func TestCheckoutLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/materiels", `{"identifier":"PRJ-001","name":"Projector","status":"available"}`, managerID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created materiel.Item
	decodeData(t, rec, &created)

	base := "/api/v1/materiels/" + itoa(created.ID)

	rec = srv.do(t, http.MethodPost, base+"/checkout", `{"userid":42,"notes":"demo"}`, managerID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out materiel.Item
	decodeData(t, rec, &out)
	require.NotNil(t, out.CurrentUser)
	assert.Equal(t, int64(42), *out.CurrentUser)

	rec = srv.do(t, http.MethodPost, base+"/checkout", `{"userid":43}`, managerID)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = srv.do(t, http.MethodPost, base+"/checkin", "", managerID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodGet, base+"/history", "", managerID)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []materiellogs.LogItem
	decodeData(t, rec, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "checkin", string(history[0].Action))
	assert.Equal(t, "checkout", string(history[1].Action))

	rec = srv.do(t, http.MethodGet, "/api/v1/users/42/materiel-history?limit=1", "", managerID)
	require.Equal(t, http.StatusOK, rec.Code)
	var byUser []materiellogs.LogItem
	decodeData(t, rec, &byUser)
	require.Len(t, byUser, 1)
	assert.Equal(t, created.ID, byUser[0].MaterielID)

	rec = srv.do(t, http.MethodGet, "/api/v1/materiels/by-identifier/PRJ-001", "", managerID)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTypeInUseOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPost, "/api/v1/materiel-types", `{"name":"Audio"}`, managerID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var kind struct {
		ID int64 `json:"id"`
	}
	decodeData(t, rec, &kind)

	rec = srv.do(t, http.MethodPost, "/api/v1/materiels", `{"identifier":"MIC-1","name":"Microphone","typeid":`+itoa(kind.ID)+`}`, managerID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodDelete, "/api/v1/materiel-types/"+itoa(kind.ID), "", managerID)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "type_in_use")
}

func TestStatusesAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/api/v1/materiel-statuses", "", managerID)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "in_use")

	metricsRec := srv.do(t, http.MethodGet, "/metrics", "", 0)
	assert.Equal(t, http.StatusOK, metricsRec.Code)
	assert.Contains(t, metricsRec.Body.String(), "http_requests_total")
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
