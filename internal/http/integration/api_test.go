package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/fintechindex/internal/auth"
	"github.com/geocoder89/fintechindex/internal/config"
	"github.com/geocoder89/fintechindex/internal/db"
	apphttp "github.com/geocoder89/fintechindex/internal/http"
	"github.com/geocoder89/fintechindex/internal/http/middlewares"
	"github.com/geocoder89/fintechindex/internal/notifications"
	"github.com/geocoder89/fintechindex/internal/observability"
	"github.com/geocoder89/fintechindex/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		JWTSecret:          "test-secret-key",
		JWTTTL:             time.Hour,
		AdminEmail:         "admin@example.com",
		AdminPassword:      "admin-pass",
		AdminName:          "Test Admin",
		AdminContactEmail:  "ops@example.com",
		AdminContactPhone:  "+2348000000000",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimitPerMinute: 1000,
	}
}

// outbox collects every message the dispatcher hands to a sink.
type outbox struct {
	mu   sync.Mutex
	msgs []notifications.Message
}

func (o *outbox) sink() notifications.Sink {
	return notifications.SinkFunc(func(_ context.Context, msg notifications.Message) error {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.msgs = append(o.msgs, msg)
		return nil
	})
}

func (o *outbox) to(addr string) []notifications.Message {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]notifications.Message, 0)
	for _, m := range o.msgs {
		if m.To == addr {
			out = append(out, m)
		}
	}
	return out
}

type testApp struct {
	router     *gin.Engine
	dispatcher *notifications.Dispatcher
	outbox     *outbox
	countries  *memory.CountryMetricsRepo
	reg        *prometheus.Registry
}

// drain waits for background notifications.
func (a *testApp) drain(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.dispatcher.Close(ctx); err != nil {
		t.Fatalf("dispatcher did not drain: %v", err)
	}
}

func setupApp(t *testing.T, limiter middlewares.Limiter) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	users := memory.NewUsersRepo()
	if _, err := db.EnsureAdminUser(context.Background(), users, cfg); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	box := &outbox{}
	dispatcher := notifications.NewDispatcher(logger, prom, map[notifications.Channel]notifications.Sink{
		notifications.ChannelEmail: box.sink(),
		notifications.ChannelSMS:   box.sink(),
	}, notifications.DispatcherConfig{
		Admin: notifications.Recipients{Email: cfg.AdminContactEmail, Phone: cfg.AdminContactPhone},
	})

	countries := memory.NewCountryMetricsRepo()

	router := apphttp.NewRouter(apphttp.Deps{
		Log:       logger,
		Cfg:       cfg,
		Prom:      prom,
		Gatherer:  reg,
		Tokens:    auth.NewManager(cfg.JWTSecret, cfg.JWTTTL),
		Users:     users,
		Countries: countries,
		Startups:  memory.NewStartupsRepo(),
		Notify:    dispatcher,
		Limiter:   limiter,
		Ping:      users.Ping,
	})

	return &testApp{router: router, dispatcher: dispatcher, outbox: box, countries: countries, reg: reg}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()

	w := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d body=%s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login %s: no token in %s", email, w.Body.String())
	}
	return resp.Token
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error: %v body=%s", err, w.Body.String())
	}
	return resp.Error.Code
}

func countryRecord(id, name string, year int) map[string]any {
	return map[string]any{
		"id": id, "name": name, "year": year,
		"finalScore": 60, "literacyRate": 70, "digitalInfrastructure": 50, "investment": 40,
	}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "grace@example.com", "password": "secret1", "name": "Grace", "role": "editor",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status = %d body=%s", w.Code, w.Body.String())
	}

	var reg struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &reg)

	w = app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "grace@example.com", "password": "secret1"})
	if w.Code != http.StatusForbidden || errorCode(t, w) != "account_not_verified" {
		t.Fatalf("login before approval: got %d %s", w.Code, w.Body.String())
	}

	adminToken := app.login(t, "admin@example.com", "admin-pass")

	w = app.do(t, http.MethodPatch, "/api/auth/users/"+reg.User.ID+"/verify", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status = %d body=%s", w.Code, w.Body.String())
	}

	token := app.login(t, "grace@example.com", "secret1")

	w = app.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"isVerified":true`) {
		t.Fatalf("me: got %d %s", w.Code, w.Body.String())
	}

	// an editor is not an admin
	w = app.do(t, http.MethodGet, "/api/auth/users", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("editor listing users: status = %d, want 403", w.Code)
	}

	app.drain(t)

	if got := app.outbox.to("grace@example.com"); len(got) != 2 {
		t.Fatalf("registrant should get the pending and approved emails, got %+v", got)
	}
	if got := app.outbox.to("ops@example.com"); len(got) != 1 || got[0].Kind != notifications.KindUserRegistered {
		t.Fatalf("admin email = %+v", got)
	}
	if got := app.outbox.to("+2348000000000"); len(got) != 1 || got[0].Channel != notifications.ChannelSMS {
		t.Fatalf("admin sms = %+v", got)
	}
}

func TestBulkDuplicateInBatch(t *testing.T) {
	app := setupApp(t, nil)
	adminToken := app.login(t, "admin@example.com", "admin-pass")

	w := app.do(t, http.MethodPost, "/api/country-data/bulk", adminToken, map[string]any{
		"records": []any{
			countryRecord("NGA", "Nigeria", 2023),
			countryRecord("NGA", "Nigeria", 2023),
			countryRecord("KEN", "Kenya", 2023),
		},
	})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "duplicate_entries" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}

	if n, _ := app.countries.Count(context.Background()); n != 0 {
		t.Fatalf("nothing may be inserted, store has %d", n)
	}
}

func TestDeleteByYearAbsent(t *testing.T) {
	app := setupApp(t, nil)
	adminToken := app.login(t, "admin@example.com", "admin-pass")

	w := app.do(t, http.MethodPost, "/api/country-data", adminToken, countryRecord("GHA", "Ghana", 2024))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status = %d body=%s", w.Code, w.Body.String())
	}

	w = app.do(t, http.MethodDelete, "/api/country-data/delete-by-year/2023", adminToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	if n, _ := app.countries.Count(context.Background()); n != 1 {
		t.Fatalf("store changed: %d records", n)
	}
}

func TestRoleGuards(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodPost, "/api/country-data", "", countryRecord("GHA", "Ghana", 2024))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: status = %d, want 401", w.Code)
	}

	viewer := auth.NewManager("test-secret-key", time.Hour)
	token, _ := viewer.Issue("v1", "viewer@example.com", auth.RoleViewer)

	w = app.do(t, http.MethodPost, "/api/country-data", token, countryRecord("GHA", "Ghana", 2024))
	if w.Code != http.StatusForbidden || errorCode(t, w) != "forbidden" {
		t.Fatalf("viewer create: got %d %s", w.Code, w.Body.String())
	}

	editorToken, _ := viewer.Issue("e1", "editor@example.com", auth.RoleEditor)
	w = app.do(t, http.MethodPut, "/api/country-data/GHA/2024", editorToken, countryRecord("GHA", "Ghana", 2024))
	if w.Code != http.StatusForbidden {
		t.Fatalf("editor update: status = %d, want 403", w.Code)
	}

	w = app.do(t, http.MethodGet, "/api/country-data", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public read: status = %d", w.Code)
	}
}

func TestStartupSubmissionReviewFlow(t *testing.T) {
	app := setupApp(t, nil)
	adminToken := app.login(t, "admin@example.com", "admin-pass")

	w := app.do(t, http.MethodPost, "/api/startups", "", map[string]any{
		"name": "Paystack", "country": "Nigeria", "sector": "Payments", "foundedYear": 2015,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: status = %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		Startup struct {
			ID string `json:"id"`
		} `json:"startup"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)

	if w := app.do(t, http.MethodGet, "/api/startups", "", nil); w.Body.String() != "[]" {
		t.Fatalf("pending startup is public: %s", w.Body.String())
	}

	w = app.do(t, http.MethodPatch, "/api/startups/"+created.Startup.ID+"/verify", adminToken, map[string]string{"status": "approved"})
	if w.Code != http.StatusOK {
		t.Fatalf("verify: status = %d body=%s", w.Code, w.Body.String())
	}

	w = app.do(t, http.MethodGet, "/api/startups", "", nil)
	if !strings.Contains(w.Body.String(), created.Startup.ID) {
		t.Fatalf("approved startup missing from the public list: %s", w.Body.String())
	}

	app.drain(t)

	kinds := map[string]bool{}
	for _, m := range app.outbox.to("ops@example.com") {
		kinds[m.Kind] = true
	}
	if !kinds[notifications.KindStartupSubmitted] || !kinds[notifications.KindStartupVerified] {
		t.Fatalf("admin notifications = %v", kinds)
	}
}

func TestLoginRateLimited(t *testing.T) {
	app := setupApp(t, middlewares.NewRateLimiter(2, time.Minute))

	body := map[string]string{"email": "nobody@example.com", "password": "whatever"}

	for i := 0; i < 2; i++ {
		if w := app.do(t, http.MethodPost, "/api/auth/login", "", body); w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i+1, w.Code)
		}
	}

	w := app.do(t, http.MethodPost, "/api/auth/login", "", body)
	if w.Code != http.StatusTooManyRequests || errorCode(t, w) != "rate_limited" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app := setupApp(t, nil)

	if w := app.do(t, http.MethodGet, "/readyz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("readyz: status = %d", w.Code)
	}

	w := app.do(t, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "fintech_index_http_requests_total") {
		t.Fatalf("metrics missing request counter: %d", w.Code)
	}
}
