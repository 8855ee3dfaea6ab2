package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/expiry-tracker/internal/cron"
	"github.com/angelmondragon/expiry-tracker/internal/inventorysync"
	"github.com/angelmondragon/expiry-tracker/internal/items"
	"github.com/angelmondragon/expiry-tracker/internal/notifications"
	"github.com/angelmondragon/expiry-tracker/pkg/config"
	"github.com/angelmondragon/expiry-tracker/pkg/db/models"
	"github.com/angelmondragon/expiry-tracker/pkg/logger"
)

const testToken = "ops-secret"

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubRedis struct {
	counts map[string]int64
}

func (s *stubRedis) Ping(context.Context) error { return nil }

func (s *stubRedis) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.counts == nil {
		s.counts = map[string]int64{}
	}
	s.counts[key]++
	return s.counts[key], nil
}

type stubScheduler struct {
	runs []string
}

func (s *stubScheduler) Jobs() []cron.JobInfo {
	return []cron.JobInfo{{Name: cron.ExpirySweepJobName, Spec: "0 8 * * *"}}
}

func (s *stubScheduler) RunNow(_ context.Context, name string) error {
	s.runs = append(s.runs, name)
	return nil
}

type stubItems struct {
	refreshed []uuid.UUID
}

func (s *stubItems) Create(_ context.Context, userID uuid.UUID, input items.ItemInput, _ bool) (*models.Item, error) {
	return &models.Item{ID: uuid.New(), UserID: userID, Name: input.Name}, nil
}

func (s *stubItems) Update(_ context.Context, userID, itemID uuid.UUID, input items.ItemInput) (*models.Item, error) {
	return &models.Item{ID: itemID, UserID: userID, Name: input.Name}, nil
}

func (s *stubItems) Delete(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (s *stubItems) RefreshStatus(_ context.Context, userID, itemID uuid.UUID, _ bool) (*models.Item, error) {
	s.refreshed = append(s.refreshed, itemID)
	return &models.Item{ID: itemID, UserID: userID}, nil
}

func (s *stubItems) SetDiscount(_ context.Context, userID, itemID uuid.UUID, _ decimal.Decimal) (*models.Item, error) {
	return &models.Item{ID: itemID, UserID: userID}, nil
}

type stubNotifications struct{}

func (stubNotifications) List(context.Context, notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotifications) MarkRead(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubNotifications) MarkAllRead(context.Context, uuid.UUID) (int64, error) { return 0, nil }

type stubInventory struct{}

func (stubInventory) AuthURL(context.Context, uuid.UUID, string) (string, error) {
	return "https://accounts.example/auth", nil
}

func (stubInventory) ConnectAccount(context.Context, uuid.UUID, string) error { return nil }

func (stubInventory) SyncInventory(context.Context, uuid.UUID) (inventorysync.SyncResult, error) {
	return inventorysync.SyncResult{}, nil
}

type routerFixture struct {
	handler   http.Handler
	scheduler *stubScheduler
	items     *stubItems
}

func newRouterFixture(t *testing.T, token string) routerFixture {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		Ops: config.OpsConfig{Token: token, RunLimit: 2, RunWindow: time.Minute},
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "expiry_router_test_total", Help: "test"}))

	scheduler := &stubScheduler{}
	itemsSvc := &stubItems{}
	handler := NewRouter(cfg, logg, stubPinger{}, &stubRedis{}, registry, Services{
		Scheduler:     scheduler,
		Items:         itemsSvc,
		Notifications: stubNotifications{},
		Inventory:     stubInventory{},
	})
	return routerFixture{handler: handler, scheduler: scheduler, items: itemsSvc}
}

func serve(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutesAreOpen(t *testing.T) {
	f := newRouterFixture(t, testToken)

	for _, path := range []string{"/health/live", "/health/ready"} {
		if resp := serve(f.handler, http.MethodGet, path, ""); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newRouterFixture(t, testToken)

	resp := serve(f.handler, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "expiry_router_test_total") {
		t.Fatalf("expected registered metric in output")
	}
}

func TestOpsRoutesRequireToken(t *testing.T) {
	f := newRouterFixture(t, testToken)

	if resp := serve(f.handler, http.MethodGet, "/api/v1/jobs", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
	if resp := serve(f.handler, http.MethodGet, "/api/v1/jobs", "wrong"); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token got %d", resp.Code)
	}
	if resp := serve(f.handler, http.MethodGet, "/api/v1/jobs", testToken); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token got %d", resp.Code)
	}
}

func TestJobRunIsRateLimited(t *testing.T) {
	f := newRouterFixture(t, testToken)
	path := "/api/v1/jobs/" + cron.ExpirySweepJobName + "/run"

	for i := 0; i < 2; i++ {
		if resp := serve(f.handler, http.MethodPost, path, testToken); resp.Code != http.StatusOK {
			t.Fatalf("run %d: expected 200 got %d", i, resp.Code)
		}
	}
	if resp := serve(f.handler, http.MethodPost, path, testToken); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
	if len(f.scheduler.runs) != 2 {
		t.Fatalf("expected 2 runs got %d", len(f.scheduler.runs))
	}
}

func TestItemRefreshRoute(t *testing.T) {
	f := newRouterFixture(t, testToken)
	itemID := uuid.New()

	resp := serve(f.handler, http.MethodPost, "/api/v1/users/"+uuid.NewString()+"/items/"+itemID.String()+"/refresh?force=true", testToken)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(f.items.refreshed) != 1 || f.items.refreshed[0] != itemID {
		t.Fatalf("unexpected refreshes %v", f.items.refreshed)
	}
}

func TestOpsRoutesDisabledWithoutToken(t *testing.T) {
	f := newRouterFixture(t, "")

	if resp := serve(f.handler, http.MethodGet, "/api/v1/jobs", "anything"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if resp := serve(f.handler, http.MethodGet, "/health/live", ""); resp.Code != http.StatusOK {
		t.Fatalf("expected health to stay mounted got %d", resp.Code)
	}
}
