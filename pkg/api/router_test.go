package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/peerix/ixsync/pkg/importer"
	"github.com/peerix/ixsync/pkg/ixf"
	"github.com/peerix/ixsync/pkg/mailer"
	"github.com/peerix/ixsync/pkg/metrics"
	"github.com/peerix/ixsync/pkg/registry/models"
	"github.com/peerix/ixsync/pkg/registry/store"
	"github.com/peerix/ixsync/pkg/ticket"
)

const testFeed = `{
	"member_list": [
		{
			"asnum": 64500,
			"connection_list": [
				{
					"state": "active",
					"if_list": [{"if_speed": 10000}],
					"vlan_list": [{"vlan_id": 1, "ipv4": {"address": "195.69.146.250"}}]
				}
			]
		}
	]
}`

type apiEnv struct {
	store  *store.GORMStore
	router http.Handler
	ixlan  *models.IXLan
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(feed.Close)

	ix := &models.Exchange{Name: "Test-IX"}
	if err := st.CreateExchange(ctx, ix); err != nil {
		t.Fatalf("Failed to create exchange: %v", err)
	}
	ixlan := &models.IXLan{
		ExchangeID:      ix.ID,
		Name:            "main",
		MemberExportURL: feed.URL,
		Prefixes:        []models.IXLanPrefix{{CIDR: "195.69.144.0/22"}},
	}
	if err := st.CreateIXLan(ctx, ixlan); err != nil {
		t.Fatalf("Failed to create ixlan: %v", err)
	}
	net := &models.Network{ASN: 64500, Name: "AS64500 Network", AllowIXPUpdate: true, IPv4Support: true, IPv6Support: true}
	if err := st.CreateNetwork(ctx, net); err != nil {
		t.Fatalf("Failed to create network: %v", err)
	}

	m := metrics.New()
	imp := importer.New(st, ixf.NewClient(0), mailer.NewDebugSender(), ticket.NewMockClient(), m, importer.Config{})

	router := NewRouter(Deps{
		Store:      st,
		Importer:   imp,
		PostMortem: importer.NewPostMortem(st, 250),
		Metrics:    m,
	})

	return &apiEnv{store: st, router: router, ixlan: ixlan}
}

type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func doRequest(t *testing.T, router http.Handler, method, target string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestHealthEndpoints(t *testing.T) {
	e := newAPIEnv(t)

	rec, resp := doRequest(t, e.router, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("Liveness: expected 200 healthy, got %d %q", rec.Code, resp.Status)
	}

	rec, resp = doRequest(t, e.router, http.MethodGet, "/health/ready")
	if rec.Code != http.StatusOK || resp.Status != "healthy" {
		t.Errorf("Readiness: expected 200 healthy, got %d %q", rec.Code, resp.Status)
	}
}

func TestReadiness_WithoutStore(t *testing.T) {
	router := NewRouter(Deps{})

	rec, resp := doRequest(t, router, http.MethodGet, "/health/ready")
	if rec.Code != http.StatusServiceUnavailable || resp.Status != "unhealthy" {
		t.Errorf("Expected 503 unhealthy, got %d %q", rec.Code, resp.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newAPIEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("Expected Prometheus exposition output")
	}
}

func TestTriggerImport_Preview(t *testing.T) {
	e := newAPIEnv(t)

	rec, resp := doRequest(t, e.router, http.MethodPost,
		"/api/v1/ixlans/"+itoa(e.ixlan.ID)+"/import?preview=1")
	if rec.Code != http.StatusOK || resp.Status != "ok" {
		t.Fatalf("Expected 200 ok, got %d %q (%s)", rec.Code, resp.Status, resp.Error)
	}

	var result importer.Result
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !result.Success || result.NetCount != 1 {
		t.Errorf("Unexpected result: %+v", result)
	}

	// Preview must leave the registry untouched.
	records, err := e.store.ActiveNetIXLans(context.Background(), e.ixlan.ID, 0)
	if err != nil {
		t.Fatalf("ActiveNetIXLans failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Preview run created %d records", len(records))
	}
}

func TestTriggerImport_Commits(t *testing.T) {
	e := newAPIEnv(t)

	rec, resp := doRequest(t, e.router, http.MethodPost,
		"/api/v1/ixlans/"+itoa(e.ixlan.ID)+"/import")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rec.Code, resp.Error)
	}

	records, err := e.store.ActiveNetIXLans(context.Background(), e.ixlan.ID, 0)
	if err != nil {
		t.Fatalf("ActiveNetIXLans failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record after commit, got %d", len(records))
	}
}

func TestTriggerImport_Errors(t *testing.T) {
	e := newAPIEnv(t)

	rec, _ := doRequest(t, e.router, http.MethodPost, "/api/v1/ixlans/9999/import")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown ixlan, got %d", rec.Code)
	}

	rec, _ = doRequest(t, e.router, http.MethodPost, "/api/v1/ixlans/abc/import")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", rec.Code)
	}

	rec, _ = doRequest(t, e.router, http.MethodPost,
		"/api/v1/ixlans/"+itoa(e.ixlan.ID)+"/import?asn=notanumber")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed asn, got %d", rec.Code)
	}
}

func TestPostmortemEndpoint(t *testing.T) {
	e := newAPIEnv(t)

	// Commit one run so the archive has history.
	rec, _ := doRequest(t, e.router, http.MethodPost, "/api/v1/ixlans/"+itoa(e.ixlan.ID)+"/import")
	if rec.Code != http.StatusOK {
		t.Fatalf("Import failed with %d", rec.Code)
	}

	rec, resp := doRequest(t, e.router, http.MethodGet, "/api/v1/networks/64500/postmortem")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d (%s)", rec.Code, resp.Error)
	}
	var records []importer.PostMortemRecord
	if err := json.Unmarshal(resp.Data, &records); err != nil {
		t.Fatalf("Failed to decode records: %v", err)
	}
	if len(records) != 1 || records[0].Action != models.ActionAdd {
		t.Errorf("Unexpected records: %+v", records)
	}

	rec, _ = doRequest(t, e.router, http.MethodGet, "/api/v1/networks/64500/postmortem?limit=-1")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative limit, got %d", rec.Code)
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
