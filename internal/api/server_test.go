package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"airline_scheduler/internal/catalog"
	"airline_scheduler/internal/contracts"
	"airline_scheduler/internal/economics"
	"airline_scheduler/internal/game"
	"airline_scheduler/internal/metrics"
	"airline_scheduler/internal/models"
	"airline_scheduler/internal/store"
)

func newTestServer(t *testing.T, opts Options) (*game.Engine, http.Handler) {
	t.Helper()
	e, h, _ := newTestServerWithStore(t, opts)
	return e, h
}

func newTestServerWithStore(t *testing.T, opts Options) (*game.Engine, http.Handler, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "airline.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	col, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	e, err := game.NewEngine(context.Background(), game.Options{
		Store: st,
		Airports: catalog.NewAirports([]models.Airport{
			{Ident: "JFK", Type: "large_airport", Latitude: 40.6413, Longitude: -73.7781, LandingFee: 3500, PassengerFee: 18},
			{Ident: "LHR", Type: "large_airport", Latitude: 51.47, Longitude: -0.4543, LandingFee: 3500, PassengerFee: 18},
			{Ident: "ORD", Type: "large_airport", Latitude: 41.9742, Longitude: -87.9073, LandingFee: 3500, PassengerFee: 18},
			{Ident: "MIA", Type: "large_airport", Latitude: 25.7959, Longitude: -80.2870, LandingFee: 3500, PassengerFee: 18},
			{Ident: "BOS", Type: "medium_airport", Latitude: 42.3656, Longitude: -71.0096, LandingFee: 2000, PassengerFee: 12},
		}),
		Aircraft: []models.Aircraft{
			{ID: "A320", Name: "Airbus A320", Seats: 180, TwoClass: 160, RangeKm: 6500, CruiseKmh: 830, FuelBurnKgH: 2500, MTOWKg: 78000},
		},
		Rates:            economics.DefaultRates,
		Generator:        contracts.GeneratorOptions{WorldSeed: "api", OffersPerHub: 3, LifetimeDays: 2, MinWeeks: 2, MaxWeeks: 3},
		Hubs:             []string{"JFK"},
		DestinationTier:  "all",
		TickInterval:     time.Second,
		OfflineAllowance: time.Minute,
		Metrics:          col,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { e.Close(context.Background()) })
	return e, New(e, opts), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndState(t *testing.T) {
	_, h := newTestServer(t, Options{})
	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodGet, "/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("state status = %d", rec.Code)
	}
	st := decode[game.State](t, rec)
	if st.Day != "Monday" || st.FleetSize != 1 || st.Offers != 3 {
		t.Fatalf("state = %+v", st)
	}
}

func TestTickAdvancesClock(t *testing.T) {
	e, h := newTestServer(t, Options{})
	before := e.Clock().Playtime()
	rec := do(t, h, http.MethodPost, "/tick?minutes=30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tick status = %d", rec.Code)
	}
	if got := decode[game.State](t, rec).Playtime; got != before+30 {
		t.Fatalf("playtime = %d, want %d", got, before+30)
	}
	if rec := do(t, h, http.MethodPost, "/tick?minutes=0", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid tick status = %d", rec.Code)
	}
}

func TestAirportsBasicFields(t *testing.T) {
	_, h := newTestServer(t, Options{})
	rec := do(t, h, http.MethodGet, "/airports?tier=large&fields=basic", "")
	list := decode[[]map[string]any](t, rec)
	if len(list) != 4 || list[0]["ident"] != "JFK" {
		t.Fatalf("airports = %+v", list)
	}
	if all := decode[[]models.Airport](t, do(t, h, http.MethodGet, "/airports?tier=medium", "")); len(all) != 5 {
		t.Fatalf("medium tier = %d airports, want 5", len(all))
	}
	if _, ok := list[0]["landing_fee"]; ok {
		t.Fatalf("basic view leaked fees")
	}
}

func TestAcceptOverHTTP(t *testing.T) {
	e, h := newTestServer(t, Options{})

	var contractID, reg string
	for _, c := range e.Offers() {
		rec := do(t, h, http.MethodGet, "/contracts/"+c.ID+"/options?available=true", "")
		opts := decode[[]models.ContractOption](t, rec)
		if len(opts) > 0 {
			contractID, reg = c.ID, opts[0].Registration
			break
		}
	}
	if contractID == "" {
		t.Fatalf("no available option among offers")
	}

	rec := do(t, h, http.MethodPost, "/contracts/"+contractID+"/accept", `{"registration":"`+reg+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("accept status = %d: %s", rec.Code, rec.Body.String())
	}
	s := decode[models.Schedule](t, rec)
	if s.Registration != reg || s.Contract.ID != contractID {
		t.Fatalf("schedule = %+v", s)
	}

	rec = do(t, h, http.MethodPost, "/contracts/"+contractID+"/accept", `{"registration":"`+reg+`"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second accept status = %d", rec.Code)
	}

	views := decode[[]game.ScheduleView](t, do(t, h, http.MethodGet, "/schedules/"+reg, ""))
	if len(views) != 1 || views[0].Halfway == "" {
		t.Fatalf("schedules = %+v", views)
	}
	lower := decode[[]game.ScheduleView](t, do(t, h, http.MethodGet, "/schedules/"+strings.ToLower(reg), ""))
	if len(lower) != 1 || lower[0].Registration != reg {
		t.Fatalf("lower-case lookup = %+v", lower)
	}
	if rec := do(t, h, http.MethodGet, "/schedules/NOPE", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown asset schedules status = %d", rec.Code)
	}

	hist := decode[[]store.HistoryEntry](t, do(t, h, http.MethodGet, "/contracts/"+contractID+"/history", ""))
	if len(hist) != 1 || hist[0].Event != store.EventAccepted {
		t.Fatalf("history = %+v", hist)
	}
}

func TestAcceptValidation(t *testing.T) {
	e, h := newTestServer(t, Options{})
	id := e.Offers()[0].ID
	if rec := do(t, h, http.MethodPost, "/contracts/"+id+"/accept", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty registration status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/contracts/"+id+"/accept", `{"registration":"ZZ9"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown asset status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/contracts/missing/options", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing contract status = %d", rec.Code)
	}
}

func TestFleetPurchaseAndSell(t *testing.T) {
	_, h := newTestServer(t, Options{})
	rec := do(t, h, http.MethodPost, "/fleet/purchase", `{"template_id":"A320","mode":"lease","hub":"ORD"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase status = %d: %s", rec.Code, rec.Body.String())
	}
	a := decode[models.Asset](t, rec)
	if a.Ownership != models.Leased || a.Hub != "ORD" {
		t.Fatalf("asset = %+v", a)
	}
	if rec := do(t, h, http.MethodPost, "/fleet/purchase", `{"template_id":"CONCORDE"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown template status = %d", rec.Code)
	}
	if got := decode[[]models.Asset](t, do(t, h, http.MethodGet, "/fleet", "")); len(got) != 2 {
		t.Fatalf("fleet = %d", len(got))
	}
	if rec := do(t, h, http.MethodDelete, "/fleet/"+a.Registration, ""); rec.Code != http.StatusOK {
		t.Fatalf("sell status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/fleet/"+a.Registration, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("second sell status = %d", rec.Code)
	}
}

func TestRoutePath(t *testing.T) {
	_, h := newTestServer(t, Options{})
	rec := do(t, h, http.MethodGet, "/routes/path?from=JFK&to=LHR&points=9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("path status = %d", rec.Code)
	}
	body := decode[struct {
		DistanceKm int   `json:"distance_km"`
		Points     []any `json:"points"`
	}](t, rec)
	if len(body.Points) != 9 || body.DistanceKm < 5500 || body.DistanceKm > 5600 {
		t.Fatalf("path = %d points, %d km", len(body.Points), body.DistanceKm)
	}
	if rec := do(t, h, http.MethodGet, "/routes/path?from=JFK&to=LHR&points=10", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad resolution status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/routes/path?from=JFK&to=XXX", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown airport status = %d", rec.Code)
	}
}

func TestLiveFlightsEmpty(t *testing.T) {
	_, h := newTestServer(t, Options{})
	rec := do(t, h, http.MethodGet, "/flights/live", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("live flights = %d %q", rec.Code, rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t, Options{})
	rec := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "contract_offers") {
		t.Fatalf("metrics = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t, Options{})
	rec := do(t, h, http.MethodOptions, "/contracts", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight = %d %v", rec.Code, rec.Header())
	}
}

func TestRateLimit(t *testing.T) {
	_, h := newTestServer(t, Options{RatePerSecond: 0.001, Burst: 2})
	for i := 0; i < 2; i++ {
		if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
}

func TestUnsavedChangesReportServerError(t *testing.T) {
	e, h, st := newTestServerWithStore(t, Options{})

	var contractID, reg string
	for _, c := range e.Offers() {
		opts, err := e.Options(c.ID)
		if err != nil {
			t.Fatalf("Options: %v", err)
		}
		for _, o := range opts {
			if o.Available {
				contractID, reg = c.ID, o.Registration
			}
		}
		if contractID != "" {
			break
		}
	}
	if contractID == "" {
		t.Fatalf("no available option among offers")
	}
	st.Close()

	rec := do(t, h, http.MethodPost, "/contracts/"+contractID+"/accept", `{"registration":"`+reg+`"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("accept status = %d, want 500", rec.Code)
	}
	body := decode[struct {
		Error  string          `json:"error"`
		Result models.Schedule `json:"result"`
	}](t, rec)
	if body.Error == "" || body.Result.Contract.ID != contractID {
		t.Fatalf("accept body = %+v", body)
	}

	rec = do(t, h, http.MethodPost, "/fleet/purchase", `{"template_id":"A320"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("purchase status = %d, want 500", rec.Code)
	}
	bought := decode[struct {
		Error  string       `json:"error"`
		Result models.Asset `json:"result"`
	}](t, rec)
	if !strings.HasPrefix(bought.Error, "not saved") || bought.Result.Registration == "" {
		t.Fatalf("purchase body = %+v", bought)
	}
}
