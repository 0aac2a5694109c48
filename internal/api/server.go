package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"airline_scheduler/internal/contracts"
	"airline_scheduler/internal/fleet"
	"airline_scheduler/internal/game"
	"airline_scheduler/internal/geo"
	"airline_scheduler/internal/models"
	"airline_scheduler/internal/schedule"
)

type Options struct {
	// Context bounds the clock goroutine started through /sim/start.
	Context       context.Context
	RatePerSecond float64
	Burst         int
}

type Server struct {
	engine *game.Engine
	ctx    context.Context
}

// New constructs the HTTP router wired to the game engine.
func New(engine *game.Engine, opts Options) http.Handler {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	s := &Server{engine: engine, ctx: opts.Context}
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Use(newIPLimiter(opts.RatePerSecond, opts.Burst).middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", engine.Metrics().Handler())

	r.Get("/airports", s.handleAirports)
	r.Get("/aircraft/templates", s.handleAircraftTemplates)
	r.Get("/state", s.handleState)
	r.Post("/tick", s.handleTick)
	r.Post("/sim/start", s.handleSimStart)
	r.Post("/sim/pause", s.handleSimPause)

	r.Get("/contracts", s.handleContracts)
	r.Get("/contracts/{id}/options", s.handleContractOptions)
	r.Post("/contracts/{id}/accept", s.handleAccept)
	r.Get("/contracts/{id}/history", s.handleHistory)
	r.Get("/history", s.handleHistory)

	r.Get("/fleet", s.handleFleet)
	r.Post("/fleet/purchase", s.handlePurchase)
	r.Delete("/fleet/{registration}", s.handleSell)

	r.Get("/schedules", s.handleSchedules)
	r.Get("/schedules/{registration}", s.handleSchedules)
	r.Get("/flights/live", s.handleLiveFlights)
	r.Get("/routes/path", s.handleRoutePath)

	return r
}

func (s *Server) handleAirports(w http.ResponseWriter, r *http.Request) {
	tier := r.URL.Query().Get("tier")
	fields := r.URL.Query().Get("fields")
	filtered := s.engine.Airports().Filter(tier)
	if strings.EqualFold(fields, "basic") {
		basic := make([]map[string]interface{}, 0, len(filtered))
		for _, a := range filtered {
			basic = append(basic, map[string]interface{}{
				"id": a.ID, "ident": a.Ident, "name": a.Name,
				"lat": a.Latitude, "lon": a.Longitude,
				"type": a.Type, "iata": a.IATA, "icao": a.ICAO,
			})
		}
		writeJSON(w, http.StatusOK, basic)
		return
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (s *Server) handleAircraftTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Templates())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	n := 1
	if v := r.URL.Query().Get("minutes"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 1440 {
			writeJSONError(w, http.StatusBadRequest, "minutes must be between 1 and 1440")
			return
		}
		n = parsed
	}
	for i := 0; i < n; i++ {
		s.engine.Tick()
	}
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handleSimStart(w http.ResponseWriter, r *http.Request) {
	s.engine.Resume(s.ctx)
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handleSimPause(w http.ResponseWriter, r *http.Request) {
	s.engine.Pause()
	writeJSON(w, http.StatusOK, s.engine.State())
}

func (s *Server) handleContracts(w http.ResponseWriter, r *http.Request) {
	offers := s.engine.Offers()
	if hub := r.URL.Query().Get("hub"); hub != "" {
		kept := offers[:0]
		for _, c := range offers {
			if strings.EqualFold(c.Hub(), hub) {
				kept = append(kept, c)
			}
		}
		offers = kept
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) handleContractOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.engine.Options(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("available") == "true" {
		kept := opts[:0]
		for _, o := range opts {
			if o.Available {
				kept = append(kept, o)
			}
		}
		opts = kept
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Registration string `json:"registration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Registration == "" {
		writeJSONError(w, http.StatusBadRequest, "registration is required")
		return
	}
	sched, err := s.engine.Accept(r.Context(), chi.URLParam(r, "id"), req.Registration)
	switch {
	case err != nil && sched.Contract.ID == "":
		writeError(w, err)
	case err != nil:
		writeUnsaved(w, sched, err)
	default:
		writeJSON(w, http.StatusCreated, sched)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.engine.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFleet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Fleet())
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TemplateID string `json:"template_id"`
		Mode       string `json:"mode"`
		Hub        string `json:"hub"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	mode := models.Owned
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "lease", "leased":
		mode = models.Leased
	}
	asset, err := s.engine.Purchase(r.Context(), req.TemplateID, mode, req.Hub)
	switch {
	case err != nil && asset.Registration == "":
		writeError(w, err)
	case err != nil:
		writeUnsaved(w, asset, err)
	default:
		writeJSON(w, http.StatusCreated, asset)
	}
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	asset, err := s.engine.SellAsset(r.Context(), chi.URLParam(r, "registration"))
	switch {
	case err != nil && asset.Registration == "":
		writeError(w, err)
	case err != nil:
		writeUnsaved(w, asset, err)
	default:
		writeJSON(w, http.StatusOK, asset)
	}
}

func (s *Server) handleSchedules(w http.ResponseWriter, r *http.Request) {
	if reg := chi.URLParam(r, "registration"); reg != "" {
		a, ok := s.engine.Asset(reg)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "unknown asset")
			return
		}
		writeJSON(w, http.StatusOK, s.engine.Schedules(a.Registration))
		return
	}
	writeJSON(w, http.StatusOK, s.engine.AllSchedules())
}

func (s *Server) handleLiveFlights(w http.ResponseWriter, r *http.Request) {
	flights := s.engine.LiveFlights()
	if flights == nil {
		flights = []schedule.Position{}
	}
	writeJSON(w, http.StatusOK, flights)
}

func (s *Server) handleRoutePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n := 0
	if v := q.Get("points"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "points must be an integer")
			return
		}
		n = parsed
	}
	pts, dist, err := s.engine.RoutePath(q.Get("from"), q.Get("to"), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"distance_km": dist,
		"points":      pts,
	})
}

// ===== helpers =====

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUnsaved reports a change that took effect in memory but could not be
// persisted.
func writeUnsaved(w http.ResponseWriter, result interface{}, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error":  "not saved: " + err.Error(),
		"result": result,
	})
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrNotFound),
		errors.Is(err, contracts.ErrUnknownAsset),
		errors.Is(err, fleet.ErrUnknownAsset),
		errors.Is(err, fleet.ErrUnknownTemplate),
		errors.Is(err, contracts.ErrUnknownAirport):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, contracts.ErrUnavailable):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, geo.ErrPathResolution):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
