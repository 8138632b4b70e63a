package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/MTES-MCT/envergo/internal/hedge"
	"github.com/MTES-MCT/envergo/internal/models"
	"github.com/MTES-MCT/envergo/internal/store"
	"github.com/google/uuid"
)

// Config holds configurable limits for the server.
type Config struct {
	MaxRequestBody    int64  // bytes
	RequestsPerMinute int    // per client address
	AdminToken        string // for admin endpoints
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRequestBody:    8 * 1024 * 1024, // 8MB
		RequestsPerMinute: 300,
	}
}

// Handler creates the HTTP handler with all routes and middleware.
func Handler(st store.DatasetStore, cfg *Config, logger *slog.Logger) http.Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	quota := newSaveQuota(cfg.RequestsPerMinute)
	h := &handlers{store: st, cfg: cfg, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", h.readyz)

	if cfg.AdminToken != "" {
		adminMux := http.NewServeMux()
		adminMux.HandleFunc("GET /admin/stats", h.stats)
		mux.Handle("/admin/", requireAdmin(cfg.AdminToken, adminMux))
	}

	mux.Handle("POST /haies/saisie/{$}", quota.limit(http.HandlerFunc(h.create)))
	mux.Handle("POST /haies/saisie/{id}/{$}", quota.limit(http.HandlerFunc(h.save)))
	mux.Handle("GET /haies/saisie/{id}/{$}", quota.limit(http.HandlerFunc(h.get)))

	return traceRequests(logger)(mux)
}

type handlers struct {
	store  store.DatasetStore
	cfg    *Config
	logger *slog.Logger
}

// --- Dataset Handlers ---

// create saves a new dataset under a fresh id.
func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, uuid.New().String())
}

// save updates the dataset or creates it when the id is unknown.
func (h *handlers) save(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", fmt.Sprintf("invalid dataset id %q", id))
		return
	}
	h.upsert(w, r, id)
}

func (h *handlers) upsert(w http.ResponseWriter, r *http.Request, id string) {
	var records []models.HedgeRecord
	if err := readJSON(r, h.cfg.MaxRequestBody, &records); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := checkRecords(records); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_hedges", err.Error())
		return
	}

	created, err := h.store.Upsert(r.Context(), id, records)
	if err != nil {
		h.logger.Error("save hedge data", "error", err, "input_id", id, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save hedges")
		return
	}

	h.logger.Info("hedge data saved",
		"input_id", id,
		"created", created,
		"hedges", len(records),
		"request_id", requestID(r),
	)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, hedge.Summarize(records).SaveResponse(id))
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("hedge data %q not found", id))
		return
	}
	if err != nil {
		h.logger.Error("get hedge data", "error", err, "input_id", id, "request_id", requestID(r))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load hedges")
		return
	}
	writeJSON(w, http.StatusOK, d.Hedges)
}

// checkRecords rejects records the widget could not restore.
func checkRecords(records []models.HedgeRecord) error {
	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("hedge %d: missing id", i)
		}
		if seen[rec.ID] {
			return fmt.Errorf("hedge %s: duplicate id", rec.ID)
		}
		seen[rec.ID] = true
		if _, err := models.ParseHedgeType(string(rec.Type)); err != nil {
			return fmt.Errorf("hedge %s: %w", rec.ID, err)
		}
		for j, p := range rec.LatLngs {
			if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
				return fmt.Errorf("hedge %s: point %d out of range (%g, %g)", rec.ID, j, p.Lat, p.Lng)
			}
		}
	}
	return nil
}

// --- Health Handlers ---

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready: storage unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// --- Admin Handlers ---

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error("count hedge data", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"datasets": n})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func readJSON(r *http.Request, maxSize int64, v interface{}) error {
	limited := io.LimitReader(r.Body, maxSize)
	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
