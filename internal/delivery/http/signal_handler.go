package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"confluence-backend/internal/domain"
)

// SignalTracker is what the signal endpoints need from the usecase layer.
type SignalTracker interface {
	Record(ctx context.Context, sig domain.Signal, symbol string, metadata map[string]string) (domain.SignalRecord, error)
	Resolve(ctx context.Context, id string, resultPrice float64, resultTime time.Time) (domain.SignalRecord, error)
	Get(ctx context.Context, id string) (domain.SignalRecord, error)
	List(ctx context.Context, filter domain.RecordFilter) ([]domain.SignalRecord, error)
	Metrics(ctx context.Context, filter domain.RecordFilter) (domain.PerformanceMetrics, error)
}

// SignalHandler exposes the signal performance log.
type SignalHandler struct {
	tracker  SignalTracker
	maxBytes int64
	logger   *logrus.Entry
}

func NewSignalHandler(tracker SignalTracker, maxBytes int64, logger *logrus.Logger) *SignalHandler {
	return &SignalHandler{
		tracker:  tracker,
		maxBytes: maxBytes,
		logger:   logger.WithField("component", "signals-api"),
	}
}

// RecordSignalRequest is the body of POST /signals.
type RecordSignalRequest struct {
	Symbol   string            `json:"symbol"`
	Signal   domain.Signal     `json:"signal"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ResolveSignalRequest is the body of POST /signals/{id}/resolve. A missing
// resultTime means now.
type ResolveSignalRequest struct {
	ResultPrice float64    `json:"resultPrice"`
	ResultTime  *time.Time `json:"resultTime,omitempty"`
}

// RegisterRoutes registers signal tracking routes
func (h *SignalHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/signals", h.Record).Methods(http.MethodPost)
	router.HandleFunc("/signals", h.List).Methods(http.MethodGet)
	// Registered before /signals/{id} so "metrics" is not taken as an id.
	router.HandleFunc("/signals/metrics", h.Metrics).Methods(http.MethodGet)
	router.HandleFunc("/signals/{id}", h.Get).Methods(http.MethodGet)
	router.HandleFunc("/signals/{id}/resolve", h.Resolve).Methods(http.MethodPost)
}

// Record handles POST /signals
func (h *SignalHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordSignalRequest
	if err := decodeBody(w, r, h.maxBytes, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.tracker.Record(r.Context(), req.Signal, req.Symbol, req.Metadata)
	if err != nil {
		h.logIfInternal(err, "record signal")
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, rec)
}

// Resolve handles POST /signals/{id}/resolve
func (h *SignalHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveSignalRequest
	if err := decodeBody(w, r, h.maxBytes, &req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	var at time.Time
	if req.ResultTime != nil {
		at = *req.ResultTime
	}

	rec, err := h.tracker.Resolve(r.Context(), mux.Vars(r)["id"], req.ResultPrice, at)
	if err != nil {
		h.logIfInternal(err, "resolve signal")
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, rec)
}

// Get handles GET /signals/{id}
func (h *SignalHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.tracker.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.logIfInternal(err, "get signal")
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, rec)
}

// List handles GET /signals?symbol=&timeframe=&strength=&from=&to=
func (h *SignalHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := h.tracker.List(r.Context(), filter)
	if err != nil {
		h.logIfInternal(err, "list signals")
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, recs)
}

// Metrics handles GET /signals/metrics with the same filters as List.
func (h *SignalHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.tracker.Metrics(r.Context(), filter)
	if err != nil {
		h.logIfInternal(err, "signal metrics")
		sendDomainError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, m)
}

func (h *SignalHandler) logIfInternal(err error, op string) {
	if statusForError(err) == http.StatusInternalServerError {
		h.logger.WithError(err).Error(op + " failed")
	}
}

// parseFilter reads the record filter from the query string. Times are RFC 3339.
func parseFilter(r *http.Request) (domain.RecordFilter, error) {
	q := r.URL.Query()
	f := domain.RecordFilter{
		Symbol:    strings.TrimSpace(q.Get("symbol")),
		Timeframe: strings.TrimSpace(q.Get("timeframe")),
	}
	if v := q.Get("strength"); v != "" {
		s, err := domain.ParseStrength(v)
		if err != nil {
			return f, err
		}
		f.Strength = s
	}
	for name, dst := range map[string]*time.Time{"from": &f.From, "to": &f.To} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid %s: %q is not RFC 3339", name, v)
		}
		*dst = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return f, fmt.Errorf("invalid range: to is before from")
	}
	return f, nil
}
