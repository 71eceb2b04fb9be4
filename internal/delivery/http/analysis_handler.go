package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"confluence-backend/internal/domain"
)

// AnalysisService is what the analysis endpoints need from the usecase layer.
type AnalysisService interface {
	Analyze(ctx context.Context, in domain.AnalysisInput) (domain.AnalysisResult, error)
	Latest(ctx context.Context, symbol string) (domain.AnalysisResult, bool, error)
	All(ctx context.Context) ([]domain.AnalysisResult, error)
}

// AnalysisHandler serves on-demand and stored analyses.
type AnalysisHandler struct {
	service  AnalysisService
	maxBytes int64
	logger   *logrus.Entry
}

func NewAnalysisHandler(service AnalysisService, maxBytes int64, logger *logrus.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:  service,
		maxBytes: maxBytes,
		logger:   logger.WithField("component", "analysis-api"),
	}
}

// RegisterRoutes registers analysis API routes
func (h *AnalysisHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/analysis", h.Analyze).Methods(http.MethodPost)
	router.HandleFunc("/analysis", h.List).Methods(http.MethodGet)
	router.HandleFunc("/analysis/{symbol}", h.Get).Methods(http.MethodGet)
}

// Analyze handles POST /analysis. Query parameters maxLevels, maxZones and
// maxSignals truncate the response.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	limits, err := parseLimits(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	var in domain.AnalysisInput
	if err := decodeBody(w, r, h.maxBytes, &in); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.service.Analyze(r.Context(), in)
	if err != nil {
		if statusForError(err) == http.StatusInternalServerError {
			h.logger.WithError(err).WithField("symbol", in.Symbol).Error("analysis failed")
		}
		sendDomainError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, res.Truncate(limits[0], limits[1], limits[2]))
}

// Get handles GET /analysis/{symbol}
func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := domain.NormalizeSymbol(mux.Vars(r)["symbol"])
	res, ok, err := h.service.Latest(r.Context(), symbol)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("failed to load analysis")
		sendError(w, http.StatusInternalServerError, "Failed to load analysis")
		return
	}
	if !ok {
		sendError(w, http.StatusNotFound, "No analysis for "+symbol)
		return
	}
	sendJSON(w, http.StatusOK, res)
}

// List handles GET /analysis
func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.All(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list analyses")
		sendError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}
	if list == nil {
		list = make([]domain.AnalysisResult, 0)
	}
	sendJSON(w, http.StatusOK, list)
}

func parseLimits(r *http.Request) ([3]int, error) {
	var out [3]int
	q := r.URL.Query()
	for i, name := range []string{"maxLevels", "maxZones", "maxSignals"} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return out, &paramError{name: name, value: v}
		}
		out[i] = n
	}
	return out, nil
}

type paramError struct {
	name, value string
}

func (e *paramError) Error() string {
	return "invalid " + e.name + ": " + strconv.Quote(e.value)
}
