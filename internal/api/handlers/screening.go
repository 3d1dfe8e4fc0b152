package handlers

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/a772616239/AutoTrader-sub001/internal/screener"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// ScreeningHandler serves screener listing and execution endpoints.
type ScreeningHandler struct {
	manager *screener.Manager
	logger  *logger.Logger
}

// NewScreeningHandler creates a screening handler.
func NewScreeningHandler(manager *screener.Manager, log *logger.Logger) *ScreeningHandler {
	return &ScreeningHandler{
		manager: manager,
		logger:  log,
	}
}

// ListScreeners returns the available screeners with their run stats.
func (h *ScreeningHandler) ListScreeners(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"screeners": h.manager.AvailableScreeners(),
		"stats":     h.manager.AllStats(),
	})
}

// RunScreener executes one screener on demand and returns its
// results. A JSON body, when present, is applied as one-shot config
// overrides for the run.
func (h *ScreeningHandler) RunScreener(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if _, ok := h.manager.Screener(name); !ok {
		respondError(w, http.StatusNotFound, "Unknown screener")
		return
	}

	var overrides screener.Overrides
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
			respondError(w, http.StatusBadRequest, "Malformed overrides body")
			return
		}
	}

	results := h.manager.RunScreener(r.Context(), name, overrides)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"screener": name,
		"count":    len(results),
		"results":  results,
	})
}
