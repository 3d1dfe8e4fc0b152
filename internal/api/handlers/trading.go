package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

const defaultSignalLimit = 50

// SignalReader loads recently emitted signals.
type SignalReader interface {
	Recent(ctx context.Context, limit int) ([]contracts.TradeSignal, error)
}

// TradingHandler serves position, balance, and signal endpoints.
type TradingHandler struct {
	strategies []contracts.Strategy
	broker     contracts.Broker
	signals    SignalReader
	logger     *logger.Logger
}

// NewTradingHandler creates a trading handler. signals may be nil
// when signal persistence is disabled.
func NewTradingHandler(strategies []contracts.Strategy, broker contracts.Broker, signals SignalReader, log *logger.Logger) *TradingHandler {
	return &TradingHandler{
		strategies: strategies,
		broker:     broker,
		signals:    signals,
		logger:     log,
	}
}

// PositionsResponse groups open positions by strategy.
type PositionsResponse struct {
	Strategies map[string][]contracts.Position `json:"strategies"`
	Total      int                             `json:"total"`
}

// GetPositions returns every strategy's open positions.
func (h *TradingHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	resp := PositionsResponse{Strategies: make(map[string][]contracts.Position)}
	for _, strat := range h.strategies {
		positions := strat.Positions()
		resp.Strategies[strat.Name()] = positions
		resp.Total += len(positions)
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetBalance returns the broker account balance.
func (h *TradingHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.broker.GetBalance(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Balance lookup failed")
		respondError(w, http.StatusBadGateway, "Failed to retrieve balance")
		return
	}
	respondJSON(w, http.StatusOK, balance)
}

// GetRecentSignals returns the newest persisted signals.
func (h *TradingHandler) GetRecentSignals(w http.ResponseWriter, r *http.Request) {
	if h.signals == nil {
		respondError(w, http.StatusServiceUnavailable, "Signal persistence is disabled")
		return
	}

	limit := defaultSignalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = n
	}

	signals, err := h.signals.Recent(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Signal lookup failed")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve signals")
		return
	}
	if signals == nil {
		signals = []contracts.TradeSignal{}
	}
	respondJSON(w, http.StatusOK, signals)
}
