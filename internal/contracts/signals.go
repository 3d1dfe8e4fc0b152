package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Action is the direction of a trade signal
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// SignalType identifies the rule that produced a signal
type SignalType string

const (
	SignalMomentumEntry SignalType = "MOMENTUM_REVERSAL_ENTRY"
	SignalZScoreEntry   SignalType = "ZSCORE_ENTRY"
	SignalExit          SignalType = "EXIT"
)

// ExitReason describes why an exit signal fired
type ExitReason string

const (
	ExitTechnicalBreakdown ExitReason = "TECHNICAL_BREAKDOWN"
	ExitStrongSellSignal   ExitReason = "STRONG_SELL_SIGNAL"
	ExitDynamicStop        ExitReason = "DYNAMIC_STOP"
	ExitTrailingStop       ExitReason = "TRAILING_STOP"
	ExitTakeProfit         ExitReason = "TAKE_PROFIT"
	ExitPartialTakeProfit  ExitReason = "PARTIAL_TAKE_PROFIT"
	ExitQuickLoss          ExitReason = "QUICK_LOSS"
	ExitMaxHolding         ExitReason = "MAX_HOLDING"
	ExitRegimeChange       ExitReason = "REGIME_CHANGE"
	ExitMeanReversion      ExitReason = "MEAN_REVERSION"
	ExitHardStop           ExitReason = "HARD_STOP"
)

// TradeSignal is an immutable trade decision. A new decision is a new
// value; signals are never mutated after emission.
type TradeSignal struct {
	ID         string                 `json:"id"`
	Symbol     string                 `json:"symbol"`
	Action     Action                 `json:"action"`
	Price      float64                `json:"price"`
	Size       float64                `json:"size"`
	Confidence float64                `json:"confidence"`
	SignalType SignalType             `json:"signal_type"`
	StopLoss   float64                `json:"stop_loss,omitempty"`
	TakeProfit float64                `json:"take_profit,omitempty"`
	Reason     string                 `json:"reason"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewSignalID returns a fresh signal identifier.
func NewSignalID() string {
	return uuid.NewString()
}

// Notional returns the signal's implied notional value.
func (s *TradeSignal) Notional() float64 {
	return s.Size * s.Price
}

// IsExit reports whether the signal closes or reduces a position.
func (s *TradeSignal) IsExit() bool {
	return s.SignalType == SignalExit
}
