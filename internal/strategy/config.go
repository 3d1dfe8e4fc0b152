package strategy

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

// EntryVariant selects which momentum-reversal entry detector runs.
// The two variants evolved separately and carry different thresholds;
// which one is in effect is an explicit configuration choice.
type EntryVariant string

const (
	// VariantConfirmed is the fully elaborated detector: RSI/deviation
	// extremes with candle confirmation and the enhancement step.
	VariantConfirmed EntryVariant = "confirmed"

	// VariantSession is the simpler morning-momentum / afternoon-
	// reversal detector.
	VariantSession EntryVariant = "session"
)

// MomentumConfig parameterizes the momentum-reversal engine.
type MomentumConfig struct {
	Variant EntryVariant `json:"variant" validate:"oneof=confirmed session"`

	// Data gates
	MinDataPoints int     `json:"min_data_points" validate:"gte=2"`
	MinAvgVolume  float64 `json:"min_avg_volume" validate:"gte=0"`
	MinPrice      float64 `json:"min_price" validate:"gte=0"`

	// Extreme detection
	RSIOverbought          float64 `json:"rsi_overbought" validate:"gt=50,lte=100"`
	RSIOversold            float64 `json:"rsi_oversold" validate:"gte=0,lt=50"`
	DeviationThreshold     float64 `json:"deviation_threshold" validate:"gt=0"`
	VolumeContractionRatio float64 `json:"volume_contraction_ratio" validate:"gt=0,lte=1"`

	// Session variant thresholds
	MorningRSILow     float64 `json:"morning_rsi_low" validate:"gte=0"`
	MorningRSIHigh    float64 `json:"morning_rsi_high" validate:"gte=0"`
	MorningMinDev     float64 `json:"morning_min_deviation" validate:"gte=0"`
	AfternoonNearBand float64 `json:"afternoon_near_band" validate:"gt=0,lt=1"`

	// Stops and targets
	StopATRMultiple       float64 `json:"stop_atr_multiple" validate:"gt=0"`
	TakeProfitATRMultiple float64 `json:"take_profit_atr_multiple" validate:"gt=0"`
	FirstProfitTarget     float64 `json:"first_profit_target" validate:"gt=0"`
	SecondProfitTarget    float64 `json:"second_profit_target" validate:"gt=0"`
	PartialExitFraction   float64 `json:"partial_exit_fraction" validate:"gt=0,lt=1"`
	MinProfitPct          float64 `json:"min_profit_pct" validate:"gte=0"`
	TrailingActivation    float64 `json:"trailing_stop_activation" validate:"gt=0"`
	TrailingDistance      float64 `json:"trailing_stop_distance" validate:"gt=0,lt=1"`
	QuickLossCutoff       float64 `json:"quick_loss_cutoff" validate:"lt=0"`
	MaxHoldingMinutes     int     `json:"max_holding_minutes" validate:"gt=0"`

	// Cooldowns
	SignalCooldownMinutes     int `json:"signal_cooldown_minutes" validate:"gt=0"`
	SameSymbolCooldownMinutes int `json:"same_symbol_cooldown_minutes" validate:"gt=0"`
}

// DefaultMomentumConfig returns the standard momentum-reversal
// parameter set.
func DefaultMomentumConfig() MomentumConfig {
	return MomentumConfig{
		Variant: VariantConfirmed,

		MinDataPoints: 30,
		MinAvgVolume:  100000,
		MinPrice:      5.0,

		RSIOverbought:          72,
		RSIOversold:            28,
		DeviationThreshold:     0.025,
		VolumeContractionRatio: 0.7,

		MorningRSILow:     50,
		MorningRSIHigh:    67,
		MorningMinDev:     0.0034,
		AfternoonNearBand: 0.02,

		StopATRMultiple:       1.5,
		TakeProfitATRMultiple: 3.0,
		FirstProfitTarget:     0.03,
		SecondProfitTarget:    0.06,
		PartialExitFraction:   0.5,
		MinProfitPct:          0.01,
		TrailingActivation:    0.02,
		TrailingDistance:      0.015,
		QuickLossCutoff:       -0.03,
		MaxHoldingMinutes:     120,

		SignalCooldownMinutes:     5,
		SameSymbolCooldownMinutes: 15,
	}
}

// ZScoreConfig parameterizes the z-score mean-reversion engine.
type ZScoreConfig struct {
	Lookback       int     `json:"lookback" validate:"gte=5"`
	EntryThreshold float64 `json:"entry_threshold" validate:"gt=0"`
	ExitThreshold  float64 `json:"exit_threshold" validate:"gte=0"`
	MinAbsZ        float64 `json:"min_abs_z" validate:"gte=0"`
	MaxAbsZ        float64 `json:"max_abs_z" validate:"gt=0"`

	MinDataPoints   int     `json:"min_data_points" validate:"gte=2"`
	MinAvgVolume    float64 `json:"min_avg_volume" validate:"gte=0"`
	VolumeConfirm   float64 `json:"volume_confirm_ratio" validate:"gte=0"`
	TrendFilterBand float64 `json:"trend_filter_band" validate:"gte=0"`

	HardStopPct    float64 `json:"hard_stop_pct" validate:"gt=0"`
	TakeProfitPct  float64 `json:"take_profit_pct" validate:"gt=0"`
	MaxHoldingDays int     `json:"max_holding_days" validate:"gt=0"`

	CooldownHours int `json:"cooldown_hours" validate:"gt=0"`
}

// DefaultZScoreConfig returns the standard z-score parameter set.
func DefaultZScoreConfig() ZScoreConfig {
	return ZScoreConfig{
		Lookback:       20,
		EntryThreshold: 2.0,
		ExitThreshold:  0.5,
		MinAbsZ:        1.5,
		MaxAbsZ:        3.5,

		MinDataPoints:   25,
		MinAvgVolume:    100000,
		VolumeConfirm:   1.2,
		TrendFilterBand: 0.02,

		HardStopPct:    0.03,
		TakeProfitPct:  0.05,
		MaxHoldingDays: 5,

		CooldownHours: 6,
	}
}

// SizingConfig parameterizes risk-bounded position sizing.
type SizingConfig struct {
	RiskPerTrade        float64 `json:"risk_per_trade" validate:"gt=0,lte=0.1"`
	StopATRMultiple     float64 `json:"stop_atr_multiple" validate:"gt=0"`
	MaxPositionFraction float64 `json:"max_position_fraction" validate:"gt=0,lte=1"`
	PerTradeNotionalCap float64 `json:"per_trade_notional_cap" validate:"gt=0"`
	MaxPositionNotional float64 `json:"max_position_notional" validate:"gt=0"`
	MaxActivePositions  int     `json:"max_active_positions" validate:"gt=0"`
	MinCashBuffer       float64 `json:"min_cash_buffer" validate:"gte=0,lt=1"`
}

// DefaultSizingConfig returns the standard sizing parameter set.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		RiskPerTrade:        0.01,
		StopATRMultiple:     1.5,
		MaxPositionFraction: 0.1,
		PerTradeNotionalCap: 10000,
		MaxPositionNotional: 60000,
		MaxActivePositions:  5,
		MinCashBuffer:       0.1,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateConfig runs struct validation and wraps violations as a
// config error, fatal at construction time.
func validateConfig(op string, cfg interface{}) error {
	if err := validate.Struct(cfg); err != nil {
		return contracts.E(contracts.KindConfigError, op, fmt.Errorf("invalid config: %w", err))
	}
	return nil
}
