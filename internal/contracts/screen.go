package contracts

import "time"

// ScreenResult is one symbol's outcome from a screening run. Score is
// unbounded internally and clipped to [0,100] for reporting.
type ScreenResult struct {
	Symbol          string             `json:"symbol"`
	Score           float64            `json:"score"`
	Confidence      float64            `json:"confidence"`
	Details         map[string]float64 `json:"details,omitempty"`
	Strategy        string             `json:"strategy"`
	Timestamp       time.Time          `json:"timestamp"`
	StrategiesCount int                `json:"strategies_count,omitempty"`
}

// ClippedScore returns the score clipped to [0,100].
func (r *ScreenResult) ClippedScore() float64 {
	if r.Score < 0 {
		return 0
	}
	if r.Score > 100 {
		return 100
	}
	return r.Score
}

// CombineMethod selects how multiple screener outputs are merged.
type CombineMethod string

const (
	CombineIntersection CombineMethod = "intersection"
	CombineUnion        CombineMethod = "union"
	CombineWeighted     CombineMethod = "weighted"
)

// ScreenerStats is the cumulative performance record of one screener.
// AvgProcessingTime is maintained with an incremental update, never
// recomputed from history.
type ScreenerStats struct {
	TotalScreenings   int64         `json:"total_screenings"`
	StocksScreened    int64         `json:"stocks_screened"`
	StocksPassed      int64         `json:"stocks_passed"`
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
}

// Fundamentals is a per-symbol fundamentals snapshot from the data
// provider. Zero MarketCap means the snapshot is absent.
type Fundamentals struct {
	Symbol          string  `json:"symbol"`
	MarketCap       float64 `json:"market_cap"`
	ROE             float64 `json:"roe"`
	ROA             float64 `json:"roa"`
	DebtRatio       float64 `json:"debt_ratio"`
	RevenueGrowth   float64 `json:"revenue_growth"`
	NetIncomeGrowth float64 `json:"net_income_growth"`
	DividendYield   float64 `json:"dividend_yield"`
	Sector          string  `json:"sector"`
}
