package strategy

import (
	"time"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
}

// makeBars builds a one-minute series from closes with a small range
// around each close and a flat volume.
func makeBars(closes []float64, volume int64) contracts.Series {
	start := time.Now().Add(-time.Duration(len(closes)) * time.Minute)
	s := make(contracts.Series, len(closes))
	for i, c := range closes {
		s[i] = contracts.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      c,
			High:      c * 1.002,
			Low:       c * 0.998,
			Close:     c,
			Volume:    volume,
		}
	}
	return s
}

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}
