package contracts

// Canonical indicator keys. A missing key means the underlying series
// was too short to compute the value, never that the value is zero.
const (
	IndRSI         = "RSI"
	IndMA5         = "MA_5"
	IndMA20        = "MA_20"
	IndMA50        = "MA_50"
	IndMA150       = "MA_150"
	IndMA200       = "MA_200"
	IndATR         = "ATR"
	IndMACD        = "MACD"
	IndMACDSignal  = "MACD_Signal"
	IndBBUpper     = "BB_Upper"
	IndBBMiddle    = "BB_Middle"
	IndBBLower     = "BB_Lower"
	IndHigh20      = "High_20"
	IndVolumeRatio = "Volume_Ratio"
)

// IndicatorSet maps indicator name to its most recent scalar value.
type IndicatorSet map[string]float64

// Get returns the named indicator value and whether it is present.
func (s IndicatorSet) Get(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Has reports whether every named indicator is present.
func (s IndicatorSet) Has(names ...string) bool {
	for _, name := range names {
		if _, ok := s[name]; !ok {
			return false
		}
	}
	return true
}
