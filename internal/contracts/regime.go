package contracts

// Regime is a coarse market-state classification used to modulate
// risk parameters.
type Regime string

const (
	RegimeTrending       Regime = "TRENDING"
	RegimeRanging        Regime = "RANGING"
	RegimeHighVolatility Regime = "HIGH_VOLATILITY"
)

// IsHighVolatility reports whether the regime is high-volatility.
func (r Regime) IsHighVolatility() bool {
	return r == RegimeHighVolatility
}

// IsTrending reports whether the regime is trending.
func (r Regime) IsTrending() bool {
	return r == RegimeTrending
}
