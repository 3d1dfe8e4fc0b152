package contracts

import "time"

// Bar is a single OHLCV observation. Series are ordered oldest first
// and immutable once handed to the core.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Series is an ordered bar sequence for one symbol.
type Series []Bar

// Last returns the most recent bar.
func (s Series) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Closes returns the close prices in order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volumes in order.
func (s Series) Volumes() []int64 {
	out := make([]int64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}

// AverageVolume returns the mean volume over the last n bars.
func (s Series) AverageVolume(n int) float64 {
	if len(s) == 0 || n <= 0 {
		return 0
	}
	if n > len(s) {
		n = len(s)
	}
	var sum int64
	for _, b := range s[len(s)-n:] {
		sum += b.Volume
	}
	return float64(sum) / float64(n)
}

// HighestHigh returns the highest high over the last n bars.
func (s Series) HighestHigh(n int) float64 {
	if len(s) == 0 || n <= 0 {
		return 0
	}
	if n > len(s) {
		n = len(s)
	}
	high := s[len(s)-n].High
	for _, b := range s[len(s)-n:] {
		if b.High > high {
			high = b.High
		}
	}
	return high
}

// LowestLow returns the lowest low over the last n bars.
func (s Series) LowestLow(n int) float64 {
	if len(s) == 0 || n <= 0 {
		return 0
	}
	if n > len(s) {
		n = len(s)
	}
	low := s[len(s)-n].Low
	for _, b := range s[len(s)-n:] {
		if b.Low < low {
			low = b.Low
		}
	}
	return low
}

// CumulativeReturn returns (last close / first close) - 1 over the
// last n bars, or 0 when the series is too short.
func (s Series) CumulativeReturn(n int) float64 {
	if len(s) < 2 || n < 2 {
		return 0
	}
	if n > len(s) {
		n = len(s)
	}
	window := s[len(s)-n:]
	first := window[0].Close
	if first == 0 {
		return 0
	}
	return window[len(window)-1].Close/first - 1
}
