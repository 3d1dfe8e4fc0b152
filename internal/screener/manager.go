package screener

import (
	"context"
	"sort"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
	"github.com/a772616239/AutoTrader-sub001/pkg/metrics"
)

// Overrides is a per-invocation partial config, keyed by the JSON
// field names of the target screener's config struct.
type Overrides map[string]interface{}

// Reconfigurable is implemented by screeners that accept per-
// invocation config overrides.
type Reconfigurable interface {
	WithOverrides(overrides Overrides) (contracts.Screener, error)
}

// Manager is the screener registry. Screeners are registered once at
// construction from a static factory map; there is no runtime
// discovery.
type Manager struct {
	provider  contracts.DataProvider
	screeners map[string]contracts.Screener
	order     []string
	logger    *logger.Logger
}

// NewManager builds a registry over the given screeners.
func NewManager(provider contracts.DataProvider, log *logger.Logger, screeners ...contracts.Screener) *Manager {
	m := &Manager{
		provider:  provider,
		screeners: make(map[string]contracts.Screener, len(screeners)),
		logger:    log.WithField("component", "screener_manager"),
	}
	for _, s := range screeners {
		m.screeners[s.Name()] = s
		m.order = append(m.order, s.Name())
	}
	sort.Strings(m.order)
	return m
}

// NewDefaultManager wires the three stock screeners from the
// application config.
func NewDefaultManager(cfg *config.Config, provider contracts.DataProvider, log *logger.Logger) (*Manager, error) {
	factories := map[string]func() (contracts.Screener, error){
		"rsi": func() (contracts.Screener, error) {
			c := DefaultRSIConfig(cfg.Screener.Universe)
			c.CacheTTL = cfg.Screener.CacheTTL
			c.MaxScreenSize = cfg.Screener.MaxScreened
			return NewRSIScreener(c, log)
		},
		"fundamental": func() (contracts.Screener, error) {
			c := DefaultFundamentalConfig(cfg.Screener.Universe)
			c.CacheTTL = cfg.Screener.CacheTTL
			c.MaxScreenSize = cfg.Screener.MaxScreened
			return NewFundamentalScreener(c, log)
		},
		"trend_template": func() (contracts.Screener, error) {
			c := DefaultTrendTemplateConfig(cfg.Screener.Universe, cfg.Screener.Benchmark)
			c.CacheTTL = cfg.Screener.CacheTTL
			c.MaxScreenSize = cfg.Screener.MaxScreened
			return NewTrendTemplateScreener(c, log)
		},
	}

	screeners := make([]contracts.Screener, 0, len(factories))
	for name, build := range factories {
		s, err := build()
		if err != nil {
			return nil, contracts.E(contracts.KindConfigError, "screener.NewDefaultManager:"+name, err)
		}
		screeners = append(screeners, s)
	}
	return NewManager(provider, log, screeners...), nil
}

// AvailableScreeners lists registered screener names in sorted
// order.
func (m *Manager) AvailableScreeners() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Screener returns a registered screener by name.
func (m *Manager) Screener(name string) (contracts.Screener, bool) {
	s, ok := m.screeners[name]
	return s, ok
}

// RunScreener executes one screener, rebuilding it with the overrides
// merged over its config when any are given. An override run is
// one-shot: it never touches the registered instance's cache or stats.
// Unknown names, rejected overrides, and execution failures log and
// return an empty list, never an error.
func (m *Manager) RunScreener(ctx context.Context, name string, overrides Overrides) []contracts.ScreenResult {
	s, ok := m.screeners[name]
	if !ok {
		m.logger.Warnf("Unknown screener %q requested", name)
		return nil
	}

	if len(overrides) > 0 {
		r, ok := s.(Reconfigurable)
		if !ok {
			m.logger.Warnf("Screener %q does not accept overrides", name)
			return nil
		}
		rebuilt, err := r.WithOverrides(overrides)
		if err != nil {
			m.logger.WithError(err).WithField("screener", name).Error("Screener overrides rejected")
			return nil
		}
		s = rebuilt
	}

	results, err := s.ScreenStocks(ctx, m.provider)
	if err != nil {
		m.logger.WithError(err).WithField("screener", name).Error("Screener run failed")
		return nil
	}
	metrics.ScreeningsRun.WithLabelValues(name).Inc()
	return results
}

// RunMultipleScreeners executes each named screener, applying that
// screener's overrides where present, and maps the results by name.
func (m *Manager) RunMultipleScreeners(ctx context.Context, names []string, overrides map[string]Overrides) map[string][]contracts.ScreenResult {
	out := make(map[string][]contracts.ScreenResult, len(names))
	for _, name := range names {
		out[name] = m.RunScreener(ctx, name, overrides[name])
	}
	return out
}

// CombineResults merges result lists by the given method.
func (m *Manager) CombineResults(lists [][]contracts.ScreenResult, method contracts.CombineMethod) []contracts.ScreenResult {
	if len(lists) == 0 {
		return nil
	}

	switch method {
	case contracts.CombineIntersection:
		return combineIntersection(lists)
	case contracts.CombineUnion:
		return combineUnion(lists)
	case contracts.CombineWeighted:
		return combineWeighted(lists)
	default:
		m.logger.Warnf("Unknown combine method %q", method)
		return nil
	}
}

// AllStats snapshots every screener's counters.
func (m *Manager) AllStats() map[string]contracts.ScreenerStats {
	out := make(map[string]contracts.ScreenerStats, len(m.screeners))
	for name, s := range m.screeners {
		out[name] = s.Stats()
	}
	return out
}

// ClearCaches drops every screener's cached run.
func (m *Manager) ClearCaches() {
	for _, s := range m.screeners {
		s.ClearCache()
	}
}

// combineIntersection keeps symbols present in every list, carrying
// the first list's result objects in their original order.
func combineIntersection(lists [][]contracts.ScreenResult) []contracts.ScreenResult {
	counts := make(map[string]int)
	for _, list := range lists {
		seen := make(map[string]bool)
		for _, r := range list {
			if !seen[r.Symbol] {
				seen[r.Symbol] = true
				counts[r.Symbol]++
			}
		}
	}

	var out []contracts.ScreenResult
	for _, r := range lists[0] {
		if counts[r.Symbol] == len(lists) {
			out = append(out, r)
		}
	}
	return out
}

// combineUnion keeps the first-seen result per symbol, preserving
// input order across lists.
func combineUnion(lists [][]contracts.ScreenResult) []contracts.ScreenResult {
	seen := make(map[string]bool)
	var out []contracts.ScreenResult
	for _, list := range lists {
		for _, r := range list {
			if !seen[r.Symbol] {
				seen[r.Symbol] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// combineWeighted averages confidence-weighted scores per symbol
// across the lists that contain it.
func combineWeighted(lists [][]contracts.ScreenResult) []contracts.ScreenResult {
	type acc struct {
		first contracts.ScreenResult
		sum   float64
		count int
	}

	accs := make(map[string]*acc)
	var order []string
	for _, list := range lists {
		for _, r := range list {
			a, ok := accs[r.Symbol]
			if !ok {
				a = &acc{first: r}
				accs[r.Symbol] = a
				order = append(order, r.Symbol)
			}
			a.sum += r.Score * r.Confidence
			a.count++
		}
	}

	out := make([]contracts.ScreenResult, 0, len(accs))
	for _, symbol := range order {
		a := accs[symbol]
		avg := a.sum / float64(a.count)

		r := a.first
		r.Score = avg
		r.Confidence = clampUnit(avg / 100)
		r.StrategiesCount = a.count
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
