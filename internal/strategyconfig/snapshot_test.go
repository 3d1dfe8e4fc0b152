package strategyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultSnapshot(t *testing.T) {
	snap, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 20, snap.ZScore.Lookback)
	assert.Equal(t, 0.01, snap.Sizing.RiskPerTrade)
	assert.Len(t, snap.Hash, 64)
}

func TestLoadReplacesSection(t *testing.T) {
	def, err := Default()
	require.NoError(t, err)

	path := writeConfig(t, `{
		"sizing": {
			"risk_per_trade": 0.02,
			"stop_atr_multiple": 1.5,
			"max_position_fraction": 0.1,
			"per_trade_notional_cap": 20000,
			"max_position_notional": 80000,
			"max_active_positions": 8,
			"min_cash_buffer": 0.05
		}
	}`)

	snap, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.02, snap.Sizing.RiskPerTrade)
	assert.Equal(t, 8, snap.Sizing.MaxActivePositions)
	// Untouched sections keep their defaults.
	assert.Equal(t, def.Momentum, snap.Momentum)
	assert.Equal(t, def.ZScore, snap.ZScore)
	// A different parameter set has a different hash.
	assert.NotEqual(t, def.Hash, snap.Hash)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `{"saizing": {"risk_per_trade": 0.02}}`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestHashDeterministic(t *testing.T) {
	a, err := Default()
	require.NoError(t, err)
	b, err := Default()
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
}
