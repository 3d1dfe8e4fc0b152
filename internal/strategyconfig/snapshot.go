package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/a772616239/AutoTrader-sub001/internal/strategy"
)

// overrides is the on-disk shape. Sections are optional; a present
// section replaces the default wholesale.
type overrides struct {
	Momentum *strategy.MomentumConfig `json:"momentum,omitempty"`
	ZScore   *strategy.ZScoreConfig   `json:"zscore,omitempty"`
	Sizing   *strategy.SizingConfig   `json:"sizing,omitempty"`
}

// Snapshot is the immutable parameter set for one process run.
// Parameters are resolved once at startup; changing the file takes
// effect on the next restart, never mid-run.
type Snapshot struct {
	Momentum strategy.MomentumConfig
	ZScore   strategy.ZScoreConfig
	Sizing   strategy.SizingConfig

	// Hash identifies the resolved parameter set for audit logs.
	Hash string
}

// Default returns a snapshot of the built-in parameter sets.
func Default() (*Snapshot, error) {
	return resolve(overrides{})
}

// Load reads an overrides file and resolves it against the defaults.
// Unknown fields are rejected so typos fail loudly.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy config: %w", err)
	}

	var ov overrides
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ov); err != nil {
		return nil, fmt.Errorf("parse strategy config %s: %w", path, err)
	}

	return resolve(ov)
}

func resolve(ov overrides) (*Snapshot, error) {
	snap := &Snapshot{
		Momentum: strategy.DefaultMomentumConfig(),
		ZScore:   strategy.DefaultZScoreConfig(),
		Sizing:   strategy.DefaultSizingConfig(),
	}
	if ov.Momentum != nil {
		snap.Momentum = *ov.Momentum
	}
	if ov.ZScore != nil {
		snap.ZScore = *ov.ZScore
	}
	if ov.Sizing != nil {
		snap.Sizing = *ov.Sizing
	}

	hash, err := hashParams(snap)
	if err != nil {
		return nil, err
	}
	snap.Hash = hash
	return snap, nil
}

// hashParams derives a stable identifier from the resolved set.
// Struct marshaling keeps the field order deterministic.
func hashParams(snap *Snapshot) (string, error) {
	payload, err := json.Marshal(struct {
		Momentum strategy.MomentumConfig `json:"momentum"`
		ZScore   strategy.ZScoreConfig   `json:"zscore"`
		Sizing   strategy.SizingConfig   `json:"sizing"`
	}{snap.Momentum, snap.ZScore, snap.Sizing})
	if err != nil {
		return "", fmt.Errorf("hash strategy config: %w", err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
