package screener

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// Exporter writes screening runs to disk for downstream reports.
type Exporter struct {
	dir    string
	logger *logger.Logger
}

// NewExporter creates an exporter rooted at dir.
func NewExporter(dir string, log *logger.Logger) *Exporter {
	return &Exporter{
		dir:    dir,
		logger: log.WithField("component", "exporter"),
	}
}

// ExportCSV writes the results as a timestamped CSV file and returns
// its path.
func (e *Exporter) ExportCSV(name string, results []contracts.ScreenResult) (string, error) {
	path, err := e.preparePath(name, "csv")
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"symbol", "score", "confidence", "strategy", "strategies_count", "timestamp"}); err != nil {
		return "", fmt.Errorf("write export header: %w", err)
	}
	for _, r := range results {
		record := []string{
			r.Symbol,
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			strconv.FormatFloat(r.Confidence, 'f', 4, 64),
			r.Strategy,
			strconv.Itoa(r.StrategiesCount),
			r.Timestamp.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush export: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(results),
	}).Info("Exported screen results")
	return path, nil
}

// ExportJSON writes the results as a timestamped JSON file and
// returns its path.
func (e *Exporter) ExportJSON(name string, results []contracts.ScreenResult) (string, error) {
	path, err := e.preparePath(name, "json")
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"path": path,
		"rows": len(results),
	}).Info("Exported screen results")
	return path, nil
}

func (e *Exporter) preparePath(name, ext string) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	filename := fmt.Sprintf("%s_%s.%s", name, time.Now().Format("20060102_150405"), ext)
	return filepath.Join(e.dir, filename), nil
}
