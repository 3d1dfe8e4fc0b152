package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/a772616239/AutoTrader-sub001/internal/screener"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run all screeners and export the results to disk",
	Long: `Runs every configured screener and writes each result list to the
export directory as CSV or JSON.

Example:
  go run ./cmd/autotrader export
  go run ./cmd/autotrader export --format json --dir ./out`,
	RunE: runExport,
}

var (
	exportFormat string
	exportDir    string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "", "export format (csv|json, default from config)")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "export directory (default from config)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	if exportDir != "" {
		cfg.Screener.ExportDir = exportDir
	}
	if exportFormat != "" {
		cfg.Screener.ExportFormat = exportFormat
	}
	if cfg.Screener.ExportDir == "" {
		return fmt.Errorf("export directory is empty, set SCREENER_EXPORT_DIR or --dir")
	}

	components, err := buildStack(cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	manager, err := screener.NewDefaultManager(cfg, components.provider, log)
	if err != nil {
		return fmt.Errorf("build screener manager: %w", err)
	}
	exporter := screener.NewExporter(cfg.Screener.ExportDir, log)

	for _, name := range manager.AvailableScreeners() {
		results := manager.RunScreener(cmd.Context(), name, nil)
		if len(results) == 0 {
			fmt.Printf("%s: no results\n", name)
			continue
		}

		var path string
		switch cfg.Screener.ExportFormat {
		case "json":
			path, err = exporter.ExportJSON(name, results)
		default:
			path, err = exporter.ExportCSV(name, results)
		}
		if err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
		fmt.Printf("%s: %d results -> %s\n", name, len(results), path)
	}
	return nil
}
