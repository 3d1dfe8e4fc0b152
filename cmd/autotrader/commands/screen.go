package commands

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/internal/screener"
	"github.com/a772616239/AutoTrader-sub001/pkg/config"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen [screeners...]",
	Short: "Run stock screeners and print ranked results",
	Long: `Runs one or more screeners over the screening universe and prints
the ranked results. With multiple screeners the result lists are
merged using the selected combine method.

Available screeners: rsi, fundamental, trend_template
Combine methods: intersection, union, weighted

Example:
  go run ./cmd/autotrader screen rsi
  go run ./cmd/autotrader screen rsi fundamental --combine weighted
  go run ./cmd/autotrader screen rsi --overrides '{"oversold": 35}'
  go run ./cmd/autotrader screen rsi --export csv`,
	RunE: runScreen,
}

var (
	screenCombine   string
	screenExport    string
	screenLimit     int
	screenOverrides string
)

func init() {
	rootCmd.AddCommand(screenCmd)

	screenCmd.Flags().StringVar(&screenCombine, "combine", "weighted", "combine method for multiple screeners")
	screenCmd.Flags().StringVar(&screenExport, "export", "", "export format (csv|json)")
	screenCmd.Flags().IntVar(&screenLimit, "limit", 20, "max results to print")
	screenCmd.Flags().StringVar(&screenOverrides, "overrides", "", "JSON config overrides applied to each screener run")
}

func runScreen(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	components, err := buildStack(cfg, log)
	if err != nil {
		return err
	}
	defer components.Close()

	manager, err := screener.NewDefaultManager(cfg, components.provider, log)
	if err != nil {
		return fmt.Errorf("build screener manager: %w", err)
	}

	names := args
	if len(names) == 0 {
		names = manager.AvailableScreeners()
	}

	var overrides screener.Overrides
	if screenOverrides != "" {
		if err := json.Unmarshal([]byte(screenOverrides), &overrides); err != nil {
			return fmt.Errorf("parse overrides: %w", err)
		}
	}

	var results []contracts.ScreenResult
	if len(names) == 1 {
		results = manager.RunScreener(cmd.Context(), names[0], overrides)
	} else {
		perScreener := make(map[string]screener.Overrides, len(names))
		for _, name := range names {
			perScreener[name] = overrides
		}
		byName := manager.RunMultipleScreeners(cmd.Context(), names, perScreener)
		lists := make([][]contracts.ScreenResult, 0, len(names))
		for _, name := range names {
			lists = append(lists, byName[name])
		}
		results = manager.CombineResults(lists, contracts.CombineMethod(screenCombine))
	}

	if len(results) == 0 {
		fmt.Println("No symbols passed the screen")
		return nil
	}

	fmt.Printf("%-8s %8s %8s  %s\n", "SYMBOL", "SCORE", "CONF", "SCREENER")
	for i, res := range results {
		if screenLimit > 0 && i >= screenLimit {
			break
		}
		fmt.Printf("%-8s %8.2f %8.4f  %s\n", res.Symbol, res.Score, res.Confidence, res.Strategy)
	}

	if screenExport != "" {
		exporter := screener.NewExporter(cfg.Screener.ExportDir, log)
		name := "combined"
		if len(names) == 1 {
			name = names[0]
		}

		var path string
		switch screenExport {
		case "json":
			path, err = exporter.ExportJSON(name, results)
		case "csv":
			path, err = exporter.ExportCSV(name, results)
		default:
			return fmt.Errorf("unknown export format %q", screenExport)
		}
		if err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		fmt.Printf("\nResults written to %s\n", path)
	}

	return nil
}
