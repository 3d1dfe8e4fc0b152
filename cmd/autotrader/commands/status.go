package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a running service's positions and balance",
	Long: `Queries a running autotrader service and prints its health,
balance, and open positions.

Example:
  go run ./cmd/autotrader status
  go run ./cmd/autotrader status --addr http://localhost:8090`,
	RunE: runStatus,
}

var statusAddr string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8090", "service address")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	var health map[string]interface{}
	if err := fetchStatus(client, statusAddr+"/health", &health); err != nil {
		return fmt.Errorf("service unreachable at %s: %w", statusAddr, err)
	}
	fmt.Printf("Service: %v (%v)\n", health["service"], health["status"])

	var balance contracts.Balance
	if err := fetchStatus(client, statusAddr+"/api/balance", &balance); err != nil {
		return fmt.Errorf("fetch balance: %w", err)
	}
	fmt.Printf("Equity:  %.2f (cash %.2f)\n", balance.Equity, balance.Cash)

	var positions struct {
		Strategies map[string][]contracts.Position `json:"strategies"`
		Total      int                             `json:"total"`
	}
	if err := fetchStatus(client, statusAddr+"/api/positions", &positions); err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	fmt.Printf("\nOpen positions: %d\n", positions.Total)
	for strategy, held := range positions.Strategies {
		for _, pos := range held {
			fmt.Printf("  %-8s %10.2f @ %.2f  (%s, held %s)\n",
				pos.Symbol, pos.Size, pos.AvgCost, strategy,
				time.Since(pos.EntryTime).Round(time.Minute))
		}
	}
	return nil
}

func fetchStatus(client *http.Client, url string, dest interface{}) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
