package main

import (
	"os"

	"github.com/a772616239/AutoTrader-sub001/cmd/autotrader/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
