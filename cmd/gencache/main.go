// Command gencache downloads SEC's company_tickers.json into the lookup cache
// used by search.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"financial_lookup/pkg/core/app"
	"financial_lookup/pkg/core/config"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env not found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	fmt.Println("Fetching company tickers from SEC...")
	start := time.Now()
	companies, err := a.RefreshCompanies(ctx)
	if err != nil {
		fmt.Printf("❌ Error generating cache: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Cached %d companies in %v\n", len(companies), time.Since(start).Round(time.Millisecond))
	if p := a.Companies.Path(); p != "" {
		fmt.Printf("   File: %s\n", p)
	}
	if cfg.Cache.DatabaseURL != "" {
		fmt.Println("   Database: companies table")
	}

	fmt.Println("\nSample entries:")
	for i, c := range companies {
		if i == 5 {
			break
		}
		fmt.Printf("  %-6s %s  %s\n", c.Ticker, c.CIK, c.Name)
	}
}
