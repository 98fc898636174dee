package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiConfig "financial_lookup/pkg/api/config"
	"financial_lookup/pkg/api/lookup"
	"financial_lookup/pkg/core/app"
	"financial_lookup/pkg/core/config"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	// Load environment variables
	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	opts := lookup.Options{
		Facts:      a.EDGAR,
		Catalogue:  a.Catalogue,
		FiscalYear: cfg.Report.FiscalYear,
		MaxResults: cfg.Server.MaxResults,
		NewsCount:  cfg.News.Results,
		Caches:     []lookup.CacheClearer{a.Market, a.News},
		Proxy: lookup.ProxyConfig{
			SECDataURL:      cfg.SEC.DataURL,
			UserAgent:       cfg.SEC.UserAgent,
			AlphaVantageURL: cfg.Market.BaseURL,
			AlphaVantageKey: cfg.Market.APIKey,
		},
	}
	// Leave optional sources as nil interfaces so their endpoints report 503.
	if a.Market.Enabled() {
		opts.Quotes = a.Market
	}
	if a.News.Enabled() {
		opts.News = a.News
	}
	if a.Analyst != nil {
		opts.Analyst = a.Analyst
	}

	lookupHandler, err := lookup.NewHandler(opts)
	if err != nil {
		fmt.Printf("[FATAL] %v\n", err)
		os.Exit(1)
	}

	// The directory is needed for search only; load it in the background so
	// a first run does not block startup on the SEC download.
	go func() {
		d, err := a.Directory(ctx, true)
		if err != nil {
			log.Printf("[WARNING] Company directory unavailable: %v", err)
			return
		}
		lookupHandler.SetDirectory(d)
		fmt.Printf("[SEARCH] Loaded %d companies\n", d.Len())
	}()

	mux := http.NewServeMux()
	mux.Handle("/", lookupHandler.Routes())

	// Config endpoint
	configHandler := apiConfig.NewHandler(cfg)
	mux.HandleFunc("/api/config", configHandler.HandleConfig)

	if cfg.Server.StaticDir != "" {
		if _, err := os.Stat(cfg.Server.StaticDir); err == nil {
			mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.Server.StaticDir))))
		}
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("API server starting on %s...\n", cfg.Server.Addr)
	fmt.Println("  - GET  /api/search?q=")
	fmt.Println("  - GET  /api/financials?cik=&year=")
	fmt.Println("  - GET  /api/quote?symbol=")
	fmt.Println("  - GET  /api/news?company=")
	fmt.Println("  - GET  /report?cik=&year=&news=1&analysis=1")
	fmt.Println("  - GET  /api/sec/*  (SEC EDGAR proxy)")
	fmt.Println("  - GET  /api/alphavantage?function=  (Alpha Vantage proxy)")
	fmt.Println("  - POST /api/cache/clear")
	fmt.Println("  - GET  /api/config")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}
