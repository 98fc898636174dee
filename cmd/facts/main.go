// Command facts inspects a raw companyfacts document: namespaces, concepts,
// units and the observations the extractor would choose from.
//
//	facts -cik 320193
//	facts -cik 320193 -concept Assets -year 2024
//	facts -cik AAPL -profile
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"financial_lookup/pkg/core/config"
	"financial_lookup/pkg/core/facts"
	"financial_lookup/pkg/core/financial"
	"financial_lookup/pkg/core/ingest"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	cik := flag.String("cik", "", "company CIK or ticker")
	profile := flag.Bool("profile", false, "print the SEC submissions profile (SIC, exchanges, fiscal year end)")
	namespace := flag.String("namespace", facts.NamespaceGAAP, "taxonomy namespace")
	concept := flag.String("concept", "", "show observations for one concept")
	filter := flag.String("filter", "", "only list concepts containing this text")
	year := flag.Int("year", 0, "mark observations qualifying for this fiscal year")
	flag.Parse()

	if *cik == "" {
		fmt.Fprintln(os.Stderr, "usage: facts -cik <cik|ticker> [-profile] [-namespace us-gaap] [-concept Name] [-filter text] [-year N]")
		os.Exit(2)
	}

	godotenv.Load()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	client := ingest.NewEDGARClient(ingest.EDGARConfig{
		DataURL:   cfg.SEC.DataURL,
		FilesURL:  cfg.SEC.FilesURL,
		UserAgent: cfg.SEC.UserAgent,
		Timeout:   cfg.SEC.Timeout,
		RateLimit: cfg.SEC.RateLimit,
	})

	ctx := context.Background()
	id := *cik
	if _, err := facts.NormalizeCIK(id); err != nil {
		if id, err = client.LookupCIKByTicker(ctx, id); err != nil {
			fatal(err)
		}
	}

	if *profile {
		info, err := client.FetchCompanyInfo(ctx, id)
		if err != nil {
			fatal(err)
		}
		printProfile(info)
	}

	doc, err := client.FetchCompanyFacts(ctx, id)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Entity: %s (CIK %s)\n", doc.EntityName, doc.CIK)
	fmt.Printf("Namespaces: %s\n", strings.Join(facts.Namespaces(doc), ", "))

	store, err := facts.NewStore(doc, *namespace)
	if err != nil {
		fatal(err)
	}

	if *concept == "" {
		listConcepts(store, *filter)
		return
	}
	showConcept(store, *concept, *year)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	os.Exit(1)
}

func printProfile(info *ingest.CompanyInfo) {
	fmt.Printf("Name:            %s\n", info.Name)
	fmt.Printf("Entity type:     %s\n", info.EntityType)
	fmt.Printf("SIC:             %s %s\n", info.SIC, info.SICDescription)
	fmt.Printf("Tickers:         %s\n", strings.Join(info.Tickers, ", "))
	fmt.Printf("Exchanges:       %s\n", strings.Join(info.Exchanges, ", "))
	if fye := info.FiscalYearEnd; len(fye) == 4 {
		fmt.Printf("Fiscal year end: %s-%s\n", fye[:2], fye[2:])
	}
	fmt.Println()
}

func listConcepts(store *facts.Store, filter string) {
	concepts := store.Concepts()
	fmt.Printf("\n%s: %d concepts\n\n", store.Namespace(), len(concepts))

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONCEPT\tUNITS\tOBSERVATIONS")
	for _, name := range concepts {
		if filter != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(filter)) {
			continue
		}
		units := store.Units(name)
		total := 0
		for _, u := range units {
			total += len(store.Observations(name, u))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", name, strings.Join(units, ","), total)
	}
	tw.Flush()
}

func showConcept(store *facts.Store, concept string, year int) {
	series, ok := store.ConceptSeries(concept)
	if !ok {
		fatal(fmt.Errorf("concept %s not found in %s", concept, store.Namespace()))
	}
	fmt.Printf("\n%s\n%s\n", concept, series.Label)
	if series.Description != "" {
		fmt.Printf("%s\n", series.Description)
	}

	for _, unit := range store.Units(concept) {
		obs := store.Observations(concept, unit)
		fmt.Printf("\n[%s] %d observations\n", unit, len(obs))

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "END\tFY\tFP\tFORM\tVALUE\tQUALIFIES")
		for _, o := range obs {
			fy := "-"
			if o.FiscalYear != nil {
				fy = fmt.Sprint(*o.FiscalYear)
			}
			mark := ""
			if year != 0 && financial.Qualifies(o, year) {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0f\t%s\n", o.End, fy, o.FiscalPeriod, o.Form, o.Value, mark)
		}
		tw.Flush()

		if year != 0 {
			if chosen, ok := financial.SelectLatest(obs, year); ok {
				fmt.Printf("Selected for %d: %s\n", year, chosen)
			} else {
				fmt.Printf("Nothing qualifies for %d\n", year)
			}
		}
	}
}
