// cmd/seed/main.go loads the starter catalogue (or SEED_FILE) into an
// empty store and initializes the invoice counter.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	appcfg "freesia/internal/infra/config"
	"freesia/internal/platform/di"
)

func main() {
	file := flag.String("file", "", "seed YAML (default: SEED_FILE or the embedded starter data)")
	flag.Parse()

	cfg := appcfg.Load()
	if *file != "" {
		cfg.SeedFile = *file
	}

	ctx := context.Background()
	cont, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Printf("[seed] di init failed: %v", err)
		os.Exit(1)
	}
	defer cont.Close()

	res, err := cont.Seed(ctx)
	if err != nil {
		log.Printf("[seed] failed: %v", err)
		os.Exit(1)
	}
	log.Printf("[seed] done backend=%s products=%d sales=%d counter=%s",
		cont.Backend, res.Products, res.Sales, cont.InvoiceUC.FormatID(res.Counter))
}
