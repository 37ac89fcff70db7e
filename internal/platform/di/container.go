// internal/platform/di/container.go
package di

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	httpin "freesia/internal/adapters/in/http"
	fs "freesia/internal/adapters/out/firestore"
	gcsadapter "freesia/internal/adapters/out/gcs"
	"freesia/internal/adapters/out/memory"
	"freesia/internal/application/feed"
	usecase "freesia/internal/application/usecase"
	invoicedom "freesia/internal/domain/invoice"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
	appcfg "freesia/internal/infra/config"
	"freesia/internal/platform/di/shared"
	"freesia/seed"
)

// Container は main.go から使う依存オブジェクトの束。
// main.go を極限まで薄くするためにここで全部つなぐ。
type Container struct {
	Config  *appcfg.Config
	Backend string

	Feed *feed.Feed

	ProductUC *usecase.ProductUsecase
	SaleUC    *usecase.SaleUsecase
	InvoiceUC *usecase.InvoiceSequencer
	ReportUC  *usecase.ReportUsecase
	SeedUC    *usecase.SeedUsecase

	infra *shared.Infra
}

// stores is the set of ports one backend provides.
type stores struct {
	products productdom.RepositoryPort
	sales    saledom.RepositoryPort
	ledger   usecase.LedgerStore
	counter  invoicedom.CounterStore
	seed     usecase.SeedWriter
	source   feed.Source
	images   usecase.ProductImageStore
}

// NewContainer builds every dependency for cfg.StoreBackend.
func NewContainer(ctx context.Context, cfg *appcfg.Config) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("di: config is nil")
	}

	c := &Container{Config: cfg, Backend: strings.ToLower(strings.TrimSpace(cfg.StoreBackend))}

	var st stores
	switch c.Backend {
	case appcfg.BackendMemory:
		m := memory.New(memory.WithMaxAttempts(cfg.LedgerMaxAttempts))
		st = stores{
			products: m.Products(),
			sales:    m.Sales(),
			ledger:   m,
			counter:  m,
			seed:     m,
			source:   m,
		}
		log.Printf("[container] store backend = memory (data is lost on restart)")

	case appcfg.BackendFirestore, "":
		c.Backend = appcfg.BackendFirestore
		inf, err := shared.NewInfra(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.infra = inf

		client := inf.Firestore
		st = stores{
			products: fs.NewProductRepositoryFS(client),
			sales:    fs.NewSaleRepositoryFS(client),
			ledger:   fs.NewLedgerRepositoryFS(client, cfg.LedgerMaxAttempts),
			counter:  fs.NewInvoiceCounterRepositoryFS(client),
			seed:     fs.NewSeedRepositoryFS(client),
			source:   fs.NewChangeStreamFS(client),
		}
		if inf.GCS != nil {
			st.images = gcsadapter.NewProductImageRepositoryGCS(inf.GCS, inf.GCSBucket)
		}
		log.Printf("[container] store backend = firestore project=%s", inf.ProjectID)

	default:
		return nil, fmt.Errorf("di: unknown STORE_BACKEND %q (want %q or %q)",
			cfg.StoreBackend, appcfg.BackendFirestore, appcfg.BackendMemory)
	}

	c.InvoiceUC = usecase.NewInvoiceSequencer(st.counter, usecase.InvoiceConfig{
		Prefix:        cfg.InvoicePrefix,
		InitialNumber: cfg.InvoiceInitialNumber,
		MaxAttempts:   cfg.InvoiceMaxAttempts,
	})
	c.ProductUC = usecase.NewProductUsecase(st.products, st.ledger)
	if st.images != nil {
		c.ProductUC = c.ProductUC.WithImageStore(st.images)
	}
	c.SaleUC = usecase.NewSaleUsecase(st.sales, st.products, st.ledger, c.InvoiceUC)
	c.ReportUC = usecase.NewReportUsecase(cfg.ReportLocation())
	c.SeedUC = usecase.NewSeedUsecase(st.seed, st.sales, c.InvoiceUC)
	c.Feed = feed.New(st.source)

	log.Printf("[container] wired invoicePrefix=%q images=%t", c.InvoiceUC.Prefix(), st.images != nil)
	return c, nil
}

// RouterDeps returns the HTTP dependencies.
func (c *Container) RouterDeps() httpin.RouterDeps {
	return httpin.RouterDeps{
		ProductUC:     c.ProductUC,
		SaleUC:        c.SaleUC,
		ReportUC:      c.ReportUC,
		Feed:          c.Feed,
		AllowedOrigin: c.Config.CORSAllowedOrigin,
		Ready:         c.Ready,
	}
}

// Ready reports whether the configured store is reachable. The memory
// backend is always ready.
func (c *Container) Ready(ctx context.Context) error {
	if c == nil {
		return errors.New("di: container is nil")
	}
	if c.infra != nil {
		return c.infra.Ping(ctx)
	}
	return nil
}

// Seed loads SEED_FILE (or the embedded starter data) into empty collections.
func (c *Container) Seed(ctx context.Context) (usecase.SeedResult, error) {
	raw, err := seed.Load(c.Config.SeedFile)
	if err != nil {
		return usecase.SeedResult{}, err
	}
	data, err := usecase.ParseSeed(raw)
	if err != nil {
		return usecase.SeedResult{}, err
	}
	return c.SeedUC.Run(ctx, data)
}

// Close は終了時に呼んで安全にリソースを閉じる。
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.Feed != nil {
		c.Feed.Close()
	}
	if c.infra != nil {
		_ = c.infra.Close()
	}
}
