// cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpin "freesia/internal/adapters/in/http"
	"freesia/internal/adapters/in/http/middleware"
	appcfg "freesia/internal/infra/config"
	"freesia/internal/infra/telemetry"
	"freesia/internal/platform/di"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := appcfg.Load()

	// ─────────────────────────────────────────────────────────────
	// Tracing (no exporter configured = spans are dropped)
	// ─────────────────────────────────────────────────────────────
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName: cfg.OTelServiceName,
		Endpoint:    cfg.OTelEndpoint,
		Stdout:      cfg.OTelTracesStdout,
	})
	if err != nil {
		log.Printf("[boot] WARN: telemetry init failed: %v", err)
	} else {
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				log.Printf("[boot] telemetry shutdown: %v", err)
			}
		}()
	}

	// ─────────────────────────────────────────────────────────────
	// Lightweight healthz first so PORT is LISTENed quickly
	// ─────────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ─────────────────────────────────────────────────────────────
	// DI container & heavy deps; keep /healthz even on failure
	// ─────────────────────────────────────────────────────────────
	var cont *di.Container
	if c, err := di.NewContainer(ctx, cfg); err != nil {
		log.Printf("[boot] WARN: di init failed: %v (serving /healthz only)", err)
	} else {
		cont = c
		defer cont.Close()

		if cfg.SeedOnBoot {
			if res, err := cont.Seed(ctx); err != nil {
				log.Printf("[boot] WARN: seed failed: %v", err)
			} else {
				log.Printf("[boot] seed products=%d sales=%d counter=%d", res.Products, res.Sales, res.Counter)
			}
		}

		if err := cont.Feed.Start(ctx); err != nil {
			log.Printf("[boot] WARN: feed start failed: %v", err)
		}

		// Attach app router under "/"
		mux.Handle("/", httpin.NewRouter(cont.RouterDeps()))
	}

	// ─────────────────────────────────────────────────────────────
	// Middleware chain: otel → CORS → Recover → mux
	// (CORS outside Recover so a 500 still carries CORS headers)
	// ─────────────────────────────────────────────────────────────
	var handler http.Handler = middleware.Recover(mux)
	handler = middleware.CORS(cfg.CORSAllowedOrigin)(handler)
	handler = otelhttp.NewHandler(handler, "freesia-api",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/healthz" && r.URL.Path != "/readyz" }),
	)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// ─────────────────────────────────────────────────────────────
	// Graceful shutdown for Cloud Run
	// ─────────────────────────────────────────────────────────────
	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		log.Printf("[boot] received signal; shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		// WebSocket 購読者を先に閉じる（hijack 済み接続は Shutdown が待たない）
		if cont != nil {
			cont.Feed.Close()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[boot] server shutdown error: %v", err)
		}
		close(idleConnsClosed)
	}()

	log.Printf("[boot] listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[boot] server error: %v", err)
		os.Exit(1)
	}

	<-idleConnsClosed
	log.Printf("[boot] server stopped")
}
