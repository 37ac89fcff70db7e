package httpin

import (
	"context"
	"net/http"

	"freesia/internal/application/feed"
	usecase "freesia/internal/application/usecase"

	// ハンドラ群
	"freesia/internal/adapters/in/http/handlers"
)

// RouterDeps collects all usecases (and other dependencies) injected from main.go.
type RouterDeps struct {
	ProductUC *usecase.ProductUsecase
	SaleUC    *usecase.SaleUsecase
	ReportUC  *usecase.ReportUsecase

	// 変更フィード。nil の場合は一覧をストアから直接読み、/feed はマウントしない
	Feed *feed.Feed

	// WebSocket の Origin チェックに使う（空 or "*" なら全許可）
	AllowedOrigin string

	// /readyz で呼ぶストア疎通チェック。nil なら常に ready
	Ready func(ctx context.Context) error
}

// NewRouter sets up HTTP routing for all domain endpoints.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	// Health check (always on)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// typed nil を interface に入れないよう、ここで分岐する
	var snaps handlers.SnapshotReader
	var status handlers.FeedStatus
	if deps.Feed != nil {
		snaps = deps.Feed
		status = deps.Feed
	}

	mux.Handle("/readyz", handlers.NewReadyHandler(deps.Ready, status))

	// 以降、Usecase が存在するものだけマウントする
	if deps.ProductUC != nil {
		h := handlers.NewProductHandler(deps.ProductUC, snaps)
		mux.Handle("/products", h)
		mux.Handle("/products/", h)
	}

	if deps.SaleUC != nil {
		h := handlers.NewSaleHandler(deps.SaleUC, snaps)
		mux.Handle("/sales", h)
		mux.Handle("/sales/", h)
	}

	if deps.ReportUC != nil && deps.ProductUC != nil && deps.SaleUC != nil {
		mux.Handle("/reports/summary", handlers.NewReportHandler(deps.ReportUC, snaps, deps.ProductUC, deps.SaleUC))
	}

	if deps.Feed != nil {
		mux.Handle("/feed", handlers.NewFeedHandler(deps.Feed, deps.AllowedOrigin))
	}

	return mux
}
