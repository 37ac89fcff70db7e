package handlers

import (
	"net/http"
	"strings"
	"time"

	"freesia/internal/application/feed"
	usecase "freesia/internal/application/usecase"
	common "freesia/internal/domain/common"
)

// ReportHandler serves GET /reports/summary.
//
// Query:
//
//	from, to   RFC3339 or YYYY-MM-DD (a plain "to" date is inclusive)
//	days       last N days, used when from/to are absent
//	shipment   shipment batch filter
type ReportHandler struct {
	uc       *usecase.ReportUsecase
	feed     SnapshotReader
	products *usecase.ProductUsecase
	sales    *usecase.SaleUsecase
	now      func() time.Time
}

// NewReportHandler reads from the feed when it has converged and falls back
// to the product and sale usecases otherwise.
func NewReportHandler(
	uc *usecase.ReportUsecase,
	f SnapshotReader,
	products *usecase.ProductUsecase,
	sales *usecase.SaleUsecase,
) http.Handler {
	return &ReportHandler{uc: uc, feed: f, products: products, sales: sales, now: time.Now}
}

func (h *ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.TrimRight(r.URL.Path, "/") != "/reports/summary" {
		notFound(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	filter, err := h.parseFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	snap, err := h.snapshot(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.uc.Summary(snap, filter, h.now()))
}

func (h *ReportHandler) parseFilter(r *http.Request) (usecase.ReportFilter, error) {
	q := r.URL.Query()
	loc := h.uc.Location()

	f := usecase.ReportFilter{Shipment: strings.TrimSpace(q.Get("shipment"))}

	from, err := parseTimeParam(q.Get("from"), loc)
	if err != nil {
		return f, errInvalidParam("from")
	}
	toRaw := strings.TrimSpace(q.Get("to"))
	to, err := parseTimeParam(toRaw, loc)
	if err != nil {
		return f, errInvalidParam("to")
	}
	if to != nil && len(toRaw) == len("2006-01-02") {
		next := to.AddDate(0, 0, 1)
		to = &next
	}

	if from == nil && to == nil {
		if days := parseIntDefault(q.Get("days"), 0); days > 0 {
			f.Range = usecase.LastDays(h.now(), days, loc)
			return f, nil
		}
	}
	f.Range = common.TimeRange{From: from, To: to}
	return f, nil
}

func (h *ReportHandler) snapshot(r *http.Request) (feed.Snapshot, error) {
	if h.feed != nil {
		if snap := h.feed.Current(); snap.Ready() {
			return snap, nil
		}
	}
	ps, err := h.products.List(r.Context())
	if err != nil {
		return feed.Snapshot{}, err
	}
	ss, err := h.sales.List(r.Context())
	if err != nil {
		return feed.Snapshot{}, err
	}
	return feed.Snapshot{Products: ps, Sales: ss, ProductsReady: true, SalesReady: true, At: h.now()}, nil
}

type paramError string

func (e paramError) Error() string { return "invalid query parameter: " + string(e) }

func errInvalidParam(name string) error { return paramError(name) }
