package handlers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	usecase "freesia/internal/application/usecase"
	saledom "freesia/internal/domain/sale"
)

// SaleHandler は /sales 関連のエンドポイントを担当します。
type SaleHandler struct {
	uc   *usecase.SaleUsecase
	feed SnapshotReader
}

// NewSaleHandler はHTTPハンドラを初期化します。
func NewSaleHandler(uc *usecase.SaleUsecase, f SnapshotReader) http.Handler {
	return &SaleHandler{uc: uc, feed: f}
}

// ServeHTTP はHTTPルーティングの入口です。
func (h *SaleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seg := pathSegments(r.URL.Path, "/sales")

	switch {
	case len(seg) == 0 && r.Method == http.MethodGet:
		h.list(w, r)
	case len(seg) == 0 && r.Method == http.MethodPost:
		h.create(w, r)
	case len(seg) == 1 && r.Method == http.MethodGet:
		h.get(w, r, seg[0])
	case len(seg) == 1 && r.Method == http.MethodDelete:
		h.delete(w, r, seg[0])
	case len(seg) <= 1:
		methodNotAllowed(w)
	default:
		notFound(w)
	}
}

type saleLineRequest struct {
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Title     string           `json:"title"`
}

type saleCreateRequest struct {
	Customer       saledom.Customer  `json:"customer"`
	Items          []saleLineRequest `json:"items"`
	Discount       decimal.Decimal   `json:"discount"`
	DeliveryCharge decimal.Decimal   `json:"deliveryCharge"`
}

func (req saleCreateRequest) toInput() usecase.CreateSaleInput {
	lines := make([]saledom.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, saledom.LineInput{
			ProductID: strings.TrimSpace(it.ProductID),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Title:     strings.TrimSpace(it.Title),
		})
	}
	return usecase.CreateSaleInput{
		Customer: saledom.Customer{
			Name:    strings.TrimSpace(req.Customer.Name),
			Phone:   strings.TrimSpace(req.Customer.Phone),
			Address: strings.TrimSpace(req.Customer.Address),
		},
		Items:          lines,
		Discount:       req.Discount,
		DeliveryCharge: req.DeliveryCharge,
	}
}

// GET /sales  (newest first)
func (h *SaleHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.feed != nil {
		if snap := h.feed.Current(); snap.SalesReady {
			writeJSON(w, http.StatusOK, snap.Sales)
			return
		}
	}
	ss, err := h.uc.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

// POST /sales
func (h *SaleHandler) create(w http.ResponseWriter, r *http.Request) {
	var req saleCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.uc.CreateSale(r.Context(), req.toInput())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// GET /sales/{id}
func (h *SaleHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.uc.GetByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DELETE /sales/{id}
// 部分的な在庫復元は 200 + warnings で返します。
func (h *SaleHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	report, err := h.uc.DeleteSale(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
