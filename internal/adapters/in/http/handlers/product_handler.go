// internal/adapters/in/http/handlers/product_handler.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"freesia/internal/application/feed"
	usecase "freesia/internal/application/usecase"
	productdom "freesia/internal/domain/product"
)

// maxImageBytes caps product image uploads.
const maxImageBytes = 10 << 20

// SnapshotReader is the part of the change feed the read endpoints use.
type SnapshotReader interface {
	Current() feed.Snapshot
}

// ProductHandler は /products 関連のエンドポイントを担当します。
type ProductHandler struct {
	uc   *usecase.ProductUsecase
	feed SnapshotReader
}

// NewProductHandler は HTTP ハンドラを初期化します。feed が nil のときは一覧を直接ストアから読みます。
func NewProductHandler(uc *usecase.ProductUsecase, f SnapshotReader) http.Handler {
	return &ProductHandler{uc: uc, feed: f}
}

// ServeHTTP はHTTPルーティングの入口です。
func (h *ProductHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	seg := pathSegments(r.URL.Path, "/products")

	switch {
	case len(seg) == 0 && r.Method == http.MethodGet:
		h.list(w, r)
	case len(seg) == 0 && r.Method == http.MethodPost:
		h.create(w, r)
	case len(seg) == 1 && r.Method == http.MethodGet:
		h.get(w, r, seg[0])
	case len(seg) == 1 && r.Method == http.MethodPatch:
		h.update(w, r, seg[0])
	case len(seg) == 1 && r.Method == http.MethodDelete:
		h.delete(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "status" && r.Method == http.MethodPost:
		h.setStatus(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "adjust" && r.Method == http.MethodPost:
		h.adjust(w, r, seg[0])
	case len(seg) == 2 && seg[1] == "image" && r.Method == http.MethodPut:
		h.putImage(w, r, seg[0])
	case len(seg) <= 2:
		methodNotAllowed(w)
	default:
		notFound(w)
	}
}

// ----------------------------------------
// DTO
// ----------------------------------------

type productCreateRequest struct {
	Title        string          `json:"title"`
	Quantity     int             `json:"quantity"`
	BuyPrice     decimal.Decimal `json:"buyPrice"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
	SellPrice    decimal.Decimal `json:"sellPrice"`
	Shipment     string          `json:"shipment"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
}

type productPatchRequest struct {
	Title        *string          `json:"title"`
	Quantity     *int             `json:"quantity"`
	BuyPrice     *decimal.Decimal `json:"buyPrice"`
	ShippingCost *decimal.Decimal `json:"shippingCost"`
	SellPrice    *decimal.Decimal `json:"sellPrice"`
	Status       *string          `json:"status"`
	Shipment     *string          `json:"shipment"`
	Description  *string          `json:"description"`
	Image        *string          `json:"image"`
}

func validPrices(ds ...*decimal.Decimal) bool {
	for _, d := range ds {
		if d != nil && d.IsNegative() {
			return false
		}
	}
	return true
}

// ----------------------------------------
// Handlers
// ----------------------------------------

// GET /products
func (h *ProductHandler) list(w http.ResponseWriter, r *http.Request) {
	if h.feed != nil {
		if snap := h.feed.Current(); snap.ProductsReady {
			writeJSON(w, http.StatusOK, snap.Products)
			return
		}
	}
	ps, err := h.uc.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// POST /products
func (h *ProductHandler) create(w http.ResponseWriter, r *http.Request) {
	var req productCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		badRequest(w, "title is required")
		return
	}
	if req.Quantity < 0 {
		badRequest(w, "quantity must be >= 0")
		return
	}
	if !validPrices(&req.BuyPrice, &req.ShippingCost, &req.SellPrice) {
		badRequest(w, "prices must be >= 0")
		return
	}

	p, err := h.uc.Create(r.Context(), productdom.CreateInput{
		Title:        req.Title,
		Quantity:     req.Quantity,
		BuyPrice:     req.BuyPrice,
		ShippingCost: req.ShippingCost,
		SellPrice:    req.SellPrice,
		Shipment:     strings.TrimSpace(req.Shipment),
		Description:  req.Description,
		Image:        strings.TrimSpace(req.Image),
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GET /products/{id}
func (h *ProductHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.uc.GetByID(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PATCH /products/{id}
func (h *ProductHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	var req productPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		badRequest(w, "title must not be empty")
		return
	}
	if req.Quantity != nil && *req.Quantity < 0 {
		badRequest(w, "quantity must be >= 0")
		return
	}
	if !validPrices(req.BuyPrice, req.ShippingCost, req.SellPrice) {
		badRequest(w, "prices must be >= 0")
		return
	}

	patch := productdom.Patch{
		Title:        req.Title,
		Quantity:     req.Quantity,
		BuyPrice:     req.BuyPrice,
		ShippingCost: req.ShippingCost,
		SellPrice:    req.SellPrice,
		Shipment:     req.Shipment,
		Description:  req.Description,
		Image:        req.Image,
	}
	if req.Status != nil {
		st := productdom.Status(strings.TrimSpace(*req.Status))
		patch.Status = &st
	}

	p, err := h.uc.Update(r.Context(), id, patch)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DELETE /products/{id}
func (h *ProductHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.uc.Delete(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /products/{id}/status  {"status":"rejected"}
func (h *ProductHandler) setStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.uc.SetStatus(r.Context(), id, productdom.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /products/{id}/adjust  {"delta":-2}
func (h *ProductHandler) adjust(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.uc.AdjustQuantity(r.Context(), id, req.Delta)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PUT /products/{id}/image?name=front.jpg  (raw body, Content-Type = image MIME)
func (h *ProductHandler) putImage(w http.ResponseWriter, r *http.Request, id string) {
	ct := strings.TrimSpace(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "image/") {
		badRequest(w, "content type must be image/*")
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	body := http.MaxBytesReader(w, r.Body, maxImageBytes)
	p, err := h.uc.AttachImage(r.Context(), id, name, ct, body)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
