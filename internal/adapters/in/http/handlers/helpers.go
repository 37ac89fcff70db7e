// internal/adapters/in/http/handlers/helpers.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	usecase "freesia/internal/application/usecase"
	common "freesia/internal/domain/common"
	invoicedom "freesia/internal/domain/invoice"
	productdom "freesia/internal/domain/product"
	saledom "freesia/internal/domain/sale"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// set for insufficient stock
	ProductID string `json:"productId,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_input", Message: msg})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "not found"})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed", Message: "method not allowed"})
}

// writeErr maps domain errors to an actionable status and code.
func writeErr(w http.ResponseWriter, err error) {
	var se *saledom.StockError
	switch {
	case errors.As(err, &se):
		available := se.Available
		writeJSON(w, http.StatusConflict, errorBody{
			Error:     "insufficient_stock",
			Message:   se.Error(),
			ProductID: se.ProductID,
			Requested: se.Requested,
			Available: &available,
		})
	case errors.Is(err, productdom.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, errorBody{Error: "insufficient_stock", Message: err.Error()})
	case errors.Is(err, productdom.ErrNotFound), errors.Is(err, saledom.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: err.Error()})
	case errors.Is(err, saledom.ErrEmptyOrder):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "empty_order", Message: err.Error()})
	case errors.Is(err, saledom.ErrInvalidItem),
		errors.Is(err, saledom.ErrInvalidAmount),
		errors.Is(err, productdom.ErrInvalidQuantity),
		errors.Is(err, productdom.ErrInvalidStatus),
		errors.Is(err, productdom.ErrInvalidID):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_input", Message: err.Error()})
	case errors.Is(err, saledom.ErrProductNotSellable):
		writeJSON(w, http.StatusConflict, errorBody{Error: "product_not_sellable", Message: err.Error()})
	case errors.Is(err, saledom.ErrConflict), errors.Is(err, productdom.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "conflict", Message: err.Error()})
	case errors.Is(err, invoicedom.ErrTransientAllocationFailure):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "transient_allocation_failure", Message: "invoice number could not be allocated, retry the request"})
	case errors.Is(err, common.ErrContention):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "contention", Message: "too many concurrent changes, retry the request"})
	case errors.Is(err, usecase.ErrImageStoreNotConfigured):
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: "not_configured", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: err.Error()})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return false
	}
	return true
}

// pathSegments returns the parts after prefix: "/products/x/status" with
// prefix "/products" gives ["x", "status"].
func pathSegments(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// parseTimeParam accepts RFC3339 or a plain date (start of day in loc).
func parseTimeParam(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		tt := t.UTC()
		return &tt, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, err
	}
	tt := t.UTC()
	return &tt, nil
}
