package handlers

import (
	"context"
	"net/http"
	"time"

	"freesia/internal/application/feed"
)

// FeedStatus is the part of the change feed /readyz reports on.
type FeedStatus interface {
	Current() feed.Snapshot
	Subscribers() int
}

// ReadyHandler answers /readyz: the store must answer a read.
type ReadyHandler struct {
	check func(ctx context.Context) error
	feed  FeedStatus
}

func NewReadyHandler(check func(ctx context.Context) error, f FeedStatus) http.Handler {
	return &ReadyHandler{check: check, feed: f}
}

type readyResponse struct {
	Status      string `json:"status"`
	FeedReady   bool   `json:"feedReady"`
	FeedSeq     uint64 `json:"feedSeq"`
	Subscribers int    `json:"subscribers"`
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}

	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "not_ready", Message: err.Error()})
			return
		}
	}

	resp := readyResponse{Status: "ready"}
	if h.feed != nil {
		snap := h.feed.Current()
		resp.FeedReady = snap.Ready()
		resp.FeedSeq = snap.Seq
		resp.Subscribers = h.feed.Subscribers()
	}
	writeJSON(w, http.StatusOK, resp)
}
