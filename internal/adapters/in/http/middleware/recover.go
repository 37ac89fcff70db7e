// internal/adapters/in/http/middleware/recover.go
package middleware

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
)

func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				// panic の真因をログに残す
				log.Printf("[recover] PANIC: %v\n%s", rec, string(debug.Stack()))

				// 必ず JSON で 500 を返す（CORS は外側で付ける）
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "internal",
					"message": fmt.Sprint(rec),
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
