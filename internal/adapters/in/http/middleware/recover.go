// backend\internal\adapters\in\http\middleware\recover.go
package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
)

func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				// panic の真因を Cloud Run logs に残す
				log.Printf("[recover] PANIC reqId=%s path=%s: %v\n%s",
					chimw.GetReqID(r.Context()), r.URL.Path, rec, string(debug.Stack()))

				// 支払い処理の途中で落ちた可能性があるため詳細は返さない
				writeMiddlewareError(w, http.StatusInternalServerError, "internal server error", "internal_error")
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func writeMiddlewareError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
