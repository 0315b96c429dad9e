package httputil

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/bissquit/identity-ledger/internal/pkg/ctxlog"
	"github.com/go-chi/chi/v5/middleware"
)

// Recoverer turns a handler panic into a logged JSON 500.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			ctxlog.FromContext(r.Context()).Error("panic recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			Error(w, http.StatusInternalServerError, "internal error")
		}()

		next.ServeHTTP(w, r)
	})
}

// Timeout bounds the request context by d. When the deadline passes and the
// handler has written nothing, a JSON 504 is sent.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if ww.Status() == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				Error(w, http.StatusGatewayTimeout, "request timed out")
			}
		})
	}
}
