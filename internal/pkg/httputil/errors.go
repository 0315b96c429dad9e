package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/identity-ledger/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// HandleError writes the response of the first mapping matching err.
//
// Expired or cancelled request contexts become 504 and 499 respectively.
// Anything else is logged and reported as 500 without leaking the cause.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			ctxlog.FromContext(ctx).Debug("request rejected", "status", m.Status, "error", err)
			Error(w, m.Status, msg)
			return
		}
	}

	log := ctxlog.FromContext(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", "error", err)
		Error(w, http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		log.Info("request cancelled by client", "error", err)
		Error(w, StatusClientClosedRequest, "request cancelled")
	default:
		log.Error("internal error", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// StatusClientClosedRequest is the nginx convention for a client that went away.
const StatusClientClosedRequest = 499
