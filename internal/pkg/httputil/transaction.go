package httputil

import (
	"net/http"
	"strings"

	"github.com/bissquit/identity-ledger/internal/pkg/metrics"
	"github.com/bissquit/identity-ledger/internal/pkg/txn"
)

// Transaction ID headers.
const (
	HeaderTransactionID = "X-Transaction-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// TransactionMiddleware assigns every request a transaction ID.
//
// The ID is taken from X-Transaction-ID, then X-Correlation-ID, and generated
// with gen when both are blank. It is stored in a request-scoped txn.Holder,
// echoed in the X-Transaction-ID response header, and cleared once the
// handler returns.
func TransactionMiddleware(gen *txn.Generator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, source := incomingTransactionID(r)
			if id == "" {
				id = gen.Generate()
				source = metrics.TxnSourceGenerated
			}
			metrics.TransactionIDs.WithLabelValues(source).Inc()

			holder := txn.NewHolder(gen)
			holder.Set(id)
			defer holder.Clear()

			w.Header().Set(HeaderTransactionID, id)

			next.ServeHTTP(w, r.WithContext(txn.WithHolder(r.Context(), holder)))
		})
	}
}

func incomingTransactionID(r *http.Request) (string, string) {
	if id := strings.TrimSpace(r.Header.Get(HeaderTransactionID)); id != "" {
		return id, metrics.TxnSourceHeader
	}
	if id := strings.TrimSpace(r.Header.Get(HeaderCorrelationID)); id != "" {
		return id, metrics.TxnSourceCorrelationHeader
	}
	return "", ""
}
