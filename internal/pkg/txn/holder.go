package txn

import (
	"context"
	"sync"
)

// Holder keeps the transaction identifier of a single request.
// A nil generator means the process-wide default.
type Holder struct {
	mu  sync.Mutex
	id  string
	gen *Generator
}

// NewHolder creates an empty holder that generates identifiers with gen on demand.
func NewHolder(gen *Generator) *Holder {
	return &Holder{gen: gen}
}

// Get returns the stored identifier, generating and storing one if none is set.
func (h *Holder) Get() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.id == "" {
		gen := h.gen
		if gen == nil {
			gen = Default()
		}
		h.id = gen.Generate()
	}
	return h.id
}

// Set stores id. The last writer wins.
func (h *Holder) Set(id string) {
	h.mu.Lock()
	h.id = id
	h.mu.Unlock()
}

// Clear removes the stored identifier.
func (h *Holder) Clear() {
	h.Set("")
}

// IsSet reports whether an identifier is currently stored.
func (h *Holder) IsSet() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id != ""
}

type ctxKey struct{}

// WithHolder attaches h to the context.
func WithHolder(ctx context.Context, h *Holder) context.Context {
	return context.WithValue(ctx, ctxKey{}, h)
}

// HolderFromContext returns the holder attached to ctx, or nil.
func HolderFromContext(ctx context.Context) *Holder {
	if h, ok := ctx.Value(ctxKey{}).(*Holder); ok {
		return h
	}
	return nil
}

// WithID returns a context carrying a new holder already set to id.
func WithID(ctx context.Context, id string) context.Context {
	h := NewHolder(nil)
	h.Set(id)
	return WithHolder(ctx, h)
}

// FromContext returns the request's transaction identifier.
// Outside of a request (no holder) a fresh identifier is generated on every call.
func FromContext(ctx context.Context) string {
	if h := HolderFromContext(ctx); h != nil {
		return h.Get()
	}
	return Generate()
}
