// Package txn generates and carries transaction (correlation) identifiers.
//
// An identifier has the form PREFIX-YYYYMMDDHHMMSS-NNNNN, for example
// TXN-20240115103045-00042. The trailing sequence comes from a counter shared
// by every caller of the same Generator and wraps at 100000.
package txn

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "TXN"

const (
	timestampLayout = "20060102150405"
	sequenceModulo  = 100000
)

var idPattern = regexp.MustCompile(`^[A-Z]+-\d{14}-\d{5}$`)

// Generator produces transaction identifiers. It is safe for concurrent use.
type Generator struct {
	prefix  string
	counter atomic.Uint64
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a generator with the given prefix.
// An empty prefix falls back to DefaultPrefix.
func NewGenerator(prefix string, opts ...Option) *Generator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	g := &Generator{
		prefix: prefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Prefix returns the generator's default prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}

// Generate returns a new identifier with the generator's prefix.
func (g *Generator) Generate() string {
	return g.GenerateWithPrefix(g.prefix)
}

// GenerateWithPrefix returns a new identifier with a custom prefix.
// The sequence counter is shared with Generate.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	seq := g.counter.Add(1) % sequenceModulo
	ts := g.now().UTC().Format(timestampLayout)
	return fmt.Sprintf("%s-%s-%05d", prefix, ts, seq)
}

// IsValid reports whether id is a well-formed transaction identifier.
func IsValid(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	return idPattern.MatchString(id)
}

var defaultGenerator atomic.Pointer[Generator]

func init() {
	defaultGenerator.Store(NewGenerator(DefaultPrefix))
}

// SetDefault replaces the process-wide generator used by Generate and FromContext.
func SetDefault(g *Generator) {
	if g != nil {
		defaultGenerator.Store(g)
	}
}

// Default returns the process-wide generator.
func Default() *Generator {
	return defaultGenerator.Load()
}

// Generate returns a new identifier from the process-wide generator.
func Generate() string {
	return Default().Generate()
}

// GenerateWithPrefix returns a new identifier with a custom prefix from the process-wide generator.
func GenerateWithPrefix(prefix string) string {
	return Default().GenerateWithPrefix(prefix)
}
