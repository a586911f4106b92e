// Package id provides ULID-based identifier generation for the host.
//
// Correlation tokens for bridge calls are normally minted by the front-end
// and treated as opaque strings; this package covers the host-originated
// side: tokens for headless invocations. ULIDs are lexicographically
// sortable, which keeps log output in call order without extra timestamps.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Token correlates one bridge invocation with its response.
type Token string

const TokenPrefix = "tok"

// Generator produces prefixed ULID strings.
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // ulid entropy readers are not concurrency-safe
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID.
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string.
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewToken generates a host-originated correlation token.
func NewToken() Token {
	return Token(Default().GenerateWithPrefix(TokenPrefix))
}

func (t Token) String() string { return string(t) }

// IsValid reports whether s is a prefixed ULID produced by this package.
func IsValid(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			_, err := ulid.Parse(s[i+1:])
			return err == nil
		}
	}
	_, err := ulid.Parse(s)
	return err == nil
}
