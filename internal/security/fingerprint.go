package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FingerprintLength is the number of hex characters kept from the digest.
const FingerprintLength = 16

// sourceTimeout bounds each identifier source; slow probes are skipped.
const sourceTimeout = 5 * time.Second

// Source reads one hardware identifier. An error or empty value omits the
// source from the fingerprint.
type Source interface {
	Name() string
	Read(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context) (string, error)
}

// Name implements Source
func (s SourceFunc) Name() string { return s.SourceName }

// Read implements Source
func (s SourceFunc) Read(ctx context.Context) (string, error) { return s.Fn(ctx) }

// Reading is the outcome of one source during a collection pass
type Reading struct {
	Source string `json:"source"`
	Value  string `json:"-"`
	Err    error  `json:"-"`
}

// Present reports whether the source contributed to the fingerprint
func (r Reading) Present() bool {
	return r.Err == nil && r.Value != ""
}

// FingerprintGenerator derives the machine code from the host's hardware
// identifiers. Concurrent callers share a single collection pass and the
// result is kept for the lifetime of the generator.
type FingerprintGenerator struct {
	sources  []Source
	fallback func() string
	logger   *slog.Logger
	group    singleflight.Group

	mu   sync.RWMutex
	code string
}

// Option customizes a FingerprintGenerator
type Option func(*FingerprintGenerator)

// WithSources replaces the default identifier sources
func WithSources(sources ...Source) Option {
	return func(g *FingerprintGenerator) {
		g.sources = sources
	}
}

// WithFallback replaces the identity used when no source yields a value
func WithFallback(fn func() string) Option {
	return func(g *FingerprintGenerator) {
		g.fallback = fn
	}
}

// NewFingerprintGenerator creates a generator reading DefaultSources
func NewFingerprintGenerator(logger *slog.Logger, opts ...Option) *FingerprintGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &FingerprintGenerator{
		sources:  DefaultSources(),
		fallback: FallbackIdentity,
		logger:   logger.With(slog.String("component", "fingerprint")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fingerprint returns the 16 character upper-case machine code. It never
// fails: when every source is unavailable the fallback identity is hashed.
func (g *FingerprintGenerator) Fingerprint(ctx context.Context) string {
	g.mu.RLock()
	code := g.code
	g.mu.RUnlock()
	if code != "" {
		return code
	}

	v, _, _ := g.group.Do("fingerprint", func() (interface{}, error) {
		// A caller going away must not abort the pass other callers share.
		code := g.compute(context.WithoutCancel(ctx))
		g.mu.Lock()
		g.code = code
		g.mu.Unlock()
		return code, nil
	})
	return v.(string)
}

// Collect reads every source and reports what each one produced. It is
// never cached.
func (g *FingerprintGenerator) Collect(ctx context.Context) []Reading {
	readings := make([]Reading, 0, len(g.sources))
	for _, src := range g.sources {
		readings = append(readings, g.read(ctx, src))
	}
	return readings
}

func (g *FingerprintGenerator) read(ctx context.Context, src Source) Reading {
	ctx, cancel := context.WithTimeout(ctx, sourceTimeout)
	defer cancel()

	value, err := src.Read(ctx)
	return Reading{Source: src.Name(), Value: strings.TrimSpace(value), Err: err}
}

func (g *FingerprintGenerator) compute(ctx context.Context) string {
	start := time.Now()

	readings := g.Collect(ctx)
	parts := make([]string, 0, len(readings))
	used := make([]string, 0, len(readings))
	for _, r := range readings {
		if !r.Present() {
			if r.Err != nil {
				g.logger.DebugContext(ctx, "fingerprint source unavailable",
					slog.String("source", r.Source),
					slog.String("error", r.Err.Error()))
			}
			continue
		}
		parts = append(parts, r.Value)
		used = append(used, r.Source)
	}

	var code string
	if len(parts) == 0 {
		code = Digest(g.fallback())
		g.logger.WarnContext(ctx, "No hardware identifiers available, using fallback identity",
			slog.String("machine_code", code))
	} else {
		code = Digest(strings.Join(parts, "|"))
		g.logger.InfoContext(ctx, "Machine code generated",
			slog.String("machine_code", code),
			slog.Any("sources", used),
			slog.Duration("generation_time", time.Since(start)))
	}
	return code
}

// Digest hashes identity with SHA-256 and returns the leading hex characters
// in upper case.
func Digest(identity string) string {
	sum := sha256.Sum256([]byte(identity))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:FingerprintLength])
}

// FallbackIdentity returns "{os}|{host}", e.g. "Windows|DESKTOP-1".
func FallbackIdentity() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s|%s", OSName(runtime.GOOS), host)
}

// OSName maps a GOOS value to the conventional system name
func OSName(goos string) string {
	switch goos {
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	default:
		return goos
	}
}
