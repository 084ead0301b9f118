package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"todocx/internal/config"
	apperrors "todocx/internal/errors"
	"todocx/internal/files"
	"todocx/internal/infrastructure"
)

// Prober measures media duration in seconds
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Compressor re-encodes a file at a target bitrate and returns the new path
type Compressor interface {
	Compress(ctx context.Context, path, bitrate string) (string, error)
}

// Transcriber turns a local audio file into text
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// TranscriberFunc adapts a function to Transcriber
type TranscriberFunc func(ctx context.Context, path string) (string, error)

// Transcribe implements Transcriber
func (f TranscriberFunc) Transcribe(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// State is a resolver terminal state
type State string

const (
	StateDirect     State = "direct"
	StateCompressed State = "compressed"
	StateFailed     State = "failed"
)

// Limits are the hard constraints of the transcription service
type Limits struct {
	MaxFileSize int64
	MaxDuration time.Duration
	Bitrate     string
}

// LimitsFrom reads the limits from the media configuration
func LimitsFrom(cfg config.MediaConfig) Limits {
	return Limits{
		MaxFileSize: cfg.MaxFileSize,
		MaxDuration: cfg.MaxDuration,
		Bitrate:     cfg.TargetBitrate,
	}
}

// Result is a successful resolution. Duration is zero when it could not be
// measured; such a result must not be billed.
type Result struct {
	Text     string
	Duration float64
	State    State
}

// Billable reports whether the result carries a measured duration
func (r *Result) Billable() bool {
	return r.Duration > 0
}

// Resolver decides whether a file must be compressed before transcription
type Resolver struct {
	limits     Limits
	prober     Prober
	compressor Compressor
	logger     *slog.Logger
	metrics    *infrastructure.BusinessMetrics
}

// NewResolver creates a resolver
func NewResolver(limits Limits, prober Prober, compressor Compressor, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = infrastructure.NoopBusinessMetrics()
	}
	return &Resolver{
		limits:     limits,
		prober:     prober,
		compressor: compressor,
		logger:     logger.With(slog.String("component", "duration_resolver")),
		metrics:    metrics,
	}
}

// Resolve transcribes path with tr, compressing first if it violates the
// limits, and returns the text with the billable duration.
func (r *Resolver) Resolve(ctx context.Context, path string, tr Transcriber) (*Result, error) {
	res, err := r.resolve(ctx, path, tr)

	state := StateFailed
	if err == nil {
		state = res.State
	}
	r.metrics.ResolverOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, path string, tr Transcriber) (*Result, error) {
	size, err := files.FileSize(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", apperrors.ErrIO, filepath.Base(path), err)
	}
	duration, known := r.probe(ctx, path)

	r.logger.InfoContext(ctx, "Inspecting media",
		slog.String("file", filepath.Base(path)),
		slog.Int64("size_bytes", size),
		slog.Float64("duration_seconds", duration),
		slog.Bool("duration_known", known))

	if !r.tooLarge(size) && !(known && r.tooLong(duration)) {
		text, err := r.transcribe(ctx, tr, path)
		if err != nil {
			return nil, err
		}
		return &Result{Text: text, Duration: duration, State: StateDirect}, nil
	}

	r.logger.WarnContext(ctx, "Media exceeds transcription limits, compressing",
		slog.Int64("size_bytes", size),
		slog.Int64("max_file_size", r.limits.MaxFileSize),
		slog.Float64("duration_seconds", duration),
		slog.Float64("max_duration_seconds", r.limits.MaxDuration.Seconds()))

	compressed, err := r.compressor.Compress(ctx, path, r.limits.Bitrate)
	if err != nil {
		if !errors.Is(err, apperrors.ErrCompression) {
			err = fmt.Errorf("%w: %v", apperrors.ErrCompression, err)
		}
		return nil, err
	}
	defer r.cleanup(ctx, compressed)

	csize, err := files.FileSize(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: compressed output missing: %v", apperrors.ErrCompression, err)
	}
	cduration, cknown := r.probe(ctx, compressed)

	if r.tooLarge(csize) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", apperrors.ErrStillTooLarge, csize, r.limits.MaxFileSize)
	}
	if cknown && r.tooLong(cduration) {
		return nil, fmt.Errorf("%w: %.0f seconds, limit %.0f",
			apperrors.ErrStillTooLong, cduration, r.limits.MaxDuration.Seconds())
	}

	text, err := r.transcribe(ctx, tr, compressed)
	if err != nil {
		return nil, err
	}

	billed := cduration
	if !cknown {
		billed = duration
	}
	return &Result{Text: text, Duration: billed, State: StateCompressed}, nil
}

// probe returns the duration, or false when it cannot be measured
func (r *Resolver) probe(ctx context.Context, path string) (float64, bool) {
	d, err := r.prober.ProbeDuration(ctx, path)
	if err != nil {
		r.logger.WarnContext(ctx, "Could not probe duration",
			slog.String("file", filepath.Base(path)),
			slog.String("error", err.Error()))
		return 0, false
	}
	return d, true
}

func (r *Resolver) transcribe(ctx context.Context, tr Transcriber, path string) (string, error) {
	text, err := tr.Transcribe(ctx, path)
	if err != nil {
		if !errors.Is(err, apperrors.ErrTranscription) && !errors.Is(err, apperrors.ErrUpload) {
			err = fmt.Errorf("%w: %v", apperrors.ErrTranscription, err)
		}
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty transcription result", apperrors.ErrTranscription)
	}
	return text, nil
}

func (r *Resolver) tooLarge(size int64) bool {
	return size > r.limits.MaxFileSize
}

func (r *Resolver) tooLong(seconds float64) bool {
	return seconds > r.limits.MaxDuration.Seconds()
}

func (r *Resolver) cleanup(ctx context.Context, path string) {
	if _, err := files.RemoveIfExists(path); err != nil {
		r.logger.WarnContext(ctx, "Failed to delete compressed file",
			slog.String("file", path),
			slog.String("error", err.Error()))
	}
}
