package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"todocx/internal/document"
	apperrors "todocx/internal/errors"
	"todocx/internal/files"
	"todocx/internal/infrastructure"
	"todocx/internal/media"
)

// PreviewLength is the number of runes of extracted text echoed back
const PreviewLength = 200

// ConvertRequest describes one conversion job
type ConvertRequest struct {
	FilePath       string `json:"file_path" validate:"required"`
	OutputFormat   string `json:"output_format" validate:"omitempty,oneof=docx markdown md"`
	Title          string `json:"title,omitempty"`
	OutputFilename string `json:"output_filename,omitempty"`
	OutputDir      string `json:"output_dir,omitempty"`
}

// ConvertResponse is the outcome of a successful conversion
type ConvertResponse struct {
	Success        bool            `json:"success"`
	JobID          string          `json:"job_id"`
	Message        string          `json:"message"`
	Kind           string          `json:"kind"`
	OutputFile     string          `json:"output_file"`
	ContentPreview string          `json:"content_preview,omitempty"`
	Duration       float64         `json:"billable_duration_seconds"`
	Cost           decimal.Decimal `json:"cost"`
	Billed         bool            `json:"billed"`
	RemainingQuota decimal.Decimal `json:"remaining_quota"`
}

// conversionJob is the request-scoped state of one conversion
type conversionJob struct {
	id       string
	source   string
	kind     media.Kind
	duration float64
}

// ConversionService runs the gate, extraction, settlement and rendering
// sequence for one file.
type ConversionService struct {
	gate       *Gate
	detector   KindDetector
	resolver   DurationResolver
	extractor  AudioExtractor
	transcribe TranscriberFactory
	readEbook  EbookReader
	writer     DocumentWriter
	events     EventPublisher
	fallback   string
	logger     *slog.Logger
	metrics    *infrastructure.BusinessMetrics
}

// ConversionDeps groups the collaborators of a ConversionService
type ConversionDeps struct {
	Gate        *Gate
	Detector    KindDetector
	Resolver    DurationResolver
	Extractor   AudioExtractor
	Transcriber TranscriberFactory
	EbookReader EbookReader
	Writer      DocumentWriter
	Events      EventPublisher
	// FallbackAPIKey is used when the license carries no API key
	FallbackAPIKey string
	Metrics        *infrastructure.BusinessMetrics
}

// NewConversionService creates the service
func NewConversionService(deps ConversionDeps, logger *slog.Logger) *ConversionService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ConversionService{
		gate:       deps.Gate,
		detector:   deps.Detector,
		resolver:   deps.Resolver,
		extractor:  deps.Extractor,
		transcribe: deps.Transcriber,
		readEbook:  deps.EbookReader,
		writer:     deps.Writer,
		events:     deps.Events,
		fallback:   deps.FallbackAPIKey,
		logger:     logger.With(slog.String("service", "conversion")),
		metrics:    deps.Metrics,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.readEbook == nil {
		s.readEbook = document.ExtractEPUB
	}
	if s.metrics == nil {
		s.metrics = infrastructure.NoopBusinessMetrics()
	}
	return s
}

// Convert turns req.FilePath into a document. Gate failures abort before any
// external side effect. Audio and video are billed after transcription
// returned text; ebooks are never billed.
func (s *ConversionService) Convert(ctx context.Context, req ConvertRequest) (*ConvertResponse, error) {
	start := time.Now()
	job := &conversionJob{id: uuid.New().String(), source: req.FilePath}
	logger := s.logger.With(slog.String("job_id", job.id), slog.String("file", req.FilePath))

	format, err := parseFormat(req.OutputFormat)
	if err != nil {
		return nil, err
	}

	auth, err := s.gate.Authorize(ctx)
	if err != nil {
		return nil, err
	}

	job.kind, err = s.detector.Detect(req.FilePath)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Processing file", slog.String("kind", job.kind.String()))
	s.events.Broadcast(EventConversionStarted, map[string]interface{}{
		"job_id": job.id,
		"file":   files.Stem(req.FilePath),
		"kind":   job.kind.String(),
	})

	resp, err := s.run(ctx, job, auth, format, req)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		logger.ErrorContext(ctx, "Conversion failed", slog.String("error", err.Error()))
		s.events.Broadcast(EventConversionFailed, map[string]interface{}{
			"job_id": job.id,
			"error":  err.Error(),
		})
		return nil, err
	}

	s.metrics.ConversionDuration.Record(ctx, time.Since(start).Seconds())
	s.events.Broadcast(EventConversionCompleted, map[string]interface{}{
		"job_id":      job.id,
		"output_file": resp.OutputFile,
		"billed":      resp.Billed,
	})
	return resp, nil
}

func (s *ConversionService) run(ctx context.Context, job *conversionJob, auth *Authorization, format document.Format, req ConvertRequest) (*ConvertResponse, error) {
	resp := &ConvertResponse{JobID: job.id, Kind: job.kind.String(), RemainingQuota: auth.Remaining}

	var text string
	switch job.kind {
	case media.KindEbook:
		var err error
		text, err = s.readEbook(job.source)
		if err != nil {
			return nil, err
		}
	case media.KindAudio, media.KindVideo:
		// Billing follows the return of the transcription, not the caller.
		billable := context.WithoutCancel(ctx)

		result, err := s.transcribeMedia(billable, job, auth)
		if err != nil {
			return nil, err
		}
		text = result.Text
		job.duration = result.Duration
		resp.Duration = result.Duration

		settlement, err := s.gate.Settle(billable, job.duration)
		switch {
		case err != nil:
			s.logger.ErrorContext(ctx, "Failed to settle conversion",
				slog.String("job_id", job.id), slog.String("error", err.Error()))
		case !settlement.Skipped:
			resp.Billed = true
			resp.Cost = settlement.Cost
			resp.RemainingQuota = settlement.Record.RemainingQuota
		}
	default:
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedKind, job.source)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text extracted", apperrors.ErrTranscription)
	}

	title := req.Title
	if title == "" {
		title = files.Stem(job.source)
	}
	out, err := s.writer.Generate(ctx, document.Request{
		Content:   text,
		Title:     title,
		Format:    format,
		Filename:  req.OutputFilename,
		OutputDir: req.OutputDir,
	})
	if err != nil {
		return nil, err
	}

	resp.Success = true
	resp.OutputFile = out
	resp.ContentPreview = document.Preview(text, PreviewLength)
	resp.Message = fmt.Sprintf("File converted successfully to %s. Remaining quota: %s",
		strings.ToUpper(string(format)), resp.RemainingQuota.StringFixed(4))
	return resp, nil
}

// transcribeMedia extracts the audio track of videos, then runs the resolver
func (s *ConversionService) transcribeMedia(ctx context.Context, job *conversionJob, auth *Authorization) (*media.Result, error) {
	source := job.source
	if job.kind == media.KindVideo {
		audio, err := s.extractor.ExtractAudio(ctx, source)
		if err != nil {
			return nil, err
		}
		defer func() {
			if _, err := files.RemoveIfExists(audio); err != nil {
				s.logger.WarnContext(ctx, "Failed to remove extracted audio",
					slog.String("path", audio), slog.String("error", err.Error()))
			}
		}()
		source = audio
	}

	apiKey := auth.Payload.APIKey
	if apiKey == "" {
		apiKey = s.fallback
	}
	return s.resolver.Resolve(ctx, source, s.transcribe(apiKey))
}

func parseFormat(v string) (document.Format, error) {
	switch strings.ToLower(v) {
	case "", "docx":
		return document.FormatDOCX, nil
	case "md", "markdown":
		return document.FormatMarkdown, nil
	default:
		return "", apperrors.NewWithDetails(apperrors.ErrInvalidRequest.StatusCode, "INVALID_REQUEST",
			"Unsupported output format", v)
	}
}
