package services

import (
	"context"

	"github.com/shopspring/decimal"

	"todocx/internal/document"
	"todocx/internal/media"
	"todocx/internal/quota"
)

// Fingerprinter yields the machine code of this host
type Fingerprinter interface {
	Fingerprint(ctx context.Context) string
}

// LicenseStore is the single-slot activation code record
type LicenseStore interface {
	Save(ctx context.Context, blob string) error
	Load(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) (bool, error)
}

// QuotaLedger is the durable quota record
type QuotaLedger interface {
	Initialize(ctx context.Context, apiKey string, total decimal.Decimal) error
	Read(ctx context.Context) (*quota.Record, bool, error)
	Debit(ctx context.Context, cost decimal.Decimal) (*quota.Record, error)
	Clear(ctx context.Context) (bool, error)
}

// EventPublisher pushes events to connected clients
type EventPublisher interface {
	Broadcast(eventType string, data interface{})
}

// DurationResolver transcribes media within the upstream limits
type DurationResolver interface {
	Resolve(ctx context.Context, path string, tr media.Transcriber) (*media.Result, error)
}

// AudioExtractor pulls the audio track out of a video
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, video string) (string, error)
}

// KindDetector classifies input files
type KindDetector interface {
	Detect(path string) (media.Kind, error)
}

// DocumentWriter renders text into an output file
type DocumentWriter interface {
	Generate(ctx context.Context, req document.Request) (string, error)
}

// TranscriberFactory binds a transcriber to the API key of the active license
type TranscriberFactory func(apiKey string) media.Transcriber

// EbookReader returns the text of an ebook
type EbookReader func(path string) (string, error)

// Event types
const (
	EventLicenseActivated    = "license.activated"
	EventLicenseDeactivated  = "license.deactivated"
	EventQuotaUpdated        = "quota.updated"
	EventConversionStarted   = "conversion.started"
	EventConversionCompleted = "conversion.completed"
	EventConversionFailed    = "conversion.failed"
)

type nopPublisher struct{}

func (nopPublisher) Broadcast(string, interface{}) {}
