package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"todocx/internal/config"
	"todocx/internal/document"
	apperrors "todocx/internal/errors"
	"todocx/internal/media"
	"todocx/internal/shared/testutil"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(ctx context.Context, path string, tr media.Transcriber) (*media.Result, error) {
	args := m.Called(ctx, path, tr)
	if r := args.Get(0); r != nil {
		return r.(*media.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractAudio(ctx context.Context, video string) (string, error) {
	args := m.Called(ctx, video)
	return args.String(0), args.Error(1)
}

type conversionFixture struct {
	*env
	svc       *ConversionService
	resolver  *mockResolver
	extractor *mockExtractor
	keys      []string
	inputs    string
	outputs   string
}

func newConversion(t *testing.T) *conversionFixture {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	e := newEnv(t)
	e.events.On("Broadcast", mock.Anything, mock.Anything)

	f := &conversionFixture{
		env:       e,
		resolver:  &mockResolver{},
		extractor: &mockExtractor{},
		inputs:    t.TempDir(),
		outputs:   t.TempDir(),
	}
	f.svc = NewConversionService(ConversionDeps{
		Gate:      e.gate,
		Detector:  media.NewDetector(config.Default().Media, logger),
		Resolver:  f.resolver,
		Extractor: f.extractor,
		Transcriber: func(apiKey string) media.Transcriber {
			f.keys = append(f.keys, apiKey)
			return media.TranscriberFunc(func(context.Context, string) (string, error) { return "", nil })
		},
		EbookReader:    func(string) (string, error) { return "Chapter one. It was a dark night.", nil },
		Writer:         document.NewGenerator(f.outputs, logger),
		Events:         e.events,
		FallbackAPIKey: "sk-fallback",
	}, logger)
	return f
}

func (f *conversionFixture) input(t *testing.T, name string) string {
	return testutil.WriteSizedFile(t, f.inputs, name, 1024)
}

func TestConvert_AudioBilledAfterTranscription(t *testing.T) {
	ctx := context.Background()
	f := newConversion(t)
	f.activate(t, "10.0")
	src := f.input(t, "meeting.mp3")

	f.resolver.On("Resolve", mock.Anything, src, mock.Anything).
		Return(&media.Result{Text: "hello world", Duration: 3600, State: media.StateDirect}, nil)

	resp, err := f.svc.Convert(ctx, ConvertRequest{FilePath: src, OutputFormat: "docx"})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.True(t, resp.Billed)
	assert.Equal(t, "audio", resp.Kind)
	assert.Equal(t, "0.8", resp.Cost.String())
	assert.Equal(t, "9.2", resp.RemainingQuota.String())
	assert.Equal(t, "hello world", resp.ContentPreview)
	assert.Contains(t, resp.Message, "DOCX")
	assert.Equal(t, ".docx", filepath.Ext(resp.OutputFile))
	assert.FileExists(t, resp.OutputFile)
	assert.Equal(t, []string{"sk-test1234"}, f.keys)

	f.events.AssertCalled(t, "Broadcast", EventConversionStarted, mock.Anything)
	f.events.AssertCalled(t, "Broadcast", EventQuotaUpdated, mock.Anything)
	f.events.AssertCalled(t, "Broadcast", EventConversionCompleted, mock.Anything)
}

func TestConvert_GateFailureHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newConversion(t)
	src := f.input(t, "meeting.mp3")

	_, err := f.svc.Convert(ctx, ConvertRequest{FilePath: src})
	assert.ErrorIs(t, err, apperrors.ErrNotActivated)

	f.activate(t, "0")
	_, err = f.svc.Convert(ctx, ConvertRequest{FilePath: src})
	assert.ErrorIs(t, err, apperrors.ErrQuotaExhausted)

	f.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "Broadcast", EventConversionStarted, mock.Anything)
	assert.Empty(t, f.keys)
}

func TestConvert_TranscriptionFailureIsNotBilled(t *testing.T) {
	ctx := context.Background()
	f := newConversion(t)
	f.activate(t, "10")
	src := f.input(t, "long.wav")

	f.resolver.On("Resolve", mock.Anything, src, mock.Anything).
		Return(nil, apperrors.ErrStillTooLong)

	_, err := f.svc.Convert(ctx, ConvertRequest{FilePath: src})
	assert.ErrorIs(t, err, apperrors.ErrStillTooLong)

	rec, _, err := f.ledger.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10", rec.RemainingQuota.String())
	f.events.AssertCalled(t, "Broadcast", EventConversionFailed, mock.Anything)
	f.events.AssertNotCalled(t, "Broadcast", EventQuotaUpdated, mock.Anything)
}

func TestConvert_UnknownDurationSkipsSettlement(t *testing.T) {
	ctx := context.Background()
	f := newConversion(t)
	f.activate(t, "10")
	src := f.input(t, "clip.m4a")

	f.resolver.On("Resolve", mock.Anything, src, mock.Anything).
		Return(&media.Result{Text: "text", Duration: 0, State: media.StateDirect}, nil)

	resp, err := f.svc.Convert(ctx, ConvertRequest{FilePath: src, OutputFormat: "md"})
	require.NoError(t, err)
	assert.False(t, resp.Billed)
	assert.Equal(t, "10", resp.RemainingQuota.String())
	assert.Equal(t, ".md", filepath.Ext(resp.OutputFile))
}

func TestConvert_VideoExtractsAudioFirst(t *testing.T) {
	ctx := context.Background()
	f := newConversion(t)
	f.activate(t, "10")
	src := f.input(t, "talk.mp4")
	audio := testutil.WriteSizedFile(t, t.TempDir(), "talk_audio.mp3", 128)

	f.extractor.On("ExtractAudio", mock.Anything, src).Return(audio, nil)
	f.resolver.On("Resolve", mock.Anything, audio, mock.Anything).
		Return(&media.Result{Text: "spoken words", Duration: 1800, State: media.StateCompressed}, nil)

	resp, err := f.svc.Convert(ctx, ConvertRequest{FilePath: src, Title: "Talk"})
	require.NoError(t, err)
	assert.Equal(t, "video", resp.Kind)
	assert.Equal(t, "0.4", resp.Cost.String())
	assert.NoFileExists(t, audio, "extracted audio removed")
}

func TestConvert_VideoExtractionFailure(t *testing.T) {
	f := newConversion(t)
	f.activate(t, "10")
	src := f.input(t, "talk.mkv")
	f.extractor.On("ExtractAudio", mock.Anything, src).Return("", apperrors.ErrCompression)

	_, err := f.svc.Convert(context.Background(), ConvertRequest{FilePath: src})
	assert.ErrorIs(t, err, apperrors.ErrCompression)
	f.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestConvert_EbookIsNeverBilled(t *testing.T) {
	ctx := context.Background()
	f := newConversion(t)
	f.activate(t, "10")
	src := f.input(t, "novel.epub")

	resp, err := f.svc.Convert(ctx, ConvertRequest{FilePath: src, OutputFormat: "markdown", OutputFilename: "novel"})
	require.NoError(t, err)
	assert.False(t, resp.Billed)
	assert.Equal(t, "novel.md", filepath.Base(resp.OutputFile))

	data, err := os.ReadFile(resp.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# novel")
	assert.Contains(t, string(data), "It was a dark night.")
	f.resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
}

func TestConvert_FallbackAPIKey(t *testing.T) {
	ctx := context.Background()
	f := newConversion(t)
	f.activate(t, "10")
	// Replace the license with one carrying no API key
	require.NoError(t, f.store.Save(ctx, f.blob(t, licensePayloadWithoutKey())))
	src := f.input(t, "a.flac")
	f.resolver.On("Resolve", mock.Anything, src, mock.Anything).
		Return(&media.Result{Text: "x", Duration: 36, State: media.StateDirect}, nil)

	_, err := f.svc.Convert(ctx, ConvertRequest{FilePath: src})
	require.NoError(t, err)
	assert.Equal(t, []string{"sk-fallback"}, f.keys)
}

func TestConvert_BadInput(t *testing.T) {
	ctx := context.Background()
	f := newConversion(t)
	f.activate(t, "10")

	_, err := f.svc.Convert(ctx, ConvertRequest{FilePath: f.input(t, "notes.txt")})
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedKind)

	_, err = f.svc.Convert(ctx, ConvertRequest{FilePath: filepath.Join(f.inputs, "missing.mp3")})
	var apiErr *apperrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 404, apiErr.StatusCode)

	_, err = f.svc.Convert(ctx, ConvertRequest{FilePath: f.input(t, "a.mp3"), OutputFormat: "pdf"})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.StatusCode)
}
