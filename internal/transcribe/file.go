package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apperrors "todocx/internal/errors"
)

// Uploader makes a local file reachable at a public URL
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// FileTranscriber uploads a local file and transcribes it with one API key
type FileTranscriber struct {
	client   *Client
	uploader Uploader
	apiKey   string
}

// ForKey binds the client to an uploader and the key of the active license
func (c *Client) ForKey(uploader Uploader, apiKey string) *FileTranscriber {
	return &FileTranscriber{client: c, uploader: uploader, apiKey: apiKey}
}

// Transcribe uploads path and returns its transcript
func (f *FileTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	if f.uploader == nil {
		return "", fmt.Errorf("%w: object storage not configured", apperrors.ErrUpload)
	}
	link, err := f.uploader.Upload(ctx, path)
	if err != nil {
		return "", err
	}
	if err := f.client.checkReachable(ctx, link); err != nil {
		return "", err
	}
	return f.client.Transcribe(ctx, f.apiKey, link)
}

// checkReachable probes link before the job is submitted. A non-200 answer
// only warns, since some stores refuse HEAD on signed URLs.
func (c *Client) checkReachable(ctx context.Context, link string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUpload, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Uploaded file is not reachable; the recognition service needs a public URL",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: uploaded file not reachable: %v", apperrors.ErrUpload, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "Uploaded file might not be publicly accessible",
			slog.Int("status", resp.StatusCode))
	}
	return nil
}
