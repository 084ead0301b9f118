package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// extractor pulls text from one result shape. ok is false when the shape
// does not apply, so the next extractor is tried.
type extractor struct {
	name string
	fn   func(ctx context.Context, c *Client, r TaskResult) (text string, ok bool, err error)
}

// extractors is the fallback chain, tried in order; the first non-empty
// text wins.
var extractors = []extractor{
	{"transcription_url", fromRemote},
	{"text", func(_ context.Context, _ *Client, r TaskResult) (string, bool, error) {
		return r.Text, r.Text != "", nil
	}},
	{"transcription_text", func(_ context.Context, _ *Client, r TaskResult) (string, bool, error) {
		return r.TranscriptionText, r.TranscriptionText != "", nil
	}},
	{"transcription", func(_ context.Context, _ *Client, r TaskResult) (string, bool, error) {
		text, _ := r.nested()
		return text, text != "", nil
	}},
}

// Extract returns the transcript of r and the name of the extractor used
func (c *Client) Extract(ctx context.Context, r TaskResult) (string, string, error) {
	for _, ex := range extractors {
		text, ok, err := ex.fn(ctx, c, r)
		if err != nil {
			return "", ex.name, err
		}
		if ok {
			return text, ex.name, nil
		}
	}
	return "", "", nil
}

func fromRemote(ctx context.Context, c *Client, r TaskResult) (string, bool, error) {
	if r.TranscriptionURL == "" {
		return "", false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.TranscriptionURL, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetch transcription: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("fetch transcription: status %d", resp.StatusCode)
	}

	var doc remoteTranscript
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", false, fmt.Errorf("decode transcription: %w", err)
	}
	if len(doc.Transcripts) == 0 {
		return "", true, nil
	}
	return doc.Transcripts[0].Text, true, nil
}
