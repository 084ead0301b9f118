package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"todocx/internal/config"
	apperrors "todocx/internal/errors"
)

const (
	submitPath = "/api/v1/services/audio/asr/transcription"
	tasksPath  = "/api/v1/tasks/"
)

// ErrNoAPIKey is returned when neither the license nor the configuration
// supplies a key
var ErrNoAPIKey = errors.New("speech recognition API key not configured, please activate the software first")

// Client calls the DashScope file transcription API
type Client struct {
	baseURL      string
	model        string
	pollInterval time.Duration
	timeout      time.Duration
	http         *http.Client
	logger       *slog.Logger
}

// NewClient creates a client from the ASR configuration
func NewClient(cfg config.ASRConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		model:        cfg.Model,
		pollInterval: poll,
		timeout:      cfg.Timeout,
		http:         httpClient,
		logger:       logger.With(slog.String("component", "asr_client")),
	}
}

// Transcribe runs one transcription job for the file at fileURL
func (c *Client) Transcribe(ctx context.Context, apiKey, fileURL string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("%w: %w", apperrors.ErrTranscription, ErrNoAPIKey)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	taskID, err := c.submit(ctx, apiKey, fileURL)
	if err != nil {
		return "", fmt.Errorf("%w: submit: %v", apperrors.ErrTranscription, err)
	}
	c.logger.InfoContext(ctx, "Transcription task submitted", slog.String("task_id", taskID))

	out, err := c.wait(ctx, apiKey, taskID)
	if err != nil {
		return "", fmt.Errorf("%w: task %s: %w", apperrors.ErrTranscription, taskID, err)
	}

	text, err := c.textOf(ctx, out)
	if err != nil {
		return "", fmt.Errorf("%w: task %s: %v", apperrors.ErrTranscription, taskID, err)
	}
	return text, nil
}

func (c *Client) submit(ctx context.Context, apiKey, fileURL string) (string, error) {
	body, err := json.Marshal(submitRequest{
		Model: c.model,
		Input: submitInput{FileURLs: []string{fileURL}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-Async", "enable")

	env, err := c.do(req, apiKey)
	if err != nil {
		return "", err
	}
	if env.Output.TaskID == "" {
		return "", fmt.Errorf("no task id in response (request %s)", env.RequestID)
	}
	return env.Output.TaskID, nil
}

func (c *Client) wait(ctx context.Context, apiKey, taskID string) (taskOutput, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tasksPath+taskID, nil)
		if err != nil {
			return taskOutput{}, err
		}
		env, err := c.do(req, apiKey)
		if err != nil {
			return taskOutput{}, err
		}
		if env.Output.terminal() {
			return env.Output, nil
		}

		c.logger.DebugContext(ctx, "Transcription task pending",
			slog.String("task_id", taskID),
			slog.String("status", env.Output.TaskStatus))

		select {
		case <-ctx.Done():
			return taskOutput{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, apiKey string) (*taskEnvelope, error) {
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var env taskEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("status %d: undecodable response", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s: %s", resp.StatusCode, env.Code, env.Message)
	}
	return &env, nil
}

// textOf turns a terminal task into text or a descriptive error
func (c *Client) textOf(ctx context.Context, out taskOutput) (string, error) {
	if out.Code == CodeNoValidFragment {
		return "", errors.New("audio contains no valid speech fragment")
	}
	if out.TaskStatus != StatusSucceeded && len(out.Results) == 0 {
		return "", fmt.Errorf("status %s: %s %s", out.TaskStatus, out.Code, out.Message)
	}
	if len(out.Results) == 0 {
		return "", errors.New("no transcription results returned")
	}

	first := out.Results[0]
	if first.SubtaskStatus == StatusFailed {
		if first.Code == "FILE_DOWNLOAD_FAILED" {
			c.logger.ErrorContext(ctx, "Recognition service cannot download the audio; check that the bucket allows public read",
				slog.String("file_url", first.FileURL))
		}
		return "", fmt.Errorf("subtask failed: %s - %s", first.Code, first.Message)
	}
	if first.Code == CodeNoValidFragment {
		return "", errors.New("audio contains no valid speech fragment")
	}

	text, via, err := c.Extract(ctx, first)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty transcription result")
	}
	c.logger.InfoContext(ctx, "Transcription completed",
		slog.String("extractor", via),
		slog.Int("characters", len([]rune(text))))
	return text, nil
}
