package transcribe

import (
	"encoding/json"
	"strings"
)

// Task statuses reported by the tasks endpoint
const (
	StatusPending   = "PENDING"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
	StatusCanceled  = "CANCELED"
	StatusUnknown   = "UNKNOWN"
)

// CodeNoValidFragment marks audio without recognizable speech
const CodeNoValidFragment = "SUCCESS_WITH_NO_VALID_FRAGMENT"

type submitRequest struct {
	Model      string            `json:"model"`
	Input      submitInput       `json:"input"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

type submitInput struct {
	FileURLs []string `json:"file_urls"`
}

type taskEnvelope struct {
	RequestID string     `json:"request_id"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Output    taskOutput `json:"output"`
}

type taskOutput struct {
	TaskID     string       `json:"task_id"`
	TaskStatus string       `json:"task_status"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Results    []TaskResult `json:"results"`
}

func (o taskOutput) terminal() bool {
	switch o.TaskStatus {
	case StatusSucceeded, StatusFailed, StatusCanceled, StatusUnknown:
		return true
	}
	return false
}

// TaskResult is one per-file result. Only some of the text-bearing fields
// are populated, depending on the API version that produced it.
type TaskResult struct {
	FileURL          string `json:"file_url"`
	SubtaskStatus    string `json:"subtask_status"`
	Code             string `json:"code"`
	Message          string `json:"message"`
	TranscriptionURL string `json:"transcription_url"`

	Text              string          `json:"text"`
	TranscriptionText string          `json:"transcription_text"`
	Transcription     json.RawMessage `json:"transcription"`
}

// Shape identifies which representation a result uses
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeRemote
	ShapeInlineText
	ShapeNestedObject
	ShapeNestedString
)

// nested decodes the transcription member, which is either an object with
// a text field or a bare string.
func (r TaskResult) nested() (text string, shape Shape) {
	raw := strings.TrimSpace(string(r.Transcription))
	if raw == "" || raw == "null" {
		return "", ShapeEmpty
	}
	var s string
	if err := json.Unmarshal(r.Transcription, &s); err == nil {
		return s, ShapeNestedString
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(r.Transcription, &obj); err == nil {
		return obj.Text, ShapeNestedObject
	}
	return "", ShapeEmpty
}

// Shape reports the representation in precedence order
func (r TaskResult) Shape() Shape {
	switch {
	case r.TranscriptionURL != "":
		return ShapeRemote
	case r.Text != "" || r.TranscriptionText != "":
		return ShapeInlineText
	}
	_, shape := r.nested()
	return shape
}

// remoteTranscript is the document behind transcription_url
type remoteTranscript struct {
	Transcripts []struct {
		Text string `json:"text"`
	} `json:"transcripts"`
}
