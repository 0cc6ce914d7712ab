// Package inference talks to the HTTP inference servers hosting the speech
// and text models. Calls are never retried here; only readiness probes at
// load time back off.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SpeechModel transcribes one audio file.
type SpeechModel interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// TextModel runs one classification or generation request.
type TextModel interface {
	Run(ctx context.Context, text string, req Request) (Output, error)
}

type Task int

const (
	TaskClassify Task = iota
	TaskSummarize
	TaskZeroShot
)

func (t Task) String() string {
	switch t {
	case TaskSummarize:
		return "summarization"
	case TaskZeroShot:
		return "zero-shot-classification"
	default:
		return "text-classification"
	}
}

// Request carries task-specific parameters.
type Request struct {
	Task            Task
	CandidateLabels []string
	MaxLength       int
	MinLength       int
}

type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Output is the raw result of a text model. Classification tasks fill
// Labels sorted by descending score; summarization fills Text.
type Output struct {
	Labels []LabelScore
	Text   string
}

// Top returns the highest scoring label.
func (o Output) Top() (LabelScore, bool) {
	if len(o.Labels) == 0 {
		return LabelScore{}, false
	}
	best := o.Labels[0]
	for _, l := range o.Labels[1:] {
		if l.Score > best.Score {
			best = l
		}
	}
	return best, true
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference server returned %d: %s", e.Code, e.Body)
}

type baseClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newBaseClient(baseURL, apiKey string, timeout time.Duration) baseClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return baseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c baseClient) do(req *http.Request, target any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 512)}
	}
	if target == nil {
		return nil
	}
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("json decode error: %v body=%s", err, truncate(string(body), 512))
	}
	return nil
}

// ping issues a GET and succeeds on any 2xx.
func (c baseClient) ping(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
