package inference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// SpeechClient calls an OpenAI-compatible /v1/audio/transcriptions endpoint
// (faster-whisper-server, whisper.cpp server, LocalAI).
type SpeechClient struct {
	baseClient
	model    string
	language string
	beamSize int
}

func NewSpeechClient(baseURL, apiKey, model, language string, timeout time.Duration) *SpeechClient {
	return &SpeechClient{
		baseClient: newBaseClient(baseURL, apiKey, timeout),
		model:      model,
		language:   language,
	}
}

// WithBeamSize sets the decoder beam width sent with every request. Zero
// leaves the server default.
func (c *SpeechClient) WithBeamSize(n int) *SpeechClient {
	c.beamSize = n
	return c
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the file at path as multipart form data.
func (c *SpeechClient) Transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open chunk: %w", err)
	}
	defer f.Close()

	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy chunk: %w", err)
	}
	_ = w.WriteField("model", c.model)
	if c.language != "" {
		_ = w.WriteField("language", c.language)
	}
	if c.beamSize > 0 {
		_ = w.WriteField("beam_size", strconv.Itoa(c.beamSize))
	}
	_ = w.WriteField("response_format", "json")
	_ = w.WriteField("temperature", "0")
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", &b)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var resp transcriptionResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// Ready probes the server health endpoint.
func (c *SpeechClient) Ready(ctx context.Context) error {
	return c.ping(ctx, "/health")
}
