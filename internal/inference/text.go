package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// TextClient calls a Hugging Face style /models/{id} endpoint for one model.
type TextClient struct {
	baseClient
	modelID   string
	maxLength int
}

func NewTextClient(baseURL, apiKey, modelID string, maxLength int, timeout time.Duration) *TextClient {
	return &TextClient{
		baseClient: newBaseClient(baseURL, apiKey, timeout),
		modelID:    modelID,
		maxLength:  maxLength,
	}
}

func (c *TextClient) ModelID() string { return c.modelID }

func (c *TextClient) endpoint() string {
	return c.baseURL + "/models/" + escapeModelID(c.modelID)
}

// escapeModelID keeps the owner/name slash.
func escapeModelID(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

type textRequest struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
}

func (c *TextClient) Run(ctx context.Context, text string, r Request) (Output, error) {
	body := textRequest{
		Inputs:     text,
		Parameters: map[string]any{},
		Options:    map[string]any{"wait_for_model": true},
	}
	switch r.Task {
	case TaskSummarize:
		body.Parameters["max_length"] = r.MaxLength
		body.Parameters["min_length"] = r.MinLength
		body.Parameters["do_sample"] = false
		body.Parameters["truncation"] = true
	case TaskZeroShot:
		if len(r.CandidateLabels) == 0 {
			return Output{}, fmt.Errorf("zero-shot request without candidate labels")
		}
		body.Parameters["candidate_labels"] = r.CandidateLabels
	default:
		body.Parameters["truncation"] = true
		if c.maxLength > 0 {
			body.Parameters["max_length"] = c.maxLength
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Output{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(data))
	if err != nil {
		return Output{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var raw json.RawMessage
	if err := c.do(req, &raw); err != nil {
		return Output{}, err
	}

	switch r.Task {
	case TaskSummarize:
		return parseSummary(raw)
	case TaskZeroShot:
		return parseZeroShot(raw)
	default:
		return parseClassification(raw)
	}
}

// Ready succeeds once the server reports the model.
func (c *TextClient) Ready(ctx context.Context) error {
	return c.ping(ctx, "/models/"+escapeModelID(c.modelID))
}

// parseClassification accepts [[{label,score}]] and [{label,score}].
func parseClassification(raw json.RawMessage) (Output, error) {
	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return Output{Labels: sorted(nested[0])}, nil
	}
	var flat []LabelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return Output{}, fmt.Errorf("unexpected classification response: %s", truncate(string(raw), 256))
	}
	return Output{Labels: sorted(flat)}, nil
}

// parseZeroShot accepts {sequence,labels,scores} and [{label,score}].
func parseZeroShot(raw json.RawMessage) (Output, error) {
	var obj struct {
		Labels []string  `json:"labels"`
		Scores []float64 `json:"scores"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if len(obj.Labels) != len(obj.Scores) {
			return Output{}, fmt.Errorf("zero-shot response has %d labels and %d scores", len(obj.Labels), len(obj.Scores))
		}
		out := make([]LabelScore, len(obj.Labels))
		for i := range obj.Labels {
			out[i] = LabelScore{Label: obj.Labels[i], Score: obj.Scores[i]}
		}
		return Output{Labels: sorted(out)}, nil
	}
	return parseClassification(raw)
}

func parseSummary(raw json.RawMessage) (Output, error) {
	var list []struct {
		SummaryText string `json:"summary_text"`
	}
	if err := json.Unmarshal(raw, &list); err != nil || len(list) == 0 {
		return Output{}, fmt.Errorf("unexpected summarization response: %s", truncate(string(raw), 256))
	}
	return Output{Text: strings.TrimSpace(list[0].SummaryText)}, nil
}

func sorted(ls []LabelScore) []LabelScore {
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].Score > ls[j].Score })
	return ls
}
