// Package modelstest provides in-process fakes for the speech and text models.
package modelstest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"call-audit-go/internal/inference"
)

// Speech answers by chunk file name. Delay, if set, is called before
// answering and lets tests shuffle completion order.
type Speech struct {
	Texts map[string]string
	Err   map[string]error
	Delay func(ctx context.Context, name string)

	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
}

func (s *Speech) Transcribe(ctx context.Context, path string) (string, error) {
	s.calls.Add(1)
	name := filepath.Base(path)
	s.mu.Lock()
	s.seen = append(s.seen, path)
	s.mu.Unlock()

	if s.Delay != nil {
		s.Delay(ctx, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := s.Err[name]; ok {
		return "", err
	}
	return s.Texts[name], nil
}

func (s *Speech) Calls() int { return int(s.calls.Load()) }

// Paths returns every chunk path the fake was asked to transcribe.
func (s *Speech) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// Text returns Out (or OutFor by task) and counts calls.
type Text struct {
	Out    inference.Output
	OutFor map[inference.Task][]inference.Output
	Err    error

	calls atomic.Int32
	mu    sync.Mutex
	next  map[inference.Task]int
}

func (t *Text) Run(ctx context.Context, text string, req inference.Request) (inference.Output, error) {
	t.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return inference.Output{}, err
	}
	if t.Err != nil {
		return inference.Output{}, t.Err
	}
	if outs, ok := t.OutFor[req.Task]; ok && len(outs) > 0 {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.next == nil {
			t.next = make(map[inference.Task]int)
		}
		i := t.next[req.Task]
		if i >= len(outs) {
			i = len(outs) - 1
		}
		t.next[req.Task]++
		return outs[i], nil
	}
	return t.Out, nil
}

func (t *Text) Calls() int { return int(t.calls.Load()) }

// Labels builds a classification output.
func Labels(pairs ...any) inference.Output {
	var out inference.Output
	for i := 0; i+1 < len(pairs); i += 2 {
		out.Labels = append(out.Labels, inference.LabelScore{
			Label: pairs[i].(string),
			Score: pairs[i+1].(float64),
		})
	}
	return out
}

// Loader hands out fixed models; names listed in Fail return an error.
type Loader struct {
	Speech inference.SpeechModel
	Text   map[string]inference.TextModel
	Fail   map[string]bool
}

var ErrLoad = errors.New("model failed to load")

func (l *Loader) LoadSpeech(ctx context.Context, modelID string) (inference.SpeechModel, error) {
	if l.Fail[modelID] {
		return nil, ErrLoad
	}
	return l.Speech, nil
}

func (l *Loader) LoadText(ctx context.Context, modelID string) (inference.TextModel, error) {
	if l.Fail[modelID] {
		return nil, ErrLoad
	}
	m, ok := l.Text[modelID]
	if !ok {
		return nil, ErrLoad
	}
	return m, nil
}
