// Package models owns the inference models shared by every pipeline run.
// Each model loads independently at startup; consumers check availability per
// model instead of relying on an all-or-nothing state.
package models

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/config"
	"call-audit-go/internal/inference"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
)

const (
	Speech     = "speech"
	Sentiment  = "sentiment"
	Summarizer = "summarizer"
	Emotion    = "emotion"
	ZeroShot   = "zero_shot"
)

// AnalysisModels are the four text models the analysis stage requires.
var AnalysisModels = []string{Sentiment, Summarizer, Emotion, ZeroShot}

var tracer = otel.Tracer("call-audit-go/internal/models")

// Spec names a model and the backend identifier to load it with. Device and
// ComputeType describe where the backend runs it and are reported in Status.
type Spec struct {
	Name        string
	ID          string
	Device      string
	ComputeType string
}

// SpecsFromConfig returns the five model specs in load order.
func SpecsFromConfig(cfg config.ModelsConfig) []Spec {
	specs := []Spec{
		{Name: Speech, ID: cfg.Whisper},
		{Name: Sentiment, ID: cfg.Sentiment},
		{Name: Summarizer, ID: cfg.Summarizer},
		{Name: Emotion, ID: cfg.Emotion},
		{Name: ZeroShot, ID: cfg.ZeroShot},
	}
	for i := range specs {
		specs[i].Device = cfg.Device
		specs[i].ComputeType = cfg.ComputeType
	}
	return specs
}

// Loader constructs model handles. inference.HTTPLoader is the production one.
type Loader interface {
	LoadSpeech(ctx context.Context, modelID string) (inference.SpeechModel, error)
	LoadText(ctx context.Context, modelID string) (inference.TextModel, error)
}

type Status struct {
	Name        string        `json:"name"`
	ID          string        `json:"id"`
	Device      string        `json:"device,omitempty"`
	ComputeType string        `json:"compute_type,omitempty"`
	Loaded      bool          `json:"loaded"`
	Error       string        `json:"error,omitempty"`
	LoadTime    time.Duration `json:"load_time_ns"`
}

// Pool is immutable after Load and safe for concurrent use.
type Pool struct {
	speech  inference.SpeechModel
	text    map[string]inference.TextModel
	status  map[string]Status
	metrics *metrics.Metrics
}

// New builds a pool from already constructed models. A nil speech model or a
// missing text entry marks that model unavailable.
func New(speech inference.SpeechModel, text map[string]inference.TextModel) *Pool {
	p := &Pool{
		speech:  speech,
		text:    make(map[string]inference.TextModel, len(text)),
		status:  make(map[string]Status),
		metrics: metrics.Default,
	}
	p.status[Speech] = Status{Name: Speech, Loaded: speech != nil}
	for name, m := range text {
		if m == nil {
			continue
		}
		p.text[name] = m
		p.status[name] = Status{Name: name, Loaded: true}
	}
	return p
}

// Load constructs every model concurrently. A model that fails to load is
// recorded and logged; the others still load.
func Load(ctx context.Context, specs []Spec, loader Loader, log *logger.Logger) *Pool {
	log = log.WithComponent("models")
	p := &Pool{
		text:    make(map[string]inference.TextModel),
		status:  make(map[string]Status, len(specs)),
		metrics: metrics.Default,
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, spec := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()

			var (
				speech inference.SpeechModel
				text   inference.TextModel
				err    error
			)
			if spec.Name == Speech {
				speech, err = loader.LoadSpeech(ctx, spec.ID)
			} else {
				text, err = loader.LoadText(ctx, spec.ID)
			}

			st := Status{
				Name:        spec.Name,
				ID:          spec.ID,
				Device:      spec.Device,
				ComputeType: spec.ComputeType,
				Loaded:      err == nil,
				LoadTime:    time.Since(start),
			}
			entry := log.WithField("model", spec.Name).WithField("id", spec.ID)
			if err != nil {
				st.Error = err.Error()
				entry.WithField("error", err.Error()).Error("model failed to load")
			} else {
				entry.WithField("load_time", st.LoadTime.String()).Info("model loaded")
			}
			p.metrics.SetModelLoaded(spec.Name, st.Loaded)

			mu.Lock()
			defer mu.Unlock()
			p.status[spec.Name] = st
			if err != nil {
				return
			}
			if spec.Name == Speech {
				p.speech = speech
			} else {
				p.text[spec.Name] = text
			}
		}()
	}
	wg.Wait()

	if missing := p.Missing(Speech, Sentiment, Summarizer, Emotion, ZeroShot); len(missing) > 0 {
		log.WithField("missing", missing).Warn("model pool loaded partially")
	}
	return p
}

func (p *Pool) Available(name string) bool {
	if name == Speech {
		return p.speech != nil
	}
	_, ok := p.text[name]
	return ok
}

// Missing returns the subset of names that are not available, in input order.
func (p *Pool) Missing(names ...string) []string {
	var out []string
	for _, n := range names {
		if !p.Available(n) {
			out = append(out, n)
		}
	}
	return out
}

// Require fails with *apperr.ServiceUnavailableError naming every missing model.
func (p *Pool) Require(names ...string) error {
	if missing := p.Missing(names...); len(missing) > 0 {
		return &apperr.ServiceUnavailableError{Models: missing}
	}
	return nil
}

// Status reports every model the pool knows about, sorted by name.
func (p *Pool) Status() []Status {
	out := make([]Status, 0, len(p.status))
	for _, s := range p.status {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Transcribe runs the speech model on one chunk file.
func (p *Pool) Transcribe(ctx context.Context, path string) (string, error) {
	if p.speech == nil {
		return "", &apperr.ServiceUnavailableError{Models: []string{Speech}}
	}
	ctx, span := tracer.Start(ctx, "models.transcribe")
	defer span.End()

	start := time.Now()
	text, err := p.speech.Transcribe(ctx, path)
	p.metrics.RecordModelCall(Speech, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return text, err
}

// Classify runs the named text model.
func (p *Pool) Classify(ctx context.Context, name, text string, req inference.Request) (inference.Output, error) {
	m, ok := p.text[name]
	if !ok {
		return inference.Output{}, &apperr.ServiceUnavailableError{Models: []string{name}}
	}
	ctx, span := tracer.Start(ctx, "models.classify")
	span.SetAttributes(attribute.String("model", name), attribute.String("task", req.Task.String()))
	defer span.End()

	start := time.Now()
	out, err := m.Run(ctx, text, req)
	p.metrics.RecordModelCall(name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}
