// Package processor runs a recording through the full audit: transcription,
// analysis, persistence and the audit-completed event.
package processor

import (
	"context"
	"fmt"
	"time"

	"call-audit-go/internal/events"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/storage"
	"call-audit-go/internal/types"
)

type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, filename string) (types.Transcript, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) (types.AnalysisResult, error)
}

type Publisher interface {
	PublishAudit(ctx context.Context, ev events.AuditCompleted) error
}

// AuditResult is returned by /api/audit and /api/analyze.
type AuditResult struct {
	RecordID     string                `json:"record_id,omitempty"`
	Filename     string                `json:"filename"`
	Transcript   string                `json:"transcript"`
	Chunks       int                   `json:"chunks,omitempty"`
	AudioSeconds float64               `json:"audio_seconds,omitempty"`
	Analysis     *types.AnalysisResult `json:"analysis,omitempty"`
	DurationMs   int64                 `json:"duration_ms"`
	Error        string                `json:"error,omitempty"`
}

type Processor struct {
	transcriber Transcriber
	analyzer    Analyzer
	store       storage.Store
	publisher   Publisher
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// New wires a processor. publisher may be nil.
func New(t Transcriber, a Analyzer, store storage.Store, pub Publisher, log *logger.Logger) *Processor {
	return &Processor{
		transcriber: t,
		analyzer:    a,
		store:       store,
		publisher:   pub,
		log:         log.WithComponent("processor"),
		metrics:     metrics.Default,
	}
}

// Transcribe runs only the transcription stage. Nothing is persisted.
func (p *Processor) Transcribe(ctx context.Context, data []byte, filename string) (types.Transcript, error) {
	return p.transcriber.Transcribe(ctx, data, filename)
}

// ProcessCall audits one recording end to end. A failed transcription or
// analysis is saved as an error-status record before the error is returned.
func (p *Processor) ProcessCall(ctx context.Context, data []byte, filename, ownerID string) (AuditResult, error) {
	start := time.Now()
	res := AuditResult{Filename: filename}
	log := p.log.WithField("filename", filename)

	tr, err := p.transcriber.Transcribe(ctx, data, filename)
	if err != nil {
		return p.fail(ctx, res, start, ownerID, fmt.Errorf("transcription: %w", err))
	}
	res.Transcript = tr.Text
	res.Chunks = tr.Chunks
	res.AudioSeconds = tr.Duration.Seconds()
	log.WithField("chunks", tr.Chunks).Debug("transcription done")

	an, err := p.analyzer.Analyze(ctx, tr.Text)
	if err != nil {
		return p.fail(ctx, res, start, ownerID, fmt.Errorf("analysis: %w", err))
	}
	res.Analysis = &an

	return p.complete(ctx, res, start, ownerID)
}

// AnalyzeText analyzes an existing transcript and persists the result.
func (p *Processor) AnalyzeText(ctx context.Context, text, filename, ownerID string) (AuditResult, error) {
	start := time.Now()
	res := AuditResult{Filename: filename, Transcript: text}

	an, err := p.analyzer.Analyze(ctx, text)
	if err != nil {
		res.Error = err.Error()
		res.DurationMs = time.Since(start).Milliseconds()
		p.metrics.RecordAudit("failed")
		return res, err
	}
	res.Analysis = &an
	return p.complete(ctx, res, start, ownerID)
}

func (p *Processor) complete(ctx context.Context, res AuditResult, start time.Time, ownerID string) (AuditResult, error) {
	id, err := p.store.SaveResult(ctx, storage.Record{
		OwnerID:         ownerID,
		Filename:        res.Filename,
		Status:          storage.StatusCompleted,
		Transcript:      res.Transcript,
		Analysis:        res.Analysis,
		DurationSeconds: res.AudioSeconds,
	})
	res.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		p.metrics.RecordAudit("failed")
		return res, fmt.Errorf("save result: %w", err)
	}
	res.RecordID = id
	p.metrics.RecordAudit("completed")

	if p.publisher != nil {
		ev := events.NewAuditCompleted(id, ownerID, res.Filename, res.Analysis, time.Duration(res.DurationMs)*time.Millisecond)
		if err := p.publisher.PublishAudit(ctx, ev); err != nil {
			p.log.WithError(err).WithField("record_id", id).Warn("audit event not published")
		}
	}

	p.log.WithField("record_id", id).
		WithField("filename", res.Filename).
		WithField("duration_ms", res.DurationMs).
		Info("audit completed")
	return res, nil
}

func (p *Processor) fail(ctx context.Context, res AuditResult, start time.Time, ownerID string, cause error) (AuditResult, error) {
	res.Error = cause.Error()
	res.DurationMs = time.Since(start).Milliseconds()
	p.metrics.RecordAudit("failed")

	// The caller's context may already be done; the error record still gets written.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	id, err := p.store.SaveResult(saveCtx, storage.Record{
		OwnerID:         ownerID,
		Filename:        res.Filename,
		Status:          storage.StatusError,
		Transcript:      res.Transcript,
		DurationSeconds: res.AudioSeconds,
		Error:           res.Error,
	})
	if err != nil {
		p.log.WithError(err).WithField("filename", res.Filename).Error("failed to save error record")
	} else {
		res.RecordID = id
	}

	p.log.WithError(cause).WithField("filename", res.Filename).Warn("audit failed")
	return res, cause
}

// FetchFunc returns the audio bytes for a manifest location.
type FetchFunc func(ctx context.Context, loc string) ([]byte, error)

// ProcessBatch audits manifest rows one after another. Each call still fans
// out internally; a failed row is recorded and the batch continues. The batch
// stops early only if ctx is done.
func (p *Processor) ProcessBatch(ctx context.Context, recs []types.CallRecord, fetch FetchFunc) []types.AuditedCall {
	out := make([]types.AuditedCall, 0, len(recs))
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		call := types.AuditedCall{CallRecord: rec}

		data, err := fetch(ctx, rec.AudioPath)
		if err != nil {
			call.Error = fmt.Sprintf("fetch: %v", err)
			call.DurationMs = time.Since(start).Milliseconds()
			p.log.WithError(err).WithField("call_id", rec.CallID).Warn("could not fetch recording")
			out = append(out, call)
			continue
		}

		res, err := p.ProcessCall(ctx, data, rec.AudioPath, rec.OwnerID)
		call.RecordID = res.RecordID
		call.Transcript = res.Transcript
		call.Analysis = res.Analysis
		call.DurationMs = res.DurationMs
		if err != nil {
			call.Error = err.Error()
		}
		out = append(out, call)
	}
	return out
}

