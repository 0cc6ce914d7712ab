// Package transcription turns an uploaded recording into one ordered transcript
// by transcribing bounded-duration chunks in parallel.
package transcription

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/audio"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/metrics"
	"call-audit-go/internal/models"
	"call-audit-go/internal/pipeline"
	"call-audit-go/internal/types"
)

const stageName = "transcription"

var tracer = otel.Tracer("call-audit-go/internal/transcription")

type Options struct {
	MaxChunkDuration time.Duration
	Concurrency      int
	Timeout          time.Duration
	TempDir          string
	FFmpegPath       string
}

type Coordinator struct {
	models  *models.Pool
	workers *pipeline.Pool
	decoder audio.Decoder
	opts    Options
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewCoordinator(pool *models.Pool, workers *pipeline.Pool, opts Options, log *logger.Logger) *Coordinator {
	if opts.MaxChunkDuration <= 0 {
		opts.MaxChunkDuration = audio.DefaultMaxChunkDuration
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if workers == nil {
		workers = pipeline.NewPool(opts.Concurrency)
	}
	return &Coordinator{
		models:  pool,
		workers: workers,
		decoder: audio.Decoder{FFmpegPath: opts.FFmpegPath, TempDir: opts.TempDir},
		opts:    opts,
		log:     log.WithComponent("transcription"),
		metrics: metrics.Default,
	}
}

// Transcribe decodes data and transcribes it. It fails fast with
// *apperr.ServiceUnavailableError before decoding when the speech model is
// missing.
func (c *Coordinator) Transcribe(ctx context.Context, data []byte, filename string) (types.Transcript, error) {
	if err := c.models.Require(models.Speech); err != nil {
		return types.Transcript{}, err
	}

	buf, err := c.decoder.Decode(ctx, data, filename)
	if err != nil {
		c.log.WithError(err).WithField("filename", filename).Warn("decode failed")
		return types.Transcript{}, err
	}
	return c.TranscribeBuffer(ctx, buf)
}

// TranscribeBuffer chunks buf, transcribes every chunk under the stage limit
// and joins the texts by chunk index. Any chunk failure fails the whole
// transcript. Chunk files are removed before return on every path.
func (c *Coordinator) TranscribeBuffer(ctx context.Context, buf *audio.Buffer) (types.Transcript, error) {
	if err := c.models.Require(models.Speech); err != nil {
		return types.Transcript{}, err
	}

	ctx, span := tracer.Start(ctx, "transcription.stage")
	defer span.End()

	duration := buf.Duration()
	chunks, err := audio.Split(buf, c.opts.MaxChunkDuration)
	if err != nil {
		return types.Transcript{}, &apperr.DecodeError{Reason: err.Error()}
	}

	ws, err := audio.NewWorkspace(c.opts.TempDir)
	if err != nil {
		return types.Transcript{}, err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			c.log.WithError(err).WithField("dir", ws.Dir()).Warn("remove chunk workspace")
		}
	}()

	for i := range chunks {
		if err := ws.WriteChunk(&chunks[i]); err != nil {
			return types.Transcript{}, &apperr.TranscriptionError{ChunkIndex: chunks[i].Index, Err: err}
		}
		// PCM is on disk now
		chunks[i].Buffer = nil
	}
	span.SetAttributes(attribute.Int("chunks", len(chunks)))

	log := c.log.WithField("chunks", len(chunks)).WithField("duration", duration.String())
	log.Info("transcribing chunks")

	texts := make([]string, len(chunks))
	stage := pipeline.NewStage(ctx, stageName, c.opts.Concurrency, c.opts.Timeout, c.workers)
	for _, ch := range chunks {
		stage.Go(func(ctx context.Context) error {
			c.metrics.SetWorkersInUse(c.workers.InUse())
			text, err := c.models.Transcribe(ctx, ch.Path)
			if err != nil {
				return &apperr.TranscriptionError{ChunkIndex: ch.Index, Err: err}
			}
			texts[ch.Index] = text
			c.metrics.RecordChunkTranscribed()
			return nil
		})
	}

	if err := stage.Wait(); err != nil {
		var timeout *apperr.TimeoutError
		if errors.As(err, &timeout) {
			c.metrics.RecordStageTimeout(stageName)
		}
		span.RecordError(err)
		log.WithField("error", err.Error()).Error("transcription failed")
		return types.Transcript{}, err
	}

	return types.Transcript{
		Text:     Join(texts),
		Chunks:   len(chunks),
		Duration: duration,
	}, nil
}

// Join concatenates chunk texts in index order with a single space.
func Join(texts []string) string {
	return strings.Join(texts, " ")
}
