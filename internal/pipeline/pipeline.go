// Package pipeline provides the bounded worker pool and the fan-out stage
// used by the transcription and analysis coordinators.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"call-audit-go/internal/apperr"
)

var tracer = otel.Tracer("call-audit-go/internal/pipeline")

// Pool bounds the number of model calls in flight across every request.
// It is created once at startup and shared.
type Pool struct {
	sem   *semaphore.Weighted
	size  int64
	inUse atomic.Int64
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Acquire blocks until a worker slot is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (release func(), err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.inUse.Add(1)
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			p.inUse.Add(-1)
			p.sem.Release(1)
		}
	}, nil
}

func (p *Pool) Size() int  { return int(p.size) }
func (p *Pool) InUse() int { return int(p.inUse.Load()) }

// Stage runs a set of workers concurrently under an optional per-stage limit,
// an optional deadline and the shared Pool. The first worker error cancels the
// others.
type Stage struct {
	name     string
	pool     *Pool
	limit    *semaphore.Weighted
	g        *errgroup.Group
	gctx     context.Context
	deadline context.Context
	cancel   context.CancelFunc
	span     trace.Span
	workers  atomic.Int32
}

// NewStage starts a stage derived from ctx. limit <= 0 means unlimited within
// the stage and timeout <= 0 means no stage deadline. pool may be nil.
func NewStage(ctx context.Context, name string, limit int, timeout time.Duration, pool *Pool) *Stage {
	ctx, span := tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("stage", name),
		attribute.Int("limit", limit),
	))

	var (
		deadline context.Context
		cancel   context.CancelFunc
	)
	if timeout > 0 {
		deadline, cancel = context.WithTimeout(ctx, timeout)
	} else {
		deadline, cancel = context.WithCancel(ctx)
	}

	g, gctx := errgroup.WithContext(deadline)
	s := &Stage{name: name, pool: pool, g: g, gctx: gctx, deadline: deadline, cancel: cancel, span: span}
	if limit > 0 {
		s.limit = semaphore.NewWeighted(int64(limit))
	}
	return s
}

func (s *Stage) Name() string { return s.name }

// Go schedules fn without blocking; the worker waits for a stage slot and
// then a pool slot before running.
func (s *Stage) Go(fn func(ctx context.Context) error) {
	s.workers.Add(1)
	s.g.Go(func() error {
		if s.limit != nil {
			if err := s.limit.Acquire(s.gctx, 1); err != nil {
				return err
			}
			defer s.limit.Release(1)
		}
		if s.pool != nil {
			release, err := s.pool.Acquire(s.gctx)
			if err != nil {
				return err
			}
			defer release()
		}
		return fn(s.gctx)
	})
}

// Wait returns the first worker error, or *apperr.TimeoutError when the stage
// deadline passes first. On timeout it returns without waiting; workers still
// running are abandoned and their results discarded.
func (s *Stage) Wait() (err error) {
	defer s.cancel()
	defer func() {
		s.span.SetAttributes(attribute.Int("workers", int(s.workers.Load())))
		if err != nil {
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
		}
		s.span.End()
	}()

	done := make(chan error, 1)
	go func() { done <- s.g.Wait() }()

	select {
	case err := <-done:
		return s.classify(err)
	case <-s.deadline.Done():
		select {
		case err := <-done:
			return s.classify(err)
		default:
		}
		return s.classify(s.deadline.Err())
	}
}

func (s *Stage) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(s.deadline.Err(), context.DeadlineExceeded) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return &apperr.TimeoutError{Stage: s.name}
	}
	return err
}
