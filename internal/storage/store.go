// Package storage persists audited recordings. PostgresStore is used when a
// database is configured; FileStore writes one JSON document per audit.
package storage

import (
	"context"
	"time"

	"call-audit-go/internal/types"
)

type Status string

const (
	StatusCompleted Status = "completado"
	StatusPending   Status = "pendiente"
	StatusError     Status = "error"
)

// Record is one uploaded recording and, once audited, its analysis.
type Record struct {
	ID              string                `json:"id"`
	OwnerID         string                `json:"owner_id,omitempty"`
	Filename        string                `json:"filename"`
	Status          Status                `json:"status"`
	Transcript      string                `json:"transcript,omitempty"`
	Analysis        *types.AnalysisResult `json:"analysis,omitempty"`
	DurationSeconds float64               `json:"duration_seconds,omitempty"`
	Error           string                `json:"error,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Error     int `json:"error"`
}

func (s *Stats) add(status Status, n int) {
	s.Total += n
	switch status {
	case StatusCompleted:
		s.Completed += n
	case StatusPending:
		s.Pending += n
	case StatusError:
		s.Error += n
	}
}

type ListOptions struct {
	OwnerID string
	Skip    int
	Limit   int
}

const defaultListLimit = 100

func (o ListOptions) normalized() ListOptions {
	if o.Skip < 0 {
		o.Skip = 0
	}
	if o.Limit <= 0 || o.Limit > 1000 {
		o.Limit = defaultListLimit
	}
	return o
}

// Store failures are returned as-is; callers do not retry them.
type Store interface {
	SaveResult(ctx context.Context, rec Record) (string, error)
	List(ctx context.Context, opts ListOptions) ([]Record, error)
	Stats(ctx context.Context, ownerID string) (Stats, error)
}
