package inference

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPLoader builds clients for the configured inference servers and waits
// for each backend to report ready before handing it out.
type HTTPLoader struct {
	SpeechURL      string
	TextURL        string
	APIKey         string
	Language       string
	BeamSize       int
	MaxLength      int
	RequestTimeout time.Duration
	LoadTimeout    time.Duration
}

func (l HTTPLoader) LoadSpeech(ctx context.Context, modelID string) (SpeechModel, error) {
	c := NewSpeechClient(l.SpeechURL, l.APIKey, modelID, l.Language, l.RequestTimeout).WithBeamSize(l.BeamSize)
	if err := l.waitReady(ctx, c.Ready); err != nil {
		return nil, err
	}
	return c, nil
}

func (l HTTPLoader) LoadText(ctx context.Context, modelID string) (TextModel, error) {
	c := NewTextClient(l.TextURL, l.APIKey, modelID, l.MaxLength, l.RequestTimeout)
	if err := l.waitReady(ctx, c.Ready); err != nil {
		return nil, err
	}
	return c, nil
}

// waitReady retries probe with exponential backoff until LoadTimeout elapses.
// 4xx answers other than 429 are permanent.
func (l HTTPLoader) waitReady(ctx context.Context, probe func(context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = l.LoadTimeout
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 30 * time.Second
	}

	op := func() error {
		err := probe(ctx)
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}
