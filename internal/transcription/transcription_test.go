package transcription

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-audit-go/internal/apperr"
	"call-audit-go/internal/audio"
	"call-audit-go/internal/inference"
	"call-audit-go/internal/logger"
	"call-audit-go/internal/models"
	"call-audit-go/internal/models/modelstest"
	"call-audit-go/internal/pipeline"
)

func buffer(seconds, rate int) *audio.Buffer {
	data := make([]int, seconds*rate)
	for i := range data {
		data[i] = i % 64
	}
	return &audio.Buffer{SampleRate: rate, Channels: 1, BitDepth: 16, Data: data}
}

func newCoordinator(t *testing.T, speech *modelstest.Speech, timeout time.Duration) (*Coordinator, string) {
	t.Helper()
	dir := t.TempDir()
	var sm inference.SpeechModel
	if speech != nil {
		sm = speech
	}
	pool := models.New(sm, nil)
	c := NewCoordinator(pool, pipeline.NewPool(4), Options{
		MaxChunkDuration: 180 * time.Second,
		Concurrency:      3,
		Timeout:          timeout,
		TempDir:          dir,
	}, logger.Nop())
	return c, dir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "chunk files must be removed")
}

func TestTranscribeSevenMinuteCall(t *testing.T) {
	speech := &modelstest.Speech{Texts: map[string]string{
		"chunk_0000.wav": "a",
		"chunk_0001.wav": "b",
		"chunk_0002.wav": "c",
	}}
	c, dir := newCoordinator(t, speech, 5*time.Second)

	tr, err := c.TranscribeBuffer(context.Background(), buffer(420, 100))
	require.NoError(t, err)

	assert.Equal(t, "a b c", tr.Text)
	assert.Equal(t, 3, tr.Chunks)
	assert.Equal(t, 7*time.Minute, tr.Duration)
	assert.Equal(t, 3, speech.Calls())
	assertEmptyDir(t, dir)
}

func TestTranscribeOrderIgnoresCompletionTiming(t *testing.T) {
	// later chunks finish first
	delays := map[string]time.Duration{
		"chunk_0000.wav": 40 * time.Millisecond,
		"chunk_0001.wav": 20 * time.Millisecond,
		"chunk_0002.wav": 0,
	}
	speech := &modelstest.Speech{
		Texts: map[string]string{
			"chunk_0000.wav": "hola",
			"chunk_0001.wav": "quiero un reembolso",
			"chunk_0002.wav": "gracias",
		},
		Delay: func(ctx context.Context, name string) { time.Sleep(delays[name]) },
	}
	c, _ := newCoordinator(t, speech, 5*time.Second)

	tr, err := c.TranscribeBuffer(context.Background(), buffer(420, 100))
	require.NoError(t, err)
	assert.Equal(t, "hola quiero un reembolso gracias", tr.Text)
}

func TestTranscribeChunkFailureAbortsTranscript(t *testing.T) {
	speech := &modelstest.Speech{
		Texts: map[string]string{"chunk_0000.wav": "a", "chunk_0002.wav": "c"},
		Err:   map[string]error{"chunk_0001.wav": errors.New("inference crashed")},
	}
	c, dir := newCoordinator(t, speech, 5*time.Second)

	tr, err := c.TranscribeBuffer(context.Background(), buffer(420, 100))
	require.Error(t, err)
	assert.Empty(t, tr.Text)

	var terr *apperr.TranscriptionError
	require.True(t, errors.As(err, &terr), "got %v", err)
	assert.Equal(t, 1, terr.ChunkIndex)
	assert.Contains(t, terr.Error(), "inference crashed")
	assertEmptyDir(t, dir)
}

func TestTranscribeWithoutSpeechModelFailsBeforeDecode(t *testing.T) {
	c, dir := newCoordinator(t, nil, time.Second)

	_, err := c.Transcribe(context.Background(), []byte("not audio"), "call.wav")

	var unavailable *apperr.ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable), "got %v", err)
	assert.Equal(t, []string{models.Speech}, unavailable.Models)
	assertEmptyDir(t, dir)
}

func TestTranscribeDecodeError(t *testing.T) {
	speech := &modelstest.Speech{}
	c, _ := newCoordinator(t, speech, time.Second)

	_, err := c.Transcribe(context.Background(), []byte("not audio"), "call.wav")

	var decodeErr *apperr.DecodeError
	require.True(t, errors.As(err, &decodeErr), "got %v", err)
	assert.Zero(t, speech.Calls())
}

func TestTranscribeFromWAVBytes(t *testing.T) {
	speech := &modelstest.Speech{Texts: map[string]string{
		"chunk_0000.wav": "primera parte",
		"chunk_0001.wav": "segunda parte",
	}}
	c, _ := newCoordinator(t, speech, 5*time.Second)

	path := filepath.Join(t.TempDir(), "call.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, audio.EncodeWAV(f, buffer(200, 100)))
	require.NoError(t, f.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	tr, err := c.Transcribe(context.Background(), data, "call.wav")
	require.NoError(t, err)
	assert.Equal(t, "primera parte segunda parte", tr.Text)
	assert.Equal(t, 2, tr.Chunks)
	for _, p := range speech.Paths() {
		assert.True(t, strings.HasSuffix(p, ".wav"))
	}
}

func TestTranscribeStageTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	speech := &modelstest.Speech{
		Delay: func(ctx context.Context, name string) {
			if name == "chunk_0001.wav" {
				<-release
			}
		},
	}
	c, dir := newCoordinator(t, speech, 50*time.Millisecond)

	start := time.Now()
	_, err := c.TranscribeBuffer(context.Background(), buffer(420, 100))
	assert.Less(t, time.Since(start), 2*time.Second)

	var timeout *apperr.TimeoutError
	require.True(t, errors.As(err, &timeout), "got %v", err)
	assert.Equal(t, "transcription", timeout.Stage)
	assertEmptyDir(t, dir)
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a b c", Join([]string{"a", "b", "c"}))
	assert.Equal(t, "", Join(nil))
}
