package inference

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeechClientTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "tiny", r.FormValue("model"))
		assert.Equal(t, "es", r.FormValue("language"))
		assert.Equal(t, "3", r.FormValue("beam_size"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "chunk_0000.wav", hdr.Filename)
		assert.Equal(t, "RIFF-data", string(body))

		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  hola buenos días "})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "chunk_0000.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF-data"), 0o600))

	c := NewSpeechClient(srv.URL, "secret", "tiny", "es", time.Second).WithBeamSize(3)
	text, err := c.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hola buenos días", text)
}

func TestSpeechClientOmitsUnsetBeamSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, ok := r.MultipartForm.Value["beam_size"]
		assert.False(t, ok)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "chunk.wav")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := NewSpeechClient(srv.URL, "", "tiny", "", time.Second).Transcribe(context.Background(), path)
	require.NoError(t, err)
}

func TestSpeechClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cuda out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "chunk.wav")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := NewSpeechClient(srv.URL, "", "tiny", "", time.Second).Transcribe(context.Background(), path)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
}

func TestTextClientTasks(t *testing.T) {
	tests := []struct {
		name     string
		req      Request
		response string
		check    func(t *testing.T, params map[string]any, out Output)
	}{
		{
			name:     "classification nested",
			req:      Request{Task: TaskClassify},
			response: `[[{"label":"4 stars","score":0.2},{"label":"5 stars","score":0.7}]]`,
			check: func(t *testing.T, params map[string]any, out Output) {
				assert.Equal(t, true, params["truncation"])
				assert.EqualValues(t, 256, params["max_length"])
				top, ok := out.Top()
				require.True(t, ok)
				assert.Equal(t, "5 stars", top.Label)
				assert.Equal(t, "5 stars", out.Labels[0].Label)
			},
		},
		{
			name:     "classification flat",
			req:      Request{Task: TaskClassify},
			response: `[{"label":"joy","score":0.9}]`,
			check: func(t *testing.T, params map[string]any, out Output) {
				require.Len(t, out.Labels, 1)
				assert.Equal(t, "joy", out.Labels[0].Label)
			},
		},
		{
			name:     "summarization",
			req:      Request{Task: TaskSummarize, MaxLength: 130, MinLength: 30},
			response: `[{"summary_text":" El cliente pidió un reembolso. "}]`,
			check: func(t *testing.T, params map[string]any, out Output) {
				assert.EqualValues(t, 130, params["max_length"])
				assert.EqualValues(t, 30, params["min_length"])
				assert.Equal(t, false, params["do_sample"])
				assert.Equal(t, "El cliente pidió un reembolso.", out.Text)
			},
		},
		{
			name:     "zero-shot",
			req:      Request{Task: TaskZeroShot, CandidateLabels: []string{"CONSULTA", "RECLAMO"}},
			response: `{"sequence":"x","labels":["RECLAMO","CONSULTA"],"scores":[0.8,0.2]}`,
			check: func(t *testing.T, params map[string]any, out Output) {
				assert.Equal(t, []any{"CONSULTA", "RECLAMO"}, params["candidate_labels"])
				top, _ := out.Top()
				assert.Equal(t, "RECLAMO", top.Label)
				assert.InDelta(t, 0.8, top.Score, 1e-9)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params map[string]any
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/models/org/model-x", r.URL.Path)
				var body textRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "texto de prueba", body.Inputs)
				params = body.Parameters
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			c := NewTextClient(srv.URL, "", "org/model-x", 256, time.Second)
			out, err := c.Run(context.Background(), "texto de prueba", tt.req)
			require.NoError(t, err)
			tt.check(t, params, out)
		})
	}
}

func TestTextClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"weird"}`))
	}))
	defer srv.Close()

	c := NewTextClient(srv.URL, "", "m", 0, time.Second)
	_, err := c.Run(context.Background(), "x", Request{Task: TaskSummarize})
	assert.Error(t, err)

	_, err = c.Run(context.Background(), "x", Request{Task: TaskZeroShot})
	assert.Error(t, err, "zero-shot needs candidate labels")
}

func TestLoaderWaitsForReadiness(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	l := HTTPLoader{SpeechURL: srv.URL, TextURL: srv.URL, LoadTimeout: 5 * time.Second}
	m, err := l.LoadSpeech(context.Background(), "tiny")
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestLoaderPermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := HTTPLoader{TextURL: srv.URL, LoadTimeout: 5 * time.Second}
	_, err := l.LoadText(context.Background(), "missing/model")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
