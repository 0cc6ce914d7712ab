package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"call-audit-go/internal/models"
	"call-audit-go/internal/storage"
)

// allowedTypes maps accepted extensions to their accepted MIME types.
var allowedTypes = map[string][]string{
	".mp3": {"audio/mpeg", "audio/mp3"},
	".m4a": {"audio/mp4", "audio/x-m4a", "audio/m4a"},
	".wav": {"audio/wav", "audio/x-wav", "audio/wave"},
}

type upload struct {
	data     []byte
	filename string
}

// readUpload reads the multipart "file" field, enforcing the size limit and
// the extension and MIME allow-list. Both must match; a generic or missing
// content type is rejected.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload{}, tooLarge
		}
		return upload{}, &uploadError{status: http.StatusBadRequest, msg: "expected multipart form with a file field"}
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return upload{}, &uploadError{status: http.StatusBadRequest, msg: "missing file field"}
	}
	defer f.Close()

	if err := checkType(hdr.Filename, hdr.Header.Get("Content-Type")); err != nil {
		return upload{}, err
	}

	data, err := io.ReadAll(io.LimitReader(f, s.maxFileSize+1))
	if err != nil {
		return upload{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxFileSize {
		return upload{}, &uploadError{
			status: http.StatusRequestEntityTooLarge,
			msg:    fmt.Sprintf("file exceeds %d bytes", s.maxFileSize),
		}
	}
	return upload{data: data, filename: filepath.Base(hdr.Filename)}, nil
}

func checkType(filename, contentType string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed, ok := allowedTypes[ext]
	if !ok {
		return &uploadError{status: http.StatusUnsupportedMediaType, msg: fmt.Sprintf("unsupported file extension %q", ext)}
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return &uploadError{status: http.StatusUnsupportedMediaType, msg: fmt.Sprintf("invalid content type %q", contentType)}
	}
	for _, a := range allowed {
		if mt == a {
			return nil
		}
	}
	return &uploadError{status: http.StatusUnsupportedMediaType, msg: fmt.Sprintf("content type %q does not match %s", mt, ext)}
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	tr, err := s.proc.Transcribe(r.Context(), up.data, up.filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"text":             tr.Text,
		"chunks":           tr.Chunks,
		"duration_seconds": tr.Duration.Seconds(),
	})
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		if err := json.NewDecoder(io.LimitReader(r.Body, s.maxFileSize)).Decode(&req); err != nil {
			s.writeError(w, r, &uploadError{status: http.StatusBadRequest, msg: "invalid JSON body"})
			return
		}
	} else {
		req.Text = r.FormValue("text")
		req.Filename = r.FormValue("filename")
	}
	if req.Filename == "" {
		req.Filename = "texto"
	}

	res, err := s.proc.AnalyzeText(r.Context(), req.Text, req.Filename, ownerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.proc.ProcessCall(r.Context(), up.data, up.filename, ownerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, err1 := atoiDefault(q.Get("skip"), 0)
	limit, err2 := atoiDefault(q.Get("limit"), 100)
	if err1 != nil || err2 != nil {
		s.writeError(w, r, &uploadError{status: http.StatusBadRequest, msg: "skip and limit must be integers"})
		return
	}
	recs, err := s.store.List(r.Context(), storage.ListOptions{OwnerID: ownerID(r), Skip: skip, Limit: limit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []storage.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context(), ownerID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

// handleReady reports 503 until every model is available.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	missing := s.models.Missing(models.Speech, models.Sentiment, models.Summarizer, models.Emotion, models.ZeroShot)
	if len(missing) > 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":   len(missing) == 0,
		"missing": missing,
		"models":  s.models.Status(),
	})
}

func atoiDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
