package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// FileStore writes each record as devolucion_<filename>_<YYYYMMDD_HHMMSS>.json
// under dir. Listing reads every document back, so it suits small volumes.
type FileStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create analysis dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) SaveResult(_ context.Context, rec Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if rec.Status == "" {
		rec.Status = StatusCompleted
	}

	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("devolucion_%s_%s.json", SafeFilename(rec.Filename), rec.CreatedAt.Format("20060102_150405"))
	path := filepath.Join(s.dir, name)
	// two saves of one filename in the same second must not collide
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(s.dir, strings.TrimSuffix(name, ".json")+"_"+rec.ID[:8]+".json")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write analysis file: %w", err)
	}
	return rec.ID, nil
}

func (s *FileStore) List(_ context.Context, opts ListOptions) ([]Record, error) {
	opts = opts.normalized()
	recs, err := s.readAll(opts.OwnerID)
	if err != nil {
		return nil, err
	}
	if opts.Skip >= len(recs) {
		return nil, nil
	}
	recs = recs[opts.Skip:]
	if len(recs) > opts.Limit {
		recs = recs[:opts.Limit]
	}
	return recs, nil
}

func (s *FileStore) Stats(_ context.Context, ownerID string) (Stats, error) {
	recs, err := s.readAll(ownerID)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, r := range recs {
		st.add(r.Status, 1)
	}
	return st, nil
}

// readAll returns matching records, newest first.
func (s *FileStore) readAll(ownerID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := filepath.Glob(filepath.Join(s.dir, "devolucion_*.json"))
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(p), err)
		}
		if ownerID != "" && rec.OwnerID != ownerID {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SafeFilename keeps letters, digits, dot, underscore, dash and space.
func SafeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._- ", r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "audio"
	}
	return b.String()
}
