package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultMaxChunkDuration is three minutes, the segment size the speech model handles well.
const DefaultMaxChunkDuration = 180 * time.Second

// Chunk is one bounded-duration slice of the source audio. Index is assigned
// in source order and is the only thing transcript reassembly looks at.
type Chunk struct {
	Index    int
	Buffer   *Buffer
	Start    time.Duration
	Duration time.Duration
	Path     string // set by Workspace.WriteChunk
}

// Split covers buf with ceil(D/maxDuration) chunks, without gaps or overlaps.
// The last chunk may be shorter. Chunk buffers share buf's backing array.
func Split(buf *Buffer, maxDuration time.Duration) ([]Chunk, error) {
	if buf == nil || buf.Frames() == 0 {
		return nil, fmt.Errorf("cannot split empty audio buffer")
	}
	if buf.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", buf.SampleRate)
	}
	if maxDuration <= 0 {
		maxDuration = DefaultMaxChunkDuration
	}

	maxFrames := int(int64(maxDuration) * int64(buf.SampleRate) / int64(time.Second))
	if maxFrames < 1 {
		maxFrames = 1
	}

	total := buf.Frames()
	chunks := make([]Chunk, 0, (total+maxFrames-1)/maxFrames)
	for start, i := 0, 0; start < total; start, i = start+maxFrames, i+1 {
		end := start + maxFrames
		if end > total {
			end = total
		}
		// positions are derived from absolute frame offsets so durations sum exactly
		startAt := framesToDuration(start, buf.SampleRate)
		chunks = append(chunks, Chunk{
			Index:    i,
			Buffer:   buf.slice(start, end),
			Start:    startAt,
			Duration: framesToDuration(end, buf.SampleRate) - startAt,
		})
	}
	return chunks, nil
}

// Workspace is a scoped temporary directory holding chunk files. Close removes
// the directory and everything in it; callers defer it right after creation.
type Workspace struct {
	dir string
}

func NewWorkspace(root string) (*Workspace, error) {
	dir, err := os.MkdirTemp(root, "chunks-*")
	if err != nil {
		return nil, fmt.Errorf("create chunk workspace: %w", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string { return w.dir }

// WriteChunk encodes c as a WAV file inside the workspace and records its path.
func (w *Workspace) WriteChunk(c *Chunk) error {
	path := filepath.Join(w.dir, fmt.Sprintf("chunk_%04d.wav", c.Index))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	if err := EncodeWAV(f, c.Buffer); err != nil {
		f.Close()
		return fmt.Errorf("encode chunk %d: %w", c.Index, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chunk file: %w", err)
	}
	c.Path = path
	return nil
}

func (w *Workspace) Close() error {
	if w == nil || w.dir == "" {
		return nil
	}
	return os.RemoveAll(w.dir)
}
