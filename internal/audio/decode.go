package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"call-audit-go/internal/apperr"
)

// Decoder turns uploaded bytes into PCM. WAV and MP3 are decoded natively;
// any other container is converted to WAV through ffmpeg when FFmpegPath is set.
type Decoder struct {
	FFmpegPath string
	TempDir    string
}

// Decode fails with *apperr.DecodeError when data is not usable audio.
func (d Decoder) Decode(ctx context.Context, data []byte, filename string) (*Buffer, error) {
	if len(data) == 0 {
		return nil, &apperr.DecodeError{Filename: filename, Reason: "empty input"}
	}

	var (
		buf *Buffer
		err error
	)
	switch {
	case isWAV(data):
		buf, err = decodeWAV(data)
	case isMP3(data, filename):
		buf, err = decodeMP3(data)
	case d.FFmpegPath != "":
		var converted []byte
		converted, err = d.convert(ctx, data, filename)
		if err == nil {
			buf, err = decodeWAV(converted)
		}
	default:
		return nil, &apperr.DecodeError{Filename: filename, Reason: "unsupported audio format"}
	}
	if err != nil {
		return nil, &apperr.DecodeError{Filename: filename, Err: err}
	}
	if buf.Frames() == 0 {
		return nil, &apperr.DecodeError{Filename: filename, Reason: "no audio frames"}
	}
	return buf, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte, filename string) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".mp3")
}

func decodeWAV(data []byte) (*Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	if pcm.Format == nil || pcm.Format.SampleRate <= 0 || pcm.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("missing wav format")
	}
	return &Buffer{
		SampleRate: pcm.Format.SampleRate,
		Channels:   pcm.Format.NumChannels,
		BitDepth:   int(dec.BitDepth),
		Data:       pcm.Data,
	}, nil
}

// decodeMP3 yields 16-bit stereo, which is what go-mp3 always produces.
func decodeMP3(data []byte) (*Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("read mp3: %w", err)
	}
	samples := make([]int, len(raw)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}
	return &Buffer{
		SampleRate: dec.SampleRate(),
		Channels:   2,
		BitDepth:   16,
		Data:       samples,
	}, nil
}

// convert runs ffmpeg on temp files; m4a needs a seekable input.
func (d Decoder) convert(ctx context.Context, data []byte, filename string) ([]byte, error) {
	dir, err := os.MkdirTemp(d.TempDir, "convert-*")
	if err != nil {
		return nil, fmt.Errorf("create convert dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+filepath.Ext(filename))
	out := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write convert input: %w", err)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.FFmpegPath,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in, "-acodec", "pcm_s16le", "-f", "wav", out)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return os.ReadFile(out)
}
