// Package audio decodes uploaded recordings into PCM, splits them into
// bounded-duration chunks and writes those chunks to a scoped temporary
// workspace for the speech model.
package audio

import (
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// Buffer is decoded PCM audio. Data holds interleaved samples.
type Buffer struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Data       []int
}

// Frames returns the number of sample frames (one sample per channel).
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

func (b *Buffer) Duration() time.Duration {
	if b == nil {
		return 0
	}
	return framesToDuration(b.Frames(), b.SampleRate)
}

// slice returns frames [start, end) sharing the backing array.
func (b *Buffer) slice(start, end int) *Buffer {
	return &Buffer{
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
		BitDepth:   b.BitDepth,
		Data:       b.Data[start*b.Channels : end*b.Channels],
	}
}

func framesToDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// EncodeWAV writes buf as a PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, buf *Buffer) error {
	if buf == nil || buf.Frames() == 0 {
		return fmt.Errorf("cannot encode empty audio buffer")
	}
	bitDepth := buf.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}

	enc := wav.NewEncoder(w, buf.SampleRate, bitDepth, buf.Channels, wavFormatPCM)
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buf.Channels, SampleRate: buf.SampleRate},
		Data:           buf.Data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}
