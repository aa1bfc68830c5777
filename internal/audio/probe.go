// Package audio reads the format and length of corpus WAV files.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cwbudde/wav"
)

var (
	// ErrInvalidWAV is returned for input that is not a readable RIFF/WAVE file.
	ErrInvalidWAV = errors.New("invalid WAV file")
	// ErrFormatMismatch is returned when a WAV does not have the expected format.
	ErrFormatMismatch = errors.New("WAV format mismatch")
)

// Info describes a decoded WAV file.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
}

// Duration is the playing time of the file.
func (i Info) Duration() time.Duration {
	if i.SampleRate <= 0 {
		return 0
	}

	return time.Duration(i.Frames) * time.Second / time.Duration(i.SampleRate)
}

// Milliseconds is Duration rounded down to whole milliseconds.
func (i Info) Milliseconds() int64 {
	return i.Duration().Milliseconds()
}

// Expect returns ErrFormatMismatch when the sample rate differs from
// sampleRate. Zero accepts any rate.
func (i Info) Expect(sampleRate int) error {
	if sampleRate > 0 && i.SampleRate != sampleRate {
		return fmt.Errorf("%w: sample rate %d, want %d", ErrFormatMismatch, i.SampleRate, sampleRate)
	}

	return nil
}

// Probe decodes r and reports its format and frame count.
func Probe(r io.ReadSeeker) (Info, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Info{}, ErrInvalidWAV
	}

	if dec.NumChans == 0 {
		return Info{}, fmt.Errorf("%w: no channels", ErrInvalidWAV)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Info{}, fmt.Errorf("reading PCM data: %w", err)
	}

	return Info{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Frames:     len(buf.Data) / int(dec.NumChans),
	}, nil
}

// ProbeFile opens path and probes it.
func ProbeFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	info, err := Probe(f)
	if err != nil {
		return Info{}, fmt.Errorf("%s: %w", path, err)
	}

	return info, nil
}
