package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Encode
// ---------------------------------------------------------------------------

func TestEncode_Header(t *testing.T) {
	data, err := Encode(make([]float32, 50), 22050)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if len(data) < 44 {
		t.Fatalf("WAV too short: %d bytes", len(data))
	}

	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE header: %q", data[:12])
	}

	if got := binary.LittleEndian.Uint32(data[24:28]); got != 22050 {
		t.Errorf("sample rate = %d; want 22050", got)
	}

	if got := binary.LittleEndian.Uint16(data[22:24]); got != 1 {
		t.Errorf("channels = %d; want 1", got)
	}

	if got := binary.LittleEndian.Uint16(data[34:36]); got != BitDepth {
		t.Errorf("bit depth = %d; want %d", got, BitDepth)
	}
}

func TestEncode_InvalidSampleRate(t *testing.T) {
	for _, sr := range []int{0, -1} {
		if _, err := Encode(nil, sr); err == nil {
			t.Errorf("Encode(sr=%d) expected error", sr)
		}
	}
}

// ---------------------------------------------------------------------------
// Probe
// ---------------------------------------------------------------------------

func TestProbe_RoundTrip(t *testing.T) {
	data, err := Encode(make([]float32, 22050), 22050)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	info, err := Probe(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	want := Info{SampleRate: 22050, Channels: 1, BitDepth: 16, Frames: 22050}
	if info != want {
		t.Fatalf("Probe = %+v; want %+v", info, want)
	}

	if info.Duration() != time.Second {
		t.Errorf("Duration() = %v; want 1s", info.Duration())
	}

	if info.Milliseconds() != 1000 {
		t.Errorf("Milliseconds() = %d; want 1000", info.Milliseconds())
	}
}

func TestProbe_Invalid(t *testing.T) {
	_, err := Probe(bytes.NewReader([]byte("not a wav file at all")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Fatalf("Probe error = %v; want ErrInvalidWAV", err)
	}
}

func TestProbeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")

	if err := WriteSilence(path, 16000, 8000); err != nil {
		t.Fatalf("WriteSilence: %v", err)
	}

	info, err := ProbeFile(path)
	if err != nil {
		t.Fatalf("ProbeFile: %v", err)
	}

	if info.Milliseconds() != 500 {
		t.Errorf("Milliseconds() = %d; want 500", info.Milliseconds())
	}

	if _, err := ProbeFile(filepath.Join(dir, "missing.wav")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ProbeFile(missing) error = %v; want fs.ErrNotExist", err)
	}
}

// ---------------------------------------------------------------------------
// Info
// ---------------------------------------------------------------------------

func TestInfo_Expect(t *testing.T) {
	info := Info{SampleRate: 22050, Channels: 1, BitDepth: 16}

	if err := info.Expect(0); err != nil {
		t.Errorf("Expect(0) = %v; want nil", err)
	}

	if err := info.Expect(22050); err != nil {
		t.Errorf("Expect(22050) = %v; want nil", err)
	}

	if err := info.Expect(24000); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Expect(24000) = %v; want ErrFormatMismatch", err)
	}
}

func TestInfo_ZeroRate(t *testing.T) {
	if d := (Info{Frames: 10}).Duration(); d != 0 {
		t.Errorf("Duration() = %v; want 0", d)
	}
}

func TestSeekBuffer_Overwrite(t *testing.T) {
	var buf bytes.Buffer
	sb := &seekBuffer{buf: &buf}

	_, _ = sb.Write([]byte("abcdef"))
	if _, err := sb.Seek(2, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	_, _ = sb.Write([]byte("XYZWV"))

	if got := buf.String(); got != "abXYZWV" {
		t.Fatalf("buffer = %q; want %q", got, "abXYZWV")
	}

	if _, err := sb.Seek(-1, 0); err == nil {
		t.Fatal("Seek before start expected error")
	}
}
