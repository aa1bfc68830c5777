package testutil

import (
	"testing"

	"github.com/example/go-khmer-tts/internal/audio"
)

// WriteSilenceWAV writes frames of 16-bit mono silence at sampleRate to path.
func WriteSilenceWAV(tb testing.TB, path string, sampleRate, frames int) {
	tb.Helper()

	if err := audio.WriteSilence(path, sampleRate, frames); err != nil {
		tb.Fatalf("WriteSilence: %v", err)
	}
}

// AssertValidWAV checks that the file at path is a PCM WAV with the expected
// sample rate, mono, 16-bit depth, and at least one frame.
func AssertValidWAV(tb testing.TB, path string, sampleRate int) audio.Info {
	tb.Helper()

	info, err := audio.ProbeFile(path)
	if err != nil {
		tb.Fatalf("WAV %s: %v", path, err)
	}

	if err := info.Expect(sampleRate); err != nil {
		tb.Fatalf("WAV %s: %v", path, err)
	}

	if info.Channels != 1 {
		tb.Fatalf("WAV: expected mono (1 channel), got %d", info.Channels)
	}

	if info.BitDepth != audio.BitDepth {
		tb.Fatalf("WAV: expected %d-bit depth, got %d", audio.BitDepth, info.BitDepth)
	}

	if info.Frames == 0 {
		tb.Fatal("WAV: data chunk contains zero frames")
	}

	return info
}

// AssertWAVDurationApprox asserts that the WAV duration in milliseconds falls
// within [minMS, maxMS].
func AssertWAVDurationApprox(tb testing.TB, path string, minMS, maxMS int64) {
	tb.Helper()

	info, err := audio.ProbeFile(path)
	if err != nil {
		tb.Fatalf("WAV duration check: %v", err)
	}

	if ms := info.Milliseconds(); ms < minMS || ms > maxMS {
		tb.Fatalf("WAV duration %dms out of expected range [%dms, %dms]", ms, minMS, maxMS)
	}
}
