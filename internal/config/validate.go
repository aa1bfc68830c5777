package config

import (
	"errors"
	"fmt"

	"github.com/example/go-khmer-tts/internal/symbols"
	"github.com/example/go-khmer-tts/internal/text"
)

// NormalizeSegmentMethod returns the canonical segmentation method name.
// Empty input selects bidirectional.
func NormalizeSegmentMethod(raw string) (string, error) {
	m, err := text.ParseMethod(raw)
	if err != nil {
		return "", err
	}

	return string(m), nil
}

// NormalizePreset returns the canonical symbol preset name. Empty input
// selects khmer-only.
func NormalizePreset(raw string) (string, error) {
	p, err := symbols.ParsePreset(raw)
	if err != nil {
		return "", err
	}

	return string(p), nil
}

// Validate canonicalizes enum fields in place and rejects values no
// command can run with.
func (c *Config) Validate() error {
	var errs []error

	if p, err := NormalizePreset(c.Symbols.Preset); err != nil {
		errs = append(errs, fmt.Errorf("symbols.preset: %w", err))
	} else {
		c.Symbols.Preset = p
	}

	if m, err := NormalizeSegmentMethod(c.Text.SegmentMethod); err != nil {
		errs = append(errs, fmt.Errorf("text.segment_method: %w", err))
	} else {
		c.Text.SegmentMethod = m
	}

	if c.Corpus.Workers < 1 {
		errs = append(errs, fmt.Errorf("corpus.workers must be positive, got %d", c.Corpus.Workers))
	}

	if c.Corpus.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("corpus.sample_rate must not be negative, got %d", c.Corpus.SampleRate))
	}

	if c.Server.Workers < 1 {
		errs = append(errs, fmt.Errorf("server.workers must be positive, got %d", c.Server.Workers))
	}

	if c.Server.MaxTextBytes < 1 {
		errs = append(errs, fmt.Errorf("server.max_text_bytes must be positive, got %d", c.Server.MaxTextBytes))
	}

	return errors.Join(errs...)
}
