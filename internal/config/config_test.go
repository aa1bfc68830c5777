package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-khmer-tts/internal/symbols"
	"github.com/example/go-khmer-tts/internal/text"
	"github.com/spf13/pflag"
)

// fakeBinder wraps a pflag.FlagSet to satisfy the flagBinder interface.
type fakeBinder struct {
	fs *pflag.FlagSet
}

func (f *fakeBinder) Flags() *pflag.FlagSet { return f.fs }

// newFlagBinder creates a FlagSet with all config flags registered and args parsed.
func newFlagBinder(t *testing.T, defaults Config, args ...string) *fakeBinder {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}

	return &fakeBinder{fs: fs}
}

// chdirTemp runs the test from an empty directory so no khmertts.yaml is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)

	return dir
}

// --- DefaultConfig ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Symbols.Preset != "khmer-only" {
		t.Errorf("Symbols.Preset = %q; want %q", cfg.Symbols.Preset, "khmer-only")
	}

	if cfg.Paths.Lexicon != "lexicons/khmer.tsv" {
		t.Errorf("Paths.Lexicon = %q; want %q", cfg.Paths.Lexicon, "lexicons/khmer.tsv")
	}

	if cfg.Paths.CheckpointDir != "checkpoints" {
		t.Errorf("Paths.CheckpointDir = %q; want %q", cfg.Paths.CheckpointDir, "checkpoints")
	}

	if cfg.Checkpoint.Embedding != "encoder.emb.weight" {
		t.Errorf("Checkpoint.Embedding = %q; want %q", cfg.Checkpoint.Embedding, "encoder.emb.weight")
	}

	if !cfg.Text.Normalize || !cfg.Text.Segment {
		t.Errorf("Text = %+v; want normalize and segment enabled", cfg.Text)
	}

	if cfg.Text.SegmentMethod != "bidirectional" {
		t.Errorf("Text.SegmentMethod = %q; want %q", cfg.Text.SegmentMethod, "bidirectional")
	}

	if cfg.Corpus.Workers != 4 || cfg.Corpus.Strict {
		t.Errorf("Corpus = %+v; want 4 workers, not strict", cfg.Corpus)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":8080")
	}

	if cfg.Server.MaxTextBytes != 4096 {
		t.Errorf("Server.MaxTextBytes = %d; want 4096", cfg.Server.MaxTextBytes)
	}

	if cfg.Server.RequestTimeout != 30 || cfg.Server.ShutdownTimeout != 10 {
		t.Errorf("Server timeouts = %d/%d; want 30/10", cfg.Server.RequestTimeout, cfg.Server.ShutdownTimeout)
	}

	if cfg.Server.Workers != 4 {
		t.Errorf("Server.Workers = %d; want 4", cfg.Server.Workers)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "info")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

// --- NormalizeSegmentMethod / NormalizePreset ---

func TestNormalizeSegmentMethod(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"forward", "forward", "forward", false},
		{"reverse uppercase", "REVERSE", "reverse", false},
		{"bidi alias", "bidi", "bidirectional", false},
		{"with spaces", "  forward  ", "forward", false},
		{"empty defaults to bidirectional", "", "bidirectional", false},
		{"invalid value", "greedy", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSegmentMethod(tt.input)
			if tt.wantErr {
				if !errors.Is(err, text.ErrUnknownMethod) {
					t.Errorf("NormalizeSegmentMethod(%q) = %q, %v; want ErrUnknownMethod", tt.input, got, err)
				}

				return
			}

			if err != nil {
				t.Errorf("NormalizeSegmentMethod(%q) unexpected error: %v", tt.input, err)
				return
			}

			if got != tt.want {
				t.Errorf("NormalizeSegmentMethod(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePreset(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"full", "full", false},
		{"Khmer-Only", "khmer-only", false},
		{"minimal", "khmer-minimal", false},
		{"", "khmer-only", false},
		{"english", "", true},
	}

	for _, tt := range tests {
		got, err := NormalizePreset(tt.input)
		if tt.wantErr {
			if !errors.Is(err, symbols.ErrUnknownPreset) {
				t.Errorf("NormalizePreset(%q) error = %v; want ErrUnknownPreset", tt.input, err)
			}

			continue
		}

		if err != nil || got != tt.want {
			t.Errorf("NormalizePreset(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
}

// --- Validate ---

func TestValidate_Canonicalizes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols.Preset = "MINIMAL"
	cfg.Text.SegmentMethod = "both"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Symbols.Preset != "khmer-minimal" || cfg.Text.SegmentMethod != "bidirectional" {
		t.Errorf("Validate left %q / %q", cfg.Symbols.Preset, cfg.Text.SegmentMethod)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Symbols.Preset = "nope"
	cfg.Text.SegmentMethod = "sideways"
	cfg.Corpus.Workers = 0
	cfg.Server.Workers = -1
	cfg.Server.MaxTextBytes = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil; want error")
	}

	if !errors.Is(err, symbols.ErrUnknownPreset) || !errors.Is(err, text.ErrUnknownMethod) {
		t.Errorf("Validate() = %v; want preset and method errors", err)
	}

	for _, key := range []string{"corpus.workers", "server.workers", "server.max_text_bytes"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Validate() error should mention %s: %v", key, err)
		}
	}
}

// --- RegisterFlags ---

func TestRegisterFlags(t *testing.T) {
	defaults := DefaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs, defaults)

	checks := []struct {
		flag string
		want string
	}{
		{"preset", "khmer-only"},
		{"lexicon", "lexicons/khmer.tsv"},
		{"segment-method", "bidirectional"},
		{"normalize", "true"},
		{"corpus-workers", "4"},
		{"server-listen-addr", ":8080"},
		{"log-level", "info"},
	}

	for _, c := range checks {
		f := fs.Lookup(c.flag)
		if f == nil {
			t.Errorf("flag %q not registered", c.flag)
			continue
		}

		if f.DefValue != c.want {
			t.Errorf("flag %q default = %q; want %q", c.flag, f.DefValue, c.want)
		}
	}

	// Every bound key must have a registered flag.
	for _, fk := range flagKeys {
		if fs.Lookup(fk.flag) == nil {
			t.Errorf("config key %s has no flag %q", fk.key, fk.flag)
		}
	}
}

// --- Load ---

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{
		Cmd:      newFlagBinder(t, defaults),
		Defaults: defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg != defaults {
		t.Errorf("Load() = %+v; want defaults %+v", cfg, defaults)
	}
}

func TestLoad_NilCmd(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Paths.Lexicon != "lexicons/khmer.tsv" {
		t.Errorf("Paths.Lexicon = %q; want default", cfg.Paths.Lexicon)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	chdirTemp(t)

	defaults := DefaultConfig()
	binder := newFlagBinder(t, defaults,
		"--preset=full",
		"--segment=false",
		"--corpus-workers=8",
		"--server-max-text-bytes=100",
		"--log-level=debug",
	)

	cfg, err := Load(LoadOptions{Cmd: binder, Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Symbols.Preset != "full" {
		t.Errorf("Symbols.Preset = %q; want %q", cfg.Symbols.Preset, "full")
	}

	if cfg.Text.Segment {
		t.Error("Text.Segment = true; want false")
	}

	if cfg.Corpus.Workers != 8 {
		t.Errorf("Corpus.Workers = %d; want 8", cfg.Corpus.Workers)
	}

	if cfg.Server.MaxTextBytes != 100 {
		t.Errorf("Server.MaxTextBytes = %d; want 100", cfg.Server.MaxTextBytes)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("KHMERTTS_LOG_LEVEL", "warn")
	t.Setenv("KHMERTTS_SERVER_LISTEN_ADDR", ":9999")
	t.Setenv("KHMERTTS_SYMBOLS_PRESET", "khmer-minimal")

	defaults := DefaultConfig()

	cfg, err := Load(LoadOptions{Cmd: newFlagBinder(t, defaults), Defaults: defaults})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "warn")
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":9999")
	}

	if cfg.Symbols.Preset != "khmer-minimal" {
		t.Errorf("Symbols.Preset = %q; want %q", cfg.Symbols.Preset, "khmer-minimal")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	cfgFile := filepath.Join(dir, "custom.yaml")

	content := `
log_level: error
symbols:
  preset: full
text:
  segment_method: forward
server:
  workers: 16
  listen_addr: ":7777"
`

	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	defaults := DefaultConfig()

	// An explicit flag still beats the file.
	binder := newFlagBinder(t, defaults, "--server-listen-addr=:6666")

	cfg, err := Load(LoadOptions{
		Cmd:        binder,
		ConfigFile: cfgFile,
		Defaults:   defaults,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q; want %q", cfg.LogLevel, "error")
	}

	if cfg.Symbols.Preset != "full" {
		t.Errorf("Symbols.Preset = %q; want %q", cfg.Symbols.Preset, "full")
	}

	if cfg.Text.SegmentMethod != "forward" {
		t.Errorf("Text.SegmentMethod = %q; want %q", cfg.Text.SegmentMethod, "forward")
	}

	if cfg.Server.Workers != 16 {
		t.Errorf("Server.Workers = %d; want 16", cfg.Server.Workers)
	}

	if cfg.Server.ListenAddr != ":6666" {
		t.Errorf("Server.ListenAddr = %q; want %q", cfg.Server.ListenAddr, ":6666")
	}

	// Keys absent from the file keep their defaults.
	if cfg.Paths.Lexicon != defaults.Paths.Lexicon {
		t.Errorf("Paths.Lexicon = %q; want %q", cfg.Paths.Lexicon, defaults.Paths.Lexicon)
	}
}

func TestLoad_DiscoversConfigInWorkingDir(t *testing.T) {
	dir := chdirTemp(t)

	if err := os.WriteFile(filepath.Join(dir, "khmertts.yaml"), []byte("corpus:\n  strict: true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(LoadOptions{Defaults: DefaultConfig()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Corpus.Strict {
		t.Error("Corpus.Strict = false; want true from khmertts.yaml")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	cfgFile := filepath.Join(dir, "bad.yaml")

	if err := os.WriteFile(cfgFile, []byte(":\t:bad yaml:::"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Load(LoadOptions{
		ConfigFile: cfgFile,
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for invalid config file")
	}
}

func TestLoad_MissingExplicitConfigFile(t *testing.T) {
	_, err := Load(LoadOptions{
		ConfigFile: "/nonexistent/path/khmertts.yaml",
		Defaults:   DefaultConfig(),
	})
	if err == nil {
		t.Error("Load() = nil; want error for missing explicit config file")
	}
}
