package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Symbols    SymbolsConfig    `mapstructure:"symbols"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Text       TextConfig       `mapstructure:"text"`
	Corpus     CorpusConfig     `mapstructure:"corpus"`
	Server     ServerConfig     `mapstructure:"server"`
	LogLevel   string           `mapstructure:"log_level"`
}

type SymbolsConfig struct {
	Preset string `mapstructure:"preset"`
}

type PathsConfig struct {
	Lexicon       string `mapstructure:"lexicon"`
	CheckpointDir string `mapstructure:"checkpoint_dir"`
}

type CheckpointConfig struct {
	// Embedding names the tensor whose row count must equal the vocabulary size.
	Embedding string `mapstructure:"embedding"`
}

type TextConfig struct {
	Normalize     bool   `mapstructure:"normalize"`
	Segment       bool   `mapstructure:"segment"`
	SegmentMethod string `mapstructure:"segment_method"`
}

type CorpusConfig struct {
	Workers    int  `mapstructure:"workers"`
	Strict     bool `mapstructure:"strict"`
	SampleRate int  `mapstructure:"sample_rate"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
	Workers         int    `mapstructure:"workers"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// flagKeys maps each config key to the flag that overrides it.
var flagKeys = []struct{ key, flag string }{
	{"symbols.preset", "preset"},
	{"paths.lexicon", "lexicon"},
	{"paths.checkpoint_dir", "checkpoint-dir"},
	{"checkpoint.embedding", "embedding-tensor"},
	{"text.normalize", "normalize"},
	{"text.segment", "segment"},
	{"text.segment_method", "segment-method"},
	{"corpus.workers", "corpus-workers"},
	{"corpus.strict", "strict"},
	{"corpus.sample_rate", "sample-rate"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.max_text_bytes", "server-max-text-bytes"},
	{"server.request_timeout", "server-request-timeout"},
	{"server.shutdown_timeout", "server-shutdown-timeout"},
	{"server.workers", "server-workers"},
	{"log_level", "log-level"},
}

func DefaultConfig() Config {
	return Config{
		Symbols: SymbolsConfig{
			Preset: "khmer-only",
		},
		Paths: PathsConfig{
			Lexicon:       "lexicons/khmer.tsv",
			CheckpointDir: "checkpoints",
		},
		Checkpoint: CheckpointConfig{
			Embedding: "encoder.emb.weight",
		},
		Text: TextConfig{
			Normalize:     true,
			Segment:       true,
			SegmentMethod: "bidirectional",
		},
		Corpus: CorpusConfig{
			Workers:    4,
			Strict:     false,
			SampleRate: 0,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			MaxTextBytes:    4096,
			RequestTimeout:  30,
			ShutdownTimeout: 10,
			Workers:         4,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("preset", defaults.Symbols.Preset, "Symbol table preset (full|khmer-only|khmer-minimal)")
	fs.String("lexicon", defaults.Paths.Lexicon, "Path to pronunciation lexicon (word<TAB>phones)")
	fs.String("checkpoint-dir", defaults.Paths.CheckpointDir, "Directory holding training checkpoints")
	fs.String("embedding-tensor", defaults.Checkpoint.Embedding, "Tensor whose rows must match the vocabulary size")
	fs.Bool("normalize", defaults.Text.Normalize, "Verbalize numbers, dates, times and symbols before G2P")
	fs.Bool("segment", defaults.Text.Segment, "Segment unspaced Khmer text against the lexicon")
	fs.String("segment-method", defaults.Text.SegmentMethod, "Word segmentation method (forward|reverse|bidirectional)")
	fs.Int("corpus-workers", defaults.Corpus.Workers, "Concurrent corpus phonemization workers")
	fs.Bool("strict", defaults.Corpus.Strict, "Abort corpus processing on the first failing entry")
	fs.Int("sample-rate", defaults.Corpus.SampleRate, "Required corpus audio sample rate (0 accepts any)")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout in seconds")
	fs.Int("server-workers", defaults.Server.Workers, "Concurrent phonemization requests")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("KHMERTTS")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("khmertts")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("symbols.preset", c.Symbols.Preset)
	v.SetDefault("paths.lexicon", c.Paths.Lexicon)
	v.SetDefault("paths.checkpoint_dir", c.Paths.CheckpointDir)
	v.SetDefault("checkpoint.embedding", c.Checkpoint.Embedding)
	v.SetDefault("text.normalize", c.Text.Normalize)
	v.SetDefault("text.segment", c.Text.Segment)
	v.SetDefault("text.segment_method", c.Text.SegmentMethod)
	v.SetDefault("corpus.workers", c.Corpus.Workers)
	v.SetDefault("corpus.strict", c.Corpus.Strict)
	v.SetDefault("corpus.sample_rate", c.Corpus.SampleRate)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds each registered flag to its config key. A flag only takes
// precedence over env and config file values when it was set explicitly.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", fk.flag, err)
		}
	}

	return nil
}
