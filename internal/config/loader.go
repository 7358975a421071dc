package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"assess":  {"azure"},
	"tts":     {"elevenlabs"},
	"stt":     {"deepgram"},
	"improve": {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("assess", cfg.Providers.Assess.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("improve", cfg.Providers.Improve.Name)

	// Provider availability warnings
	if cfg.Providers.Assess.Name == "" {
		slog.Warn("no assessment provider configured; pronunciation scoring will not be available")
	}
	if cfg.Providers.Improve.Name == "" {
		slog.Warn("no improvement provider configured; transcript improvement will not be available")
	}
	if cfg.Providers.Assess.Name == "azure" && cfg.Providers.Assess.Region == "" {
		errs = append(errs, errors.New("providers.assess.region is required for the azure provider"))
	}
	if cfg.Providers.TTS.Name == "elevenlabs" && cfg.Providers.TTS.VoiceID == "" {
		errs = append(errs, errors.New("providers.tts.voice_id is required for the elevenlabs provider"))
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required"))
	}
	if cfg.Blob.Bucket == "" {
		errs = append(errs, errors.New("blob.bucket is required"))
	}

	// Recording budgets
	b := cfg.Recording.Budgets
	for _, d := range []struct {
		name string
		val  int64
	}{
		{"word_drill", int64(b.WordDrill)},
		{"sentence", int64(b.Sentence)},
		{"full_transcript", int64(b.FullTranscript)},
	} {
		if d.val < 0 {
			errs = append(errs, fmt.Errorf("recording.budgets.%s must not be negative", d.name))
		}
	}

	// Capture constraints
	if c := cfg.Recording.Constraints; c.SampleRate < 0 || c.Channels < 0 || c.Channels > 2 {
		errs = append(errs, errors.New("recording.constraints: sample_rate must be >= 0 and channels in [0, 2]"))
	}

	if cfg.Practice.WeakWordThreshold < 0 || cfg.Practice.WeakWordThreshold > 100 {
		errs = append(errs, fmt.Errorf("practice.weak_word_threshold %.2f is out of range [0, 100]", cfg.Practice.WeakWordThreshold))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
