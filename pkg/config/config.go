// Package config loads the settings of the fshc command.
//
// Settings are layered: built-in defaults, then an optional YAML file
// (fsh-config.yaml), then FSHC_* environment variables. Later layers win.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/multierr"

	fsh "github.com/gofhir/fsh"
	"github.com/gofhir/fsh/pkg/importer"
	"github.com/gofhir/fsh/pkg/logger"
)

const (
	// FileName is the configuration file looked up in the working
	// directory when no path is given.
	FileName = "fsh-config.yaml"
	// EnvPrefix prefixes the environment variables that override settings,
	// e.g. FSHC_MAX_INSERT_DEPTH.
	EnvPrefix = "FSHC_"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

// Config holds the fshc settings.
type Config struct {
	FHIRVersion    fsh.FHIRVersion `koanf:"fhir_version"`
	Canonical      string          `koanf:"canonical"`
	MaxInsertDepth int             `koanf:"max_insert_depth"`
	Parallelism    int             `koanf:"parallelism"`
	LogLevel       string          `koanf:"log_level"`
	Output         string          `koanf:"output"`
	Strict         bool            `koanf:"strict"`
}

func defaults() map[string]any {
	return map[string]any{
		"fhir_version":     string(fsh.R4),
		"canonical":        "http://example.org",
		"max_insert_depth": importer.DefaultMaxInsertDepth,
		"parallelism":      0,
		"log_level":        "warn",
		"output":           OutputText,
		"strict":           false,
	}
}

// Load builds the configuration. When path is empty, FileName is read
// from the working directory if it exists; a path that is given must
// exist.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(FileName); err == nil {
			path = FileName
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       fhirVersionHookFunc(),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, conf); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fhirVersionHookFunc accepts release numbers ("4.0.1") as well as names
// ("R4") for FHIR versions. Unknown values pass through for Validate.
func fhirVersionHookFunc() mapstructure.DecodeHookFunc {
	target := reflect.TypeOf(fsh.FHIRVersion(""))
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if t != target || f.Kind() != reflect.String {
			return data, nil
		}
		if v, ok := fsh.ParseFHIRVersion(strings.TrimSpace(reflect.ValueOf(data).String())); ok {
			return v, nil
		}
		return data, nil
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs error
	if !c.FHIRVersion.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("unsupported FHIR version %q", c.FHIRVersion))
	}
	if c.MaxInsertDepth <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("max_insert_depth must be positive, got %d", c.MaxInsertDepth))
	}
	if c.Parallelism < 0 {
		errs = multierr.Append(errs, fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Output != OutputText && c.Output != OutputJSON {
		errs = multierr.Append(errs, fmt.Errorf("unknown output format %q", c.Output))
	}
	if strings.TrimSpace(c.Canonical) == "" {
		errs = multierr.Append(errs, errors.New("canonical must not be empty"))
	}
	return errs
}

// Level returns the configured log level.
func (c *Config) Level() logger.Level {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}

// ImporterOptions translates the settings the importer understands. A
// Parallelism of zero keeps the importer's default.
func (c *Config) ImporterOptions() []importer.Option {
	opts := []importer.Option{importer.WithMaxInsertDepth(c.MaxInsertDepth)}
	if c.Parallelism > 0 {
		opts = append(opts, importer.WithParallelism(c.Parallelism))
	}
	return opts
}
