package exiftool

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults for a Config.
const (
	DefaultExecutable    = "exiftool"
	DefaultSentinel      = "{ready}"
	DefaultReadChunkSize = 4096
	DefaultStopTimeout   = 5 * time.Second
)

// DefaultCommonArgs are passed once at startup and apply to every batch:
// group-qualified tag names and machine-readable values.
var DefaultCommonArgs = []string{"-G", "-n"}

// Config holds exiftool client configuration.
type Config struct {
	// Executable is the exiftool binary to run.
	// Default: "exiftool" (resolved through PATH).
	Executable string `json:"executable" yaml:"executable" toml:"executable" jsonschema:"description=exiftool binary name or path"`

	// Sentinel marks the end of the output of one batch.
	// Default: "{ready}", which is what exiftool prints after -execute.
	Sentinel string `json:"sentinel" yaml:"sentinel" toml:"sentinel" jsonschema:"description=end-of-batch marker printed by exiftool"`

	// ReadChunkSize is the number of bytes requested per read from stdout.
	// Default: 4096.
	ReadChunkSize int `json:"read_chunk_size" yaml:"read_chunk_size" toml:"read_chunk_size" jsonschema:"minimum=1"`

	// CommonArgs are given to exiftool with -common_args at startup.
	// Default: ["-G", "-n"].
	CommonArgs []string `json:"common_args" yaml:"common_args" toml:"common_args"`

	// StopTimeout is how long Terminate waits for exiftool to exit before
	// killing it. Zero selects the default, so a stop always allows the
	// process some time to exit.
	// Default: 5 seconds.
	StopTimeout time.Duration `json:"stop_timeout" yaml:"stop_timeout" toml:"stop_timeout" jsonschema:"type=string,description=Go duration string"`

	// ExecuteTimeout bounds every batch round trip. 0 means no timeout
	// beyond the caller's context.
	ExecuteTimeout time.Duration `json:"execute_timeout" yaml:"execute_timeout" toml:"execute_timeout" jsonschema:"type=string,description=Go duration string"`

	// Stderr receives the exiftool process's standard error.
	// Nil discards it.
	Stderr io.Writer `json:"-" yaml:"-" toml:"-"`

	// Logger receives lifecycle logs. Nil uses slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-" toml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Executable:    DefaultExecutable,
		Sentinel:      DefaultSentinel,
		ReadChunkSize: DefaultReadChunkSize,
		CommonArgs:    append([]string(nil), DefaultCommonArgs...),
		StopTimeout:   DefaultStopTimeout,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Executable == "" {
		return fmt.Errorf("%w: executable is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Sentinel) == "" {
		return fmt.Errorf("%w: sentinel is required", ErrInvalidConfig)
	}
	if c.ReadChunkSize <= 0 {
		return fmt.Errorf("%w: read_chunk_size must be > 0", ErrInvalidConfig)
	}
	if c.StopTimeout < 0 {
		return fmt.Errorf("%w: stop_timeout must be >= 0", ErrInvalidConfig)
	}
	if c.ExecuteTimeout < 0 {
		return fmt.Errorf("%w: execute_timeout must be >= 0", ErrInvalidConfig)
	}
	for _, arg := range c.CommonArgs {
		if err := checkToken(arg); err != nil {
			return fmt.Errorf("%w: common_args: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// WithDefaults returns a copy of the config with defaults applied for unset fields.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Executable == "" {
		c.Executable = defaults.Executable
	}
	if c.Sentinel == "" {
		c.Sentinel = defaults.Sentinel
	}
	if c.ReadChunkSize == 0 {
		c.ReadChunkSize = defaults.ReadChunkSize
	}
	if c.CommonArgs == nil {
		c.CommonArgs = defaults.CommonArgs
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = defaults.StopTimeout
	}

	return c
}

// configAlias has Config's fields without its methods.
type configAlias Config

// jsonConfig is the JSON form of a Config: durations are Go duration
// strings such as "2s", matching the YAML and TOML forms.
type jsonConfig struct {
	*configAlias
	StopTimeout    string `json:"stop_timeout,omitempty"`
	ExecuteTimeout string `json:"execute_timeout,omitempty"`
}

// MarshalJSON writes durations as Go duration strings.
func (c Config) MarshalJSON() ([]byte, error) {
	aux := jsonConfig{configAlias: (*configAlias)(&c)}
	if c.StopTimeout != 0 {
		aux.StopTimeout = c.StopTimeout.String()
	}
	if c.ExecuteTimeout != 0 {
		aux.ExecuteTimeout = c.ExecuteTimeout.String()
	}
	return json.Marshal(aux)
}

// UnmarshalJSON reads durations from Go duration strings.
func (c *Config) UnmarshalJSON(data []byte) error {
	aux := jsonConfig{configAlias: (*configAlias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.StopTimeout != "" {
		if c.StopTimeout, err = time.ParseDuration(aux.StopTimeout); err != nil {
			return fmt.Errorf("stop_timeout: %w", err)
		}
	}
	if aux.ExecuteTimeout != "" {
		if c.ExecuteTimeout, err = time.ParseDuration(aux.ExecuteTimeout); err != nil {
			return fmt.Errorf("execute_timeout: %w", err)
		}
	}
	return nil
}

// logger returns the configured logger or the process default.
func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// LoadConfig reads a Config from a YAML, TOML or JSON file, chosen by the
// file extension. Unset fields get their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse json config %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Option configures an ExifTool client.
type Option func(*Config)

// WithExecutable sets the exiftool binary.
func WithExecutable(path string) Option {
	return func(c *Config) { c.Executable = path }
}

// WithSentinel sets the end-of-batch marker.
func WithSentinel(sentinel string) Option {
	return func(c *Config) { c.Sentinel = sentinel }
}

// WithReadChunkSize sets the stdout read size.
func WithReadChunkSize(n int) Option {
	return func(c *Config) { c.ReadChunkSize = n }
}

// WithCommonArgs replaces the arguments applied to every batch.
func WithCommonArgs(args ...string) Option {
	return func(c *Config) { c.CommonArgs = append([]string{}, args...) }
}

// WithStopTimeout sets how long Terminate waits before killing the process.
// Zero keeps the default.
func WithStopTimeout(d time.Duration) Option {
	return func(c *Config) { c.StopTimeout = d }
}

// WithExecuteTimeout bounds every batch round trip, writing the batch
// included. A batch that times out kills the process.
func WithExecuteTimeout(d time.Duration) Option {
	return func(c *Config) { c.ExecuteTimeout = d }
}

// WithStderr captures the exiftool process's standard error.
func WithStderr(w io.Writer) Option {
	return func(c *Config) { c.Stderr = w }
}

// WithLogger sets the logger for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
