package renderer

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slog"
)

// Duration is a time.Duration read from a string such as "250ms" or "5s"
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", string(text))
	}

	*d = Duration(duration)
	return nil
}

// Options configures a Renderer. The zero value is a usable configuration.
type Options struct {
	// DebugNames gives every buffer a name in its memory allocation
	DebugNames bool `toml:"debug_names"`
	// LogLevel is one of debug, info, warn, or error. Empty means info. It is ignored when
	// Logger is set.
	LogLevel string `toml:"log_level"`
	// FenceTimeout bounds the wait for the previous frame in RenderAndPresent. 0 waits forever.
	FenceTimeout Duration `toml:"fence_timeout"`
	// PreferredLargeHeapBlockSize is passed to the memory allocator the renderer creates when
	// none is bootstrapped. 0 lets the allocator decide.
	PreferredLargeHeapBlockSize int `toml:"preferred_large_heap_block_size"`
	// ScratchAlignmentOverride replaces the device's acceleration structure scratch alignment
	// when nonzero
	ScratchAlignmentOverride uint `toml:"scratch_alignment_override"`
	// ExternallySynchronized disables the internal locking of the allocator registry and the
	// memory allocator. The caller must then never use the renderer from more than one
	// goroutine at a time.
	ExternallySynchronized bool `toml:"externally_synchronized"`

	Logger *slog.Logger `toml:"-"`
}

// ParseOptions reads Options from a TOML document. Unknown keys are an error.
func ParseOptions(data []byte) (Options, error) {
	var options Options

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	err := decoder.Decode(&options)
	if err != nil {
		return Options{}, errors.Wrap(err, "failed to parse renderer options")
	}

	_, err = parseLevel(options.LogLevel)
	if err != nil {
		return Options{}, err
	}

	if options.FenceTimeout < 0 {
		return Options{}, errors.Newf("fence_timeout must not be negative: %s", time.Duration(options.FenceTimeout))
	}

	return options, nil
}

// LoadOptions reads Options from a TOML file
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrapf(err, "failed to read renderer options from %s", path)
	}

	return ParseOptions(data)
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}

	return slog.LevelInfo, errors.Newf("unknown log level %q", level)
}

func (o Options) logger() (*slog.Logger, error) {
	if o.Logger != nil {
		return o.Logger, nil
	}

	level, err := parseLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}

	return slog.New(slog.HandlerOptions{Level: level}.NewTextHandler(os.Stderr)), nil
}
