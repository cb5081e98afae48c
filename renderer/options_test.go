package renderer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestParseOptions(t *testing.T) {
	options, err := ParseOptions([]byte(`
debug_names = true
log_level = "debug"
fence_timeout = "250ms"
preferred_large_heap_block_size = 67108864
scratch_alignment_override = 256
externally_synchronized = true
`))
	require.NoError(t, err)
	require.Equal(t, Options{
		DebugNames:                  true,
		LogLevel:                    "debug",
		FenceTimeout:                Duration(250 * time.Millisecond),
		PreferredLargeHeapBlockSize: 64 * 1024 * 1024,
		ScratchAlignmentOverride:    256,
		ExternallySynchronized:      true,
	}, options)
}

func TestParseOptionsDefaults(t *testing.T) {
	options, err := ParseOptions(nil)
	require.NoError(t, err)
	require.Equal(t, Options{}, options)

	logger, err := options.logger()
	require.NoError(t, err)
	require.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseOptionsErrors(t *testing.T) {
	testCases := map[string]string{
		"UnknownKey":       `frames_in_flight = 2`,
		"UnknownLevel":     `log_level = "verbose"`,
		"BadDuration":      `fence_timeout = "soon"`,
		"NegativeDuration": `fence_timeout = "-1s"`,
		"WrongType":        `debug_names = "yes"`,
	}

	for name, document := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOptions([]byte(document))
			require.Error(t, err)
		})
	}
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hearth.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = \"warn\"\n"), 0o600))

	options, err := LoadOptions(path)
	require.NoError(t, err)
	require.Equal(t, "warn", options.LogLevel)

	logger, err := options.logger()
	require.NoError(t, err)
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))

	_, err = LoadOptions(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestDurationText(t *testing.T) {
	text, err := Duration(1500 * time.Millisecond).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "1.5s", string(text))

	var d Duration
	require.NoError(t, d.UnmarshalText(text))
	require.Equal(t, Duration(1500*time.Millisecond), d)
}
