package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{
			name: "all flags",
			args: []string{"cmd", "-a", "http://api:9000/api", "-s", "http://api:9000/search/", "-d", "150", "-t", "5", "-db", "memory", "-l", "debug"},
			expected: &Config{
				APIBaseURL:       "http://api:9000/api",
				SearchURL:        "http://api:9000/search/",
				DebounceInterval: 150 * time.Millisecond,
				RequestTimeout:   5 * time.Second,
				StorePath:        "memory",
				LogLevel:         "debug",
			},
		},
		{
			name:     "unrelated flags are ignored",
			args:     []string{"cmd", "-c", "cfg.json", "-d", "10"},
			expected: &Config{DebounceInterval: 10 * time.Millisecond},
		},
		{name: "incorrect debounce", args: []string{"cmd", "-d", "abc"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			cfg := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg) })
				return
			}

			require.NotPanics(t, func() { parseFlags(cfg) })
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}
