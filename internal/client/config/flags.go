package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/insightlens/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   API base URL
//	-s string   search endpoint URL
//	-d int      search debounce interval (milliseconds)
//	-t int      search request timeout (seconds)
//	-db string  credential database path, or "memory"
//	-l string   log level
//
// Only these flags are considered; others are filtered out with
// flagx.FilterArgs so that other loaders can own them.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-d", "-t", "-db", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&cfg.SearchURL, "s", cfg.SearchURL, "search endpoint URL")
	debounce := fs.Int("d", int(cfg.DebounceInterval.Milliseconds()), "search debounce interval (in milliseconds)")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "search request timeout (in seconds)")
	fs.StringVar(&cfg.StorePath, "db", cfg.StorePath, "credential database path or \"memory\"")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.DebounceInterval = time.Duration(*debounce) * time.Millisecond
	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
