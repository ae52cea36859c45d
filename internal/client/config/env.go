package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/dmitrijs2005/insightlens/internal/flagx"
	"github.com/joho/godotenv"
)

// apiURLVars are checked in order; the first non-empty one wins. The last two
// are the names used by the web build of the client.
var apiURLVars = []string{"INSIGHTLENS_API_URL", "VITE_API_URL", "REACT_APP_API_URL"}

// parseEnv overlays cfg with environment variables. A dotenv file given with
// -env (or ./.env when present) is loaded first; it never overrides
// variables already set in the process environment.
func parseEnv(cfg *Config) {
	envFile := flagx.EnvFileFlag()
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	for _, name := range apiURLVars {
		if v := os.Getenv(name); v != "" {
			cfg.APIBaseURL = v
			break
		}
	}

	if v := os.Getenv("INSIGHTLENS_SEARCH_URL"); v != "" {
		cfg.SearchURL = v
	}
	if v := os.Getenv("INSIGHTLENS_STORE_SECRET"); v != "" {
		cfg.StoreSecret = v
	}
	if v := os.Getenv("INSIGHTLENS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
