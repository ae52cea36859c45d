package config

import "time"

// Config holds runtime settings for the insightlens client.
//
// Fields:
//   - APIBaseURL: base of the auth endpoints (/auth/login/, /auth/profile/, ...).
//   - SearchURL: the product search endpoint.
//   - DebounceInterval: quiet period before a search is dispatched.
//   - RequestTimeout: deadline applied to every search request.
//   - RefreshTimeout: deadline of a single token refresh call.
//   - StorePath: SQLite file holding credentials; "memory" keeps them in process.
//   - StoreSecret: when set, credentials are sealed at rest with this passphrase.
//   - LogFormat / LogLevel / LogFile: see logging.Options.
type Config struct {
	APIBaseURL       string
	SearchURL        string
	DebounceInterval time.Duration
	RequestTimeout   time.Duration
	RefreshTimeout   time.Duration
	StorePath        string
	StoreSecret      string
	LogFormat        string
	LogLevel         string
	LogFile          string
}

// LoadDefaults populates c with the defaults of a local development backend.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8000/api"
	c.SearchURL = "http://127.0.0.1:8000/api/product/api/product/"
	c.DebounceInterval = 300 * time.Millisecond
	c.RequestTimeout = 15 * time.Second
	c.RefreshTimeout = 10 * time.Second
	c.StorePath = "insightlens.db"
	c.StoreSecret = ""
	c.LogFormat = "text"
	c.LogLevel = "info"
	c.LogFile = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment (optionally seeded from a .env file)
// and command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
