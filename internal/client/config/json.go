package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/insightlens/internal/flagx"
	"github.com/dmitrijs2005/insightlens/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they may be written as "300ms" or as nanoseconds.
// Fields absent from the file leave the current value untouched.
type JsonConfig struct {
	APIBaseURL       *string         `json:"api_base_url"`
	SearchURL        *string         `json:"search_url"`
	DebounceInterval *timex.Duration `json:"debounce_interval"`
	RequestTimeout   *timex.Duration `json:"request_timeout"`
	RefreshTimeout   *timex.Duration `json:"refresh_timeout"`
	StorePath        *string         `json:"store_path"`
	StoreSecret      *string         `json:"store_secret"`
	LogFormat        *string         `json:"log_format"`
	LogLevel         *string         `json:"log_level"`
	LogFile          *string         `json:"log_file"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.SearchURL, jc.SearchURL)
	setString(&cfg.StorePath, jc.StorePath)
	setString(&cfg.StoreSecret, jc.StoreSecret)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFile, jc.LogFile)

	if jc.DebounceInterval != nil {
		cfg.DebounceInterval = jc.DebounceInterval.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RefreshTimeout != nil {
		cfg.RefreshTimeout = jc.RefreshTimeout.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
