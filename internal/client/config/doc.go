// Package config loads runtime configuration for the insightlens client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables, optionally seeded from a dotenv file given with
//     -env or found as ./.env (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   API base URL
//	-s string   search endpoint URL
//	-d int      search debounce interval (milliseconds)
//	-t int      search request timeout (seconds)
//	-db string  credential database path, or "memory"
//	-l string   log level
//
// Environment
//
//	INSIGHTLENS_API_URL, VITE_API_URL, REACT_APP_API_URL   API base URL (first set wins)
//	INSIGHTLENS_SEARCH_URL                                 search endpoint URL
//	INSIGHTLENS_STORE_SECRET                               passphrase sealing stored credentials
//	INSIGHTLENS_LOG_LEVEL                                  log level
//
// # JSON schema
//
//	{
//	  "api_base_url": "http://localhost:8000/api",
//	  "search_url": "http://127.0.0.1:8000/api/product/api/product/",
//	  "debounce_interval": "300ms",
//	  "request_timeout": "15s",
//	  "refresh_timeout": "10s",
//	  "store_path": "insightlens.db",
//	  "store_secret": "",
//	  "log_format": "text",
//	  "log_level": "info",
//	  "log_file": ""
//	}
package config
