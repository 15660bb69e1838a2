// Package config handles configuration loading for fieldbook.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file, with environment variable
// expansion inside the file and FIELDBOOK_* variables overriding individual
// fields afterwards. Unset fields keep the values from Default().
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FIELDBOOK_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/fieldbook/config.yaml
//  3. ~/.config/fieldbook/config.yaml
//
// A path ending in .toml is decoded as TOML; anything else as YAML. When no
// file exists, FromEnv builds the configuration from the environment alone.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${FIELDBOOK_JWT_SECRET}"
//
// # Environment Overrides
//
//	FIELDBOOK_HTTP_ADDR            server.http_addr
//	FIELDBOOK_SHUTDOWN_TIMEOUT     server.shutdown_timeout
//	FIELDBOOK_DB_PATH              database.path
//	FIELDBOOK_JWT_SECRET           auth.jwt_secret
//	FIELDBOOK_ALLOW_ANONYMOUS      auth.allow_anonymous
//	FIELDBOOK_RATE_LIMIT_ENABLED   auth.rate_limit.enabled
//	FIELDBOOK_RATE_LIMIT_REQUESTS  auth.rate_limit.requests
//	FIELDBOOK_RATE_LIMIT_WINDOW    auth.rate_limit.window
//	FIELDBOOK_ENFORCE_OWNERSHIP    plots.enforce_ownership
//	FIELDBOOK_LOG_LEVEL            logging.level
//	FIELDBOOK_LOG_FORMAT           logging.format
//	FIELDBOOK_METRICS_ENABLED      metrics.enabled
//	FIELDBOOK_TAILSCALE_ENABLED    tailscale.enabled
//	TS_AUTHKEY                     tailscale.auth_key
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	  shutdown_timeout: "10s"
//	  read_header_timeout: "5s"
//
//	database:
//	  path: "/var/lib/fieldbook/fieldbook.db"
//
//	auth:
//	  jwt_secret: "${FIELDBOOK_JWT_SECRET}"   # at least 32 bytes
//	  allow_anonymous: false                  # let tokenless requests read plots
//	  rate_limit:                             # per client IP, register and login
//	    enabled: true
//	    requests: 100
//	    window: "15m"
//
//	plots:
//	  enforce_ownership: true                 # hide other owners' plots from reads
//
//	tailscale:
//	  enabled: false
//	  hostname: "fieldbook"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//	  funnel: false
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Validation
//
// Load() and FromEnv() validate:
//
//   - An HTTP address, or Tailscale with a hostname
//   - A database path
//   - JWT secret minimum length (32 bytes)
//   - Duration format validity
//   - A positive auth.rate_limit when it is enabled
//   - Logging level and format values
package config
