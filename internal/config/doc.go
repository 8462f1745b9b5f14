// Package config provides configuration management for domain-email-records.
//
// The package uses a Provider interface to abstract configuration loading, with the
// primary implementation being filesystem-based configuration via YAML files.
//
// # Configuration Structure
//
// Configuration is structured as follows:
//
//	lookup:
//	  chunk_size: 500                  # Domains resolved concurrently per batch
//	  query_timeout: 10s               # Lifetime of a single DNS query
//	  nameservers: []                  # Empty means the system resolvers
//	  types: [ns, apex, mx, spf, dmarc]
//	  rate_limit: 0                    # DNS queries per second, 0 is unlimited
//	input:
//	  csv_column: 2                    # 1-based domain column in CSV input
//	log:
//	  level: info                      # debug, info, warning, error, critical
//	metrics:
//	  addr: ""                         # e.g. 127.0.0.1:9153 to serve /metrics
//
// # Basic Usage
//
// Load configuration using the default path (~/.domain-email-records/config.yaml):
//
//	cfg, err := config.New("").Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Command-line flags are applied on top of the loaded values, after which
// Validate should be called again.
//
// # Configuration Validation
//
// The package performs validation of loaded configuration:
//   - Chunk size must be at least 1
//   - Query timeout must be at least 1 second
//   - Rate limit must not be negative
//   - Nameservers must not be blank
//   - Every lookup type must be supported
//   - CSV column must be at least 1
//   - Log level must be known
//
// # Default Configuration
//
// If no configuration file exists the defaults above are used. Settings
// missing from a file keep their default values.
//
// # Error Handling
//
// The package defines several error types:
//   - ErrInvalidConfig: Configuration validation failed
//   - ErrNoConfig: Configuration file not found (returns defaults)
//   - ErrConfigExists: Save would replace an existing file
package config
