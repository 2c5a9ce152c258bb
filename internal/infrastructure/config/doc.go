// Package config handles loading and validating UC Remote Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files (optional for the CLI)
//   - Overriding with UCREMOTE_* environment variables
//   - Validation of required fields, collecting every problem at once
//   - Default value handling
//
// Core packages (session, dispatch, discovery) never read this package or
// the environment directly. The command layer converts the relevant
// sections into each component's own Config struct.
//
// Security Considerations:
//   - The hub API key, PIN and JWT secret should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/ucremote.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Remote.URL)
package config
