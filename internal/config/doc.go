// Package config provides configuration management for hubcycle.
//
// Configuration is loaded from environment variables using the env package.
// All configuration values have sensible defaults for a two-agent cell.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("controller at %s\n", cfg.GetControllerAddr())
package config
