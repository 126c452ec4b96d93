// Craftstats - Minecraft Server Statistics Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/craftstats

package config

import (
	"fmt"

	"github.com/tomtom215/craftstats/internal/validation"
)

// Validate checks field constraints, then the cross-field rules struct
// tags cannot express.
func (c *Config) Validate() error {
	if err := validation.Err(validation.ValidateStruct(c)); err != nil {
		return err
	}

	if err := validateHTTPURL(c.StatsAPI.BaseURL, "STATS_API_URL"); err != nil {
		return fmt.Errorf("STATS_API_URL is invalid: %w", err)
	}

	return c.validateServer()
}

func (c *Config) validateServer() error {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "" {
			return fmt.Errorf("CORS_ORIGINS must not contain empty entries")
		}
	}
	if c.HasWildcardCORS() && len(c.Server.CORSOrigins) > 1 {
		return fmt.Errorf("CORS_ORIGINS=* cannot be combined with specific origins")
	}
	return nil
}

// HasWildcardCORS reports whether any origin is allowed. The server logs a
// warning at startup when this is true.
func (c *Config) HasWildcardCORS() bool {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}
