package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/docgraph/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextSync - replaying a change stream needs Bolt, and HTTP when spatial indexing is on
	ValidationContextSync ValidationContext = "sync"
	// ValidationContextRead - search and last need Bolt only
	ValidationContextRead ValidationContext = "read"
	// ValidationContextSpatial - layer inspection needs the HTTP endpoint
	ValidationContextSpatial ValidationContext = "spatial"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	return sb.String()
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextSync:
		c.validateNeo4j(result)
		if c.Spatial.Enabled {
			c.validateSpatial(result)
		}
		c.validateSync(result)
	case ValidationContextRead:
		c.validateNeo4j(result)
	case ValidationContextSpatial:
		c.validateSpatial(result)
	}

	return result
}

// Require validates and returns a config error when anything required is missing
func (c *Config) Require(ctx ValidationContext) error {
	result := c.Validate(ctx)
	if result.HasErrors() {
		return errors.ConfigErrorf("%s", result.Error())
	}
	return nil
}

func (c *Config) validateNeo4j(result *ValidationResult) {
	if c.Neo4j.URI == "" {
		result.AddError("NEO4J_URI is required but not set")
	} else if _, err := url.Parse(c.Neo4j.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	}

	if c.Neo4j.User == "" {
		result.AddError("NEO4J_USER is required but not set")
	}
	if c.Neo4j.Password == "" {
		result.AddError("NEO4J_PASSWORD is required but not set. Set it via environment variable, keychain or .env file.")
	} else if c.Neo4j.Password == "neo4j" || c.Neo4j.Password == "password" {
		result.AddWarning("NEO4J_PASSWORD is set to a very common password")
	}
	if c.Neo4j.Database == "" {
		result.AddWarning("NEO4J_DATABASE is not set, the server default database will be used")
	}
}

func (c *Config) validateSpatial(result *ValidationResult) {
	if c.Spatial.HTTPURL == "" {
		result.AddError("NEO4J_HTTP_URL is required for spatial indexing")
	} else if u, err := url.Parse(c.Spatial.HTTPURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("NEO4J_HTTP_URL is invalid: %q", c.Spatial.HTTPURL)
	}

	if c.Spatial.Auth == "" {
		result.AddError("NEO4J_AUTH is required for spatial indexing")
	} else if !strings.Contains(c.Spatial.Auth, ":") {
		result.AddError("NEO4J_AUTH must be of the form user:password")
	}

	if c.Spatial.Layer == "" {
		result.AddError("spatial layer name is empty")
	}
	if c.Spatial.StampBatchSize <= 0 {
		result.AddWarning("spatial stamp batch size %d is invalid, will use default (1000)", c.Spatial.StampBatchSize)
	}
}

func (c *Config) validateSync(result *ValidationResult) {
	if c.Sync.CheckpointPath == "" {
		result.AddWarning("no checkpoint path; every replay starts from the beginning")
	}
	if c.Sync.RateLimit < 0 {
		result.AddError("sync rate limit must not be negative, got %.2f", c.Sync.RateLimit)
	}
	if c.Sync.Bulk && c.Sync.BulkSize <= 0 {
		result.AddWarning("sync bulk size %d is invalid, will use default (1000)", c.Sync.BulkSize)
	}
	if c.DeadLetter.DSN == "" {
		result.AddWarning("dead letters disabled; swallowed commit failures will only be logged")
	}
}
