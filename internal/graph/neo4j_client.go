package graph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ConnectionConfig describes how to reach the Bolt endpoint
type ConnectionConfig struct {
	URI      string
	User     string
	Password string
	Database string

	MaxPoolSize int // Default: 50
}

// NewDriver creates a Neo4j driver. Connectivity is checked by Neo4jStore.HealthCheck.
func NewDriver(cfg ConnectionConfig) (neo4j.DriverWithContext, error) {
	if cfg.URI == "" || cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("neo4j credentials missing: uri=%s, user=%s", cfg.URI, cfg.User)
	}

	poolSize := cfg.MaxPoolSize
	if poolSize <= 0 {
		poolSize = 50
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(config *neo4j.Config) {
			config.MaxConnectionPoolSize = poolSize
			config.ConnectionAcquisitionTimeout = 60 * time.Second
			config.MaxConnectionLifetime = 3600 * time.Second
			config.ConnectionLivenessCheckTimeout = 5 * time.Second
			config.SocketConnectTimeout = 5 * time.Second
			config.SocketKeepalive = true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	return driver, nil
}
