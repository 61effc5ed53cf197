// Package provider implements provisioning engines for the topology
// composer. This is part of the Imperative Shell - engines handle I/O
// with cloud APIs (or simulate it for offline planning) and resolve the
// deferred values the composer declared.
package provider

import (
	"fmt"
	"log/slog"

	"github.com/skiffhq/skiff/internal/core/composer"
)

// Config holds provisioning engine configuration.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// ArtifactBucket is the bucket holding packaged code artifacts.
	ArtifactBucket string
}

// NewEngine creates a provisioning engine by name.
func NewEngine(engineType string, cfg Config, logger *slog.Logger) (composer.Engine, error) {
	switch engineType {
	case "plan":
		return NewPlanEngine(logger), nil

	case "aws":
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, fmt.Errorf("aws engine requires credentials")
		}
		return NewAWSEngine(cfg, logger), nil

	default:
		return nil, fmt.Errorf("unsupported engine type: %s", engineType)
	}
}
