package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skiffhq/skiff/internal/core/composer"
	"github.com/skiffhq/skiff/internal/core/crypto"
	"github.com/skiffhq/skiff/internal/core/domain"
	"github.com/skiffhq/skiff/internal/core/flags"
	"github.com/skiffhq/skiff/internal/core/validation"
	"github.com/skiffhq/skiff/internal/shell/provider"
	"github.com/skiffhq/skiff/internal/shell/store"
)

// =============================================================================
// plan
// =============================================================================

// runPlan composes the topology offline and prints the resulting exports
// as YAML. Nothing is persisted and no provider is contacted.
func runPlan(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	if msg := validateAppConfig(cfg); msg != "" {
		logger.Error("invalid app configuration", "reason", msg)
		return ExitConfigError
	}

	eng := provider.NewPlanEngine(logger)

	d, err := composer.Compose(ctx, cfg.FeatureFlags(), eng, composer.Options{CodeRef: cfg.App.CodeRef})
	if err != nil {
		logger.Error("composition failed", "error", err)
		return ExitComposeError
	}

	exports, err := d.ResolveExports(ctx)
	if err != nil {
		logger.Error("failed to resolve exports", "error", err)
		return ExitComposeError
	}

	if err := writeExportsYAML(os.Stdout, exports); err != nil {
		logger.Error("failed to write plan output", "error", err)
		return ExitComposeError
	}

	return ExitSuccess
}

// writeExportsYAML renders the resolved export mapping as a YAML document.
func writeExportsYAML(w *os.File, exports map[string]string) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(map[string]map[string]string{"exports": exports})
}

// validateAppConfig checks the app section before composition starts.
func validateAppConfig(cfg *Config) string {
	if msg := validation.ValidateAppName(cfg.App.Name); msg != "" {
		return "app.name: " + msg
	}
	if msg := validation.ValidateEnvironment(cfg.App.Environment); msg != "" {
		return "app.environment: " + msg
	}
	if msg := validation.ValidateRateExpression(cfg.App.APIWarmRate); msg != "" {
		return "app.api_warm_rate: " + msg
	}
	if msg := validation.ValidateRateExpression(cfg.App.ArtisanScheduleRate); msg != "" {
		return "app.artisan_schedule_rate: " + msg
	}
	return ""
}

// =============================================================================
// up
// =============================================================================

// runUp composes and provisions the topology with the configured engine,
// persisting the stack record through its lifecycle.
func runUp(ctx context.Context, cfg *Config, logger *slog.Logger) int {
	if msg := validateAppConfig(cfg); msg != "" {
		logger.Error("invalid app configuration", "reason", msg)
		return ExitConfigError
	}

	eng, err := provider.NewEngine(cfg.Engine.Type, provider.Config{
		Region:          cfg.Engine.Region,
		AccessKeyID:     cfg.Engine.AccessKeyID,
		SecretAccessKey: cfg.Engine.SecretAccessKey,
		ArtifactBucket:  cfg.Engine.ArtifactBucket,
	}, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		return ExitConfigError
	}

	st, err := store.NewSQLiteStore(cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open state store", "error", err)
		return ExitDatabaseError
	}
	defer st.Close()

	f := cfg.FeatureFlags().Normalized()

	stack, err := st.GetStackByName(ctx, f.ResourcePrefix())
	if errors.Is(err, store.ErrNotFound) {
		stack, err = domain.NewStack(f.ResourcePrefix(), f)
		if err == nil {
			err = st.CreateStack(ctx, stack)
		}
	}
	if err != nil {
		logger.Error("failed to prepare stack record", "error", err)
		return ExitDatabaseError
	}

	// The config is authoritative for flags on every deploy.
	stack.Flags = f

	if err := stack.Transition(domain.StackDeploying); err != nil {
		logger.Error("stack is not deployable", "status", stack.Status, "error", err)
		return ExitComposeError
	}
	if err := st.UpdateStack(ctx, stack); err != nil {
		logger.Error("failed to persist stack state", "error", err)
		return ExitDatabaseError
	}

	exports, sealed, err := deploy(ctx, cfg, f, eng)
	if err != nil {
		logger.Error("deployment failed", "stack", stack.Name, "error", err)
		stack.ErrorMessage = err.Error()
		if tErr := stack.Transition(domain.StackFailed); tErr == nil {
			if uErr := st.UpdateStack(ctx, stack); uErr != nil {
				logger.Error("failed to record deployment failure", "error", uErr)
			}
		}
		return ExitComposeError
	}

	stack.Exports = exports
	stack.EncryptedCredentials = sealed
	stack.ErrorMessage = ""
	if err := stack.Transition(domain.StackDeployed); err != nil {
		logger.Error("failed to mark stack deployed", "error", err)
		return ExitComposeError
	}
	if err := st.UpdateStack(ctx, stack); err != nil {
		logger.Error("failed to persist stack state", "error", err)
		return ExitDatabaseError
	}

	logger.Info("stack deployed", "stack", stack.Name, "api_url", exports["apiUrl"])

	if err := writeExportsYAML(os.Stdout, exports); err != nil {
		logger.Error("failed to write deployment output", "error", err)
		return ExitComposeError
	}

	return ExitSuccess
}

// deploy runs the composition against the engine and returns the resolved
// exports plus the sealed database credentials (empty when the topology
// has no database or no master secret is configured).
func deploy(ctx context.Context, cfg *Config, f flags.FeatureFlags, eng composer.Engine) (map[string]string, string, error) {
	d, err := composer.Compose(ctx, f, eng, composer.Options{CodeRef: cfg.App.CodeRef})
	if err != nil {
		return nil, "", err
	}

	if err := d.Wait(ctx); err != nil {
		return nil, "", err
	}

	exports, err := d.ResolveExports(ctx)
	if err != nil {
		return nil, "", err
	}

	sealed := ""
	if d.Database != nil && cfg.Security.MasterSecret != "" {
		creds, err := d.Credentials.Await(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("database credentials: %w", err)
		}
		plaintext, err := json.Marshal(creds)
		if err != nil {
			return nil, "", fmt.Errorf("database credentials: %w", err)
		}
		key, err := crypto.DeriveKey(cfg.Security.MasterSecret)
		if err != nil {
			return nil, "", fmt.Errorf("seal credentials: %w", err)
		}
		sealed, err = crypto.EncryptToBase64(plaintext, key)
		if err != nil {
			return nil, "", fmt.Errorf("seal credentials: %w", err)
		}
	}

	return exports, sealed, nil
}
