// Package secrets looks up the completion-provider credential by name.
package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/PbVrCt/serverless-chat-demo/internal/awsconfig"
	"github.com/PbVrCt/serverless-chat-demo/internal/config"
	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// Provider resolves a secret by name. Failures are errs.ErrSecretUnavailable
// and are never retried.
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// envProvider reads secrets from environment variables named after them.
type envProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider returns a Provider reading the environment variable whose
// name is the secret name. Intended for local runs.
func NewEnvProvider() Provider {
	return &envProvider{lookup: os.LookupEnv}
}

func (p *envProvider) Get(_ context.Context, name string) (string, error) {
	value, ok := p.lookup(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", errs.NewSecretError(fmt.Sprintf("environment variable %s is not set", name), nil)
	}
	return value, nil
}

// Open builds the Provider selected by cfg.Secrets, wrapped in a TTL cache
// when cfg.Secrets.CacheTTL is positive.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Provider, error) {
	var provider Provider

	switch cfg.Secrets.Backend {
	case config.SecretsBackendSecretsManager:
		awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		provider = NewSecretsManagerProvider(NewSecretsManagerClient(awsCfg, awsconfig.Endpoint(cfg.AWS)), logger)
	case config.SecretsBackendEnv:
		provider = NewEnvProvider()
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Secrets.Backend)
	}

	if cfg.Secrets.CacheTTL > 0 {
		provider = NewCachingProvider(provider, cfg.Secrets.CacheTTL)
	}
	return provider, nil
}
