package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// EnvPrefix prefixes every environment override, e.g. CHAT_COMPLETION_MODEL.
const EnvPrefix = "CHAT"

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. the YAML file at path (optional; a missing file is not an error)
// 3. CHAT_* environment variables
func LoadConfig(path string) (*Config, error) {
	startTime := time.Now()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, errs.NewConfigError(fmt.Sprintf("failed to read config file %q", path), err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errs.NewConfigError("failed to parse config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded successfully",
		"store_backend", cfg.Store.Backend,
		"completion_provider", cfg.Completion.Provider,
		"completion_model", cfg.Completion.Model,
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}

// setDefaults sets default values for every configuration key. Keys must be
// known to viper for AutomaticEnv to apply during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", DefaultLogJSON)

	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.request_timeout", DefaultServerRequestTimeout)
	v.SetDefault("server.read_header_timeout", DefaultServerReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultServerShutdownTimeout)

	v.SetDefault("auth.signing_method", DefaultAuthSigningMethod)
	v.SetDefault("auth.hmac_secret", "")
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.tenant_claim", DefaultAuthTenantClaim)
	v.SetDefault("auth.display_name_claim", DefaultAuthDisplayNameClaim)

	v.SetDefault("store.backend", DefaultStoreBackend)
	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("aws.region", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("aws.access_key_id", "")
	v.SetDefault("aws.secret_access_key", "")

	v.SetDefault("dynamodb.table_name", "")
	v.SetDefault("dynamodb.max_batch_retries", DefaultDynamoDBMaxBatchRetries)

	v.SetDefault("secrets.backend", DefaultSecretsBackend)
	v.SetDefault("secrets.name", DefaultSecretsName)
	v.SetDefault("secrets.cache_ttl", DefaultSecretsCacheTTL)

	v.SetDefault("completion.provider", DefaultCompletionProvider)
	v.SetDefault("completion.model", DefaultCompletionModel)
	v.SetDefault("completion.base_url", "")
	v.SetDefault("completion.temperature", DefaultCompletionTemperature)
	v.SetDefault("completion.max_tokens", DefaultCompletionMaxTokens)
	v.SetDefault("completion.stop_sequences", DefaultCompletionStopSequences)
	v.SetDefault("completion.timeout", DefaultCompletionTimeout)
	v.SetDefault("completion.max_context_tokens", DefaultCompletionMaxContextTokens)
	v.SetDefault("completion.persona", DefaultCompletionPersona)

	for name, task := range DefaultSchedulerTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}
}
