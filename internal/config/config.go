// Package config provides configuration loading, validation, and management
// for the chat service. It handles reading from YAML files and CHAT_*
// environment variables, setting default values, and validating
// configuration parameters.
package config

import "time"

// Storage backends understood by the database package.
const (
	StoreBackendSQLite   = "sqlite"
	StoreBackendDynamoDB = "dynamodb"
	StoreBackendMemory   = "memory"
)

// Secret backends understood by the secrets package.
const (
	SecretsBackendSecretsManager = "secretsmanager"
	SecretsBackendEnv            = "env"
)

// Completion providers understood by the completion package.
const (
	CompletionProviderOpenAI = "openai"
	CompletionProviderGemini = "gemini"
)

// Config defines the application configuration parameters for all components
// of the chat service.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	AWS        AWSConfig        `mapstructure:"aws"`
	DynamoDB   DynamoDBConfig   `mapstructure:"dynamodb"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Completion CompletionConfig `mapstructure:"completion"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig holds HTTP listener settings. RequestTimeout is the wall-clock
// budget of a single request; the completion timeout must stay below it.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"                validate:"required"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"     validate:"min=1s,max=15m"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" validate:"min=1s"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"    validate:"min=1s"`
}

// AuthConfig configures verification of caller tokens.
type AuthConfig struct {
	SigningMethod    string `mapstructure:"signing_method"     validate:"oneof=HS256 RS256"`
	HMACSecret       string `mapstructure:"hmac_secret"`
	PublicKeyPath    string `mapstructure:"public_key_path"`
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	TenantClaim      string `mapstructure:"tenant_claim"       validate:"required"`
	DisplayNameClaim string `mapstructure:"display_name_claim" validate:"required"`
}

// StoreConfig selects the message store backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=sqlite dynamodb memory"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AWSConfig holds settings shared by the AWS SDK clients. Empty values fall
// back to the SDK's default credential and region chain.
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"          validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// DynamoDBConfig holds settings for the DynamoDB message table.
type DynamoDBConfig struct {
	TableName       string `mapstructure:"table_name"`
	MaxBatchRetries int    `mapstructure:"max_batch_retries" validate:"min=0,max=10"`
}

// SecretsConfig configures lookup of the completion-provider credential.
type SecretsConfig struct {
	Backend  string        `mapstructure:"backend"   validate:"oneof=secretsmanager env"`
	Name     string        `mapstructure:"name"      validate:"required"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min=0"`
}

// CompletionConfig holds the completion provider parameters and the persona
// used as the leading system turn. Persona may contain {display_name}.
type CompletionConfig struct {
	Provider         string        `mapstructure:"provider"           validate:"oneof=openai gemini"`
	Model            string        `mapstructure:"model"              validate:"required"`
	BaseURL          string        `mapstructure:"base_url"           validate:"omitempty,url"`
	Temperature      float32       `mapstructure:"temperature"        validate:"min=0,max=2"`
	MaxTokens        int           `mapstructure:"max_tokens"         validate:"min=1,max=4096"`
	StopSequences    []string      `mapstructure:"stop_sequences"     validate:"max=4"`
	Timeout          time.Duration `mapstructure:"timeout"            validate:"min=1s,max=10m"`
	MaxContextTokens int           `mapstructure:"max_context_tokens" validate:"min=0,max=200000"`
	Persona          string        `mapstructure:"persona"            validate:"required"`
}

// SchedulerConfig lists the scheduled tasks by registry name.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a task and sets its six-field cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}
