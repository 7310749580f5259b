package config

import "time"

// Default values for configuration
const (
	// Log defaults
	DefaultLogLevel = "info"
	DefaultLogJSON  = false

	// Server defaults
	DefaultServerAddr              = ":8080"
	DefaultServerRequestTimeout    = 30 * time.Second
	DefaultServerReadHeaderTimeout = 5 * time.Second
	DefaultServerShutdownTimeout   = 10 * time.Second

	// Auth defaults (Cognito id token claims)
	DefaultAuthSigningMethod    = "RS256"
	DefaultAuthTenantClaim      = "sub"
	DefaultAuthDisplayNameClaim = "cognito:username"

	// Store defaults
	DefaultStoreBackend            = StoreBackendSQLite
	DefaultDBPath                  = "storage.db"
	DefaultDynamoDBMaxBatchRetries = 3

	// Secrets defaults
	DefaultSecretsBackend  = SecretsBackendSecretsManager
	DefaultSecretsName     = "OPENAI_TOKEN"
	DefaultSecretsCacheTTL = time.Duration(0) // fetch on every request

	// Completion defaults
	DefaultCompletionProvider         = CompletionProviderOpenAI
	DefaultCompletionModel            = "gpt-3.5-turbo"
	DefaultCompletionTemperature      = 0.5
	DefaultCompletionMaxTokens        = 100
	DefaultCompletionTimeout          = 20 * time.Second
	DefaultCompletionMaxContextTokens = 3000
	DefaultCompletionPersona          = "You are a Greek philosopher making arguments in favour of topics. You are currently arguing on behalf of: {display_name}"
)

// DefaultCompletionStopSequences ends a completion at the first sentence
// boundary or line break.
var DefaultCompletionStopSequences = []string{".", "!", "?", "\n"}

// DefaultSchedulerTasks schedules the store maintenance task nightly at 03:00.
var DefaultSchedulerTasks = map[string]TaskConfig{
	"store_maintenance": {Enabled: true, Schedule: "0 0 3 * * *"},
}
