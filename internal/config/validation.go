package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// Validate checks field constraints declared in struct tags, then the
// constraints that span sections or depend on the selected backends:
//   - the completion call must time out before the request budget runs out
//   - each backend's required settings are present
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.NewConfigError("configuration validation failed", err)
	}

	if c.Completion.Timeout >= c.Server.RequestTimeout {
		return errs.NewConfigError(fmt.Sprintf(
			"completion.timeout (%s) must be shorter than server.request_timeout (%s)",
			c.Completion.Timeout, c.Server.RequestTimeout), nil)
	}

	switch c.Store.Backend {
	case StoreBackendSQLite:
		if c.Database.Path == "" {
			return errs.NewConfigError("database.path is required for the sqlite store", nil)
		}
	case StoreBackendDynamoDB:
		if c.DynamoDB.TableName == "" {
			return errs.NewConfigError("dynamodb.table_name is required for the dynamodb store", nil)
		}
	}

	switch c.Auth.SigningMethod {
	case "HS256":
		if c.Auth.HMACSecret == "" {
			return errs.NewConfigError("auth.hmac_secret is required for HS256", nil)
		}
	case "RS256":
		if c.Auth.PublicKeyPath == "" {
			return errs.NewConfigError("auth.public_key_path is required for RS256", nil)
		}
	}

	return nil
}
