// Package awsconfig builds the AWS SDK configuration shared by the DynamoDB
// store and the Secrets Manager provider.
package awsconfig

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/PbVrCt/serverless-chat-demo/internal/config"
)

// Load resolves an aws.Config from the application settings. Empty region and
// credentials fall back to the SDK's default chain (environment, shared
// config, instance role).
func Load(ctx context.Context, cfg appconfig.AWSConfig) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return awsCfg, nil
}

// Endpoint returns the base endpoint override for service clients, or nil
// when the SDK should resolve the endpoint itself (e.g. DynamoDB Local or
// LocalStack set one).
func Endpoint(cfg appconfig.AWSConfig) *string {
	if cfg.Endpoint == "" {
		return nil
	}
	return aws.String(cfg.Endpoint)
}
