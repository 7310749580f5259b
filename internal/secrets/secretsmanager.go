package secrets

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type secretsManagerProvider struct {
	client SecretsManagerAPI
	logger *slog.Logger
}

// NewSecretsManagerProvider returns a Provider backed by AWS Secrets Manager.
// A secret stored as a JSON object yields the value under the key equal to
// the secret name; any other secret string is returned as is.
func NewSecretsManagerProvider(client SecretsManagerAPI, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &secretsManagerProvider{
		client: client,
		logger: logger.With("component", "secrets", "backend", "secretsmanager"),
	}
}

// NewSecretsManagerClient builds a Secrets Manager client, optionally pointed
// at a custom endpoint such as LocalStack.
func NewSecretsManagerClient(awsCfg aws.Config, endpoint *string) *secretsmanager.Client {
	return secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
}

func (p *secretsManagerProvider) Get(ctx context.Context, name string) (string, error) {
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to fetch secret", "secret_name", name, "error", err)
		return "", errs.NewSecretError("failed to fetch secret "+name, err)
	}

	raw := aws.ToString(out.SecretString)
	if strings.TrimSpace(raw) == "" {
		return "", errs.NewSecretError("secret "+name+" has no string value", nil)
	}

	value, err := extractValue(raw, name)
	if err != nil {
		p.logger.ErrorContext(ctx, "Secret has no usable value", "secret_name", name, "error", err)
		return "", err
	}
	return value, nil
}

func extractValue(raw, name string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return raw, nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		// Not a JSON object after all; treat it as a plain string.
		return raw, nil
	}

	value, ok := fields[name].(string)
	if !ok || value == "" {
		return "", errs.NewSecretError("secret "+name+" has no string key "+name, nil)
	}
	return value, nil
}
