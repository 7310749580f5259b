package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PbVrCt/serverless-chat-demo/internal/awsconfig"
	"github.com/PbVrCt/serverless-chat-demo/internal/config"
)

// Open builds the Store selected by cfg.Store.Backend. The returned close
// function releases backend resources and is safe to call once.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendSQLite:
		db, err := OpenSQLite(ctx, cfg.Database.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return NewStore(db, logger), func() { closeSQLite(db, logger) }, nil

	case config.StoreBackendDynamoDB:
		awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, nil, err
		}
		client := NewDynamoDBClient(awsCfg, awsconfig.Endpoint(cfg.AWS))
		store := NewDynamoStore(client, cfg.DynamoDB.TableName, cfg.DynamoDB.MaxBatchRetries, logger)
		return store, func() {}, nil

	case config.StoreBackendMemory:
		return NewMemoryStore(logger), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
