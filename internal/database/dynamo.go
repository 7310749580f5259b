package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// maxBatchWriteItems is the DynamoDB limit of requests per BatchWriteItem call.
const maxBatchWriteItems = 25

// Backoff between resubmissions of unprocessed batch requests.
const (
	batchRetryBaseDelay = 50 * time.Millisecond
	batchRetryMaxDelay  = 2 * time.Second
)

// DynamoDBAPI is the subset of the DynamoDB client used by the store.
type DynamoDBAPI interface {
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// dynamoItem is the row schema of the messages table. Attribute names are
// the table's wire contract and must not change.
type dynamoItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Text        string `dynamodbav:"Text"`
	AiGenerated bool   `dynamodbav:"AiGenerated"`
	Username    string `dynamodbav:"Username"`
	TenantID    string `dynamodbav:"TenantId"`
}

func toDynamoItem(m *Message) dynamoItem {
	return dynamoItem{
		PK:          m.ID,
		SK:          FormatTimestamp(m.CreatedAt),
		Text:        m.Text,
		AiGenerated: m.AIGenerated,
		Username:    m.AuthorDisplayName,
		TenantID:    m.TenantID,
	}
}

func (it dynamoItem) toMessage() (Message, error) {
	createdAt, err := ParseTimestamp(it.SK)
	return Message{
		ID:                it.PK,
		CreatedAt:         createdAt,
		Text:              it.Text,
		AIGenerated:       it.AiGenerated,
		AuthorDisplayName: it.Username,
		TenantID:          it.TenantID,
	}, err
}

type dynamoStore struct {
	client          DynamoDBAPI
	table           string
	maxBatchRetries int
	logger          *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewDynamoStore creates a Store over a DynamoDB table keyed by PK (message
// id) and SK (creation timestamp). maxBatchRetries bounds how many times
// unprocessed delete requests are resubmitted by DeleteAll.
func NewDynamoStore(client DynamoDBAPI, table string, maxBatchRetries int, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &dynamoStore{
		client:          client,
		table:           table,
		maxBatchRetries: maxBatchRetries,
		logger:          logger.With("component", "store", "backend", "dynamodb", "table", table),
		sleep:           sleepContext,
	}
}

func (s *dynamoStore) Ping(ctx context.Context) error {
	if _, err := s.describe(ctx); err != nil {
		return errs.NewStoreError("dynamodb ping failed", err)
	}
	return nil
}

func (s *dynamoStore) Append(ctx context.Context, message *Message) error {
	if err := validateMessage(message); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(toDynamoItem(message))
	if err != nil {
		return errs.NewStoreError("failed to marshal message", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending message",
			"message_id", message.ID, "tenant_id", message.TenantID, "error", err)
		return errs.NewStoreError("failed to put message", err)
	}

	s.logger.DebugContext(ctx, "Message appended",
		"message_id", message.ID, "tenant_id", message.TenantID, "ai_generated", message.AIGenerated)
	return nil
}

func (s *dynamoStore) ScanAll(ctx context.Context) ([]Message, error) {
	items, err := s.scanItems(ctx)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(items))
	for _, it := range items {
		m, err := it.toMessage()
		if err != nil {
			s.logger.WarnContext(ctx, "Stored message has an unparsable sort key",
				"message_id", it.PK, "sk", it.SK, "error", err)
		}
		messages = append(messages, m)
	}

	s.logger.DebugContext(ctx, "Scanned messages", "count", len(messages))
	return messages, nil
}

func (s *dynamoStore) scanItems(ctx context.Context) ([]dynamoItem, error) {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:      aws.String(s.table),
		ConsistentRead: aws.Bool(true),
	})

	var items []dynamoItem
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error scanning messages", "error", err)
			return nil, errs.NewStoreError("failed to scan messages", err)
		}

		var pageItems []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pageItems); err != nil {
			return nil, errs.NewStoreError("failed to unmarshal scanned messages", err)
		}
		items = append(items, pageItems...)
	}
	return items, nil
}

func (s *dynamoStore) DeleteAll(ctx context.Context) (int, error) {
	items, err := s.scanItems(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(items); start += maxBatchWriteItems {
		end := min(start+maxBatchWriteItems, len(items))

		requests := make([]types.WriteRequest, 0, end-start)
		for _, it := range items[start:end] {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: it.PK},
						"SK": &types.AttributeValueMemberS{Value: it.SK},
					},
				},
			})
		}

		n, err := s.batchDelete(ctx, requests)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}

	s.logger.InfoContext(ctx, "Deleted all messages", "read", len(items), "deleted", deleted)
	return deleted, nil
}

// batchDelete writes one batch, resubmitting unprocessed requests up to
// maxBatchRetries times. It returns the number of requests that went through.
func (s *dynamoStore) batchDelete(ctx context.Context, requests []types.WriteRequest) (int, error) {
	pending := requests
	for attempt := 0; ; attempt++ {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.table: pending},
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Error deleting messages", "batch_size", len(pending), "error", err)
			return len(requests) - len(pending), errs.NewStoreError("failed to batch delete messages", err)
		}

		unprocessed := out.UnprocessedItems[s.table]
		if len(unprocessed) == 0 {
			return len(requests), nil
		}
		if attempt >= s.maxBatchRetries {
			return len(requests) - len(unprocessed), errs.NewStoreError(
				fmt.Sprintf("%d delete requests left unprocessed", len(unprocessed)), nil)
		}

		delay := batchRetryDelay(attempt)
		s.logger.WarnContext(ctx, "Resubmitting unprocessed delete requests",
			"unprocessed", len(unprocessed), "attempt", attempt+1, "backoff", delay)
		if err := s.sleep(ctx, delay); err != nil {
			return len(requests) - len(unprocessed), errs.NewStoreError("batch delete retry abandoned", err)
		}
		pending = unprocessed
	}
}

// batchRetryDelay doubles the base delay per attempt, capped at
// batchRetryMaxDelay.
func batchRetryDelay(attempt int) time.Duration {
	delay := batchRetryBaseDelay
	for range attempt {
		delay *= 2
		if delay >= batchRetryMaxDelay {
			return batchRetryMaxDelay
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunMaintenance verifies the table is ACTIVE. DynamoDB manages its own
// storage, so there is nothing to compact.
func (s *dynamoStore) RunMaintenance(ctx context.Context) error {
	status, err := s.describe(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Table status check failed", "error", err)
		return errs.NewStoreError("failed to describe table", err)
	}
	if status != types.TableStatusActive {
		s.logger.WarnContext(ctx, "Table is not active", "status", status)
		return errs.NewStoreError(fmt.Sprintf("table status is %s", status), nil)
	}

	s.logger.InfoContext(ctx, "Table status check completed", "status", status)
	return nil
}

func (s *dynamoStore) describe(ctx context.Context) (types.TableStatus, error) {
	out, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	})
	if err != nil {
		return "", err
	}
	if out.Table == nil {
		return "", fmt.Errorf("describe table returned no table description")
	}
	return out.Table.TableStatus, nil
}

// NewDynamoDBClient builds a DynamoDB client, optionally pointed at a custom
// endpoint such as DynamoDB Local.
func NewDynamoDBClient(awsCfg aws.Config, endpoint *string) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
}
