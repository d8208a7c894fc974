package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// dynamodbAPI is the subset of the DynamoDB client DynamoStore needs.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore keeps conversation state in a DynamoDB table with partition key
// chat_id. The table's TTL attribute should be set to expires_at.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// NewDynamoStore wraps a DynamoDB client.
func NewDynamoStore(api dynamodbAPI, tableName string, ttl time.Duration) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("memory: dynamodb api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("memory: dynamodb table name must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DynamoStore{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// NewDynamoStoreFromEnv loads AWS credentials and region from the environment.
func NewDynamoStoreFromEnv(ctx context.Context, tableName string, ttl time.Duration) (*DynamoStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: loading aws config: %w", err)
	}
	return NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName, ttl)
}

// Get implements Store. Items past expires_at are treated as absent, since
// DynamoDB deletes expired items lazily.
func (s *DynamoStore) Get(ctx context.Context, chatID string) (string, error) {
	ctx, span := tracer.Start(ctx, "memory.dynamodb.get")
	defer span.End()

	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"chat_id": &types.AttributeValueMemberS{Value: chatID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("memory: dynamodb get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", nil
	}

	if n, ok := out.Item["expires_at"].(*types.AttributeValueMemberN); ok {
		exp, err := strconv.ParseInt(n.Value, 10, 64)
		if err == nil && s.now().Unix() > exp {
			return "", nil
		}
	}
	product, ok := out.Item["last_product"].(*types.AttributeValueMemberS)
	if !ok {
		return "", nil
	}
	return product.Value, nil
}

// Set implements Store.
func (s *DynamoStore) Set(ctx context.Context, chatID, product string) error {
	if Ambiguous(product) {
		return nil
	}
	ctx, span := tracer.Start(ctx, "memory.dynamodb.set")
	defer span.End()

	now := s.now().UTC()
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"chat_id":      &types.AttributeValueMemberS{Value: chatID},
			"last_product": &types.AttributeValueMemberS{Value: product},
			"updated_at":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			"expires_at":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(s.ttl).Unix(), 10)},
		},
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("memory: dynamodb put item: %w", err)
	}
	return nil
}
