package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the part of *dynamodb.Client the cart store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoCartStore implements CartRecordStore on a DynamoDB table with
// user_id as partition key.
type DynamoCartStore struct {
	client    DynamoAPI
	tableName string
}

// dynamoCart represents the DynamoDB item structure
type dynamoCart struct {
	UserID    string `dynamodbav:"user_id"`
	CartItems string `dynamodbav:"cart_items"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

func NewDynamoCartStore(client DynamoAPI, tableName string) *DynamoCartStore {
	return &DynamoCartStore{client: client, tableName: tableName}
}

func (s *DynamoCartStore) key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

func (s *DynamoCartStore) Get(ctx context.Context, userID string) (*CartRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(userID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get cart record: %w", err)
	}
	if result.Item == nil {
		return nil, ErrCartRecordNotFound
	}

	var dc dynamoCart
	if err := attributevalue.UnmarshalMap(result.Item, &dc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart record: %w", err)
	}

	createdAt, err := parseTimestamp("created_at", dc.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTimestamp("updated_at", dc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &CartRecord{
		UserID:    dc.UserID,
		Items:     []byte(dc.CartItems),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *DynamoCartStore) Insert(ctx context.Context, rec *CartRecord) error {
	return s.put(ctx, rec, "attribute_not_exists(user_id)", ErrCartRecordExists)
}

func (s *DynamoCartStore) Update(ctx context.Context, rec *CartRecord) error {
	current, err := s.Get(ctx, rec.UserID)
	if err != nil {
		return err
	}
	next := *rec
	next.CreatedAt = current.CreatedAt
	return s.put(ctx, &next, "attribute_exists(user_id)", ErrCartRecordNotFound)
}

// put writes the record under a condition; a failed condition maps to condErr
func (s *DynamoCartStore) put(ctx context.Context, rec *CartRecord, condition string, condErr error) error {
	av, err := attributevalue.MarshalMap(dynamoCart{
		UserID:    rec.UserID,
		CartItems: string(rec.Items),
		CreatedAt: rec.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cart record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                av,
		ConditionExpression: aws.String(condition),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return condErr
		}
		return fmt.Errorf("failed to put cart record: %w", err)
	}
	return nil
}

func (s *DynamoCartStore) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       s.key(userID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete cart record: %w", err)
	}
	return nil
}

// parseTimestamp reads an RFC 3339 attribute. A missing attribute is the
// zero time.
func parseTimestamp(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s on cart record: %w", name, err)
	}
	return t, nil
}
