package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo is a single-table DynamoAPI keyed by user_id. It understands
// the two condition expressions the cart store sends.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	err   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func userKey(key map[string]types.AttributeValue) string {
	if s, ok := key["user_id"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.GetItemOutput{Item: f.items[userKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	key := userKey(in.Item)
	_, exists := f.items[key]
	switch aws.ToString(in.ConditionExpression) {
	case "attribute_not_exists(user_id)":
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		}
	case "attribute_exists(user_id)":
		if !exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
		}
	}
	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	delete(f.items, userKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestDynamoCartStore(t *testing.T) {
	testCartRecordStore(t, NewDynamoCartStore(newFakeDynamo(), "carts"))
}

func TestDynamoCartStore_ItemLayout(t *testing.T) {
	client := newFakeDynamo()
	s := NewDynamoCartStore(client, "carts")

	require.NoError(t, s.Insert(context.Background(), &CartRecord{UserID: "u1", Items: []byte(`[]`)}))

	item := client.items["u1"]
	require.NotNil(t, item)
	items, ok := item["cart_items"].(*types.AttributeValueMemberS)
	require.True(t, ok, "cart_items is stored as a string")
	assert.Equal(t, "[]", items.Value)
	assert.Contains(t, item, "created_at")
	assert.Contains(t, item, "updated_at")
}

func TestDynamoCartStore_ClientErrors(t *testing.T) {
	client := newFakeDynamo()
	client.err = errors.New("throttled")
	s := NewDynamoCartStore(client, "carts")
	ctx := context.Background()

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, client.err)
	assert.NotErrorIs(t, err, ErrCartRecordNotFound)

	assert.ErrorIs(t, s.Insert(ctx, &CartRecord{UserID: "u1"}), client.err)
	assert.ErrorIs(t, s.Delete(ctx, "u1"), client.err)
}

func TestDynamoCartStore_CorruptTimestamp(t *testing.T) {
	client := newFakeDynamo()
	s := NewDynamoCartStore(client, "carts")
	ctx := context.Background()
	client.items["u1"] = map[string]types.AttributeValue{
		"user_id":    &types.AttributeValueMemberS{Value: "u1"},
		"cart_items": &types.AttributeValueMemberS{Value: "[]"},
		"created_at": &types.AttributeValueMemberS{Value: "2024-03-01T12:00:00Z"},
		"updated_at": &types.AttributeValueMemberS{Value: "yesterday"},
	}

	_, err := s.Get(ctx, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "updated_at")
	assert.NotErrorIs(t, err, ErrCartRecordNotFound)

	err = s.Update(ctx, &CartRecord{UserID: "u1", Items: []byte(`[]`)})
	assert.Error(t, err)
}

func TestDynamoCartStore_MissingTimestampsAreZero(t *testing.T) {
	client := newFakeDynamo()
	s := NewDynamoCartStore(client, "carts")
	client.items["u1"] = map[string]types.AttributeValue{
		"user_id":    &types.AttributeValueMemberS{Value: "u1"},
		"cart_items": &types.AttributeValueMemberS{Value: "[]"},
	}

	rec, err := s.Get(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.IsZero())
	assert.True(t, rec.UpdatedAt.IsZero())
}
