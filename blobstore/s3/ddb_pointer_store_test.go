package s3

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/celltrie/blobstore"
)

// memDDBClient is an in-memory DynamoDB table for pointer tests.
type memDDBClient struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newMemDDBClient() *memDDBClient {
	return &memDDBClient{items: make(map[string]map[string]types.AttributeValue)}
}

func (m *memDDBClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uri := params.Item["base_uri"].(*types.AttributeValueMemberS).Value
	version := params.Item["version"].(*types.AttributeValueMemberN).Value
	key := uri + ":" + version

	if aws.ToString(params.ConditionExpression) == "attribute_not_exists(version)" {
		if _, exists := m.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
		}
	}

	m.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memDDBClient) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uri := params.ExpressionAttributeValues[":uri"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, item := range m.items {
		if item["base_uri"].(*types.AttributeValueMemberS).Value == uri {
			items = append(items, item)
		}
	}

	version := func(item map[string]types.AttributeValue) uint64 {
		v, _ := strconv.ParseUint(item["version"].(*types.AttributeValueMemberN).Value, 10, 64)
		return v
	}
	sort.Slice(items, func(i, j int) bool { return version(items[i]) > version(items[j]) })

	if params.Limit != nil && int(*params.Limit) < len(items) {
		items = items[:*params.Limit]
	}

	return &dynamodb.QueryOutput{Items: items}, nil
}

func TestDDBPointerStore_NotFoundBeforeAdvance(t *testing.T) {
	store := NewDDBPointerStore(newMemDDBClient(), "celltrie-checkpoints", "s3://bucket/fleet/")

	_, err := store.Latest(context.Background())
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestDDBPointerStore_Advance(t *testing.T) {
	ctx := context.Background()
	store := NewDDBPointerStore(newMemDDBClient(), "celltrie-checkpoints", "s3://bucket/fleet/")

	// More than nine versions, so string ordering would be wrong.
	for i := 1; i <= 12; i++ {
		require.NoError(t, store.Advance(ctx, fmt.Sprintf("checkpoint-%02d.ctrie", i)))
	}

	name, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "checkpoint-12.ctrie", name)
}

func TestDDBPointerStore_IsolatedNamespaces(t *testing.T) {
	ctx := context.Background()
	ddb := newMemDDBClient()

	a := NewDDBPointerStore(ddb, "t", "s3://bucket-a/path/")
	b := NewDDBPointerStore(ddb, "t", "s3://bucket-b/path/")

	require.NoError(t, a.Advance(ctx, "A"))
	require.NoError(t, b.Advance(ctx, "B"))

	got, _ := a.Latest(ctx)
	assert.Equal(t, "A", got)

	got, _ = b.Latest(ctx)
	assert.Equal(t, "B", got)
}

func TestDDBPointerStore_ConcurrentAdvance(t *testing.T) {
	ctx := context.Background()
	store := NewDDBPointerStore(newMemDDBClient(), "t", "s3://bucket/fleet/")

	var (
		wg                   sync.WaitGroup
		mu                   sync.Mutex
		successes, conflicts int
	)

	for i := range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			err := store.Advance(ctx, fmt.Sprintf("checkpoint-%d.ctrie", i))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConcurrentModification):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()

	assert.Greater(t, successes, 0)
	assert.Equal(t, 8, successes+conflicts)
}

func TestDDBPointerStore_ConditionalPut(t *testing.T) {
	ctx := context.Background()
	client := new(MockDDBClient)
	store := NewDDBPointerStore(client, "t", "s3://bucket/fleet/")

	client.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.TableName) == "t" && !aws.ToBool(in.ScanIndexForward) && aws.ToInt32(in.Limit) == 1
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{{
		"base_uri":   &types.AttributeValueMemberS{Value: "s3://bucket/fleet/"},
		"version":    &types.AttributeValueMemberN{Value: "41"},
		"checkpoint": &types.AttributeValueMemberS{Value: "old"},
	}}}, nil)

	client.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		v, ok := in.Item["version"].(*types.AttributeValueMemberN)
		return ok && v.Value == "42" && aws.ToString(in.ConditionExpression) == "attribute_not_exists(version)"
	})).Return(nil, &types.ConditionalCheckFailedException{}).Once()

	err := store.Advance(ctx, "new")
	require.ErrorIs(t, err, ErrConcurrentModification)

	client.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Once()

	err = store.Advance(ctx, "new")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConcurrentModification)

	client.AssertExpectations(t)
}
