package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mindboard/domain/board"
	"mindboard/pkg/clock"
	pkgerrors "mindboard/pkg/errors"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func (m *mockClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

var updated = time.Date(2024, 3, 4, 5, 6, 7, 8, time.UTC)

func sampleRecord() board.Record {
	style := &board.EdgeStyle{Stroke: "#333", Animated: true}
	n1 := board.NewTextNode("1", board.Position{X: 1.5, Y: -2}, "Root", "<p>hello</p>")
	n1.Data.Content.Images = []string{"https://example.com/a.png"}
	return board.Record{
		ID:   "b1",
		Name: "Plans",
		Nodes: []board.Node{
			n1,
			board.NewTextNode("2", board.Position{X: 300}, "Child", ""),
		},
		Edges:     []board.Edge{{ID: "e1", Source: "1", Target: "2", SourceHandle: "right-source", Style: style}},
		UpdatedAt: updated,
	}
}

func TestBoardStorePutThenGet(t *testing.T) {
	client := &mockClient{}
	store := NewBoardStore(client, "boards", "", nil)
	ctx := context.Background()
	rec := sampleRecord()

	var written map[string]types.AttributeValue
	client.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		written = in.Item
		return aws.ToString(in.TableName) == "boards"
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()
	require.NoError(t, store.Put(ctx, rec))

	var item boardItem
	require.NoError(t, attributevalue.UnmarshalMap(written, &item))
	assert.Equal(t, "BOARD#b1", item.PK)
	assert.Equal(t, boardSK, item.SK)
	assert.Equal(t, boardListKey, item.GSI1PK)
	assert.Equal(t, "2024-03-04T05:06:07.000000008Z#b1", item.GSI1SK)
	assert.Equal(t, 2, item.NodeCount)

	client.On("GetItem", ctx, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
		return pk == "BOARD#b1" && aws.ToBool(in.ConsistentRead)
	})).Return(&dynamodb.GetItemOutput{Item: written}, nil).Once()

	got, err := store.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Name, got.Name)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
	assert.True(t, rec.Snapshot().Equal(got.Snapshot()))
	client.AssertExpectations(t)
}

func TestBoardStoreGetMissing(t *testing.T) {
	client := &mockClient{}
	store := NewBoardStore(client, "boards", "", nil)
	client.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := store.Get(context.Background(), "nope")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestBoardStorePutRequiresID(t *testing.T) {
	store := NewBoardStore(&mockClient{}, "boards", "", nil)

	err := store.Put(context.Background(), board.Record{})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestBoardStoreListPaginates(t *testing.T) {
	client := &mockClient{}
	store := NewBoardStore(client, "boards", "ByUpdate", nil)
	ctx := context.Background()

	page := func(items ...boardItem) []map[string]types.AttributeValue {
		var out []map[string]types.AttributeValue
		for _, it := range items {
			av, err := attributevalue.MarshalMap(it)
			require.NoError(t, err)
			out = append(out, av)
		}
		return out
	}
	next := map[string]types.AttributeValue{"PK": &types.AttributeValueMemberS{Value: "BOARD#b2"}}

	client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == "ByUpdate" &&
			!aws.ToBool(in.ScanIndexForward) &&
			in.ExclusiveStartKey == nil
	})).Return(&dynamodb.QueryOutput{
		Items:            page(boardItem{BoardID: "b2", Name: "Two", NodeCount: 3, UpdatedAt: "2024-03-02T00:00:00Z"}),
		LastEvaluatedKey: next,
	}, nil).Once()
	client.On("Query", ctx, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return in.ExclusiveStartKey != nil
	})).Return(&dynamodb.QueryOutput{
		Items: page(
			boardItem{BoardID: "b1", Name: "One", NodeCount: 1, UpdatedAt: "2024-03-01T00:00:00Z"},
			boardItem{BoardID: "bad", UpdatedAt: "yesterday"},
		),
	}, nil).Once()

	summaries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "b2", summaries[0].ID)
	assert.Equal(t, 3, summaries[0].NodeCount)
	assert.Equal(t, "b1", summaries[1].ID)
	client.AssertExpectations(t)
}

func TestBoardStoreDelete(t *testing.T) {
	client := &mockClient{}
	store := NewBoardStore(client, "boards", "", nil)
	ctx := context.Background()

	client.On("DeleteItem", ctx, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return in.ConditionExpression != nil && in.Key["PK"].(*types.AttributeValueMemberS).Value == "BOARD#b1"
	})).Return(&dynamodb.DeleteItemOutput{}, nil).Once()
	require.NoError(t, store.Delete(ctx, "b1"))

	client.On("DeleteItem", ctx, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}).Once()
	assert.True(t, pkgerrors.IsNotFound(store.Delete(ctx, "b2")))
}

func TestWriterLockAcquire(t *testing.T) {
	clk := clock.NewFake(updated)
	ctx := context.Background()

	tests := []struct {
		name      string
		err       error
		wantErr   bool
		wantCode  string
		checkItem bool
	}{
		{name: "acquired", checkItem: true},
		{name: "held elsewhere", err: &types.ConditionalCheckFailedException{}, wantErr: true, wantCode: pkgerrors.CodeBoardLocked},
		{name: "transport failure", err: errors.New("timeout"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{}
			lock := NewWriterLock(client, "boards", clk, nil)

			client.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
				if !tt.checkItem {
					return true
				}
				owner := in.Item["Owner"].(*types.AttributeValueMemberS).Value
				expires := in.Item["ExpiresAt"].(*types.AttributeValueMemberS).Value
				return owner == "s1" &&
					expires == "2024-03-04T05:06:37.000000008Z" &&
					in.ExpressionAttributeValues[":owner"].(*types.AttributeValueMemberS).Value == "s1"
			})).Return(&dynamodb.PutItemOutput{}, tt.err).Once()

			err := lock.Acquire(ctx, "b1", "s1", 30*time.Second)
			if !tt.wantErr {
				require.NoError(t, err)
				client.AssertExpectations(t)
				return
			}
			require.Error(t, err)
			if tt.wantCode != "" {
				assert.True(t, pkgerrors.IsConflict(err))
				assert.True(t, pkgerrors.HasCode(err, tt.wantCode))
			} else {
				assert.False(t, pkgerrors.IsConflict(err))
			}
		})
	}
}

func TestWriterLockRelease(t *testing.T) {
	client := &mockClient{}
	lock := NewWriterLock(client, "boards", nil, nil)
	ctx := context.Background()

	client.On("DeleteItem", ctx, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{}).Once()
	assert.NoError(t, lock.Release(ctx, "b1", "s1"), "lease taken over is not an error")

	client.On("DeleteItem", ctx, mock.Anything).Return(nil, errors.New("boom")).Once()
	assert.Error(t, lock.Release(ctx, "b1", "s1"))
}

func TestRateLimiterAllow(t *testing.T) {
	wantPK := fmt.Sprintf("RATELIMIT#suggest#s1#%d", updated.Truncate(time.Minute).Unix())

	tests := []struct {
		name    string
		out     *dynamodb.UpdateItemOutput
		err     error
		allowed bool
		wantErr bool
	}{
		{
			name: "within budget",
			out: &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
				"Count": &types.AttributeValueMemberN{Value: "2"},
			}},
			allowed: true,
		},
		{
			name:    "window full",
			err:     &types.ConditionalCheckFailedException{},
			allowed: false,
		},
		{
			name:    "table unreachable fails open",
			err:     errors.New("throttled"),
			allowed: true,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{}
			limiter := NewRateLimiter(client, "boards", "suggest", 3, time.Minute, clock.NewFake(updated), nil)
			ctx := context.Background()

			client.On("UpdateItem", ctx, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
				pk := in.Key["PK"].(*types.AttributeValueMemberS).Value
				limit := in.ExpressionAttributeValues[":limit"].(*types.AttributeValueMemberN).Value
				return pk == wantPK && limit == "3"
			})).Return(tt.out, tt.err).Once()

			allowed, err := limiter.Allow(ctx, "s1")
			assert.Equal(t, tt.allowed, allowed)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			client.AssertExpectations(t)
		})
	}
}

func TestRateLimiterReset(t *testing.T) {
	client := &mockClient{}
	limiter := NewRateLimiter(client, "boards", "suggest", 3, time.Minute, clock.NewFake(updated), nil)
	ctx := context.Background()

	client.On("DeleteItem", ctx, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		return in.Key["SK"].(*types.AttributeValueMemberS).Value == "RATELIMIT"
	})).Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	require.NoError(t, limiter.Reset(ctx, "s1"))
	client.AssertExpectations(t)

	assert.Equal(t, updated.Truncate(time.Minute).Add(time.Minute).Sub(updated), limiter.RetryAfter("s1"))
}
