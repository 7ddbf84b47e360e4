package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"mindboard/pkg/clock"
	"mindboard/pkg/ratelimit"
)

const rateLimitSK = "RATELIMIT"

// rateLimitEntry is a fixed-window counter row
type rateLimitEntry struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Count     int    `dynamodbav:"Count"`
	WindowEnd int64  `dynamodbav:"WindowEnd"`
	TTL       int64  `dynamodbav:"TTL"`
}

// RateLimiter counts requests per key in fixed windows shared by every
// instance writing to the same table. Rows expire through the table TTL.
type RateLimiter struct {
	client    Client
	tableName string
	prefix    string
	limit     int
	window    time.Duration
	clock     clock.Clock
	logger    *zap.Logger
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)

// NewRateLimiter creates a DynamoDB-backed limiter
func NewRateLimiter(client Client, tableName, prefix string, limit int, window time.Duration, clk clock.Clock, logger *zap.Logger) *RateLimiter {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		client:    client,
		tableName: tableName,
		prefix:    prefix,
		limit:     limit,
		window:    window,
		clock:     clk,
		logger:    logger,
	}
}

func (r *RateLimiter) windowKey(key string, start time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("RATELIMIT#%s#%s#%d", r.prefix, key, start.Unix())},
		"SK": &types.AttributeValueMemberS{Value: rateLimitSK},
	}
}

// Allow increments the counter for the current window. The condition
// rejects the increment once the window is full.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStart := r.clock.Now().Truncate(r.window)
	windowEnd := windowStart.Add(r.window)

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 r.windowKey(key, windowStart),
		UpdateExpression:    aws.String("SET #count = if_not_exists(#count, :zero) + :incr, WindowEnd = :windowEnd, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":      &types.AttributeValueMemberN{Value: "0"},
			":incr":      &types.AttributeValueMemberN{Value: "1"},
			":limit":     &types.AttributeValueMemberN{Value: strconv.Itoa(r.limit)},
			":windowEnd": &types.AttributeValueMemberN{Value: strconv.FormatInt(windowEnd.Unix(), 10)},
			":ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(windowEnd.Add(time.Hour).Unix(), 10)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			r.logger.Debug("Rate limit reached", zap.String("key", key), zap.Int("limit", r.limit))
			return false, nil
		}
		return true, fmt.Errorf("rate limiter unavailable, failing open: %w", err)
	}

	var entry rateLimitEntry
	if err := attributevalue.UnmarshalMap(out.Attributes, &entry); err != nil {
		return true, fmt.Errorf("failed to parse rate limit entry, failing open: %w", err)
	}
	return entry.Count <= r.limit, nil
}

// RetryAfter returns the time left in the current window
func (r *RateLimiter) RetryAfter(key string) time.Duration {
	now := r.clock.Now()
	return now.Truncate(r.window).Add(r.window).Sub(now)
}

// Reset clears the counter for key in the current window
func (r *RateLimiter) Reset(ctx context.Context, key string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.windowKey(key, r.clock.Now().Truncate(r.window)),
	})
	if err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}
