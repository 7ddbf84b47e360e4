package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"mindboard/application/ports"
	"mindboard/pkg/clock"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/utils"
)

// WriterLock grants per-board writer leases using DynamoDB conditional
// writes. A lease is taken when absent, expired or already held by the
// same owner, so Acquire doubles as renewal.
type WriterLock struct {
	client    Client
	tableName string
	clock     clock.Clock
	logger    *zap.Logger
}

var _ ports.WriterLock = (*WriterLock)(nil)

// lockRecord represents a lease record in DynamoDB
type lockRecord struct {
	PK         string `dynamodbav:"PK"`         // LOCK#<board id>
	SK         string `dynamodbav:"SK"`         // LOCK
	Owner      string `dynamodbav:"Owner"`      // Session id
	AcquiredAt string `dynamodbav:"AcquiredAt"` // RFC3339 timestamp
	ExpiresAt  string `dynamodbav:"ExpiresAt"`  // RFC3339 timestamp
	TTL        int64  `dynamodbav:"TTL"`        // Unix timestamp for DynamoDB TTL
}

// NewWriterLock creates a new writer lock
func NewWriterLock(client Client, tableName string, clk clock.Clock, logger *zap.Logger) *WriterLock {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WriterLock{
		client:    client,
		tableName: tableName,
		clock:     clk,
		logger:    logger,
	}
}

func lockKey(boardID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "LOCK#" + boardID},
		"SK": &types.AttributeValueMemberS{Value: "LOCK"},
	}
}

// Acquire takes or renews the lease on boardID for owner
func (l *WriterLock) Acquire(ctx context.Context, boardID, owner string, ttl time.Duration) error {
	now := l.clock.Now()
	expiresAt := now.Add(ttl)
	rec := lockRecord{
		PK:         "LOCK#" + boardID,
		SK:         "LOCK",
		Owner:      owner,
		AcquiredAt: utils.FormatTimestamp(now),
		ExpiresAt:  utils.FormatTimestamp(expiresAt),
		TTL:        expiresAt.Unix(),
	}

	item := map[string]types.AttributeValue{
		"PK":         &types.AttributeValueMemberS{Value: rec.PK},
		"SK":         &types.AttributeValueMemberS{Value: rec.SK},
		"Owner":      &types.AttributeValueMemberS{Value: rec.Owner},
		"AcquiredAt": &types.AttributeValueMemberS{Value: rec.AcquiredAt},
		"ExpiresAt":  &types.AttributeValueMemberS{Value: rec.ExpiresAt},
		"TTL":        &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
	}

	_, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now OR #owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":   &types.AttributeValueMemberS{Value: utils.FormatTimestamp(now)},
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			l.logger.Debug("Writer lease held by another session",
				zap.String("boardId", boardID),
				zap.String("owner", owner),
			)
			return pkgerrors.NewConflictError("board is being edited elsewhere").
				WithCode(pkgerrors.CodeBoardLocked).
				WithDetail("boardId", boardID)
		}
		return fmt.Errorf("failed to acquire lease: %w", err)
	}

	l.logger.Debug("Writer lease acquired",
		zap.String("boardId", boardID),
		zap.String("owner", owner),
		zap.Duration("ttl", ttl),
	)
	return nil
}

// Release drops the lease if owner still holds it
func (l *WriterLock) Release(ctx context.Context, boardID, owner string) error {
	_, err := l.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(l.tableName),
		Key:                 lockKey(boardID),
		ConditionExpression: aws.String("#owner = :owner"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "Owner",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner": &types.AttributeValueMemberS{Value: owner},
		},
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			l.logger.Warn("Writer lease already released or taken over",
				zap.String("boardId", boardID),
				zap.String("owner", owner),
			)
			return nil // Lease is gone, which is what we wanted
		}
		return fmt.Errorf("failed to release lease: %w", err)
	}

	l.logger.Debug("Writer lease released",
		zap.String("boardId", boardID),
		zap.String("owner", owner),
	)
	return nil
}
