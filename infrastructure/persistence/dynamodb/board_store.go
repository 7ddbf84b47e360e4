package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"mindboard/application/ports"
	"mindboard/domain/board"
	pkgerrors "mindboard/pkg/errors"
	"mindboard/pkg/utils"
)

const (
	boardSK       = "METADATA"
	boardListKey  = "BOARDS"
	entityBoard   = "BOARD"
	defaultGSIKey = "BoardIndex"
)

// BoardStore implements ports.BoardStore on a single DynamoDB table. Each
// board is one item; the GSI1 index lists boards by update time.
type BoardStore struct {
	client    Client
	tableName string
	indexName string
	logger    *zap.Logger
}

var _ ports.BoardStore = (*BoardStore)(nil)

// NewBoardStore creates a new BoardStore
func NewBoardStore(client Client, tableName, indexName string, logger *zap.Logger) *BoardStore {
	if indexName == "" {
		indexName = defaultGSIKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardStore{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		logger:    logger,
	}
}

// boardItem represents the DynamoDB item structure for a board
type boardItem struct {
	PK         string       `dynamodbav:"PK"`
	SK         string       `dynamodbav:"SK"`
	GSI1PK     string       `dynamodbav:"GSI1PK"` // Always "BOARDS"
	GSI1SK     string       `dynamodbav:"GSI1SK"` // UpdatedAt#BoardID
	EntityType string       `dynamodbav:"EntityType"`
	BoardID    string       `dynamodbav:"BoardID"`
	Name       string       `dynamodbav:"Name"`
	NodeCount  int          `dynamodbav:"NodeCount"`
	EdgeCount  int          `dynamodbav:"EdgeCount"`
	Nodes      []board.Node `dynamodbav:"Nodes"`
	Edges      []board.Edge `dynamodbav:"Edges"`
	UpdatedAt  string       `dynamodbav:"UpdatedAt"`
}

func boardKey(boardID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "BOARD#" + boardID},
		"SK": &types.AttributeValueMemberS{Value: boardSK},
	}
}

// Get retrieves a board by its ID
func (s *BoardStore) Get(ctx context.Context, boardID string) (board.Record, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            boardKey(boardID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return board.Record{}, fmt.Errorf("failed to get board: %w", err)
	}
	if len(result.Item) == 0 {
		return board.Record{}, pkgerrors.NewNotFoundError("board").WithDetail("boardId", boardID)
	}

	var item boardItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return board.Record{}, fmt.Errorf("failed to unmarshal board: %w", err)
	}
	updated, err := utils.ParseTimestamp(item.UpdatedAt)
	if err != nil {
		return board.Record{}, fmt.Errorf("invalid board timestamp: %w", err)
	}

	s.logger.Debug("Retrieved board from DynamoDB",
		zap.String("boardId", item.BoardID),
		zap.Int("nodeCount", len(item.Nodes)),
		zap.Int("edgeCount", len(item.Edges)),
	)
	rec := board.Record{
		ID:        item.BoardID,
		Name:      item.Name,
		Nodes:     item.Nodes,
		Edges:     item.Edges,
		UpdatedAt: updated,
	}
	if rec.Nodes == nil {
		rec.Nodes = []board.Node{}
	}
	if rec.Edges == nil {
		rec.Edges = []board.Edge{}
	}
	return rec, nil
}

// Put persists a board to DynamoDB, replacing any previous version
func (s *BoardStore) Put(ctx context.Context, rec board.Record) error {
	if rec.ID == "" {
		return pkgerrors.NewValidationError("board id is required")
	}
	updated := utils.FormatTimestamp(rec.UpdatedAt)
	item := boardItem{
		PK:         "BOARD#" + rec.ID,
		SK:         boardSK,
		GSI1PK:     boardListKey,
		GSI1SK:     updated + "#" + rec.ID,
		EntityType: entityBoard,
		BoardID:    rec.ID,
		Name:       rec.Name,
		NodeCount:  len(rec.Nodes),
		EdgeCount:  len(rec.Edges),
		Nodes:      rec.Nodes,
		Edges:      rec.Edges,
		UpdatedAt:  updated,
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}); err != nil {
		s.logger.Error("Failed to save board to DynamoDB",
			zap.Error(err),
			zap.String("boardId", rec.ID),
		)
		return fmt.Errorf("failed to save board: %w", err)
	}

	s.logger.Debug("Saved board to DynamoDB",
		zap.String("boardId", rec.ID),
		zap.Int("nodeCount", item.NodeCount),
		zap.Int("edgeCount", item.EdgeCount),
	)
	return nil
}

// List returns board summaries, most recently updated first
func (s *BoardStore) List(ctx context.Context) ([]board.Summary, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(boardListKey))
	projection := expression.NamesList(
		expression.Name("BoardID"),
		expression.Name("Name"),
		expression.Name("NodeCount"),
		expression.Name("UpdatedAt"),
	)
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithProjection(projection).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build list expression: %w", err)
	}

	var summaries []board.Summary
	var startKey map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			IndexName:                 aws.String(s.indexName),
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list boards: %w", err)
		}

		var items []boardItem
		if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal boards: %w", err)
		}
		for _, item := range items {
			updated, err := utils.ParseTimestamp(item.UpdatedAt)
			if err != nil {
				s.logger.Warn("Skipping board with invalid timestamp", zap.String("boardId", item.BoardID))
				continue
			}
			summaries = append(summaries, board.Summary{
				ID:        item.BoardID,
				Name:      item.Name,
				NodeCount: item.NodeCount,
				UpdatedAt: updated,
			})
		}

		if len(result.LastEvaluatedKey) == 0 {
			break
		}
		startKey = result.LastEvaluatedKey
	}

	if summaries == nil {
		summaries = []board.Summary{}
	}
	return summaries, nil
}

// Delete removes a board; deleting a missing board is a NotFound error
func (s *BoardStore) Delete(ctx context.Context, boardID string) error {
	cond := expression.AttributeExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build delete expression: %w", err)
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       boardKey(boardID),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return pkgerrors.NewNotFoundError("board").WithDetail("boardId", boardID)
		}
		return fmt.Errorf("failed to delete board: %w", err)
	}

	s.logger.Debug("Deleted board from DynamoDB", zap.String("boardId", boardID))
	return nil
}
