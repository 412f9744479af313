package convstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/carelink-health/carelink/pkg/logging"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore persists conversation state to DynamoDB, one item per session.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	clock     func() time.Time
	logger    *logging.Logger
}

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("convstate: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("convstate: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		clock:     time.Now,
		logger:    logger,
	}
}

// Get loads the session's state, creating a default GREETING record if none
// exists yet.
func (s *DynamoStore) Get(ctx context.Context, sessionID string) (State, error) {
	if sessionID == "" {
		return State{}, errors.New("convstate: sessionID required")
	}

	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return State{}, fmt.Errorf("convstate: fetch state: %w", err)
	}
	if out.Item == nil {
		state := defaultState(sessionID, s.clock().UTC())
		if err := s.put(ctx, state); err != nil {
			return State{}, err
		}
		return state, nil
	}

	var state State
	if err := attributevalue.UnmarshalMap(out.Item, &state); err != nil {
		return State{}, fmt.Errorf("convstate: decode state: %w", err)
	}
	return state, nil
}

// Apply merges the patch into the stored state and persists the result.
func (s *DynamoStore) Apply(ctx context.Context, sessionID string, patch Patch) (State, error) {
	state, err := s.Get(ctx, sessionID)
	if err != nil {
		return State{}, err
	}
	state = merge(state, patch, s.clock().UTC())
	if err := s.put(ctx, state); err != nil {
		return State{}, err
	}
	return state, nil
}

// Delete removes the session's state. Explicit teardown only.
func (s *DynamoStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"sessionId": &types.AttributeValueMemberS{Value: sessionID},
		},
	})
	if err != nil {
		return fmt.Errorf("convstate: delete state: %w", err)
	}
	return nil
}

func (s *DynamoStore) put(ctx context.Context, state State) error {
	item, err := attributevalue.MarshalMap(state)
	if err != nil {
		return fmt.Errorf("convstate: marshal state: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("convstate: persist state: %w", err)
	}
	return nil
}
