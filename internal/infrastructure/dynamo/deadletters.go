package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/go-alumni-api/internal/domain"
)

// deadLetterRetention is how long DynamoDB keeps an abandoned delivery before TTL removes it.
const deadLetterRetention = 30 * 24 * time.Hour

// DeadLetterRepo stores code deliveries abandoned after their retries ran out.
// PK: dead_letter_id. GSI: address + failed_at.
type DeadLetterRepo struct {
	client    API
	tableName string
}

func NewDeadLetterRepo(client API, tableName string) *DeadLetterRepo {
	return &DeadLetterRepo{client: client, tableName: tableName}
}

// Record stores dl. It never overwrites an existing item with the same id.
func (r *DeadLetterRepo) Record(ctx context.Context, dl domain.DeadLetter) error {
	if dl.ExpiresAt == 0 {
		dl.ExpiresAt = dl.FailedAt.Add(deadLetterRetention).Unix()
	}
	item, err := attributevalue.MarshalMap(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(dead_letter_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("dead letter %s: %w", dl.ID, domain.ErrConflict)
	}
	return err
}

func (r *DeadLetterRepo) Get(ctx context.Context, id string) (*domain.DeadLetter, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("dead_letter_id", id),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("dead letter not found: %w", domain.ErrNotFound)
	}
	var dl domain.DeadLetter
	if err := attributevalue.UnmarshalMap(out.Item, &dl); err != nil {
		return nil, err
	}
	return &dl, nil
}

// ListByAddress returns the dead letters for address, newest first.
func (r *DeadLetterRepo) ListByAddress(ctx context.Context, address string) ([]domain.DeadLetter, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(addressIndex),
		KeyConditionExpression: aws.String("address = :a"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":a": &types.AttributeValueMemberS{Value: address},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, err
	}
	items := []domain.DeadLetter{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Resolve marks a dead letter as handled by an operator.
func (r *DeadLetterRepo) Resolve(ctx context.Context, id string, at time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		"resolved":    true,
		"resolved_at": at.UTC(),
	})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("dead_letter_id", id),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ConditionExpression:       aws.String("attribute_exists(dead_letter_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("dead letter not found: %w", domain.ErrNotFound)
	}
	return err
}
