package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/go-alumni-api/internal/domain"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.CreateTableOutput)
	return out, args.Error(1)
}

func (m *mockAPI) UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateTimeToLiveOutput)
	return out, args.Error(1)
}

func sampleDeadLetter() domain.DeadLetter {
	return domain.DeadLetter{
		ID:        "dl-1",
		JobID:     "job-1",
		Address:   "ada@example.com",
		Purpose:   domain.PurposeLogin,
		Attempts:  5,
		LastError: "421 service not available",
		FailedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDeadLetterRepo_Record(t *testing.T) {
	api := new(mockAPI)
	repo := NewDeadLetterRepo(api, "code_dead_letters")

	var captured *dynamodb.PutItemInput
	api.On("PutItem", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*dynamodb.PutItemInput) }).
		Return(&dynamodb.PutItemOutput{}, nil)

	require.NoError(t, repo.Record(context.Background(), sampleDeadLetter()))
	require.NotNil(t, captured)
	assert.Equal(t, "code_dead_letters", *captured.TableName)
	assert.Equal(t, "attribute_not_exists(dead_letter_id)", *captured.ConditionExpression)

	var stored domain.DeadLetter
	require.NoError(t, attributevalue.UnmarshalMap(captured.Item, &stored))
	assert.Equal(t, "ada@example.com", stored.Address)
	assert.Equal(t, sampleDeadLetter().FailedAt.Add(deadLetterRetention).Unix(), stored.ExpiresAt)
	_, hasCode := captured.Item["code"]
	assert.False(t, hasCode)
}

func TestDeadLetterRepo_RecordDuplicate(t *testing.T) {
	api := new(mockAPI)
	repo := NewDeadLetterRepo(api, "t")
	api.On("PutItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: strPtr("exists")})

	err := repo.Record(context.Background(), sampleDeadLetter())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDeadLetterRepo_GetNotFound(t *testing.T) {
	api := new(mockAPI)
	repo := NewDeadLetterRepo(api, "t")
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeadLetterRepo_ListByAddress(t *testing.T) {
	api := new(mockAPI)
	repo := NewDeadLetterRepo(api, "t")

	item, err := attributevalue.MarshalMap(sampleDeadLetter())
	require.NoError(t, err)
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return *in.IndexName == addressIndex && !*in.ScanIndexForward
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}, nil)

	got, err := repo.ListByAddress(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dl-1", got[0].ID)
	api.AssertExpectations(t)
}

func TestDeadLetterRepo_Resolve(t *testing.T) {
	api := new(mockAPI)
	repo := NewDeadLetterRepo(api, "t")

	var captured *dynamodb.UpdateItemInput
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*dynamodb.UpdateItemInput) }).
		Return(&dynamodb.UpdateItemOutput{}, nil).Once()

	require.NoError(t, repo.Resolve(context.Background(), "dl-1", time.Now()))
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1", *captured.UpdateExpression)
	assert.Equal(t, "resolved", captured.ExpressionAttributeNames["#f0"])

	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{}).Once()
	assert.ErrorIs(t, repo.Resolve(context.Background(), "gone", time.Now()), domain.ErrNotFound)
}

func TestBootstrap_ExistingTableIsFine(t *testing.T) {
	api := new(mockAPI)
	logger := zerolog.Nop()
	api.On("CreateTable", mock.Anything, mock.Anything).Return(nil, &types.ResourceInUseException{})
	api.On("UpdateTimeToLive", mock.Anything, mock.Anything).Return(&dynamodb.UpdateTimeToLiveOutput{}, nil)

	require.NoError(t, Bootstrap(context.Background(), api, "code_dead_letters", &logger))
	api.AssertExpectations(t)
}

func TestBootstrap_CreateFailure(t *testing.T) {
	api := new(mockAPI)
	logger := zerolog.Nop()
	api.On("CreateTable", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	assert.Error(t, Bootstrap(context.Background(), api, "code_dead_letters", &logger))
	api.AssertNotCalled(t, "UpdateTimeToLive", mock.Anything, mock.Anything)
}

func strPtr(s string) *string { return &s }
