package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/entitykit/dynamodb/ddbsdk"
	"github.com/acksell/entitykit/dynamodb/ddbstore"
	"github.com/acksell/entitykit/dynamodb/entityerr"
	"github.com/acksell/entitykit/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var batchTestTable = table.TableDefinition{
	Name: "batch-test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
}

type widget struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	Name       string `dynamodbav:"name"`
	EntityType string `dynamodbav:"entityType"`
}

func (w *widget) IsValid() error { return nil }

func widgetKey(pk, sk string) table.PrimaryKey {
	return table.PrimaryKey{Definition: batchTestTable.KeyDefinitions, Values: table.PrimaryKeyValues{PartitionKey: pk, SortKey: sk}}
}

func putWidget(db ddbsdk.IO, ctx context.Context, t *testing.T, w *widget) {
	t.Helper()
	require.NoError(t, db.PutItem(ctx, ddbsdk.NewUnsafePut(batchTestTable, widgetKey(w.PK, w.SK), w)))
}

func TestCoordinator_Execute_EmptyBatch(t *testing.T) {
	db := ddbsdk.NewMemoryClient(batchTestTable)
	c := New(db, "entityType")

	_, err := c.Execute(context.Background())
	assert.True(t, errors.Is(err, entityerr.ErrEmptyBatch))
}

func TestCoordinator_Execute_Writes(t *testing.T) {
	ctx := context.Background()
	db := ddbsdk.NewMemoryClient(batchTestTable)

	c := New(db, "entityType")
	for i := 0; i < 30; i++ {
		w := &widget{PK: "bin#1", SK: string(rune('a' + i)), Name: "widget", EntityType: "widget"}
		c.AddPut("widget", ddbsdk.NewUnsafePut(batchTestTable, widgetKey(w.PK, w.SK), w))
	}

	res, err := c.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, res.Submitted)
	assert.Equal(t, 30, res.Processed)
	assert.Equal(t, 0, res.Unprocessed)

	querier := db.NewQuery(ddbsdk.QueryPartition(batchTestTable, "bin#1"))
	all, err := querier.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all.Items, 30)
}

func TestCoordinator_AddAction_SatisfiesBatcher(t *testing.T) {
	ctx := context.Background()
	db := ddbsdk.NewMemoryClient(batchTestTable)

	var batcher ddbsdk.Batcher = New(db, "entityType")
	w := &widget{PK: "bin#2", SK: "only", Name: "widget", EntityType: "widget"}
	require.NoError(t, batcher.AddAction(ddbsdk.NewUnsafePut(batchTestTable, widgetKey(w.PK, w.SK), w)))

	execRes, err := batcher.Exec(ctx)
	require.NoError(t, err)
	assert.True(t, execRes.Done())

	item, err := db.NewLookup().GetItem(ctx, ddbsdk.GetItemRequest{Table: batchTestTable, Key: widgetKey(w.PK, w.SK)})
	require.NoError(t, err)
	assert.NotNil(t, item)
}

func TestCoordinator_Execute_GetsGroupedByKind(t *testing.T) {
	ctx := context.Background()
	db := ddbsdk.NewMemoryClient(batchTestTable)

	w1 := &widget{PK: "a", SK: "1", Name: "Alice", EntityType: "widget"}
	w2 := &widget{PK: "a", SK: "2", Name: "Bob", EntityType: "gadget"}
	putWidget(db, ctx, t, w1)
	putWidget(db, ctx, t, w2)

	c := New(db, "entityType")
	c.AddGet("widget", ddbsdk.GetItemRequest{Table: batchTestTable, Key: widgetKey(w1.PK, w1.SK)})
	c.AddGet("gadget", ddbsdk.GetItemRequest{Table: batchTestTable, Key: widgetKey(w2.PK, w2.SK)})
	// Deliberately not declared as a kind: still counted in Items, not bucketed.
	c.AddGet("", ddbsdk.GetItemRequest{Table: batchTestTable, Key: widgetKey("missing", "missing")})

	res, err := c.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Found)
	assert.Len(t, res.ItemsByKind["widget"], 1)
	assert.Len(t, res.ItemsByKind["gadget"], 1)
}

func TestCoordinator_DiscriminatorKind_IgnoresNonStringAttr(t *testing.T) {
	c := New(ddbsdk.NewMemoryClient(batchTestTable), "entityType")
	item := ddbsdk.Item{"entityType": &types.AttributeValueMemberN{Value: "1"}}
	assert.Equal(t, "", c.discriminatorKind(item))
}

// flakyBatchWriter wraps a real AWSDynamoClientV2 and reports every item in
// a BatchWriteItem call as unprocessed for its first failFor calls, then
// delegates for real - simulating DynamoDB returning UnprocessedItems for a
// bounded number of attempts before a sub-batch goes through.
type flakyBatchWriter struct {
	ddbsdk.AWSDynamoClientV2
	failFor int
	calls   int
}

func (f *flakyBatchWriter) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.calls++
	if f.calls <= f.failFor {
		return &dynamodb.BatchWriteItemOutput{UnprocessedItems: params.RequestItems}, nil
	}
	return f.AWSDynamoClientV2.BatchWriteItem(ctx, params, optFns...)
}

func TestCoordinator_ExecuteWithRetry_ConvergesWithinBound(t *testing.T) {
	ctx := context.Background()
	store := ddbstore.NewStore(batchTestTable)
	flaky := &flakyBatchWriter{AWSDynamoClientV2: store, failFor: 2}
	db := ddbsdk.New(flaky)

	c := New(db, "entityType")
	w := &widget{PK: "bin#1", SK: "a", Name: "widget", EntityType: "widget"}
	c.AddPut("widget", ddbsdk.NewUnsafePut(batchTestTable, widgetKey(w.PK, w.SK), w))

	res, err := c.ExecuteWithRetry(ctx, ddbsdk.WithMaxRetries(5))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 0, res.Unprocessed)

	item, err := db.NewLookup().GetItem(ctx, ddbsdk.GetItemRequest{Table: batchTestTable, Key: widgetKey(w.PK, w.SK)})
	require.NoError(t, err)
	assert.NotNil(t, item)
}

func TestCoordinator_ExecuteWithRetry_ReturnsBoundedErrorWhenExhausted(t *testing.T) {
	ctx := context.Background()
	store := ddbstore.NewStore(batchTestTable)
	flaky := &flakyBatchWriter{AWSDynamoClientV2: store, failFor: 100}
	db := ddbsdk.New(flaky)

	c := New(db, "entityType")
	w := &widget{PK: "bin#1", SK: "a", Name: "widget", EntityType: "widget"}
	c.AddPut("widget", ddbsdk.NewUnsafePut(batchTestTable, widgetKey(w.PK, w.SK), w))

	_, err := c.ExecuteWithRetry(ctx, ddbsdk.WithMaxRetries(2))
	assert.True(t, errors.Is(err, entityerr.ErrBatchWriteFailed))

	item, err := db.NewLookup().GetItem(ctx, ddbsdk.GetItemRequest{Table: batchTestTable, Key: widgetKey(w.PK, w.SK)})
	require.NoError(t, err)
	assert.Nil(t, item, "a write that never converges must not land partially")
}
