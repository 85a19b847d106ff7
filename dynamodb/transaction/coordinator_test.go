package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acksell/entitykit/dynamodb/ddbsdk"
	"github.com/acksell/entitykit/dynamodb/entityerr"
	"github.com/acksell/entitykit/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

var txTestTable = table.TableDefinition{
	Name: "transaction-coordinator-test-table",
	KeyDefinitions: table.PrimaryKeyDefinition{
		PartitionKey: table.KeyDef{Name: "pk", Kind: table.KeyKindS},
		SortKey:      table.KeyDef{Name: "sk", Kind: table.KeyKindS},
	},
}

type account struct {
	PK      string `dynamodbav:"pk"`
	SK      string `dynamodbav:"sk"`
	Balance int    `dynamodbav:"balance"`
}

func (a *account) IsValid() error { return nil }

func accountKey(pk, sk string) table.PrimaryKey {
	return table.PrimaryKey{Definition: txTestTable.KeyDefinitions, Values: table.PrimaryKeyValues{PartitionKey: pk, SortKey: sk}}
}

func TestCoordinator_Commit_EmptyTransaction(t *testing.T) {
	db := ddbsdk.NewMemoryClient(txTestTable)
	c := New(db)

	err := c.Execute(context.Background())
	assert.True(t, errors.Is(err, entityerr.ErrEmptyTransaction))
}

func TestCoordinator_Commit_TooManyActions(t *testing.T) {
	db := ddbsdk.NewMemoryClient(txTestTable)
	c := New(db)

	for i := 0; i < maxActions+1; i++ {
		a := &account{PK: "acct", SK: string(rune('a' + i%26))}
		c.AddPut(ddbsdk.NewUnsafePut(txTestTable, accountKey(a.PK, a.SK), a))
	}

	err := c.Execute(context.Background())
	assert.True(t, errors.Is(err, entityerr.ErrTransactionTooLarge))
}

func TestCoordinator_Commit_AtomicMultiAction(t *testing.T) {
	ctx := context.Background()
	db := ddbsdk.NewMemoryClient(txTestTable)

	from := &account{PK: "acct#1", SK: "main", Balance: 100}
	to := &account{PK: "acct#2", SK: "main", Balance: 0}
	require.NoError(t, db.PutItem(ctx, ddbsdk.NewUnsafePut(txTestTable, accountKey(from.PK, from.SK), from)))
	require.NoError(t, db.PutItem(ctx, ddbsdk.NewUnsafePut(txTestTable, accountKey(to.PK, to.SK), to)))

	c := New(db)
	debit := ddbsdk.NewUnsafeUpdate(txTestTable, accountKey(from.PK, from.SK)).
		AddOp(ddbsdk.SetFieldOp[int]("balance", 0))
	credit := ddbsdk.NewUnsafeUpdate(txTestTable, accountKey(to.PK, to.SK)).
		AddOp(ddbsdk.SetFieldOp[int]("balance", 100))
	c.AddUpdate(debit)
	c.AddUpdate(credit)

	require.NoError(t, c.Execute(ctx))

	item, err := db.NewLookup().GetItem(ctx, ddbsdk.GetItemRequest{Table: txTestTable, Key: accountKey(to.PK, to.SK)})
	require.NoError(t, err)
	require.NotNil(t, item)
}

func TestCoordinator_Commit_ConditionCheckBlocksTransaction(t *testing.T) {
	ctx := context.Background()
	db := ddbsdk.NewMemoryClient(txTestTable)

	guard := &account{PK: "acct#3", SK: "main", Balance: 50}
	require.NoError(t, db.PutItem(ctx, ddbsdk.NewUnsafePut(txTestTable, accountKey(guard.PK, guard.SK), guard)))

	other := &account{PK: "acct#4", SK: "main", Balance: 0}

	c := New(db)
	// Condition is false (balance is 50, not 0), so the whole transaction,
	// including the unrelated put below, must fail.
	c.AddConditionCheck(txTestTable, accountKey(guard.PK, guard.SK), expression.Equal(expression.Name("balance"), expression.Value(0)))
	c.AddPut(ddbsdk.NewUnsafePut(txTestTable, accountKey(other.PK, other.SK), other))

	err := c.Execute(ctx)
	assert.True(t, errors.Is(err, entityerr.ErrTransactionFailed))

	item, err := db.NewLookup().GetItem(ctx, ddbsdk.GetItemRequest{Table: txTestTable, Key: accountKey(other.PK, other.SK)})
	require.NoError(t, err)
	assert.Nil(t, item, "the put must not have been applied: the transaction is atomic")
}
