// Package transaction is the TransactionCoordinator (spec component C7):
// it collects put, update, delete, and condition-check actions across any
// number of entity kinds, enforces DynamoDB's per-transaction action cap,
// and dispatches them as a single atomic TransactWriteItems request. There
// is no partial success: either every action commits or the whole
// transaction fails. See dynamodb/entity for the per-entity builders that
// feed a Coordinator via WithTransaction, and dynamodb/ddbsdk for the
// underlying Txer this package wraps.
package transaction

import (
	"context"
	"fmt"

	"github.com/acksell/entitykit/dynamodb/ddbsdk"
	"github.com/acksell/entitykit/dynamodb/entityerr"
	"github.com/acksell/entitykit/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// maxActions is DynamoDB's TransactWriteItems limit.
const maxActions = 100

// Coordinator accumulates actions for one atomic commit. It satisfies
// ddbsdk.Txer, so it can be passed directly to entity.WriteBuilder.
// WithTransaction / UpdateBuilder.WithTransaction / DeleteBuilder.
// WithTransaction in place of a bare ddbsdk.Txer - those builders only ever
// call AddAction; Commit (or the Execute alias below) is called once,
// directly, to submit everything that was accumulated.
type Coordinator struct {
	tx    ddbsdk.Txer
	count int
}

// New builds a Coordinator backed by a fresh transaction from io.
func New(io ddbsdk.IO, opts ...ddbsdk.TxOption) *Coordinator {
	return &Coordinator{tx: io.NewTx(opts...)}
}

// AddAction satisfies ddbsdk.Txer.
func (c *Coordinator) AddAction(actions ...ddbsdk.Action) {
	c.count += len(actions)
	c.tx.AddAction(actions...)
}

// AddPut records a put action.
func (c *Coordinator) AddPut(action ddbsdk.Action) {
	c.AddAction(action)
}

// AddUpdate records an update action.
func (c *Coordinator) AddUpdate(action ddbsdk.Action) {
	c.AddAction(action)
}

// AddDelete records a delete action.
func (c *Coordinator) AddDelete(action ddbsdk.Action) {
	c.AddAction(action)
}

// AddConditionCheck records a condition-only assertion against an item: the
// transaction fails if cond does not hold, even though no write is made to
// that item. cond must be set.
func (c *Coordinator) AddConditionCheck(t table.TableDefinition, pk table.PrimaryKey, cond expression.ConditionBuilder) {
	c.AddAction(ddbsdk.NewConditionCheck(t, pk, cond))
}

var _ ddbsdk.Txer = &Coordinator{}

// Commit submits every accumulated action as a single atomic request.
// Fails with EmptyTransaction if nothing was added, or
// ErrTransactionTooLarge if more than 100 actions were added. Any
// cancellation the store reports maps to ErrTransactionFailed (carrying the
// store's per-action cancellation reasons via entityerr.TransactionDetail).
func (c *Coordinator) Commit(ctx context.Context) error {
	if c.count == 0 {
		return entityerr.New(entityerr.ErrEmptyTransaction, "", nil)
	}
	if c.count > maxActions {
		return entityerr.New(entityerr.ErrTransactionTooLarge, fmt.Sprintf("%d actions exceeds the %d-action limit", c.count, maxActions), nil)
	}
	if err := c.tx.Commit(ctx); err != nil {
		return entityerr.FromStoreError(err)
	}
	return nil
}

// Execute is an alias for Commit, matching the spec's name for this
// component's terminal operation.
func (c *Coordinator) Execute(ctx context.Context) error {
	return c.Commit(ctx)
}
