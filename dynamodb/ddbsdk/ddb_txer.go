package ddbsdk

import (
	"context"
	"fmt"

	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TxOption configures transaction behavior.
type TxOption func(*txOpts)

type txOpts struct{}

type txer struct {
	awsddb AWSDynamoClientV2
	opts   txOpts

	actions []Action
}

var _ Txer = &txer{}

func NewTx(ddb AWSDynamoClientV2, opts ...TxOption) *txer {
	t := &txer{awsddb: ddb}
	for _, opt := range opts {
		opt(&t.opts)
	}
	return t
}

func (t *txer) AddAction(actions ...Action) {
	t.actions = append(t.actions, actions...)
}

// Commit writes all added actions atomically and clears the transaction.
// A single action bypasses TransactWriteItems in favor of its own item-level
// API call: DynamoDB meters and throttles transactional writes separately
// from (and more expensively than) plain item writes, so there's no reason
// to pay for a transaction of one.
func (t *txer) Commit(ctx context.Context) error {
	actions := t.actions
	t.actions = nil

	if len(actions) == 0 {
		return nil
	}
	if err := checkDuplicateActions(actions); err != nil {
		return err
	}
	if _, isCheck := actions[0].(*ConditionCheck); len(actions) == 1 && !isCheck {
		return commitSingleAction(ctx, t.awsddb, actions[0])
	}

	items := make([]types.TransactWriteItem, 0, len(actions))
	for _, a := range actions {
		item, err := toTransactWriteItem(a)
		if err != nil {
			return fmt.Errorf("failed to build transact write item: %w", err)
		}
		items = append(items, item)
	}

	_, err := t.awsddb.TransactWriteItems(ctx, &dynamodbv2.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		return fmt.Errorf("transact write items failed: %w", err)
	}
	return nil
}

func commitSingleAction(ctx context.Context, ddb AWSDynamoClientV2, a Action) error {
	c := &Client{awsddb: ddb}
	switch act := a.(type) {
	case *Put:
		return c.PutItem(ctx, act)
	case *PutWithCondition:
		return c.PutItem(ctx, act)
	case *UnsafeUpdate:
		return c.UpdateItem(ctx, act)
	case *Delete:
		return c.DeleteItem(ctx, act)
	default:
		return fmt.Errorf("unsupported action type: %T", a)
	}
}

func toTransactWriteItem(a Action) (types.TransactWriteItem, error) {
	switch act := a.(type) {
	case *Put:
		return act.ToTransactWriteItem()
	case *PutWithCondition:
		return act.ToTransactWriteItem()
	case *UnsafeUpdate:
		return act.ToTransactWriteItem()
	case *Delete:
		return act.ToTransactWriteItem()
	case *ConditionCheck:
		return act.ToTransactWriteItem()
	default:
		return types.TransactWriteItem{}, fmt.Errorf("unsupported action type: %T", a)
	}
}

// checkDuplicateActions rejects a transaction that touches the same item
// (table + primary key) more than once; DynamoDB itself rejects these.
func checkDuplicateActions(actions []Action) error {
	type key struct {
		table string
		pk    string
	}
	seen := make(map[key]bool, len(actions))
	for _, a := range actions {
		k := key{table: *a.TableName(), pk: fmt.Sprintf("%v", a.PrimaryKey().DDB())}
		if seen[k] {
			return fmt.Errorf("duplicate action for table %s", *a.TableName())
		}
		seen[k] = true
	}
	return nil
}
