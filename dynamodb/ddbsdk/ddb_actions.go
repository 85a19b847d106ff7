package ddbsdk

import (
	"time"

	"github.com/acksell/entitykit/dynamodb/table"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Action is shared by every write builder: it knows which table and which
// item it applies to, independent of whether it ends up as an item-level
// API call, a transact item, or a batch write request.
type Action interface {
	TableName() *string
	PrimaryKey() table.PrimaryKey
}

// BatchAction is an Action that can go into a BatchWriteItem request.
// BatchWriteItem has no concept of conditions, so only unconditional Put
// and Delete satisfy this.
type BatchAction interface {
	Action
	batchWritable()
	ToBatchWriteRequest() (types.WriteRequest, error)
}

var (
	_ BatchAction = &Put{}
	_ BatchAction = &Delete{}
)

type Put struct {
	Table  table.TableDefinition
	Key    table.PrimaryKey
	Entity DynamoEntity

	gsiKeys   []table.PrimaryKey
	ttlExpiry *time.Time

	c expression2.ConditionBuilder

	doc map[string]types.AttributeValue
}

// PutWithCondition is returned by Put.WithCondition; it exists so a
// conditional put is distinguishable at the type level from a plain one
// (a plain Put can go into a BatchWriteItem request, a conditional one
// cannot).
type PutWithCondition struct {
	put *Put
}

// UnsafeUpdate is called unsafe because it does not require the user to
// check the invariants of the entity they're modifying. The safety of the
// operation relies solely on the user doing careful validations before
// committing. There may also be unintended race conditions from concurrent
// modifications unless using optimistic locking (via WithCondition).
type UnsafeUpdate struct {
	Table  table.TableDefinition
	Key    table.PrimaryKey
	Fields map[string]UpdateOp

	ttlExpiry          *time.Time
	allowNonIdempotent bool

	u expression2.UpdateBuilder
	c expression2.ConditionBuilder
}

type Delete struct {
	Table table.TableDefinition
	Key   table.PrimaryKey

	c expression2.ConditionBuilder
}
