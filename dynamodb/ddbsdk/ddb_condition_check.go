package ddbsdk

import (
	"fmt"

	"github.com/acksell/entitykit/dynamodb/table"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ConditionCheck asserts a condition against an item without writing to it.
// It has no meaning outside a transaction - DynamoDB exposes no standalone
// API to evaluate a condition in isolation - so it is never a BatchAction,
// and Txer never takes its single-action fast path for one: a lone
// ConditionCheck must still go through TransactWriteItems, since nothing
// else would evaluate it.
type ConditionCheck struct {
	Table table.TableDefinition
	Key   table.PrimaryKey

	c expression2.ConditionBuilder
}

// NewConditionCheck builds a ConditionCheck. cond must be set: an
// unconditional condition check asserts nothing.
func NewConditionCheck(t table.TableDefinition, pk table.PrimaryKey, cond expression2.ConditionBuilder) *ConditionCheck {
	return &ConditionCheck{Table: t, Key: pk, c: cond}
}

func (cc *ConditionCheck) TableName() *string {
	return &cc.Table.Name
}

func (cc *ConditionCheck) PrimaryKey() table.PrimaryKey {
	return cc.Key
}

// WithCondition ANDs an additional condition onto the check.
func (cc *ConditionCheck) WithCondition(c expression2.ConditionBuilder) *ConditionCheck {
	if cc.c.IsSet() {
		cc.c = cc.c.And(c)
		return cc
	}
	cc.c = c
	return cc
}

func (cc *ConditionCheck) ToTransactWriteItem() (types.TransactWriteItem, error) {
	if !cc.c.IsSet() {
		return types.TransactWriteItem{}, fmt.Errorf("condition check requires a condition")
	}
	e, err := expression2.NewBuilder().WithCondition(cc.c).Build()
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("build condition check: %w", err)
	}
	return types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 cc.TableName(),
			Key:                       cc.PrimaryKey().DDB(),
			ConditionExpression:       e.Condition(),
			ExpressionAttributeValues: e.Values(),
			ExpressionAttributeNames:  e.Names(),
		},
	}, nil
}

var _ Action = &ConditionCheck{}
