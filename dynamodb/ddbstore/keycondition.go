package ddbstore

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/acksell/entitykit/dynamodb/table"
)

// keyCondition is the interpreted form of a KeyConditionExpression: the
// partition key's equality value (used to pick which btree to scan) and a
// predicate over the sort key (used to decide which documents within that
// partition match).
type keyCondition struct {
	partitionValue string
	sortPredicate  func(sk any, kind table.KeyKind) bool
}

func (k keyCondition) matchesSortKey(sk any, kind table.KeyKind) bool {
	if k.sortPredicate == nil {
		return true
	}
	return k.sortPredicate(sk, kind)
}

// parseKeyCondition interprets a KeyConditionExpression built by
// aws-sdk-go-v2/feature/dynamodb/expression: an equality clause on the
// partition key, optionally AND-ed with one sort key clause (=, <, <=, >,
// >=, BETWEEN, or begins_with).
func parseKeyCondition(expr string, names map[string]string, values map[string]types.AttributeValue) (keyCondition, error) {
	node, err := parseCondition(expr)
	if err != nil {
		return keyCondition{}, err
	}

	env := evalEnv{names: names, values: values}
	var pkClause condNode
	var skClause condNode

	if and, ok := node.(andNode); ok {
		pkClause, skClause = and.left, and.right
	} else {
		pkClause = node
	}

	pkComp, ok := pkClause.(compNode)
	if !ok || pkComp.op != "=" {
		return keyCondition{}, fmt.Errorf("key condition must start with a partition key equality clause")
	}
	pkVal, ok := operand(env, pkComp.right)
	if !ok {
		return keyCondition{}, fmt.Errorf("partition key value not found among expression attribute values")
	}
	pkStr, _ := attrString(pkVal)

	kc := keyCondition{partitionValue: pkStr}
	if skClause == nil {
		return kc, nil
	}

	switch n := skClause.(type) {
	case compNode:
		rv, _ := operand(env, n.right)
		kc.sortPredicate = func(sk any, kind table.KeyKind) bool {
			c, err := compareKeyValue(sk, kind, rv)
			if err != nil {
				return false
			}
			switch n.op {
			case "=":
				return c == 0
			case "<":
				return c < 0
			case "<=":
				return c <= 0
			case ">":
				return c > 0
			case ">=":
				return c >= 0
			default:
				return false
			}
		}
	case betweenNode:
		lo, _ := operand(env, n.lo)
		hi, _ := operand(env, n.hi)
		kc.sortPredicate = func(sk any, kind table.KeyKind) bool {
			cl, err := compareKeyValue(sk, kind, lo)
			if err != nil {
				return false
			}
			ch, err := compareKeyValue(sk, kind, hi)
			if err != nil {
				return false
			}
			return cl >= 0 && ch <= 0
		}
	case funcNode:
		if len(n.args) != 2 {
			return keyCondition{}, fmt.Errorf("begins_with requires two arguments")
		}
		pfx, _ := operand(env, n.args[1])
		pfxStr, _ := attrString(pfx)
		kc.sortPredicate = func(sk any, kind table.KeyKind) bool {
			s := mustConvToString(sk)
			return len(s) >= len(pfxStr) && s[:len(pfxStr)] == pfxStr
		}
	default:
		return keyCondition{}, fmt.Errorf("unsupported sort key condition")
	}
	return kc, nil
}

func compareKeyValue(sk any, kind table.KeyKind, v types.AttributeValue) (int, error) {
	switch kind {
	case table.KeyKindN:
		return compareAttrs(&types.AttributeValueMemberN{Value: mustConvToString(sk)}, v)
	default:
		return compareAttrs(&types.AttributeValueMemberS{Value: mustConvToString(sk)}, v)
	}
}
