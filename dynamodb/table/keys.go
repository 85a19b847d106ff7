package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

// Type safety can be ensured by using type constrained constructors generated based on the Table's KeyDefinition.
type PrimaryKeyValues struct {
	PartitionKey any
	SortKey      any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// TODO return error instead
func (k PrimaryKey) DDB() map[string]types.AttributeValue {
	pk, err := attributevalue.Marshal(k.Values.PartitionKey)
	if err != nil {
		panic(fmt.Errorf("failed to marshal partition key of type %T with value %v: %w", k.Values.PartitionKey, k.Values.PartitionKey, err))
	}
	err = attributeMatchesDefinition(k.Definition.PartitionKey.Kind, pk)
	if err != nil {
		panic(fmt.Errorf("key kind does not match dynamo value: %w", err))
	}

	sk, err := attributevalue.Marshal(k.Values.SortKey)
	if err != nil {
		panic(fmt.Errorf("failed to marshal sort key of type %T with value %v: %w", k.Values.SortKey, k.Values.SortKey, err))
	}
	err = attributeMatchesDefinition(k.Definition.SortKey.Kind, sk)
	if err != nil {
		panic(fmt.Errorf("key kind does not match dynamo value: %w", err))
	}

	return map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: pk,
		k.Definition.SortKey.Name:      sk,
	}
}

// attributeMatchesDefinition and keyValueFromAV, and the
// PrimaryKeyDefinition.ExtractPrimaryKey method, live in table.go alongside
// TableDefinition and GSIDefinition, which need the same logic.
