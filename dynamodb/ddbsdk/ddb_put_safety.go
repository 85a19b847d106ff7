package ddbsdk

import (
	"github.com/acksell/entitykit/dynamodb/table"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// NewUnsafePut builds a Put with no safety condition. Concurrent writers can
// race and silently overwrite each other's changes; use NewSafePut if the
// entity carries a version field.
func NewUnsafePut(t table.TableDefinition, pk table.PrimaryKey, e DynamoEntity) *Put {
	return newPut(t, pk, e)
}

// NewSafePut builds a Put conditioned on optimistic locking: the write only
// succeeds if the item doesn't exist yet, or the version being written is
// strictly greater than the version currently stored. This rejects both
// concurrent writes of the same version and stale writes of an older one.
func NewSafePut(t table.TableDefinition, pk table.PrimaryKey, e VersionedDynamoEntity) *PutWithCondition {
	versionField, version := e.Version()
	cond := expression2.AttributeNotExists(expression2.Name(versionField)).
		Or(expression2.LessThan(expression2.Name(versionField), expression2.Value(version)))
	return newPut(t, pk, e).WithCondition(cond)
}
