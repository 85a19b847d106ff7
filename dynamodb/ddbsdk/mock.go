package ddbsdk

import (
	"github.com/acksell/entitykit/dynamodb/ddbstore"
	"github.com/acksell/entitykit/dynamodb/table"
)

// NewMock returns a Client backed by an in-memory store instead of real
// DynamoDB, for use in tests. It implements the full IO interface.
func NewMock(defs ...table.TableDefinition) IO {
	return New(ddbstore.NewStore(defs...))
}

// NewMemoryClient is an alias for NewMock.
func NewMemoryClient(defs ...table.TableDefinition) IO {
	return NewMock(defs...)
}
