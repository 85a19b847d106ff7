// Package entity is the EntityRepository (spec component C5): it wraps a
// table definition, an entity's schema and index declarations, and an
// injected dynamodb/ddbsdk.IO, and produces builders that defer validation,
// timestamp stamping, primary/secondary key generation, and the entity-type
// discriminator guard until the caller actually submits them (execute,
// withBatch, or withTransaction). See dynamodb/ddbsdk for the per-operation
// canonical commands this package assembles, and dynamodb/indexspec for the
// differential secondary-index maintenance it drives on update.
package entity

import (
	"fmt"

	"github.com/acksell/entitykit/dynamodb/ddbsdk"
	"github.com/acksell/entitykit/dynamodb/indexspec"
	"github.com/acksell/entitykit/dynamodb/schema"
	"github.com/acksell/entitykit/dynamodb/table"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Value, Key and Patch are the loosely-typed shapes the spec describes: a
// full entity value, a strict subset sufficient to address one item, and a
// partial set of attributes to merge onto an existing item. They're plain
// maps rather than T itself because a patch is never a valid T (required
// fields are routinely absent), and because the same Key shape addresses
// every entity kind sharing a table regardless of each one's Go type.
type Value = map[string]any
type Key = map[string]any
type Patch = map[string]any

// TTLPolicy declares that an entity's items carry a TTL attribute. Distinct
// from the createdAt/updatedAt timestamp policies: a TTL is a directive to
// the store to eventually delete the item, not a record of entity history.
type TTLPolicy struct {
	AttributeName string
}

// EntityDefinition is the caller-supplied description of one entity kind:
// its schema, its primary and secondary indexes, its named queries, and its
// ambient attributes (discriminator, timestamps, TTL). T is the Go type
// write/get/update/delete operate on; it must know how to validate itself
// as the write path's last-mile check (dynamodb/ddbsdk.DynamoEntity).
type EntityDefinition[T ddbsdk.DynamoEntity] struct {
	Name  string
	Table table.TableDefinition

	// Schema validates a full entity value before create/upsert. KeySchema
	// validates a Key before get/update/delete. Both default to
	// schema.NoopValidator{} if left nil.
	Schema    schema.Validator
	KeySchema schema.Validator

	Primary     indexspec.IndexSpec
	Secondaries []indexspec.IndexSpec

	// Queries are named query/scan factories exposed through Repository.Query.
	Queries map[string]Query[T]

	Timestamps TimestampConfig
	TTL        *TTLPolicy

	// DiscriminatorAttr holds the entity name on every persisted item.
	// Defaults to "entityType".
	DiscriminatorAttr string
}

// Repository is the EntityRepository for one entity kind. Construct with
// NewRepository; safe to share across goroutines once built (the builders
// it produces are not).
type Repository[T ddbsdk.DynamoEntity] struct {
	def    EntityDefinition[T]
	io     ddbsdk.IO
	engine *indexspec.Engine
}

// NewRepository builds a Repository from an injected store client and an
// entity definition.
func NewRepository[T ddbsdk.DynamoEntity](io ddbsdk.IO, def EntityDefinition[T]) *Repository[T] {
	if def.DiscriminatorAttr == "" {
		def.DiscriminatorAttr = "entityType"
	}
	if def.Schema == nil {
		def.Schema = schema.NoopValidator{}
	}
	if def.KeySchema == nil {
		def.KeySchema = schema.NoopValidator{}
	}
	return &Repository[T]{
		def:    def,
		io:     io,
		engine: indexspec.NewEngine(def.Primary, def.Secondaries...),
	}
}

// rawEntity is a pre-marshaled attribute-value document that satisfies both
// ddbsdk.DynamoEntity and attributevalue.Marshaler: handing one to
// ddbsdk.NewUnsafePut/NewSafePut lets the entity layer pass an item it has
// already computed (discriminator, timestamps, index keys all merged in)
// straight through Put's marshal step instead of re-deriving it from a Go
// struct. It deliberately excludes the primary-key attributes: Put.Build
// merges those in itself, and compares any attribute the entity document
// already has under those names by interface equality — safe for freshly
// marshaled AttributeValue pointers, but a needless footgun to invite by
// duplicating the same attribute from two sources.
type rawEntity map[string]types.AttributeValue

func (rawEntity) IsValid() error { return nil }

func (r rawEntity) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	m := make(map[string]types.AttributeValue, len(r))
	for k, v := range r {
		m[k] = v
	}
	return &types.AttributeValueMemberM{Value: m}, nil
}

// primaryKeyDoc marshals a Key value and derives the table's primary index
// attributes from it via the entity's Primary IndexSpec, returning both the
// resolved table.PrimaryKey and the attribute document it was derived from
// (callers that need a seed document for further marshaling, e.g. update's
// key lookup, reuse the latter).
func (r *Repository[T]) primaryKeyDoc(key Key) (table.PrimaryKey, map[string]types.AttributeValue, error) {
	doc, err := attributevalue.MarshalMap(key)
	if err != nil {
		return table.PrimaryKey{}, nil, fmt.Errorf("entitykit: marshal key: %w", err)
	}
	if err := setPrimaryKeyAttrs(r.def.Primary, doc); err != nil {
		return table.PrimaryKey{}, nil, err
	}
	pk, err := r.def.Table.ExtractPrimaryKey(doc)
	if err != nil {
		return table.PrimaryKey{}, nil, fmt.Errorf("entitykit: extract primary key: %w", err)
	}
	return pk, doc, nil
}

// decode unmarshals a raw item into T, reporting found=false without error
// if item is nil or its discriminator doesn't match this repository's
// entity name (I5/P8). Secondary-index key attributes are stripped by
// default; includeIndexes opts out per item.
func (r *Repository[T]) decode(item ddbsdk.Item, includeIndexes bool) (v T, found bool, err error) {
	if item == nil || !r.matchesDiscriminator(item) {
		return v, false, nil
	}
	out := item
	if !includeIndexes {
		out = stripIndexAttrs(item, r.def.Secondaries)
	}
	if err := attributevalue.UnmarshalMap(out, &v); err != nil {
		var zero T
		return zero, false, fmt.Errorf("entitykit: unmarshal %s: %w", r.def.Name, err)
	}
	return v, true, nil
}

func stripIndexAttrs(item ddbsdk.Item, secondaries []indexspec.IndexSpec) ddbsdk.Item {
	out := make(ddbsdk.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	for _, spec := range secondaries {
		delete(out, spec.PKAttr)
		if spec.SKAttr != "" {
			delete(out, spec.SKAttr)
		}
	}
	return out
}
