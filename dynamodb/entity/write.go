package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/acksell/entitykit/dynamodb/ddbsdk"
	"github.com/acksell/entitykit/dynamodb/indexspec"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Create returns a builder for a new item, conditioned on the primary
// partition-key attribute not already existing (the new-item guard).
func (r *Repository[T]) Create(value T) *WriteBuilder[T] {
	return &WriteBuilder[T]{repo: r, value: value, newItemGuard: true}
}

// Upsert returns a builder identical to Create but without the new-item
// guard: submitting it overwrites whatever item, if any, already occupies
// the primary key.
func (r *Repository[T]) Upsert(value T) *WriteBuilder[T] {
	return &WriteBuilder[T]{repo: r, value: value}
}

// WriteBuilder materializes and submits a create or upsert. A builder may
// be submitted exactly once per call to Execute, WithBatch, or
// WithTransaction; each submission re-runs materialization so timestamps
// reflect submission time.
type WriteBuilder[T ddbsdk.DynamoEntity] struct {
	repo         *Repository[T]
	value        T
	newItemGuard bool

	lockAttr  string
	ttl       *time.Time
	extraCond expression.ConditionBuilder
}

// WithOptimisticLock ANDs attribute_not_exists(attr) OR attr = <value
// supplied on value> onto the write, rejecting it with ConditionFailed if
// the stored version doesn't match what the caller expected.
func (b *WriteBuilder[T]) WithOptimisticLock(attr string) *WriteBuilder[T] {
	b.lockAttr = attr
	return b
}

// WithTTL stamps a Unix-epoch TTL attribute on the item, independent of any
// createdAt/updatedAt timestamp policy.
func (b *WriteBuilder[T]) WithTTL(expiry time.Time) *WriteBuilder[T] {
	b.ttl = &expiry
	return b
}

// WithCondition ANDs an additional condition onto the write.
func (b *WriteBuilder[T]) WithCondition(c expression.ConditionBuilder) *WriteBuilder[T] {
	b.extraCond = andCond(b.extraCond, c)
	return b
}

// Execute validates, materializes, and submits the write as a single
// PutItem call. This is the only submission path that tolerates a deferred
// (async) schema validator.
func (b *WriteBuilder[T]) Execute(ctx context.Context) (T, error) {
	var zero T
	if err := b.validateForExecute(ctx); err != nil {
		return zero, err
	}
	put, err := b.materialize()
	if err != nil {
		return zero, err
	}
	if err := b.repo.io.PutItem(ctx, put); err != nil {
		return zero, mapStoreErr(err)
	}
	return b.value, nil
}

// WithBatch materializes the write and adds it to batch. The write must be
// unconditional beyond the discriminator/optimistic-lock machinery this
// builder itself assembles, since BatchWriteItem supports no conditions at
// all (per ddbsdk.BatchAction). Validation is always synchronous here: a
// schema.AsyncFunc validator fails closed with ErrUnsupportedAsyncValidation,
// since a batch submission cannot await a remote check per item.
func (b *WriteBuilder[T]) WithBatch(batch ddbsdk.Batcher) error {
	if err := b.repo.def.Schema.Validate(b.value); err != nil {
		return err
	}
	put, err := b.materialize()
	if err != nil {
		return err
	}
	action, ok := put.(ddbsdk.BatchAction)
	if !ok {
		return fmt.Errorf("entitykit: %s write carries a condition and cannot go into a batch", b.repo.def.Name)
	}
	return batch.AddAction(action)
}

// WithTransaction materializes the write and adds it to tx. Like WithBatch,
// validation is always synchronous.
func (b *WriteBuilder[T]) WithTransaction(tx ddbsdk.Txer) error {
	if err := b.repo.def.Schema.Validate(b.value); err != nil {
		return err
	}
	put, err := b.materialize()
	if err != nil {
		return err
	}
	tx.AddAction(put.(ddbsdk.Action))
	return nil
}

// validateForExecute validates b.value against the entity's schema, taking
// the deferred ValidateAsync path when the schema declares support for it.
func (b *WriteBuilder[T]) validateForExecute(ctx context.Context) error {
	schema := b.repo.def.Schema
	if schema.SupportsAsync() {
		return schema.ValidateAsync(ctx, b.value)
	}
	return schema.Validate(b.value)
}

// materialize runs the rest of the create/upsert pipeline once validation
// has already passed: marshal, stamp the discriminator, derive the primary
// key, run the IndexEngine for secondary keys, stamp timestamps, and
// assemble the guard conditions. It is re-run on every submission so
// timestamps and conditions reflect the moment of submission, not of
// builder construction.
func (b *WriteBuilder[T]) materialize() (ddbsdk.PutItemAction, error) {
	def := b.repo.def

	if err := b.value.IsValid(); err != nil {
		return nil, err
	}

	doc, err := attributevalue.MarshalMap(b.value)
	if err != nil {
		return nil, fmt.Errorf("entitykit: marshal %s: %w", def.Name, err)
	}

	doc[def.DiscriminatorAttr] = &types.AttributeValueMemberS{Value: def.Name}

	if err := setPrimaryKeyAttrs(def.Primary, doc); err != nil {
		return nil, err
	}

	idxAttrs, err := b.repo.engine.BuildForCreate(doc, indexspec.CreateOptions{})
	if err != nil {
		return nil, err
	}
	for k, v := range idxAttrs {
		doc[k] = v
	}

	stampCreate(def.Timestamps, doc, time.Now())

	if def.TTL != nil && b.ttl != nil {
		doc[def.TTL.AttributeName] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", b.ttl.Unix())}
	}

	pk, err := def.Table.ExtractPrimaryKey(doc)
	if err != nil {
		return nil, fmt.Errorf("entitykit: extract primary key: %w", err)
	}

	entityDoc := withoutAttrs(doc, def.Primary.PKAttr, def.Primary.SKAttr)
	put := ddbsdk.NewUnsafePut(def.Table, pk, rawEntity(entityDoc))

	cond := b.conditions(def, doc)
	if !cond.IsSet() {
		return put, nil
	}
	return put.WithCondition(cond), nil
}

func (b *WriteBuilder[T]) conditions(def EntityDefinition[T], doc map[string]types.AttributeValue) expression.ConditionBuilder {
	var cond expression.ConditionBuilder
	if b.newItemGuard {
		cond = expression.AttributeNotExists(expression.Name(def.Primary.PKAttr))
	}
	if b.lockAttr != "" {
		lock := expression.AttributeNotExists(expression.Name(b.lockAttr))
		if v, ok := doc[b.lockAttr]; ok {
			lock = lock.Or(expression.Equal(expression.Name(b.lockAttr), expression.Value(v)))
		}
		cond = andCond(cond, lock)
	}
	return andCond(cond, b.extraCond)
}

func andCond(a, b expression.ConditionBuilder) expression.ConditionBuilder {
	if !a.IsSet() {
		return b
	}
	if !b.IsSet() {
		return a
	}
	return a.And(b)
}
