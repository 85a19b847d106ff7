package entity

import (
	"context"

	"github.com/acksell/entitykit/dynamodb/ddbsdk"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// Delete returns a builder for removing the item at key. Like Update, it
// always ANDs the discriminator-equality condition so a delete can never
// remove an item belonging to a different entity kind.
func (r *Repository[T]) Delete(key Key) *DeleteBuilder[T] {
	return &DeleteBuilder[T]{repo: r, key: key}
}

// DeleteBuilder materializes a conditional delete.
type DeleteBuilder[T ddbsdk.DynamoEntity] struct {
	repo      *Repository[T]
	key       Key
	extraCond expression.ConditionBuilder
}

// WithCondition ANDs an additional condition onto the delete.
func (b *DeleteBuilder[T]) WithCondition(c expression.ConditionBuilder) *DeleteBuilder[T] {
	b.extraCond = andCond(b.extraCond, c)
	return b
}

func (b *DeleteBuilder[T]) materialize() (*ddbsdk.Delete, error) {
	def := b.repo.def
	if err := def.KeySchema.Validate(b.key); err != nil {
		return nil, err
	}
	pk, _, err := b.repo.primaryKeyDoc(b.key)
	if err != nil {
		return nil, err
	}
	del := ddbsdk.NewDelete(def.Table, pk)
	cond := expression.Equal(expression.Name(def.DiscriminatorAttr), expression.Value(def.Name))
	del.WithCondition(andCond(cond, b.extraCond))
	return del, nil
}

// Execute submits the delete as a single DeleteItem call.
func (b *DeleteBuilder[T]) Execute(ctx context.Context) error {
	del, err := b.materialize()
	if err != nil {
		return err
	}
	if err := b.repo.io.DeleteItem(ctx, del); err != nil {
		return mapStoreErr(err)
	}
	return nil
}

// WithBatch materializes an unconditional delete and adds it to batch.
// BatchWriteItem supports no conditions, so the discriminator guard this
// builder would normally AND on is not applied here — a batch delete
// removes whatever occupies the primary key, matching real DynamoDB's
// BatchWriteItem semantics. Use Execute or WithTransaction if the
// discriminator guard must hold.
func (b *DeleteBuilder[T]) WithBatch(batch ddbsdk.Batcher) error {
	pk, _, err := b.repo.primaryKeyDoc(b.key)
	if err != nil {
		return err
	}
	return batch.AddAction(ddbsdk.NewDelete(b.repo.def.Table, pk))
}

// WithTransaction materializes the delete (discriminator guard included)
// and adds it to tx.
func (b *DeleteBuilder[T]) WithTransaction(tx ddbsdk.Txer) error {
	del, err := b.materialize()
	if err != nil {
		return err
	}
	tx.AddAction(del)
	return nil
}
