package entity

import (
	"fmt"

	"github.com/acksell/entitykit/dynamodb/ddbsdk"
	"github.com/acksell/entitykit/dynamodb/pagination"
	"github.com/acksell/entitykit/dynamodb/schema"
)

// EntityQueryContext is the narrow surface a named query's factory function
// receives: enough to build a get, query, or scan against this entity's own
// table, but nothing that would let it reach another table or bypass the
// repository's store wiring.
type EntityQueryContext[T ddbsdk.DynamoEntity] struct {
	repo *Repository[T]
}

func (c EntityQueryContext[T]) Get(key Key) *GetBuilder[T] {
	return c.repo.Get(key)
}

func (c EntityQueryContext[T]) Query(qb ddbsdk.QueryBuilder) *ddbsdk.Querier {
	return c.repo.io.NewQuery(qb)
}

func (c EntityQueryContext[T]) Scan(sb ddbsdk.ScanBuilder) *ddbsdk.Scanner {
	return c.repo.io.NewScan(sb)
}

// Query is a named, reusable query factory declared on an EntityDefinition.
// Build receives input already validated against Schema and an
// EntityQueryContext, and returns either a *ddbsdk.Querier or a
// *ddbsdk.Scanner - whichever the factory needs to answer that query.
type Query[T ddbsdk.DynamoEntity] struct {
	Schema schema.Validator
	Build  func(ctx EntityQueryContext[T], input Value) (any, error)
}

// Query runs the named query factory declared on this entity's definition:
// validates input against the query's own schema, lets the factory build a
// Querier or Scanner, injects the discriminator-equality filter, and returns
// a lazy paginator of decoded T values (S6).
func (r *Repository[T]) Query(name string, input Value) (*pagination.LazyPagedResult[T], error) {
	q, ok := r.def.Queries[name]
	if !ok {
		return nil, fmt.Errorf("entitykit: %s has no query named %q", r.def.Name, name)
	}
	if q.Schema != nil {
		if err := q.Schema.Validate(input); err != nil {
			return nil, err
		}
	}
	built, err := q.Build(EntityQueryContext[T]{repo: r}, input)
	if err != nil {
		return nil, err
	}
	decode := func(item ddbsdk.Item) (T, error) {
		v, found, err := r.decode(item, false)
		if err != nil {
			return v, err
		}
		if !found {
			var zero T
			return zero, pagination.ErrSkip
		}
		return v, nil
	}
	switch b := built.(type) {
	case *ddbsdk.Querier:
		b.WithEntityFilter(r.def.DiscriminatorAttr, r.def.Name)
		return pagination.New(pagination.FromQuerier(b, decode)), nil
	case *ddbsdk.Scanner:
		b.WithEntityFilter(r.def.DiscriminatorAttr, r.def.Name)
		return pagination.New(pagination.FromScanner(b, decode)), nil
	default:
		return nil, fmt.Errorf("entitykit: query %q returned %T, expected *ddbsdk.Querier or *ddbsdk.Scanner", name, built)
	}
}

// Scan returns a lazy paginator over every item of this entity kind across
// the whole table, pre-filtered on the discriminator.
func (r *Repository[T]) Scan() *pagination.LazyPagedResult[T] {
	scanner := r.io.NewScan(ddbsdk.ScanTable(r.def.Table)).WithEntityFilter(r.def.DiscriminatorAttr, r.def.Name)
	return pagination.New(pagination.FromScanner(scanner, func(item ddbsdk.Item) (T, error) {
		v, found, err := r.decode(item, false)
		if err != nil {
			return v, err
		}
		if !found {
			var zero T
			return zero, pagination.ErrSkip
		}
		return v, nil
	}))
}
