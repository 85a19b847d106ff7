package pagination

import (
	"context"
	"errors"

	"github.com/acksell/entitykit/dynamodb/ddbsdk"
)

// ErrSkip is a sentinel a decode func passed to FromQuerier/FromScanner can
// return to drop an item from the page instead of failing it - e.g. an item
// that matched the query's server-side filter but fails a belt-and-suspenders
// check the decoder runs itself.
var ErrSkip = errors.New("pagination: skip item")

// FromQuerier adapts a *ddbsdk.Querier into a Fetcher, unmarshaling each raw
// item with decode as the page comes back.
func FromQuerier[T any](q *ddbsdk.Querier, decode func(ddbsdk.Item) (T, error)) Fetcher[T] {
	return func(ctx context.Context) (Page[T], error) {
		res, err := q.Next(ctx)
		if err != nil {
			return Page[T]{}, err
		}
		items, err := decodeAll(res.Items, decode)
		if err != nil {
			return Page[T]{}, err
		}
		return Page[T]{Items: items, Cursor: q.Cursor(), Done: res.IsDone}, nil
	}
}

// FromScanner adapts a *ddbsdk.Scanner into a Fetcher, unmarshaling each raw
// item with decode as the page comes back.
func FromScanner[T any](s *ddbsdk.Scanner, decode func(ddbsdk.Item) (T, error)) Fetcher[T] {
	return func(ctx context.Context) (Page[T], error) {
		res, err := s.Next(ctx)
		if err != nil {
			return Page[T]{}, err
		}
		items, err := decodeAll(res.Items, decode)
		if err != nil {
			return Page[T]{}, err
		}
		return Page[T]{Items: items, Cursor: s.Cursor(), Done: res.IsDone}, nil
	}
}

func decodeAll[T any](raw []ddbsdk.Item, decode func(ddbsdk.Item) (T, error)) ([]T, error) {
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		v, err := decode(item)
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
