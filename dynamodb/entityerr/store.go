package entityerr

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FromStoreError translates a raw error surfaced by ddbsdk/the AWS SDK into
// this package's taxonomy, so every submission path across dynamodb/entity,
// dynamodb/batch, and dynamodb/transaction returns a consistent error kind
// regardless of which store call failed underneath it. Returns nil for a
// nil err.
func FromStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrCanceled, "", nil, err)
	}
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return Wrap(ErrConditionFailed, "", nil, err)
	}
	var txCanceled *types.TransactionCanceledException
	if errors.As(err, &txCanceled) {
		reasons := make([]string, 0, len(txCanceled.CancellationReasons))
		for _, r := range txCanceled.CancellationReasons {
			if r.Code != nil && *r.Code != "None" {
				reasons = append(reasons, *r.Code)
			}
		}
		return Wrap(ErrTransactionFailed, "", TransactionDetail{CancellationReasons: reasons}, err)
	}
	return Wrap(ErrStoreError, "", nil, err)
}
