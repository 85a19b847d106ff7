// Package entityerr defines the error taxonomy shared by every package in
// dynamodb/. Every failure mode the entity layer can produce resolves to one
// of the sentinels below via errors.Is, regardless of how many times it was
// wrapped with fmt.Errorf("...: %w", err) on the way up.
package entityerr

import "errors"

var (
	// ErrValidationFailed means a value failed its schema.
	ErrValidationFailed = errors.New("entitykit: validation failed")
	// ErrUnsupportedAsyncValidation means a deferred validator reached a
	// batch or transaction submission path, where only synchronous
	// validation is tolerated.
	ErrUnsupportedAsyncValidation = errors.New("entitykit: async schema validation is not supported for batch or transaction submission")
	// ErrMissingAttributes means a create would write a malformed index key.
	ErrMissingAttributes = errors.New("entitykit: missing attributes for index key")
	// ErrInsufficientDataForIndex means an update would write a malformed
	// index key for a secondary that the patch touched.
	ErrInsufficientDataForIndex = errors.New("entitykit: insufficient data to rebuild index key")
	// ErrUnknownIndex means forceIndexRebuild referenced a name that is not
	// a declared secondary index.
	ErrUnknownIndex = errors.New("entitykit: unknown index")
	// ErrEmptyBatch means no actions were added before submission.
	ErrEmptyBatch = errors.New("entitykit: batch has no operations")
	// ErrEmptyTransaction means no actions were added before submission.
	ErrEmptyTransaction = errors.New("entitykit: transaction has no actions")
	// ErrTransactionTooLarge means more actions were added than the store's
	// per-transaction action cap allows.
	ErrTransactionTooLarge = errors.New("entitykit: transaction exceeds the action limit")
	// ErrBatchWriteFailed means every sub-batch of a batch write failed.
	ErrBatchWriteFailed = errors.New("entitykit: batch write failed")
	// ErrBatchGetFailed means every sub-batch of a batch get failed.
	ErrBatchGetFailed = errors.New("entitykit: batch get failed")
	// ErrTransactionFailed means the atomic action group was rejected.
	ErrTransactionFailed = errors.New("entitykit: transaction failed")
	// ErrConditionFailed means a single-item conditional write was rejected.
	ErrConditionFailed = errors.New("entitykit: condition check failed")
	// ErrCanceled means the caller's context was canceled mid-submission.
	ErrCanceled = errors.New("entitykit: canceled")
	// ErrStoreError is any other store-origin fault, passed through.
	ErrStoreError = errors.New("entitykit: store error")
)

// MissingAttributesDetail names the offending index and the attributes that
// could not be derived from the available data.
type MissingAttributesDetail struct {
	Index   string
	Missing []string
}

// UnknownIndexDetail lists the names the caller asked for and the names
// actually declared on the entity.
type UnknownIndexDetail struct {
	Requested []string
	Known     []string
}

// BatchDetail carries operation counts for a partially or fully failed batch.
type BatchDetail struct {
	Submitted   int
	Unprocessed int
}

// TransactionDetail carries the store's cancellation reasons.
type TransactionDetail struct {
	CancellationReasons []string
}

// Error is the concrete error type returned by every package in dynamodb/.
// Kind is always one of the sentinels above and is what errors.Is matches
// against; Detail is populated when the sentinel calls for it.
type Error struct {
	Kind    error
	Message string
	Detail  any
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

// Unwrap lets errors.Is(err, entityerr.ErrXxx) match through e.Kind, and
// lets errors.Is/As reach any underlying cause as well.
func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

// New builds an *Error with no underlying cause.
func New(kind error, message string, detail any) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail}
}

// Wrap builds an *Error that also unwraps to cause.
func Wrap(kind error, message string, detail any, cause error) *Error {
	return &Error{Kind: kind, Message: message, Detail: detail, cause: cause}
}
