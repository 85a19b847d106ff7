package entity

import "github.com/acksell/entitykit/dynamodb/entityerr"

// mapStoreErr translates a raw error surfaced by ddbsdk/the AWS SDK into the
// entityerr taxonomy so every submission path returns a consistent error
// kind regardless of which store call failed underneath it.
func mapStoreErr(err error) error {
	return entityerr.FromStoreError(err)
}
