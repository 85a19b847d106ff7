package ddbsdk

// DynamoEntity is the minimal contract a Go value must satisfy to be
// written through Put/UnsafeUpdate: it knows how to validate itself before
// being marshaled. Higher-level schema/discriminator validation lives in
// dynamodb/entity; this is the write path's own last-mile check.
type DynamoEntity interface {
	IsValid() error
}

// VersionedDynamoEntity additionally exposes an optimistic-locking version
// field (attribute name and current value), letting NewSafePut condition
// the write on the stored version being older than the one being written.
type VersionedDynamoEntity interface {
	DynamoEntity
	// Version returns the dynamodb attribute name and current value of the
	// version field.
	Version() (string, any)
}
