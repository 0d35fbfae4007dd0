// Package service implements the collection registry, item ingestion
// pipeline, and proximity query engine on top of the repository, vector
// store, and embedder collaborators.
package service

import (
	"errors"
	"fmt"
)

// Typed domain errors. Callers match them with errors.Is; the HTTP boundary
// translates them to status codes.
var (
	// ErrCollectionNotFound is returned when the referenced collection does not exist
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned when a collection with the same namespace already exists
	ErrCollectionExists = errors.New("collection already exists")
	// ErrItemNotFound is returned when the referenced item does not exist
	ErrItemNotFound = errors.New("item not found")
	// ErrWrongCollection is returned when an item exists but belongs to a different collection
	ErrWrongCollection = errors.New("item belongs to a different collection")
	// ErrBatchTooLarge is returned when an ingestion batch exceeds the configured maximum
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
	// ErrMissingFileColumns is returned when an ingested file lacks the content column
	ErrMissingFileColumns = errors.New("file is missing required columns")
	// ErrForbidden is returned when the caller does not own the collection
	ErrForbidden = errors.New("caller does not own this collection")
	// ErrUserExists is returned when the username is already taken
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is returned when login credentials do not match
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// VectorStoreError wraps a vector store or embedding failure that happened
// after relational rows were already written. The rows are kept; the caller
// decides whether to retry.
type VectorStoreError struct {
	Op  string
	Err error
}

func (e *VectorStoreError) Error() string {
	return fmt.Sprintf("vector store %s failed: %v", e.Op, e.Err)
}

func (e *VectorStoreError) Unwrap() error {
	return e.Err
}
