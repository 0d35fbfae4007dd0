package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
)

// requireOwner checks that the caller owns the collection. It is stateless
// and runs before every collection-scoped read or mutation.
func requireOwner(collection *repository.Collection, callerID uuid.UUID) error {
	if collection.OwnerID != callerID {
		return ErrForbidden
	}
	return nil
}

// ownedCollection resolves a collection by id and enforces ownership
func ownedCollection(ctx context.Context, repo repository.CollectionRepository, id, callerID uuid.UUID) (*repository.Collection, error) {
	collection, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	if err := requireOwner(collection, callerID); err != nil {
		return nil, err
	}
	return collection, nil
}
