// Package repository defines domain models and data access interfaces for
// users, collections, and collection items.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated
var ErrConflict = errors.New("already exists")

// User represents a registered account that can own collections
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Email        string
	CreatedAt    time.Time
}

// Collection is a named, owned grouping of items backed by its own
// vector-store namespace. IndexNamespace is generated at creation and stays
// fixed for the life of the row except for a rename, which repoints it to a
// freshly copied namespace.
type Collection struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Name           string
	IndexNamespace string
	CreatedAt      time.Time
}

// Item is one unit of text content belonging to exactly one collection.
// ExternalID is an optional caller-supplied lookup key and is not enforced
// unique.
type Item struct {
	ID           uuid.UUID
	CollectionID uuid.UUID
	Content      string
	ExternalID   string
	CreatedAt    time.Time
}

// Page holds offset/limit pagination parameters
type Page struct {
	Offset int
	Limit  int
}

// DefaultPage returns the default pagination window
func DefaultPage() Page {
	return Page{Offset: 0, Limit: 20}
}

// UserRepository defines operations for user persistence
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// CollectionRepository defines operations for collection persistence.
// Create returns ErrConflict if the index namespace is already taken.
type CollectionRepository interface {
	Create(ctx context.Context, collection *Collection) error
	GetByID(ctx context.Context, id uuid.UUID) (*Collection, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Collection, error)
	Update(ctx context.Context, collection *Collection) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ItemRepository defines operations for item persistence.
// CreateBatch must insert all rows in a single transaction: either every row
// exists afterwards or none does.
type ItemRepository interface {
	CreateBatch(ctx context.Context, items []*Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	GetByExternalID(ctx context.Context, collectionID uuid.UUID, externalID string) (*Item, error)
	List(ctx context.Context, collectionID uuid.UUID, page Page) ([]*Item, int, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByCollection(ctx context.Context, collectionID uuid.UUID) (int, error)
}
