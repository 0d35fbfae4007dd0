// Package memory provides in-memory repository implementations backed by
// mutex-guarded maps. They serve local development and tests, where a
// PostgreSQL instance is not available.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/google/uuid"
)

// UserRepo is an in-memory repository.UserRepository
type UserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]repository.User
}

// NewUserRepo creates an empty in-memory user repository
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[uuid.UUID]repository.User)}
}

// Create stores a new user, enforcing username uniqueness
func (r *UserRepo) Create(ctx context.Context, user *repository.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Username == user.Username {
			return repository.ErrConflict
		}
	}
	r.users[user.ID] = *user
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// CollectionRepo is an in-memory repository.CollectionRepository
type CollectionRepo struct {
	mu          sync.RWMutex
	collections map[uuid.UUID]repository.Collection
}

// NewCollectionRepo creates an empty in-memory collection repository
func NewCollectionRepo() *CollectionRepo {
	return &CollectionRepo{collections: make(map[uuid.UUID]repository.Collection)}
}

// Create stores a new collection, enforcing namespace uniqueness
func (r *CollectionRepo) Create(ctx context.Context, collection *repository.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.collections {
		if existing.IndexNamespace == collection.IndexNamespace {
			return repository.ErrConflict
		}
	}
	r.collections[collection.ID] = *collection
	return nil
}

// GetByID retrieves a collection by ID
func (r *CollectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	collection, ok := r.collections[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &collection, nil
}

// ListByOwner retrieves all collections of an owner ordered by creation time
func (r *CollectionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*repository.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var collections []*repository.Collection
	for _, collection := range r.collections {
		if collection.OwnerID == ownerID {
			c := collection
			collections = append(collections, &c)
		}
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].CreatedAt.Before(collections[j].CreatedAt)
	})
	return collections, nil
}

// Update replaces a stored collection
func (r *CollectionRepo) Update(ctx context.Context, collection *repository.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[collection.ID]; !ok {
		return repository.ErrNotFound
	}
	r.collections[collection.ID] = *collection
	return nil
}

// Delete removes a collection
func (r *CollectionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collections[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.collections, id)
	return nil
}

// ItemRepo is an in-memory repository.ItemRepository
type ItemRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]repository.Item
	order []uuid.UUID
}

// NewItemRepo creates an empty in-memory item repository
func NewItemRepo() *ItemRepo {
	return &ItemRepo{items: make(map[uuid.UUID]repository.Item)}
}

// CreateBatch stores all items atomically
func (r *ItemRepo) CreateBatch(ctx context.Context, items []*repository.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		if _, ok := r.items[item.ID]; ok {
			return repository.ErrConflict
		}
	}
	for _, item := range items {
		r.items[item.ID] = *item
		r.order = append(r.order, item.ID)
	}
	return nil
}

// GetByID retrieves an item by ID
func (r *ItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &item, nil
}

// GetByExternalID retrieves the oldest item with the given external ID
func (r *ItemRepo) GetByExternalID(ctx context.Context, collectionID uuid.UUID, externalID string) (*repository.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		item, ok := r.items[id]
		if ok && item.CollectionID == collectionID && item.ExternalID == externalID {
			return &item, nil
		}
	}
	return nil, repository.ErrNotFound
}

// List retrieves a page of a collection's items in insertion order plus the
// total count
func (r *ItemRepo) List(ctx context.Context, collectionID uuid.UUID, page repository.Page) ([]*repository.Item, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []*repository.Item
	for _, id := range r.order {
		item, ok := r.items[id]
		if ok && item.CollectionID == collectionID {
			i := item
			all = append(all, &i)
		}
	}

	total := len(all)
	if page.Offset >= total {
		return nil, total, nil
	}
	end := page.Offset + page.Limit
	if page.Limit <= 0 || end > total {
		end = total
	}
	return all[page.Offset:end], total, nil
}

// Update replaces a stored item
func (r *ItemRepo) Update(ctx context.Context, item *repository.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; !ok {
		return repository.ErrNotFound
	}
	r.items[item.ID] = *item
	return nil
}

// Delete removes an item
func (r *ItemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

// DeleteByCollection removes all items of a collection
func (r *ItemRepo) DeleteByCollection(ctx context.Context, collectionID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, item := range r.items {
		if item.CollectionID == collectionID {
			delete(r.items, id)
			removed++
		}
	}
	return removed, nil
}

// Ensure the in-memory repositories implement the interfaces
var (
	_ repository.UserRepository       = (*UserRepo)(nil)
	_ repository.CollectionRepository = (*CollectionRepo)(nil)
	_ repository.ItemRepository       = (*ItemRepo)(nil)
)
