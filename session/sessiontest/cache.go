package sessiontest

import (
	"context"
	"sync"

	"messenger-gateway/model"
)

// Cache is an in-memory identity cache.
type Cache struct {
	ListErr error

	mu         sync.Mutex
	identities map[string]model.Identity
}

func NewCache(identities ...model.Identity) *Cache {
	c := &Cache{identities: map[string]model.Identity{}}
	for _, id := range identities {
		c.identities[id.UserId] = id
	}
	return c
}

func (c *Cache) Save(ctx context.Context, identity model.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identities[identity.UserId] = identity
	return nil
}

func (c *Cache) List(ctx context.Context) ([]model.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	list := make([]model.Identity, 0, len(c.identities))
	for _, id := range c.identities {
		list = append(list, id)
	}
	return list, nil
}

func (c *Cache) Delete(ctx context.Context, userId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.identities, userId)
	return nil
}

func (c *Cache) Has(userId string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.identities[userId]
	return ok
}
