package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"messenger-gateway/model"

	"github.com/redis/go-redis/v9"
)

const IdentityKey = "gateway:identities"

var ErrNoIdentity = errors.New("identity not cached")

// IdentityCache keeps signed-in identities in one Redis hash keyed by user
// id. Entries carry no schema version.
type IdentityCache struct {
	client redis.Cmdable
	key    string
}

func NewIdentityCache(client redis.Cmdable) *IdentityCache {
	return &IdentityCache{client: client, key: IdentityKey}
}

func (c *IdentityCache) Save(ctx context.Context, identity model.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return c.client.HSet(ctx, c.key, identity.UserId, data).Err()
}

func (c *IdentityCache) Load(ctx context.Context, userId string) (model.Identity, error) {
	data, err := c.client.HGet(ctx, c.key, userId).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Identity{}, ErrNoIdentity
	}
	if err != nil {
		return model.Identity{}, err
	}
	return decodeIdentity(data)
}

// List returns every cached identity. Entries that no longer decode are
// skipped.
func (c *IdentityCache) List(ctx context.Context) ([]model.Identity, error) {
	entries, err := c.client.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	list := make([]model.Identity, 0, len(entries))
	for userId, raw := range entries {
		identity, err := decodeIdentity([]byte(raw))
		if err != nil {
			logger.Debug("skip cached identity %s: %v", userId, err)
			continue
		}
		list = append(list, identity)
	}
	return list, nil
}

func (c *IdentityCache) Delete(ctx context.Context, userId string) error {
	return c.client.HDel(ctx, c.key, userId).Err()
}

func decodeIdentity(data []byte) (model.Identity, error) {
	var identity model.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return model.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if identity.UserId == "" || identity.Token == "" {
		return model.Identity{}, errors.New("decode identity: missing user id or token")
	}
	return identity, nil
}
