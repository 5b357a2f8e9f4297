package taskstore

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/overlax/overlax/internal/models"
)

// Loader reads a user's tasks from the system of record
type Loader interface {
	TasksByUser(ctx context.Context, uid string) ([]models.Task, error)
}

// SnapshotCache keeps recent per-user task snapshots in memory
type SnapshotCache struct {
	loader Loader
	cache  *expirable.LRU[string, []models.Task]
}

// NewSnapshotCache creates a cache holding up to size users for ttl each
func NewSnapshotCache(loader Loader, size int, ttl time.Duration) *SnapshotCache {
	if size <= 0 {
		size = 1024
	}
	return &SnapshotCache{
		loader: loader,
		cache:  expirable.NewLRU[string, []models.Task](size, nil, ttl),
	}
}

// Tasks returns a copy of the user's snapshot, loading it on a miss.
func (c *SnapshotCache) Tasks(ctx context.Context, uid string) ([]models.Task, error) {
	if tasks, ok := c.cache.Get(uid); ok {
		return models.CloneTasks(tasks), nil
	}

	tasks, err := c.loader.TasksByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	c.cache.Add(uid, models.CloneTasks(tasks))
	return tasks, nil
}

// Invalidate drops the cached snapshot for uid.
func (c *SnapshotCache) Invalidate(uid string) {
	c.cache.Remove(uid)
}

// Len reports the number of cached users.
func (c *SnapshotCache) Len() int {
	return c.cache.Len()
}
