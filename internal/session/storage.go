package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/postsiva/postsiva-cli/internal/config"
	"github.com/redis/go-redis/v9"
)

// Storage is a durable string key/value store
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// OpenStorage opens the backend selected in cfg. The returned storage is nil
// for the "none" backend.
func OpenStorage(cfg *config.SessionConfig) (Storage, error) {
	switch cfg.Backend {
	case config.StorageFile:
		return NewFileStorage(cfg.Path), nil
	case config.StorageSQLite:
		s, err := OpenSQLiteStorage(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStorage(client, cfg.Redis.KeyPrefix), nil
	case config.StorageMemory:
		return NewMemoryStorage(), nil
	case config.StorageNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

// MemoryStorage keeps values for the life of the process
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
