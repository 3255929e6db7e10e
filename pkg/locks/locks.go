// Package locks serializes cascade decisions per case. A case may have at
// most one in-flight cascade decision at a time; without this, two sibling
// work items completing concurrently can each observe the other as still
// ready and permanently stall the join.
package locks

import (
	"context"
	"sync"
)

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// KeyedMutex is the in-process locker for single-replica deployments.
type KeyedMutex struct {
	mu      sync.Mutex
	mutexes map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{mutexes: make(map[string]*sync.Mutex)}
}

func (k *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	k.mu.Lock()

	mutex, ok := k.mutexes[key]
	if !ok {
		mutex = &sync.Mutex{}
		k.mutexes[key] = mutex
	}

	k.mu.Unlock()

	mutex.Lock()
	defer mutex.Unlock()

	return fn(ctx)
}
