package memory

import (
	"sync"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

type entry struct {
	value   []byte
	version int64
}

type impl struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New returns a process-local store. Used by tests and as the dev-mode
// backend; state lives for the life of the process.
func New() keyvalue.Store {
	return &impl{entries: map[string]entry{}}
}

func (im *impl) Get(c ctx.Ctx, key string) (*keyvalue.Entry, error) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	e, ok := im.entries[key]
	if !ok {
		return nil, keyvalue.ErrNotFound
	}
	val := make([]byte, len(e.value))
	copy(val, e.value)
	return &keyvalue.Entry{Value: val, Version: e.version}, nil
}

func (im *impl) Put(c ctx.Ctx, key string, value []byte, prev int64) (int64, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	cur := int64(0)
	if e, ok := im.entries[key]; ok {
		cur = e.version
	}
	if cur != prev {
		return 0, domain.ErrConflict
	}
	val := make([]byte, len(value))
	copy(val, value)
	im.entries[key] = entry{value: val, version: prev + 1}
	return prev + 1, nil
}

func (im *impl) Del(c ctx.Ctx, key string) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	delete(im.entries, key)
	return nil
}
