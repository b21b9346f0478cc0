// Package keyvalue is the durable string-keyed backing medium shared by
// every store. Each store owns one key holding its whole serialized
// collection. Writes carry the version observed at read time and are
// rejected when another writer got there first, so concurrent
// read-modify-write cycles cannot silently discard each other.
package keyvalue

import (
	"errors"

	"github.com/undeadblocks/marketstate/base/ctx"
)

var (
	// ErrNotFound is returned by Get for an absent key
	ErrNotFound = errors.New("key not found")
)

// Entry is one stored value with its current version token
type Entry struct {
	Value   []byte
	Version int64
}

// Store is a synchronous versioned key-value medium.
//
// Put succeeds only when the key's current version equals prev; prev 0
// means the key must not exist yet. On success the stored version becomes
// prev+1 and is returned. A stale prev fails with domain.ErrConflict and
// leaves the key untouched.
type Store interface {
	Get(c ctx.Ctx, key string) (*Entry, error)
	Put(c ctx.Ctx, key string, value []byte, prev int64) (int64, error)
	Del(c ctx.Ctx, key string) error
}
