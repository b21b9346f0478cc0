// Package bus is the change-notification path between the stores and
// their observers. A mutation publishes an event naming the topic and the
// storage key that changed; observers re-read full store state on receipt,
// no diff is carried.
package bus

import (
	"sync"

	"github.com/undeadblocks/marketstate/base/ctx"
)

type Topic string

const (
	TopicListings Topic = "market:listings-changed"
	TopicAuctions Topic = "auction:items-changed"
	TopicProfiles Topic = "market:profiles-changed"
)

// Event describes one store mutation. Origin identifies the publishing
// process so the cross-context bridge can drop self-published events.
type Event struct {
	Topic  Topic  `json:"topic"`
	Key    string `json:"key"`
	Origin string `json:"origin,omitempty"`
}

type Handler func(c ctx.Ctx, ev Event)

type Bus interface {
	// Subscribe registers a handler; the returned func removes it
	Subscribe(topic Topic, h Handler) (cancel func())
	// Publish delivers ev to every handler of its topic synchronously,
	// in subscription order, before returning
	Publish(c ctx.Ctx, ev Event)
}

type subscription struct {
	id      int64
	handler Handler
}

type local struct {
	mu     sync.RWMutex
	nextId int64
	subs   map[Topic][]subscription
}

// NewLocal returns the in-process bus
func NewLocal() Bus {
	return &local{subs: map[Topic][]subscription{}}
}

func (b *local) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextId++
	id := b.nextId
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i := range subs {
			if subs[i].id == id {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (b *local) Publish(c ctx.Ctx, ev Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[ev.Topic]))
	copy(subs, b.subs[ev.Topic])
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(c, ev)
	}
}
