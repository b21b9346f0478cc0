package bus

import (
	"encoding/json"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/viney-shih/goroutines"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/base/metrics"
)

const (
	channelPrefix = "marketstate:bus:"

	healthCheckPeriod = 30 * time.Second

	dispatchPoolSize = 64
)

// RedisBridge extends a local bus across processes, mirroring the backing
// medium's own cross-context mutation signal: publishes are forwarded to a
// redis channel per topic, remote events are replayed onto the local bus,
// and events originated by this process are dropped on receipt so the
// initiating context only ever sees its own synchronous notification.
type RedisBridge struct {
	inner  Bus
	pool   *redis.Pool
	met    metrics.Service
	origin string
	deliv  *goroutines.Pool
	done   chan struct{}
}

func NewRedisBridge(c ctx.Ctx, inner Bus, pool *redis.Pool, met metrics.Service) (*RedisBridge, error) {
	b := &RedisBridge{
		inner:  inner,
		pool:   pool,
		met:    met,
		origin: uuid.NewString(),
		deliv:  goroutines.NewPool(dispatchPoolSize),
		done:   make(chan struct{}),
	}
	go b.receiveLoop(c)
	return b, nil
}

func (b *RedisBridge) Subscribe(topic Topic, h Handler) func() {
	return b.inner.Subscribe(topic, h)
}

func (b *RedisBridge) Publish(c ctx.Ctx, ev Event) {
	ev.Origin = b.origin
	b.inner.Publish(c, ev)

	payload, err := json.Marshal(ev)
	if err != nil {
		c.WithField("err", err).Error("marshal bus event failed")
		return
	}

	conn := b.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PUBLISH", channelPrefix+string(ev.Topic), payload); err != nil {
		b.met.BumpSum("publish.err", 1, "topic", string(ev.Topic))
		c.WithFields(log.Fields{"err": err, "topic": ev.Topic}).Error("redis PUBLISH failed")
	}
}

// Close stops the receive loop. Pending remote deliveries drain through
// the worker pool.
func (b *RedisBridge) Close() {
	close(b.done)
	b.deliv.Release()
}

func (b *RedisBridge) receiveLoop(c ctx.Ctx) {
	for {
		select {
		case <-b.done:
			return
		default:
		}
		if err := b.receive(c); err != nil {
			c.WithField("err", err).Warn("bus subscriber disconnected, retrying")
			b.met.BumpSum("subscribe.err", 1)
			select {
			case <-b.done:
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (b *RedisBridge) receive(c ctx.Ctx) error {
	conn := b.pool.Get()
	defer conn.Close()

	psc := redis.PubSubConn{Conn: conn}
	if err := psc.PSubscribe(channelPrefix + "*"); err != nil {
		return err
	}
	defer psc.PUnsubscribe()

	for {
		select {
		case <-b.done:
			return nil
		default:
		}
		switch v := psc.ReceiveWithTimeout(healthCheckPeriod).(type) {
		case redis.Message:
			b.handleMessage(c, v.Data)
		case redis.Subscription:
			// subscribe/unsubscribe acks
		case error:
			if e, ok := v.(interface{ Timeout() bool }); ok && e.Timeout() {
				if err := psc.Ping(""); err != nil {
					return err
				}
				continue
			}
			return v
		}
	}
}

func (b *RedisBridge) handleMessage(c ctx.Ctx, data []byte) {
	ev := Event{}
	if err := json.Unmarshal(data, &ev); err != nil {
		c.WithField("err", err).Warn("drop malformed bus event")
		b.met.BumpSum("receive.malformed", 1)
		return
	}
	if ev.Origin == b.origin {
		// our own publish came back around
		return
	}
	b.met.BumpSum("receive", 1, "topic", string(ev.Topic))
	if err := b.deliv.Schedule(func() {
		b.inner.Publish(c, ev)
	}); err != nil {
		c.WithField("err", err).Warn("drop bus event, dispatch pool closed")
	}
}
