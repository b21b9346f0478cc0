package bus

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/viney-shih/goroutines"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/metrics"
)

type redisBridgeSuite struct {
	suite.Suite

	inner  Bus
	events []Event
	bridge *RedisBridge
}

func TestRedisBridgeSuite(t *testing.T) {
	suite.Run(t, new(redisBridgeSuite))
}

func (s *redisBridgeSuite) SetupTest() {
	s.inner = NewLocal()
	s.events = nil
	s.inner.Subscribe(TopicListings, func(c ctx.Ctx, ev Event) {
		s.events = append(s.events, ev)
	})
	s.bridge = &RedisBridge{
		inner:  s.inner,
		met:    metrics.New("bus"),
		origin: uuid.NewString(),
		deliv:  goroutines.NewPool(4),
		done:   make(chan struct{}),
	}
}

// drain waits for scheduled deliveries to land on the inner bus
func (s *redisBridgeSuite) drain() {
	s.bridge.deliv.Release()
}

func (s *redisBridgeSuite) TestRemoteEventReplayedLocally() {
	c := ctx.Background()
	s.bridge.handleMessage(c, []byte(`{"topic":"market:listings-changed","key":"market_listings_v1","origin":"other-process"}`))
	s.drain()

	s.Require().Len(s.events, 1)
	s.Equal(TopicListings, s.events[0].Topic)
	s.Equal("market_listings_v1", s.events[0].Key)
	s.Equal("other-process", s.events[0].Origin)
}

func (s *redisBridgeSuite) TestOwnOriginDropped() {
	c := ctx.Background()
	s.bridge.handleMessage(c, []byte(`{"topic":"market:listings-changed","key":"market_listings_v1","origin":"`+s.bridge.origin+`"}`))
	s.drain()

	s.Empty(s.events)
}

func (s *redisBridgeSuite) TestMalformedPayloadDropped() {
	c := ctx.Background()
	s.bridge.handleMessage(c, []byte(`{not json`))
	s.drain()

	s.Empty(s.events)
}

func (s *redisBridgeSuite) TestSubscribeReachesInner() {
	c := ctx.Background()
	got := 0
	s.bridge.Subscribe(TopicAuctions, func(c ctx.Ctx, ev Event) { got++ })

	s.inner.Publish(c, Event{Topic: TopicAuctions})
	s.Equal(1, got)
}
