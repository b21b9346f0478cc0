package bus

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/undeadblocks/marketstate/base/ctx"
)

type busSuite struct {
	suite.Suite

	bus Bus
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(busSuite))
}

func (s *busSuite) SetupTest() {
	s.bus = NewLocal()
}

func (s *busSuite) TestDeliversBeforePublishReturns() {
	c := ctx.Background()
	got := []Event{}
	s.bus.Subscribe(TopicListings, func(c ctx.Ctx, ev Event) {
		got = append(got, ev)
	})

	s.bus.Publish(c, Event{Topic: TopicListings, Key: "market_listings_v1"})
	s.Len(got, 1)
	s.Equal("market_listings_v1", got[0].Key)
}

func (s *busSuite) TestTopicIsolation() {
	c := ctx.Background()
	listings := 0
	auctions := 0
	s.bus.Subscribe(TopicListings, func(c ctx.Ctx, ev Event) { listings++ })
	s.bus.Subscribe(TopicAuctions, func(c ctx.Ctx, ev Event) { auctions++ })

	s.bus.Publish(c, Event{Topic: TopicAuctions, Key: "auction_items_v1"})
	s.Equal(0, listings)
	s.Equal(1, auctions)
}

func (s *busSuite) TestSubscriptionOrder() {
	c := ctx.Background()
	order := []string{}
	s.bus.Subscribe(TopicProfiles, func(c ctx.Ctx, ev Event) { order = append(order, "first") })
	s.bus.Subscribe(TopicProfiles, func(c ctx.Ctx, ev Event) { order = append(order, "second") })

	s.bus.Publish(c, Event{Topic: TopicProfiles})
	s.Equal([]string{"first", "second"}, order)
}

func (s *busSuite) TestCancel() {
	c := ctx.Background()
	n := 0
	cancel := s.bus.Subscribe(TopicListings, func(c ctx.Ctx, ev Event) { n++ })

	s.bus.Publish(c, Event{Topic: TopicListings})
	cancel()
	s.bus.Publish(c, Event{Topic: TopicListings})
	s.Equal(1, n)
}
