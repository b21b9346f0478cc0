package usecase

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/ptr"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/auction"
	"github.com/undeadblocks/marketstate/domain/profile"
	"github.com/undeadblocks/marketstate/service/bus"
	"github.com/undeadblocks/marketstate/service/keyvalue"
	"github.com/undeadblocks/marketstate/service/keyvalue/provider/memory"
	"github.com/undeadblocks/marketstate/stores/profile/repository"
)

const (
	mockSeller = domain.Address("0xC37C41601bc88c91b6569c701f08d37fa0f565f0")
	mockBuyer  = domain.Address("0x9A38dec0590abc8c883d72e52391090e948ddf12")
)

type profileSuite struct {
	suite.Suite

	kv     keyvalue.Store
	bus    bus.Bus
	events []bus.Event
	im     profile.Usecase
}

func TestProfileSuite(t *testing.T) {
	suite.Run(t, new(profileSuite))
}

func (s *profileSuite) SetupTest() {
	s.kv = memory.New()
	s.bus = bus.NewLocal()
	s.events = nil
	s.bus.Subscribe(bus.TopicProfiles, func(c ctx.Ctx, ev bus.Event) {
		s.events = append(s.events, ev)
	})
	s.im = NewProfileUsecase(repository.NewProfile(s.kv), s.bus)
}

func (s *profileSuite) TestGetLazilyCreatesAndPersists() {
	c := ctx.Background()
	p, err := s.im.Get(c, mockSeller)
	s.NoError(err)
	s.Equal(mockSeller.ToLower(), p.Address)
	s.Empty(p.Listings)
	s.Empty(p.Purchases)
	s.Empty(p.Auctions)
	s.Empty(p.Bids)

	// the lazy create wrote to the backing medium
	entry, err := s.kv.Get(c, profile.StorageKey)
	s.NoError(err)
	s.Equal(int64(1), entry.Version)

	// second access reuses the persisted profile
	_, err = s.im.Get(c, mockSeller)
	s.NoError(err)
	entry, err = s.kv.Get(c, profile.StorageKey)
	s.NoError(err)
	s.Equal(int64(1), entry.Version)
}

func (s *profileSuite) TestGetReplacesNullEntry() {
	c := ctx.Background()
	payload := `{"schema":1,"profiles":{"` + string(mockSeller.ToLower()) + `":null}}`
	_, err := s.kv.Put(c, profile.StorageKey, []byte(payload), 0)
	s.Require().NoError(err)

	p, err := s.im.Get(c, mockSeller)
	s.NoError(err)
	s.Require().NotNil(p)
	s.Equal(mockSeller.ToLower(), p.Address)
	s.Empty(p.Listings)
}

func (s *profileSuite) TestGetRetriesCreateOnConflict() {
	c := ctx.Background()
	repo := &contendedRepo{Repo: repository.NewProfile(s.kv)}
	repo.onSave = func() {
		// a competing writer lands an unrelated profile first
		_, err := s.kv.Put(c, profile.StorageKey,
			[]byte(`{"schema":1,"profiles":{"0x1111111111111111111111111111111111111111":{"address":"0x1111111111111111111111111111111111111111","listings":[],"purchases":[],"auctions":[],"bids":[]}}}`),
			0)
		s.Require().NoError(err)
	}
	im := NewProfileUsecase(repo, s.bus)

	p, err := im.Get(c, mockSeller)
	s.NoError(err)
	s.Equal(mockSeller.ToLower(), p.Address)

	// the retried create persisted on top of the competitor's write
	profiles, _, err := repo.LoadAll(c)
	s.NoError(err)
	s.Contains(profiles, string(mockSeller.ToLower()))
	s.Contains(profiles, "0x1111111111111111111111111111111111111111")
}

// contendedRepo injects a competing write right before the first SaveAll,
// forcing the version check to fail once.
type contendedRepo struct {
	profile.Repo
	onSave func()
}

func (r *contendedRepo) SaveAll(c ctx.Ctx, profiles map[string]*profile.UserProfile, version int64) error {
	if r.onSave != nil {
		r.onSave()
		r.onSave = nil
	}
	return r.Repo.SaveAll(c, profiles, version)
}

func (s *profileSuite) TestAddressingIsCaseInsensitive() {
	c := ctx.Background()
	s.NoError(s.im.AddListing(c, mockSeller, &profile.ListingRecord{
		Id: "l-1", Seller: mockSeller, Status: profile.ListingStatusListed,
	}))

	p, err := s.im.Get(c, mockSeller.ToLower())
	s.NoError(err)
	s.Len(p.Listings, 1)
	s.Equal(mockSeller.ToLower(), p.Listings[0].Seller)
}

func (s *profileSuite) TestListingLifecycle() {
	c := ctx.Background()
	s.NoError(s.im.AddListing(c, mockSeller, &profile.ListingRecord{
		Id: "l-1", Seller: mockSeller, Price: "1.5", Currency: "HBAR",
		Status: profile.ListingStatusListed, CreatedAt: 1700000000000,
	}))
	s.NoError(s.im.MarkListingSold(c, mockSeller, "l-1", mockBuyer, 1700000100000))

	p, err := s.im.Get(c, mockSeller)
	s.NoError(err)
	s.Equal(profile.ListingStatusSold, p.Listings[0].Status)
	s.Equal(mockBuyer.ToLower(), p.Listings[0].Buyer)
	s.Equal(int64(1700000100000), p.Listings[0].UpdatedAt)
}

func (s *profileSuite) TestMarkListingRemoved() {
	c := ctx.Background()
	s.NoError(s.im.AddListing(c, mockSeller, &profile.ListingRecord{
		Id: "l-1", Seller: mockSeller, Status: profile.ListingStatusListed,
	}))
	s.NoError(s.im.MarkListingRemoved(c, mockSeller, "l-1", 1700000200000))

	p, err := s.im.Get(c, mockSeller)
	s.NoError(err)
	s.Equal(profile.ListingStatusRemoved, p.Listings[0].Status)
}

func (s *profileSuite) TestMarkMissingListingIsSilentNoOp() {
	c := ctx.Background()
	s.NoError(s.im.MarkListingSold(c, mockSeller, "nope", mockBuyer, 1))
	s.Empty(s.events)
}

func (s *profileSuite) TestRecordsPrependNewestFirst() {
	c := ctx.Background()
	s.NoError(s.im.AddBid(c, mockBuyer, &profile.BidRecord{AuctionId: "a-1", Amount: "0.2", Bidder: mockBuyer}))
	s.NoError(s.im.AddBid(c, mockBuyer, &profile.BidRecord{AuctionId: "a-1", Amount: "0.3", Bidder: mockBuyer}))

	p, err := s.im.Get(c, mockBuyer)
	s.NoError(err)
	s.Equal("0.3", p.Bids[0].Amount)
	s.Equal("0.2", p.Bids[1].Amount)
}

func (s *profileSuite) TestCloseAuctionMergesAndForcesClosed() {
	c := ctx.Background()
	s.NoError(s.im.AddAuction(c, mockSeller, &profile.AuctionSnapshot{
		Id: "a-1", Seller: mockSeller, StartPrice: "0.1", Currency: "HBAR",
		Status: auction.StatusOpen,
	}))
	winner := mockBuyer
	s.NoError(s.im.CloseAuction(c, mockSeller, "a-1", &profile.AuctionClosePatch{
		Winner:   &winner,
		FinalBid: ptr.String("0.4"),
	}))

	p, err := s.im.Get(c, mockSeller)
	s.NoError(err)
	s.Equal(auction.StatusClosed, p.Auctions[0].Status)
	s.Equal(mockBuyer.ToLower(), p.Auctions[0].Winner)
	s.Equal("0.4", p.Auctions[0].FinalBid)
}

func (s *profileSuite) TestAddPurchase() {
	c := ctx.Background()
	s.NoError(s.im.AddPurchase(c, mockBuyer, &profile.PurchaseRecord{
		Id: "l-1", Seller: mockSeller, Buyer: mockBuyer, Price: "1.5", Currency: "HBAR",
		PurchasedAt: 1700000300000,
	}))

	p, err := s.im.Get(c, mockBuyer)
	s.NoError(err)
	s.Len(p.Purchases, 1)
	s.Equal(mockSeller.ToLower(), p.Purchases[0].Seller)
}

func (s *profileSuite) TestMutationsNotify() {
	c := ctx.Background()
	s.NoError(s.im.AddListing(c, mockSeller, &profile.ListingRecord{Id: "l-1", Seller: mockSeller}))
	s.NoError(s.im.MarkListingRemoved(c, mockSeller, "l-1", 1))

	s.Len(s.events, 2)
	s.Equal(profile.StorageKey, s.events[0].Key)
}
