package repository

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain/listing"
	"github.com/undeadblocks/marketstate/service/keyvalue"
	"github.com/undeadblocks/marketstate/service/keyvalue/provider/memory"
)

type listingRepoSuite struct {
	suite.Suite

	kv keyvalue.Store
	im listing.Repo
}

func TestListingRepoSuite(t *testing.T) {
	suite.Run(t, new(listingRepoSuite))
}

func (s *listingRepoSuite) SetupTest() {
	s.kv = memory.New()
	s.im = NewListing(s.kv)
}

func (s *listingRepoSuite) TestLoadEmpty() {
	c := ctx.Background()
	items, version, err := s.im.Load(c)
	s.NoError(err)
	s.Empty(items)
	s.Equal(int64(0), version)
}

func (s *listingRepoSuite) TestSaveLoadRoundTrip() {
	c := ctx.Background()
	items := []listing.ListingItem{
		{
			Id:         "l-1",
			Collection: "0x9a38dec0590abc8c883d72e52391090e948ddf12",
			TokenId:    "42",
			Seller:     "0xc37c41601bc88c91b6569c701f08d37fa0f565f0",
			Name:       "Zombie #42",
			Image:      "ipfs://zombie42",
			Price:      "1.5",
			Currency:   "HBAR",
			CreatedAt:  1700000000000,
		},
	}
	s.NoError(s.im.Save(c, items, 0))

	got, version, err := s.im.Load(c)
	s.NoError(err)
	s.Equal(items, got)
	s.Equal(int64(1), version)
}

func (s *listingRepoSuite) TestCorruptPayloadDegradesToEmpty() {
	c := ctx.Background()
	_, err := s.kv.Put(c, listing.StorageKey, []byte(`{"schema": oops`), 0)
	s.NoError(err)

	items, version, err := s.im.Load(c)
	s.NoError(err)
	s.Empty(items)
	// version survives so the next save still wins the key
	s.Equal(int64(1), version)
	s.NoError(s.im.Save(c, []listing.ListingItem{{Id: "l-1"}}, version))
}

func (s *listingRepoSuite) TestLegacyBareArrayDecodes() {
	c := ctx.Background()
	legacy := `[{"id":"l-9","collection":"0xabc","price":"0.3","currency":"HBAR"}]`
	_, err := s.kv.Put(c, listing.StorageKey, []byte(legacy), 0)
	s.NoError(err)

	items, _, err := s.im.Load(c)
	s.NoError(err)
	s.Len(items, 1)
	s.Equal("l-9", items[0].Id)
	s.Equal("0.3", items[0].Price)
}
