package usecase

import (
	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/auction"
	"github.com/undeadblocks/marketstate/domain/profile"
	"github.com/undeadblocks/marketstate/service/bus"
)

const maxRetries = 3

type profileUsecase struct {
	repo profile.Repo
	bus  bus.Bus
}

func NewProfileUsecase(repo profile.Repo, b bus.Bus) profile.Usecase {
	return &profileUsecase{repo: repo, bus: b}
}

// Get lazily creates and persists an empty profile on first access, so a
// profile page can always render something for a connected wallet.
func (im *profileUsecase) Get(c ctx.Ctx, address domain.Address) (*profile.UserProfile, error) {
	addr := address.ToLowerStr()
	var err error
	for i := 0; i < maxRetries; i++ {
		var profiles map[string]*profile.UserProfile
		var version int64
		profiles, version, err = im.repo.LoadAll(c)
		if err != nil {
			return nil, err
		}
		if p, ok := profiles[addr]; ok {
			return p, nil
		}

		p := profile.NewUserProfile(address)
		profiles[addr] = p
		if err = im.repo.SaveAll(c, profiles, version); err == domain.ErrConflict {
			// someone else persisted first, reload and take their map
			continue
		}
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	c.WithFields(log.Fields{"err": err, "key": profile.StorageKey}).Error("profile create exhausted retries")
	return nil, err
}

func (im *profileUsecase) AddListing(c ctx.Ctx, seller domain.Address, rec *profile.ListingRecord) error {
	return im.mutate(c, seller, func(p *profile.UserProfile) bool {
		r := *rec
		r.Seller = r.Seller.ToLower()
		r.Buyer = r.Buyer.ToLower()
		p.Listings = append([]profile.ListingRecord{r}, p.Listings...)
		return true
	})
}

func (im *profileUsecase) MarkListingRemoved(c ctx.Ctx, seller domain.Address, listingId string, when int64) error {
	return im.mutate(c, seller, func(p *profile.UserProfile) bool {
		for i := range p.Listings {
			if p.Listings[i].Id == listingId {
				p.Listings[i].Status = profile.ListingStatusRemoved
				p.Listings[i].UpdatedAt = when
				return true
			}
		}
		return false
	})
}

func (im *profileUsecase) MarkListingSold(c ctx.Ctx, seller domain.Address, listingId string, buyer domain.Address, when int64) error {
	return im.mutate(c, seller, func(p *profile.UserProfile) bool {
		for i := range p.Listings {
			if p.Listings[i].Id == listingId {
				p.Listings[i].Status = profile.ListingStatusSold
				p.Listings[i].UpdatedAt = when
				p.Listings[i].Buyer = buyer.ToLower()
				return true
			}
		}
		return false
	})
}

func (im *profileUsecase) AddPurchase(c ctx.Ctx, buyer domain.Address, rec *profile.PurchaseRecord) error {
	return im.mutate(c, buyer, func(p *profile.UserProfile) bool {
		r := *rec
		r.Seller = r.Seller.ToLower()
		r.Buyer = r.Buyer.ToLower()
		p.Purchases = append([]profile.PurchaseRecord{r}, p.Purchases...)
		return true
	})
}

func (im *profileUsecase) AddAuction(c ctx.Ctx, seller domain.Address, snapshot *profile.AuctionSnapshot) error {
	return im.mutate(c, seller, func(p *profile.UserProfile) bool {
		snap := *snapshot
		snap.Seller = snap.Seller.ToLower()
		snap.Winner = snap.Winner.ToLower()
		p.Auctions = append([]profile.AuctionSnapshot{snap}, p.Auctions...)
		return true
	})
}

// CloseAuction merges the closing outcome into the snapshot and forces
// CLOSED whatever the patch says.
func (im *profileUsecase) CloseAuction(c ctx.Ctx, seller domain.Address, auctionId string, patch *profile.AuctionClosePatch) error {
	return im.mutate(c, seller, func(p *profile.UserProfile) bool {
		for i := range p.Auctions {
			if p.Auctions[i].Id != auctionId {
				continue
			}
			if patch != nil {
				if patch.Winner != nil {
					p.Auctions[i].Winner = patch.Winner.ToLower()
				}
				if patch.FinalBid != nil {
					p.Auctions[i].FinalBid = *patch.FinalBid
				}
				if patch.EndTime != nil {
					p.Auctions[i].EndTime = *patch.EndTime
				}
			}
			p.Auctions[i].Status = auction.StatusClosed
			return true
		}
		return false
	})
}

func (im *profileUsecase) AddBid(c ctx.Ctx, bidder domain.Address, rec *profile.BidRecord) error {
	return im.mutate(c, bidder, func(p *profile.UserProfile) bool {
		r := *rec
		r.Bidder = r.Bidder.ToLower()
		p.Bids = append([]profile.BidRecord{r}, p.Bids...)
		return true
	})
}

// mutate loads the whole profile map, applies fn to one profile (created
// lazily), and writes the whole map back. fn reports whether it changed
// anything; a record lookup that misses is a silent no-op.
func (im *profileUsecase) mutate(c ctx.Ctx, address domain.Address, fn func(*profile.UserProfile) bool) error {
	addr := address.ToLowerStr()
	var err error
	for i := 0; i < maxRetries; i++ {
		var profiles map[string]*profile.UserProfile
		var version int64
		profiles, version, err = im.repo.LoadAll(c)
		if err != nil {
			return err
		}
		p, ok := profiles[addr]
		if !ok {
			p = profile.NewUserProfile(address)
			profiles[addr] = p
		}
		if !fn(p) {
			return nil
		}
		if err = im.repo.SaveAll(c, profiles, version); err == domain.ErrConflict {
			continue
		}
		if err != nil {
			return err
		}
		im.bus.Publish(c, bus.Event{Topic: bus.TopicProfiles, Key: profile.StorageKey})
		return nil
	}
	c.WithFields(log.Fields{"err": err, "key": profile.StorageKey}).Error("profile mutation exhausted retries")
	return err
}
