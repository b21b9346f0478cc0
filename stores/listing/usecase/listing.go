package usecase

import (
	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/listing"
	"github.com/undeadblocks/marketstate/service/bus"
)

// maxRetries bounds optimistic-conflict retries of a read-modify-write
const maxRetries = 3

type listingUsecase struct {
	repo listing.Repo
	bus  bus.Bus
}

func NewListingUsecase(repo listing.Repo, b bus.Bus) listing.Usecase {
	return &listingUsecase{repo: repo, bus: b}
}

func (im *listingUsecase) All(c ctx.Ctx) ([]listing.ListingItem, error) {
	items, _, err := im.repo.Load(c)
	return items, err
}

func (im *listingUsecase) Add(c ctx.Ctx, item *listing.ListingItem) error {
	item.LowerCase()
	return im.mutate(c, func(items []listing.ListingItem) []listing.ListingItem {
		// newest first
		return append([]listing.ListingItem{*item}, items...)
	})
}

func (im *listingUsecase) Remove(c ctx.Ctx, id string) error {
	return im.mutate(c, func(items []listing.ListingItem) []listing.ListingItem {
		kept := make([]listing.ListingItem, 0, len(items))
		for _, it := range items {
			if it.Id != id {
				kept = append(kept, it)
			}
		}
		return kept
	})
}

func (im *listingUsecase) Clear(c ctx.Ctx) error {
	return im.mutate(c, func([]listing.ListingItem) []listing.ListingItem {
		return []listing.ListingItem{}
	})
}

// mutate runs a read-modify-write cycle, retrying when another writer won
// the version race, then notifies observers.
func (im *listingUsecase) mutate(c ctx.Ctx, fn func([]listing.ListingItem) []listing.ListingItem) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		var items []listing.ListingItem
		var version int64
		items, version, err = im.repo.Load(c)
		if err != nil {
			return err
		}
		if err = im.repo.Save(c, fn(items), version); err == domain.ErrConflict {
			continue
		}
		if err != nil {
			return err
		}
		im.bus.Publish(c, bus.Event{Topic: bus.TopicListings, Key: listing.StorageKey})
		return nil
	}
	c.WithFields(log.Fields{"err": err, "key": listing.StorageKey}).Error("listing mutation exhausted retries")
	return err
}
