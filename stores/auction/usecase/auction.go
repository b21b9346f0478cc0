package usecase

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/auction"
	"github.com/undeadblocks/marketstate/service/bus"
)

const maxRetries = 3

var timeNow = time.Now

type auctionUsecase struct {
	repo auction.Repo
	bus  bus.Bus
}

func NewAuctionUsecase(repo auction.Repo, b bus.Bus) auction.Usecase {
	return &auctionUsecase{repo: repo, bus: b}
}

// All applies the sweep before returning: expired open auctions flip to
// CLOSED and are persisted, so every reader observes time-based expiry
// without a scheduler. The sweep emits no notification, observers calling
// All already hold the swept state and other contexts converge on their
// own next read.
func (im *auctionUsecase) All(c ctx.Ctx) ([]auction.AuctionItem, error) {
	var err error
	for i := 0; i < maxRetries; i++ {
		var items []auction.AuctionItem
		var version int64
		items, version, err = im.repo.Load(c)
		if err != nil {
			return nil, err
		}
		swept := sweep(items, domain.UnixMilli(timeNow()))
		if !swept {
			return items, nil
		}
		if err = im.repo.Save(c, items, version); err == domain.ErrConflict {
			continue
		}
		if err != nil {
			return nil, err
		}
		return items, nil
	}
	c.WithField("err", err).Error("auction sweep exhausted retries")
	return nil, err
}

func (im *auctionUsecase) Active(c ctx.Ctx) ([]auction.AuctionItem, error) {
	items, err := im.All(c)
	if err != nil {
		return nil, err
	}
	active := make([]auction.AuctionItem, 0, len(items))
	for _, it := range items {
		if it.Status == auction.StatusOpen {
			active = append(active, it)
		}
	}
	// soonest-ending first to surface urgency
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].EndTime < active[j].EndTime
	})
	return active, nil
}

func (im *auctionUsecase) Get(c ctx.Ctx, id string) (*auction.AuctionItem, error) {
	items, err := im.All(c)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].Id == id {
			return &items[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (im *auctionUsecase) Add(c ctx.Ctx, input *auction.AddAuctionInput) (*auction.AuctionItem, error) {
	item := auction.AuctionItem{
		Id:         uuid.NewString(),
		Collection: input.Collection.ToLower(),
		TokenId:    input.TokenId,
		Seller:     input.Seller.ToLower(),
		Name:       input.Name,
		Image:      input.Image,
		StartPrice: input.StartPrice,
		Currency:   input.Currency,
		EndTime:    input.EndTime,
		CreatedAt:  domain.UnixMilli(timeNow()),
		Status:     auction.StatusOpen,
		Attributes: input.Attributes,
	}

	err := im.mutate(c, func(items []auction.AuctionItem) ([]auction.AuctionItem, bool, error) {
		return append([]auction.AuctionItem{item}, items...), true, nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Bid validates against the freshest state inside the write cycle, so a
// conflict retry re-checks everything and a concurrent higher bid is never
// silently overwritten. Validation order: existence, openness, amount
// shape, floor. No partial state survives a failure.
func (im *auctionUsecase) Bid(c ctx.Ctx, id string, amount string, bidder domain.Address) (*auction.AuctionItem, error) {
	var won *auction.AuctionItem
	now := domain.UnixMilli(timeNow())

	err := im.mutate(c, func(items []auction.AuctionItem) ([]auction.AuctionItem, bool, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return nil, false, domain.ErrNotFound
		}
		it := items[idx]
		if it.Status != auction.StatusOpen || it.EndTime <= now {
			return nil, false, domain.ErrAuctionClosed
		}
		value, err := decimal.NewFromString(amount)
		if err != nil || !value.IsPositive() {
			return nil, false, domain.ErrInvalidAmount
		}
		if floor := it.Floor(); !value.GreaterThan(floor) {
			return nil, false, &auction.BidTooLowError{Min: floor}
		}

		it.CurrentBid = amount
		it.CurrentBidder = bidder.ToLower()
		it.Bids = append([]auction.Bid{{
			Bidder:   bidder.ToLower(),
			Amount:   amount,
			Currency: it.Currency,
			Time:     now,
		}}, it.Bids...)
		items[idx] = it
		won = &it
		return items, true, nil
	})
	if err != nil {
		return nil, err
	}
	return won, nil
}

// Close is one-way and idempotent: a missing or already closed id is a
// silent no-op with no notification.
func (im *auctionUsecase) Close(c ctx.Ctx, id string) error {
	return im.mutate(c, func(items []auction.AuctionItem) ([]auction.AuctionItem, bool, error) {
		idx := indexOf(items, id)
		if idx < 0 || items[idx].Status == auction.StatusClosed {
			return items, false, nil
		}
		items[idx].Status = auction.StatusClosed
		return items, true, nil
	})
}

func (im *auctionUsecase) Update(c ctx.Ctx, id string, patch *auction.AuctionItemPatchable) error {
	return im.mutate(c, func(items []auction.AuctionItem) ([]auction.AuctionItem, bool, error) {
		idx := indexOf(items, id)
		if idx < 0 {
			return items, false, nil
		}
		if patch.Name != nil {
			items[idx].Name = *patch.Name
		}
		if patch.Image != nil {
			items[idx].Image = *patch.Image
		}
		if patch.EndTime != nil {
			items[idx].EndTime = *patch.EndTime
		}
		return items, true, nil
	})
}

func (im *auctionUsecase) Remove(c ctx.Ctx, id string) error {
	return im.mutate(c, func(items []auction.AuctionItem) ([]auction.AuctionItem, bool, error) {
		kept := make([]auction.AuctionItem, 0, len(items))
		for _, it := range items {
			if it.Id != id {
				kept = append(kept, it)
			}
		}
		return kept, true, nil
	})
}

func (im *auctionUsecase) Clear(c ctx.Ctx) error {
	return im.mutate(c, func([]auction.AuctionItem) ([]auction.AuctionItem, bool, error) {
		return []auction.AuctionItem{}, true, nil
	})
}

// mutate runs a read-modify-write cycle. fn reports whether anything
// changed; unchanged cycles skip both the save and the notification.
// Validation errors from fn abort with no write at all.
func (im *auctionUsecase) mutate(c ctx.Ctx, fn func([]auction.AuctionItem) ([]auction.AuctionItem, bool, error)) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		var items []auction.AuctionItem
		var version int64
		items, version, err = im.repo.Load(c)
		if err != nil {
			return err
		}
		next, changed, ferr := fn(items)
		if ferr != nil {
			return ferr
		}
		if !changed {
			return nil
		}
		if err = im.repo.Save(c, next, version); err == domain.ErrConflict {
			continue
		}
		if err != nil {
			return err
		}
		im.bus.Publish(c, bus.Event{Topic: bus.TopicAuctions, Key: auction.StorageKey})
		return nil
	}
	c.WithFields(log.Fields{"err": err, "key": auction.StorageKey}).Error("auction mutation exhausted retries")
	return err
}

func sweep(items []auction.AuctionItem, now int64) bool {
	changed := false
	for i := range items {
		if items[i].Status == auction.StatusOpen && items[i].EndTime <= now {
			items[i].Status = auction.StatusClosed
			changed = true
		}
	}
	return changed
}

func indexOf(items []auction.AuctionItem, id string) int {
	for i := range items {
		if items[i].Id == id {
			return i
		}
	}
	return -1
}
