package repository

import (
	"encoding/json"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/domain/auction"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

const currentSchema = 1

type envelope struct {
	Schema int                   `json:"schema"`
	Items  []auction.AuctionItem `json:"items"`
}

// legacyItem is the schema-0 shape: a boolean closed flag instead of the
// status enum, persisted as a bare array
type legacyItem struct {
	auction.AuctionItem
	Closed bool `json:"closed,omitempty"`
}

type auctionImpl struct {
	kv keyvalue.Store
}

func NewAuction(kv keyvalue.Store) auction.Repo {
	return &auctionImpl{kv}
}

func (im *auctionImpl) Load(c ctx.Ctx) ([]auction.AuctionItem, int64, error) {
	entry, err := im.kv.Get(c, auction.StorageKey)
	if err == keyvalue.ErrNotFound {
		return []auction.AuctionItem{}, 0, nil
	}
	if err != nil {
		c.WithField("err", err).Error("keyvalue.Get failed")
		return nil, 0, err
	}
	return decode(c, entry.Value), entry.Version, nil
}

func (im *auctionImpl) Save(c ctx.Ctx, items []auction.AuctionItem, version int64) error {
	data, err := json.Marshal(envelope{Schema: currentSchema, Items: items})
	if err != nil {
		c.WithField("err", err).Error("marshal auctions failed")
		return err
	}
	if _, err := im.kv.Put(c, auction.StorageKey, data, version); err != nil {
		return err
	}
	return nil
}

func decode(c ctx.Ctx, data []byte) []auction.AuctionItem {
	env := envelope{}
	if err := json.Unmarshal(data, &env); err == nil && env.Schema >= 1 {
		if env.Items == nil {
			return []auction.AuctionItem{}
		}
		return env.Items
	}

	legacy := []legacyItem{}
	if err := json.Unmarshal(data, &legacy); err != nil {
		c.WithFields(log.Fields{"err": err, "key": auction.StorageKey}).Warn("corrupt auction payload, treating as empty")
		return []auction.AuctionItem{}
	}
	return migrate(legacy)
}

// migrate maps the schema-0 closed flag onto the status enum; the next
// save writes the current schema back.
func migrate(legacy []legacyItem) []auction.AuctionItem {
	items := make([]auction.AuctionItem, 0, len(legacy))
	for _, li := range legacy {
		it := li.AuctionItem
		if it.Status == "" {
			if li.Closed {
				it.Status = auction.StatusClosed
			} else {
				it.Status = auction.StatusOpen
			}
		}
		items = append(items, it)
	}
	return items
}
