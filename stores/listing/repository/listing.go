package repository

import (
	"encoding/json"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/log"
	"github.com/undeadblocks/marketstate/domain/listing"
	"github.com/undeadblocks/marketstate/service/keyvalue"
)

const currentSchema = 1

type envelope struct {
	Schema int                   `json:"schema"`
	Items  []listing.ListingItem `json:"items"`
}

type listingImpl struct {
	kv keyvalue.Store
}

func NewListing(kv keyvalue.Store) listing.Repo {
	return &listingImpl{kv}
}

func (im *listingImpl) Load(c ctx.Ctx) ([]listing.ListingItem, int64, error) {
	entry, err := im.kv.Get(c, listing.StorageKey)
	if err == keyvalue.ErrNotFound {
		return []listing.ListingItem{}, 0, nil
	}
	if err != nil {
		c.WithField("err", err).Error("keyvalue.Get failed")
		return nil, 0, err
	}
	return decode(c, entry.Value), entry.Version, nil
}

func (im *listingImpl) Save(c ctx.Ctx, items []listing.ListingItem, version int64) error {
	data, err := json.Marshal(envelope{Schema: currentSchema, Items: items})
	if err != nil {
		c.WithField("err", err).Error("marshal listings failed")
		return err
	}
	if _, err := im.kv.Put(c, listing.StorageKey, data, version); err != nil {
		return err
	}
	return nil
}

// decode recovers from any corrupt payload by treating it as empty; the
// store stays available and the next save overwrites the bad data.
func decode(c ctx.Ctx, data []byte) []listing.ListingItem {
	env := envelope{}
	if err := json.Unmarshal(data, &env); err == nil && env.Schema >= 1 {
		if env.Items == nil {
			return []listing.ListingItem{}
		}
		return env.Items
	}

	// schema 0 persisted the bare array
	items := []listing.ListingItem{}
	if err := json.Unmarshal(data, &items); err != nil {
		c.WithFields(log.Fields{"err": err, "key": listing.StorageKey}).Warn("corrupt listing payload, treating as empty")
		return []listing.ListingItem{}
	}
	return items
}
