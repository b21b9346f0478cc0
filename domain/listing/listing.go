package listing

import (
	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
)

// StorageKey is the persisted-state key this store owns.
const StorageKey = "market_listings_v1"

// ListingItem is a standing offer to sell one token at a fixed price.
// The caller forms the whole item, id included; the store never rewrites
// a listing after Add, it only removes it.
type ListingItem struct {
	Id         string         `json:"id"`
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	Seller     domain.Address `json:"seller"`
	Name       string         `json:"name"`
	Image      string         `json:"image"`
	Price      string         `json:"price"`
	Currency   string         `json:"currency"`
	CreatedAt  int64          `json:"createdAt"`
}

func (l *ListingItem) LowerCase() {
	l.Collection = l.Collection.ToLower()
	l.Seller = l.Seller.ToLower()
}

// Repo owns the serialized collection under StorageKey
type Repo interface {
	// Load returns the stored items, newest first, plus the version token
	// required to Save. A corrupt payload degrades to an empty collection.
	Load(c ctx.Ctx) ([]ListingItem, int64, error)
	Save(c ctx.Ctx, items []ListingItem, version int64) error
}

type Usecase interface {
	All(c ctx.Ctx) ([]ListingItem, error)
	Add(c ctx.Ctx, item *ListingItem) error
	// Remove filters out the matching id. A miss is still persisted and
	// notified, so removal is idempotent from the caller's view.
	Remove(c ctx.Ctx, id string) error
	Clear(c ctx.Ctx) error
}
