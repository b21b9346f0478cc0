package auction

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
)

// StorageKey is the persisted-state key this store owns.
const StorageKey = "auction_items_v1"

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Trait mirrors token metadata attributes surfaced by the attributes modal
type Trait struct {
	TraitType   string      `json:"trait_type,omitempty"`
	Value       interface{} `json:"value,omitempty"`
	DisplayType string      `json:"display_type,omitempty"`
}

// Bid is one entry of an auction's bid history, newest first
type Bid struct {
	Bidder   domain.Address `json:"bidder"`
	Amount   string         `json:"amount"`
	Currency string         `json:"currency"`
	Time     int64          `json:"time"`
}

// AuctionItem is a time-boxed competitive-bid sale. Status only ever moves
// OPEN -> CLOSED, by explicit close or once EndTime passes.
type AuctionItem struct {
	Id            string         `json:"id"`
	Collection    domain.Address `json:"collection"`
	TokenId       domain.TokenId `json:"tokenId"`
	Seller        domain.Address `json:"seller"`
	Name          string         `json:"name"`
	Image         string         `json:"image"`
	StartPrice    string         `json:"startPrice"`
	Currency      string         `json:"currency"`
	EndTime       int64          `json:"endTime"`
	CreatedAt     int64          `json:"createdAt"`
	Status        Status         `json:"status"`
	CurrentBid    string         `json:"currentBid,omitempty"`
	CurrentBidder domain.Address `json:"currentBidder,omitempty"`

	// optional extension fields kept across schema revisions
	Attributes []Trait `json:"attributes,omitempty"`
	Bids       []Bid   `json:"bids,omitempty"`
}

func (a *AuctionItem) LowerCase() {
	a.Collection = a.Collection.ToLower()
	a.Seller = a.Seller.ToLower()
	a.CurrentBidder = a.CurrentBidder.ToLower()
}

// Floor is the exclusive minimum the next bid must exceed: the greater of
// the current bid and the start price, zero when neither parses.
func (a *AuctionItem) Floor() decimal.Decimal {
	floor := decimal.Zero
	if v, err := decimal.NewFromString(a.StartPrice); err == nil && v.GreaterThan(floor) {
		floor = v
	}
	if v, err := decimal.NewFromString(a.CurrentBid); err == nil && v.GreaterThan(floor) {
		floor = v
	}
	return floor
}

// AddAuctionInput carries the caller-supplied fields of a new auction.
// Id, CreatedAt and Status are assigned by the store.
type AddAuctionInput struct {
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	Seller     domain.Address `json:"seller"`
	Name       string         `json:"name"`
	Image      string         `json:"image"`
	StartPrice string         `json:"startPrice"`
	Currency   string         `json:"currency"`
	EndTime    int64          `json:"endTime"`
	Attributes []Trait        `json:"attributes,omitempty"`
}

// AuctionItemPatchable is the generic patch surface of Update
type AuctionItemPatchable struct {
	Name    *string `json:"name,omitempty"`
	Image   *string `json:"image,omitempty"`
	EndTime *int64  `json:"endTime,omitempty"`
}

// BidTooLowError reports a bid at or below the floor, carrying the value
// the bid must exceed.
type BidTooLowError struct {
	Min decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low, must exceed %s", e.Min.String())
}

// Repo owns the serialized collection under StorageKey
type Repo interface {
	Load(c ctx.Ctx) ([]AuctionItem, int64, error)
	Save(c ctx.Ctx, items []AuctionItem, version int64) error
}

type Usecase interface {
	// All sweeps expired open auctions to CLOSED before returning, so
	// every read path observes time-based transitions without a scheduler.
	All(c ctx.Ctx) ([]AuctionItem, error)
	// Active is All filtered to OPEN, soonest-ending first
	Active(c ctx.Ctx) ([]AuctionItem, error)
	Get(c ctx.Ctx, id string) (*AuctionItem, error)
	Add(c ctx.Ctx, input *AddAuctionInput) (*AuctionItem, error)
	Bid(c ctx.Ctx, id string, amount string, bidder domain.Address) (*AuctionItem, error)
	// Close is idempotent: closing a missing or already closed auction
	// changes nothing and emits no notification
	Close(c ctx.Ctx, id string) error
	Update(c ctx.Ctx, id string, patch *AuctionItemPatchable) error
	Remove(c ctx.Ctx, id string) error
	Clear(c ctx.Ctx) error
}
