package profile

import (
	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/auction"
)

// StorageKey holds the whole address -> UserProfile map.
const StorageKey = "market_user_profiles_v1"

type ListingStatus string

const (
	ListingStatusListed  ListingStatus = "LISTED"
	ListingStatusRemoved ListingStatus = "REMOVED"
	ListingStatusSold    ListingStatus = "SOLD"
)

// ListingRecord tracks one authored listing through its lifecycle
type ListingRecord struct {
	Id         string         `json:"id"`
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	Name       string         `json:"name"`
	Image      string         `json:"image"`
	Price      string         `json:"price,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	CreatedAt  int64          `json:"createdAt"`
	Seller     domain.Address `json:"seller"`
	Status     ListingStatus  `json:"status"`
	UpdatedAt  int64          `json:"updatedAt"`
	Buyer      domain.Address `json:"buyer,omitempty"`
}

// PurchaseRecord is a completed buy from the buyer's side
type PurchaseRecord struct {
	Id          string         `json:"id"`
	Collection  domain.Address `json:"collection"`
	TokenId     domain.TokenId `json:"tokenId"`
	Name        string         `json:"name"`
	Image       string         `json:"image"`
	Price       string         `json:"price,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	CreatedAt   int64          `json:"createdAt"`
	PurchasedAt int64          `json:"purchasedAt"`
	Seller      domain.Address `json:"seller"`
	Buyer       domain.Address `json:"buyer"`
}

// AuctionSnapshot is an authored auction plus its closing outcome
type AuctionSnapshot struct {
	Id         string         `json:"id"`
	Collection domain.Address `json:"collection"`
	TokenId    domain.TokenId `json:"tokenId"`
	Name       string         `json:"name"`
	Image      string         `json:"image"`
	StartPrice string         `json:"startPrice"`
	Currency   string         `json:"currency"`
	EndTime    int64          `json:"endTime"`
	CreatedAt  int64          `json:"createdAt"`
	Status     auction.Status `json:"status"`
	Winner     domain.Address `json:"winner,omitempty"`
	FinalBid   string         `json:"finalBid,omitempty"`
	Seller     domain.Address `json:"seller"`
}

// AuctionClosePatch carries the closing outcome merged into a snapshot.
// Status is forced to CLOSED regardless of the patch.
type AuctionClosePatch struct {
	Winner   *domain.Address `json:"winner,omitempty"`
	FinalBid *string         `json:"finalBid,omitempty"`
	EndTime  *int64          `json:"endTime,omitempty"`
}

// BidRecord is one bid placed by this user
type BidRecord struct {
	AuctionId string         `json:"auctionId"`
	Amount    string         `json:"amount"`
	Time      int64          `json:"time"`
	Bidder    domain.Address `json:"bidder"`
	Name      string         `json:"name,omitempty"`
	Currency  string         `json:"currency,omitempty"`
}

// UserProfile is the per-address secondary index of marketplace activity.
// It is maintained by explicit dual-writes from the action handlers, not
// derived from the listing or auction stores.
type UserProfile struct {
	Address   domain.Address    `json:"address"`
	Listings  []ListingRecord   `json:"listings"`
	Purchases []PurchaseRecord  `json:"purchases"`
	Auctions  []AuctionSnapshot `json:"auctions"`
	Bids      []BidRecord       `json:"bids"`
}

func NewUserProfile(address domain.Address) *UserProfile {
	return &UserProfile{
		Address:   address.ToLower(),
		Listings:  []ListingRecord{},
		Purchases: []PurchaseRecord{},
		Auctions:  []AuctionSnapshot{},
		Bids:      []BidRecord{},
	}
}

// Repo owns the serialized profile map under StorageKey
type Repo interface {
	LoadAll(c ctx.Ctx) (map[string]*UserProfile, int64, error)
	SaveAll(c ctx.Ctx, profiles map[string]*UserProfile, version int64) error
}

type Usecase interface {
	// Get lazily creates and persists an empty profile on first access
	Get(c ctx.Ctx, address domain.Address) (*UserProfile, error)
	AddListing(c ctx.Ctx, seller domain.Address, rec *ListingRecord) error
	MarkListingRemoved(c ctx.Ctx, seller domain.Address, listingId string, when int64) error
	MarkListingSold(c ctx.Ctx, seller domain.Address, listingId string, buyer domain.Address, when int64) error
	AddPurchase(c ctx.Ctx, buyer domain.Address, rec *PurchaseRecord) error
	AddAuction(c ctx.Ctx, seller domain.Address, snapshot *AuctionSnapshot) error
	CloseAuction(c ctx.Ctx, seller domain.Address, auctionId string, patch *AuctionClosePatch) error
	AddBid(c ctx.Ctx, bidder domain.Address, rec *BidRecord) error
}
