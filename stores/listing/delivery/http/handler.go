package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/delivery"
	"github.com/undeadblocks/marketstate/base/validator"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/listing"
	"github.com/undeadblocks/marketstate/domain/profile"
)

type handler struct {
	listing listing.Usecase
	profile profile.Usecase
}

// New mounts the listing endpoints. Handlers are the action layer: they
// mutate the listing store and dual-write the profile projection, the
// stores never update each other.
func New(e *echo.Echo, listingUC listing.Usecase, profileUC profile.Usecase) {
	h := &handler{listingUC, profileUC}

	gs := e.Group("/listings")

	gs.GET("", h.GetListings)
	gs.POST("", h.CreateListing)
	gs.DELETE("", h.ClearListings)
	gs.DELETE("/:id", h.RemoveListing)
	gs.POST("/:id/buy", h.BuyListing)
}

func (h *handler) GetListings(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	items, err := h.listing.All(ctx)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, items)
}

func (h *handler) CreateListing(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := listing.ListingItem{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	if p.Id == "" || !validator.IsValidAddress(string(p.Seller)) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = domain.UnixMilli(time.Now())
	}

	if err := h.listing.Add(ctx, &p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	if err := h.profile.AddListing(ctx, p.Seller, &profile.ListingRecord{
		Id:         p.Id,
		Collection: p.Collection,
		TokenId:    p.TokenId,
		Name:       p.Name,
		Image:      p.Image,
		Price:      p.Price,
		Currency:   p.Currency,
		CreatedAt:  p.CreatedAt,
		Seller:     p.Seller,
		Status:     profile.ListingStatusListed,
		UpdatedAt:  p.CreatedAt,
	}); err != nil {
		ctx.WithField("err", err).Error("profile.AddListing failed")
	}

	return delivery.MakeJsonResp(c, http.StatusCreated, p)
}

func (h *handler) RemoveListing(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	id := c.Param("id")

	item, ok, err := h.find(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	if err := h.listing.Remove(ctx, id); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	if ok {
		when := domain.UnixMilli(time.Now())
		if err := h.profile.MarkListingRemoved(ctx, item.Seller, id, when); err != nil {
			ctx.WithField("err", err).Error("profile.MarkListingRemoved failed")
		}
	}

	return delivery.MakeJsonResp(c, http.StatusOK, id)
}

func (h *handler) BuyListing(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	id := c.Param("id")

	type payload struct {
		Buyer domain.Address `json:"buyer"`
	}
	p := payload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	if !validator.IsValidAddress(string(p.Buyer)) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAddress)
	}

	item, ok, err := h.find(ctx, id)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	if !ok {
		return delivery.MakeJsonResp(c, http.StatusNotFound, domain.ErrNotFound)
	}

	// a purchase is a removal of the live listing plus the dual-write
	if err := h.listing.Remove(ctx, id); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	when := domain.UnixMilli(time.Now())
	if err := h.profile.MarkListingSold(ctx, item.Seller, id, p.Buyer, when); err != nil {
		ctx.WithField("err", err).Error("profile.MarkListingSold failed")
	}
	if err := h.profile.AddPurchase(ctx, p.Buyer, &profile.PurchaseRecord{
		Id:          item.Id,
		Collection:  item.Collection,
		TokenId:     item.TokenId,
		Name:        item.Name,
		Image:       item.Image,
		Price:       item.Price,
		Currency:    item.Currency,
		CreatedAt:   item.CreatedAt,
		PurchasedAt: when,
		Seller:      item.Seller,
		Buyer:       p.Buyer,
	}); err != nil {
		ctx.WithField("err", err).Error("profile.AddPurchase failed")
	}

	return delivery.MakeJsonResp(c, http.StatusOK, item)
}

func (h *handler) ClearListings(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	if err := h.listing.Clear(ctx); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, "cleared")
}

func (h *handler) find(c ctx.Ctx, id string) (*listing.ListingItem, bool, error) {
	items, err := h.listing.All(c)
	if err != nil {
		return nil, false, err
	}
	for i := range items {
		if items[i].Id == id {
			return &items[i], true, nil
		}
	}
	return nil, false, nil
}
