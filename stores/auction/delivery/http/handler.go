package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/delivery"
	"github.com/undeadblocks/marketstate/base/validator"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/auction"
	"github.com/undeadblocks/marketstate/domain/profile"
)

type handler struct {
	auction auction.Usecase
	profile profile.Usecase
}

func New(e *echo.Echo, auctionUC auction.Usecase, profileUC profile.Usecase) {
	h := &handler{auctionUC, profileUC}

	gs := e.Group("/auctions")

	gs.GET("", h.GetAuctions)
	gs.GET("/active", h.GetActiveAuctions)
	gs.GET("/:id", h.GetAuction)
	gs.POST("", h.CreateAuction)
	gs.POST("/:id/bids", h.PlaceBid)
	gs.POST("/:id/close", h.CloseAuction)
	gs.PATCH("/:id", h.UpdateAuction)
	gs.DELETE("/:id", h.RemoveAuction)
	gs.DELETE("", h.ClearAuctions)
}

func (h *handler) GetAuctions(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	items, err := h.auction.All(ctx)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, items)
}

func (h *handler) GetActiveAuctions(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	items, err := h.auction.Active(ctx)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, items)
}

func (h *handler) GetAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	item, err := h.auction.Get(ctx, c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return delivery.MakeJsonResp(c, http.StatusNotFound, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, item)
}

func (h *handler) CreateAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	p := auction.AddAuctionInput{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	if !validator.IsValidAddress(string(p.Seller)) || p.EndTime <= domain.UnixMilli(time.Now()) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	item, err := h.auction.Add(ctx, &p)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	if err := h.profile.AddAuction(ctx, item.Seller, &profile.AuctionSnapshot{
		Id:         item.Id,
		Collection: item.Collection,
		TokenId:    item.TokenId,
		Name:       item.Name,
		Image:      item.Image,
		StartPrice: item.StartPrice,
		Currency:   item.Currency,
		EndTime:    item.EndTime,
		CreatedAt:  item.CreatedAt,
		Status:     item.Status,
		Seller:     item.Seller,
	}); err != nil {
		ctx.WithField("err", err).Error("profile.AddAuction failed")
	}

	return delivery.MakeJsonResp(c, http.StatusCreated, item)
}

func (h *handler) PlaceBid(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	id := c.Param("id")

	type payload struct {
		Amount string         `json:"amount"`
		Bidder domain.Address `json:"bidder"`
	}
	p := payload{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	if !validator.IsValidAddress(string(p.Bidder)) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAddress)
	}

	item, err := h.auction.Bid(ctx, id, p.Amount, p.Bidder)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	if err := h.profile.AddBid(ctx, p.Bidder, &profile.BidRecord{
		AuctionId: item.Id,
		Amount:    item.CurrentBid,
		Time:      domain.UnixMilli(time.Now()),
		Bidder:    p.Bidder.ToLower(),
		Name:      item.Name,
		Currency:  item.Currency,
	}); err != nil {
		ctx.WithField("err", err).Error("profile.AddBid failed")
	}

	return delivery.MakeJsonResp(c, http.StatusOK, item)
}

func (h *handler) CloseAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	id := c.Param("id")

	item, err := h.auction.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return delivery.MakeJsonResp(c, http.StatusNotFound, err)
	} else if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	alreadyClosed := item.Status == auction.StatusClosed

	if err := h.auction.Close(ctx, id); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}

	if !alreadyClosed {
		now := domain.UnixMilli(time.Now())
		patch := &profile.AuctionClosePatch{EndTime: &now}
		if !item.CurrentBidder.IsEmpty() {
			winner := item.CurrentBidder.ToLower()
			patch.Winner = &winner
			patch.FinalBid = &item.CurrentBid
		}
		if err := h.profile.CloseAuction(ctx, item.Seller, id, patch); err != nil {
			ctx.WithField("err", err).Error("profile.CloseAuction failed")
		}
	}

	return delivery.MakeJsonResp(c, http.StatusOK, id)
}

func (h *handler) UpdateAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)
	id := c.Param("id")

	p := auction.AuctionItemPatchable{}
	if err := c.Bind(&p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.auction.Update(ctx, id, &p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, id)
}

func (h *handler) RemoveAuction(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	if err := h.auction.Remove(ctx, c.Param("id")); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, c.Param("id"))
}

func (h *handler) ClearAuctions(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	if err := h.auction.Clear(ctx); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, "cleared")
}
