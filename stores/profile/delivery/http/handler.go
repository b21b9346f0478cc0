package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/base/delivery"
	"github.com/undeadblocks/marketstate/base/validator"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/kpi"
	"github.com/undeadblocks/marketstate/domain/profile"
)

type handler struct {
	profile profile.Usecase
	kpi     kpi.Usecase
}

func New(e *echo.Echo, profileUC profile.Usecase, kpiUC kpi.Usecase) {
	h := &handler{profileUC, kpiUC}

	gs := e.Group("/accounts")

	gs.GET("/:address/profile", h.GetProfile)
	gs.GET("/:address/kpis", h.GetKpis)
}

func (h *handler) GetProfile(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := domain.Address(c.Param("address"))
	if !validator.IsValidAddress(string(address)) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAddress)
	}

	p, err := h.profile.Get(ctx, address)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, p)
}

func (h *handler) GetKpis(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	address := domain.Address(c.Param("address"))
	if !validator.IsValidAddress(string(address)) {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrInvalidAddress)
	}

	kpis, err := h.kpi.ForAddress(ctx, address)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, kpis)
}
