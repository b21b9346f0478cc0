package kpi

import (
	"github.com/shopspring/decimal"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
)

// CurrencyTotal is revenue summed over one currency symbol
type CurrencyTotal struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
}

// SalesKpis is a pure projection over a profile snapshot, recomputed on
// demand and never persisted.
type SalesKpis struct {
	TotalSalesCount  int             `json:"totalSalesCount"`
	TotalsByCurrency []CurrencyTotal `json:"totalsByCurrency"`
	UniqueBuyers     int             `json:"uniqueBuyers"`
	TopCollection    domain.Address  `json:"topCollection,omitempty"`
}

type Usecase interface {
	// ForAddress loads the address's profile and computes its sales KPIs
	ForAddress(c ctx.Ctx, address domain.Address) (*SalesKpis, error)
}
