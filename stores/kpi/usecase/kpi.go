package usecase

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/undeadblocks/marketstate/base/ctx"
	"github.com/undeadblocks/marketstate/domain"
	"github.com/undeadblocks/marketstate/domain/kpi"
	"github.com/undeadblocks/marketstate/domain/profile"
)

type kpiUsecase struct {
	profile profile.Usecase
}

func NewKpiUsecase(p profile.Usecase) kpi.Usecase {
	return &kpiUsecase{profile: p}
}

func (im *kpiUsecase) ForAddress(c ctx.Ctx, address domain.Address) (*kpi.SalesKpis, error) {
	p, err := im.profile.Get(c, address)
	if err != nil {
		return nil, err
	}
	return ComputeSalesKpis(p), nil
}

// ComputeSalesKpis aggregates the SOLD listings of one profile snapshot.
// Pure, no side effects. Accumulation keys are case-normalized: currency
// upper, collection and buyer lower. An unparsable price contributes zero
// but the sale still counts. Accumulators track insertion order so the
// top-collection tie-break is first-to-reach-max, deterministically.
func ComputeSalesKpis(p *profile.UserProfile) *kpi.SalesKpis {
	buyers := map[string]struct{}{}
	perCurrency := map[string]decimal.Decimal{}
	currencyOrder := []string{}
	perCollection := map[string]decimal.Decimal{}
	collectionOrder := []string{}
	count := 0

	for _, l := range p.Listings {
		if l.Status != profile.ListingStatusSold {
			continue
		}
		count++
		if !l.Buyer.IsEmpty() {
			buyers[l.Buyer.ToLowerStr()] = struct{}{}
		}

		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			price = decimal.Zero
		}

		cur := strings.ToUpper(l.Currency)
		if _, ok := perCurrency[cur]; !ok {
			currencyOrder = append(currencyOrder, cur)
		}
		perCurrency[cur] = perCurrency[cur].Add(price)

		col := l.Collection.ToLowerStr()
		if _, ok := perCollection[col]; !ok {
			collectionOrder = append(collectionOrder, col)
		}
		perCollection[col] = perCollection[col].Add(price)
	}

	totals := make([]kpi.CurrencyTotal, 0, len(currencyOrder))
	for _, cur := range currencyOrder {
		if cur == "" {
			continue
		}
		totals = append(totals, kpi.CurrencyTotal{Currency: cur, Total: perCurrency[cur]})
	}

	top := domain.Address("")
	var max decimal.Decimal
	for i, col := range collectionOrder {
		if i == 0 || perCollection[col].GreaterThan(max) {
			max = perCollection[col]
			top = domain.Address(col)
		}
	}

	return &kpi.SalesKpis{
		TotalSalesCount:  count,
		TotalsByCurrency: totals,
		UniqueBuyers:     len(buyers),
		TopCollection:    top,
	}
}
