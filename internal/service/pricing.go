package service

import (
	"talentmarket_backend/internal/model"
	"talentmarket_backend/pkg/money"
)

// PriceDetail is the full breakdown of a project posting price. Every figure
// is already rounded to two decimals, half up.
type PriceDetail struct {
	ProjectPrice   money.Money `json:"project_price"`
	ConciergePrice money.Money `json:"concierge_price"`
	VatPrice       money.Money `json:"vat_price"`
	StripeFee      money.Money `json:"stripe_fee"`
}

func (d PriceDetail) Total() money.Money {
	return d.ProjectPrice.Add(d.ConciergePrice).Add(d.VatPrice).Add(d.StripeFee)
}

// ProjectPriceDetail computes the posting price breakdown for a membership
// under the given fee schedule. Pure: no database reads, no remote calls.
// The schedule is passed in explicitly rather than read from ambient state.
func ProjectPriceDetail(m *model.Membership, fees model.PaymentFee, hasConciergeService, addStripeFee bool) PriceDetail {
	projectPrice := money.Zero
	if fees.ProjectPostingPrice != nil {
		projectPrice = *fees.ProjectPostingPrice
	}

	conciergePrice := money.Zero
	if hasConciergeService && m.ConciergePrice != nil {
		conciergePrice = *m.ConciergePrice
	}

	subtotal := projectPrice.Add(conciergePrice)

	vatPrice := subtotal.PercentOf(fees.TaxPercentage)

	stripeFee := money.Zero
	if addStripeFee {
		stripeFee = subtotal.PercentOf(fees.StripePercentage)
	}

	return PriceDetail{
		ProjectPrice:   projectPrice.Round2(),
		ConciergePrice: conciergePrice.Round2(),
		VatPrice:       vatPrice.Round2(),
		StripeFee:      stripeFee.Round2(),
	}
}

// ProjectPostingPrice is the sum of all four breakdown components.
func ProjectPostingPrice(m *model.Membership, fees model.PaymentFee, hasConciergeService, addStripeFee bool) money.Money {
	return ProjectPriceDetail(m, fees, hasConciergeService, addStripeFee).Total()
}
