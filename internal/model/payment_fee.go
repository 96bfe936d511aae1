package model

import (
	"gorm.io/gorm"

	"talentmarket_backend/pkg/money"
)

// PaymentFee is the fee schedule applied to project postings. The current
// row is managed externally; the pricing calculator only reads it.
type PaymentFee struct {
	gorm.Model
	ProjectPostingPrice *money.Money `json:"project_posting_price"`
	TaxPercentage       int64        `json:"tax_percentage" gorm:"not null"`
	StripePercentage    int64        `json:"stripe_percentage" gorm:"not null"`
	IsCurrent           bool         `json:"is_current" gorm:"default:true;index"`
}

// CurrentFees returns the active fee schedule, newest first.
func CurrentFees(db *gorm.DB) (*PaymentFee, error) {
	var fee PaymentFee
	err := db.Where("is_current = ?", true).Order("created_at DESC").First(&fee).Error
	if err != nil {
		return nil, err
	}
	return &fee, nil
}
