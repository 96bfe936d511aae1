package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"talentmarket_backend/pkg/money"
)

// Membership is a catalog tier. Rows are effectively immutable after seeding
// and can never be deleted; historical ledger entries reference them forever.
type Membership struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string      `json:"name" gorm:"size:32;not null"`
	Slug        string      `json:"slug" gorm:"size:64;uniqueIndex;not null"`
	ProfileType ProfileType `json:"profile_type" gorm:"type:varchar(16);not null;index"`

	ApplicationFeePercentage           int          `json:"application_fee_percentage" gorm:"not null"`
	ConciergePrice                     *money.Money `json:"concierge_price"`
	MatchmakingFee                     money.Money  `json:"matchmaking_fee" gorm:"not null"`
	MarketingPackageDiscountPercentage *money.Money `json:"marketing_package_discount_percentage"`
	PriceMonth                         *money.Money `json:"price_month"`
	PriceAnnual                        *money.Money `json:"price_annual"`
	ProjectPrice                       *money.Money `json:"project_price"`

	StripeMonthlyProductName string `json:"stripe_monthly_product_name" gorm:"size:128"`
	StripeAnnualProductName  string `json:"stripe_annual_product_name" gorm:"size:128"`

	// IsInitial marks the free tier a new user starts on. Exactly one per
	// profile type; initial tiers never get a remote subscription.
	IsInitial bool `json:"is_initial" gorm:"not null"`
	IsActive  bool `json:"is_active" gorm:"default:true"`
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// BeforeDelete rejects deletion unconditionally. Removing a tier would orphan
// the ledger, so it is treated as a programming error.
func (m *Membership) BeforeDelete(tx *gorm.DB) error {
	return errors.New("cannot remove membership")
}

// MonthlyPrice returns the monthly price, zero when unset (initial tiers).
func (m *Membership) MonthlyPrice() money.Money {
	if m.PriceMonth == nil {
		return money.Zero
	}
	return *m.PriceMonth
}

// InitialMembershipFor returns the default tier a new user of the given
// profile type starts on.
func InitialMembershipFor(db *gorm.DB, profileType ProfileType) (*Membership, error) {
	var m Membership
	err := db.Where("profile_type = ? AND is_initial = ?", profileType, true).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MembershipHistory is the append-only ledger of tier transitions. One row
// per successful subscribe call; rows are never updated or deleted.
type MembershipHistory struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	UserID       uint      `json:"user_id" gorm:"index;not null"`
	MembershipID uuid.UUID `json:"membership_id" gorm:"type:uuid;not null"`

	// Null for downgrades and initial assignments, which never touch Stripe.
	StripeSubscriptionID *string `json:"stripe_subscription_id" gorm:"size:64"`
	StripePlanID         *string `json:"stripe_plan_id" gorm:"size:64"`

	User       User       `json:"-" gorm:"foreignKey:UserID"`
	Membership Membership `json:"-" gorm:"foreignKey:MembershipID"`
}

func (h *MembershipHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

func (h *MembershipHistory) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("membership history is immutable")
}

func (h *MembershipHistory) BeforeDelete(tx *gorm.DB) error {
	return errors.New("membership history is immutable")
}
