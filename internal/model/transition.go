package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransitionStatus string

// Lifecycle of a tier change. A transition is written as "initiated" before
// any call to the payment gateway so that a crash or failed commit after the
// remote subscription was created leaves a visible trail for reconciliation.
const (
	TransitionInitiated       TransitionStatus = "initiated"
	TransitionRemoteConfirmed TransitionStatus = "remote_confirmed"
	TransitionCommitted       TransitionStatus = "committed"
	TransitionFailed          TransitionStatus = "failed"
)

type MembershipTransition struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID       uint             `json:"user_id" gorm:"index;not null"`
	MembershipID uuid.UUID        `json:"membership_id" gorm:"type:uuid;not null"`
	Status       TransitionStatus `json:"status" gorm:"type:varchar(20);not null;index"`

	StripePlanID         *string `json:"stripe_plan_id" gorm:"size:64"`
	StripeSubscriptionID *string `json:"stripe_subscription_id" gorm:"size:64"`

	Metadata datatypes.JSON `json:"metadata"`

	User       User       `json:"-" gorm:"foreignKey:UserID"`
	Membership Membership `json:"-" gorm:"foreignKey:MembershipID"`
}

func (t *MembershipTransition) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
