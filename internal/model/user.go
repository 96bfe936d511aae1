package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileType is the closed set of marketplace roles. A membership tier
// applies to exactly one profile type.
type ProfileType string

const (
	ProfileClient     ProfileType = "client"
	ProfileFreelancer ProfileType = "freelancer"
	ProfileAdviser    ProfileType = "adviser"
)

func (p ProfileType) Valid() bool {
	switch p {
	case ProfileClient, ProfileFreelancer, ProfileAdviser:
		return true
	}
	return false
}

type User struct {
	gorm.Model
	Email       string      `json:"email" gorm:"uniqueIndex;not null"`
	Password    string      `json:"-" gorm:"not null"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	ProfileType ProfileType `json:"profile_type" gorm:"type:varchar(16);not null"`

	// Subscription state, mutated only by service.MembershipService.
	CurrentMembershipID         *uuid.UUID  `json:"current_membership_id" gorm:"type:uuid"`
	CurrentMembership           *Membership `json:"-" gorm:"foreignKey:CurrentMembershipID"`
	LastMembershipDowngradeDate *time.Time  `json:"last_membership_downgrade_date" gorm:"type:date"`
	LastMembershipPaymentDate   *time.Time  `json:"last_membership_payment_date" gorm:"type:date"`

	// Opaque reference to this user's record in Stripe, created lazily.
	StripeCustomerToken string `json:"-"`

	LastRefreshToken string `json:"-" gorm:"type:text"`

	Packages []Package `json:"-"`
}

func (u *User) GetFullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = strings.ToLower(u.Email)
	return nil
}

func (u *User) GetPublicProfile() map[string]interface{} {
	return map[string]interface{}{
		"id":           u.ID,
		"email":        u.Email,
		"full_name":    u.GetFullName(),
		"profile_type": u.ProfileType,
	}
}

// Package is a service package posted by a freelancer. All of a freelancer's
// packages are deactivated when their membership is downgraded.
type Package struct {
	gorm.Model
	UserID   uint   `json:"user_id" gorm:"index;not null"`
	Title    string `json:"title" gorm:"not null"`
	IsActive bool   `json:"is_active" gorm:"default:true"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}
