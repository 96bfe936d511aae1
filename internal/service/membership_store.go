package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"talentmarket_backend/internal/model"
)

// membershipStore is the persistence seam of the state machine. Production
// uses the gorm implementation; tests drive Subscribe against an in-memory
// one.
type membershipStore interface {
	// RefreshUser re-reads the user's subscription fields from storage so
	// classification never runs against a stale caller snapshot.
	RefreshUser(user *model.User) error
	CreateTransition(t *model.MembershipTransition) error
	MarkTransitionRemoteConfirmed(id uuid.UUID, planID, subscriptionID string) error
	MarkTransitionFailed(id uuid.UUID, metadata datatypes.JSON) error
	SaveCustomerToken(userID uint, token string) error
	// CommitSubscription applies the user update, the optional package
	// deactivation, the ledger append and the transition commit atomically.
	CommitSubscription(c subscriptionCommit) error
	LatestRemoteHistory(userID uint) (*model.MembershipHistory, error)
	ListHistory(userID uint) ([]model.MembershipHistory, error)
}

type subscriptionCommit struct {
	UserID             uint
	MembershipID       uuid.UUID
	TransitionID       uuid.UUID
	DowngradeDate      *time.Time
	DeactivatePackages bool
	History            *model.MembershipHistory
}

type gormMembershipStore struct {
	db *gorm.DB
}

func (s *gormMembershipStore) RefreshUser(user *model.User) error {
	var fresh model.User
	if err := s.db.Preload("CurrentMembership").First(&fresh, user.ID).Error; err != nil {
		return err
	}
	user.CurrentMembershipID = fresh.CurrentMembershipID
	user.CurrentMembership = fresh.CurrentMembership
	user.LastMembershipDowngradeDate = fresh.LastMembershipDowngradeDate
	user.LastMembershipPaymentDate = fresh.LastMembershipPaymentDate
	user.StripeCustomerToken = fresh.StripeCustomerToken
	return nil
}

func (s *gormMembershipStore) CreateTransition(t *model.MembershipTransition) error {
	return s.db.Create(t).Error
}

func (s *gormMembershipStore) MarkTransitionRemoteConfirmed(id uuid.UUID, planID, subscriptionID string) error {
	return s.db.Model(&model.MembershipTransition{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 model.TransitionRemoteConfirmed,
			"stripe_plan_id":         planID,
			"stripe_subscription_id": subscriptionID,
		}).Error
}

func (s *gormMembershipStore) MarkTransitionFailed(id uuid.UUID, metadata datatypes.JSON) error {
	return s.db.Model(&model.MembershipTransition{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   model.TransitionFailed,
			"metadata": metadata,
		}).Error
}

func (s *gormMembershipStore) SaveCustomerToken(userID uint, token string) error {
	return s.db.Model(&model.User{}).Where("id = ?", userID).
		Update("stripe_customer_token", token).Error
}

func (s *gormMembershipStore) CommitSubscription(c subscriptionCommit) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"current_membership_id": c.MembershipID}
		if c.DowngradeDate != nil {
			updates["last_membership_downgrade_date"] = *c.DowngradeDate
		}
		if err := tx.Model(&model.User{}).Where("id = ?", c.UserID).Updates(updates).Error; err != nil {
			return err
		}
		if c.DeactivatePackages {
			if err := tx.Model(&model.Package{}).Where("user_id = ?", c.UserID).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(c.History).Error; err != nil {
			return err
		}
		return tx.Model(&model.MembershipTransition{}).Where("id = ?", c.TransitionID).
			Update("status", model.TransitionCommitted).Error
	})
}

func (s *gormMembershipStore) LatestRemoteHistory(userID uint) (*model.MembershipHistory, error) {
	var last model.MembershipHistory
	err := s.db.Where("user_id = ? AND stripe_subscription_id IS NOT NULL", userID).
		Order("created_at DESC").First(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &last, nil
}

func (s *gormMembershipStore) ListHistory(userID uint) ([]model.MembershipHistory, error) {
	var entries []model.MembershipHistory
	err := s.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&entries).Error
	return entries, err
}
