package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/pkg/payment"
)

// MembershipService owns every mutation of a user's subscription state:
// classifying a requested tier change, reconciling it with the payment
// gateway, moving the user's current-membership pointer and appending the
// history ledger.
type MembershipService struct {
	Gateway payment.Gateway

	store membershipStore
	locks keyedMutex
	now   func() time.Time
}

func NewMembershipService(db *gorm.DB, gateway payment.Gateway) *MembershipService {
	return &MembershipService{Gateway: gateway, store: &gormMembershipStore{db: db}, now: time.Now}
}

// IsDowngrade reports whether moving to target is a downgrade for this user.
// No current membership, or a current initial tier, is never a downgrade;
// moving to the initial tier always is; otherwise compare monthly prices
// strictly (equal prices are not a downgrade).
func (s *MembershipService) IsDowngrade(user *model.User, target *model.Membership) bool {
	current := user.CurrentMembership
	if current == nil || current.IsInitial {
		return false
	}
	if target.IsInitial {
		return true
	}
	return target.MonthlyPrice().LessThan(current.MonthlyPrice())
}

// CanDowngrade reports whether the user is allowed another downgrade: at
// most one per calendar month.
func (s *MembershipService) CanDowngrade(user *model.User) bool {
	return CanDowngradeAt(user, s.now())
}

// needsRemoteSubscription reports whether a transition must create a remote
// subscription. Downgrades and initial tiers never do.
func needsRemoteSubscription(downgrade bool, target *model.Membership) bool {
	return !downgrade && !target.IsInitial
}

func CanDowngradeAt(user *model.User, now time.Time) bool {
	last := user.LastMembershipDowngradeDate
	if last == nil {
		return true
	}
	return last.Year() != now.Year() || last.Month() != now.Month()
}

// Subscribe moves the user onto the target tier.
//
// The remote subscription (when one is needed) is created before the local
// commit so no database transaction spans a network call. A transition
// record is persisted as "initiated" first and advanced as the operation
// proceeds; if the final commit fails after the remote subscription exists,
// the record stays "remote_confirmed" and the reconciliation job reports it.
//
// Subscribe is not idempotent: calling it twice with the same target appends
// two ledger rows and, on the paid path, creates two remote subscriptions.
func (s *MembershipService) Subscribe(user *model.User, target *model.Membership) (*model.MembershipHistory, error) {
	if !user.ProfileType.Valid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown profile type %q", user.ProfileType)}
	}
	if target.ProfileType != user.ProfileType {
		return nil, &ValidationError{Reason: fmt.Sprintf(
			"membership %s is for %s profiles, user is %s", target.Slug, target.ProfileType, user.ProfileType)}
	}

	unlock := s.locks.Lock(user.ID)
	defer unlock()

	// The caller's snapshot may predate the lock: a request that held it
	// before us could have moved the tier already. Classification has to run
	// against the row as it is now, so re-read it unconditionally.
	if err := s.store.RefreshUser(user); err != nil {
		return nil, err
	}

	downgrade := s.IsDowngrade(user, target)
	if downgrade && !s.CanDowngrade(user) {
		return nil, ErrDowngradeThrottled
	}

	transition := &model.MembershipTransition{
		UserID:       user.ID,
		MembershipID: target.ID,
		Status:       model.TransitionInitiated,
	}
	if err := s.store.CreateTransition(transition); err != nil {
		return nil, err
	}

	var (
		stripePlanID         *string
		stripeSubscriptionID *string
		downgradeDate        *time.Time
	)

	switch {
	case downgrade:
		today := s.now().Truncate(24 * time.Hour)
		downgradeDate = &today
		// No remote cancellation happens here; see CancelRemote.

	case needsRemoteSubscription(downgrade, target):
		plan, err := s.resolvePlan(target)
		if err != nil {
			s.failTransition(transition, err)
			return nil, err
		}

		token, err := s.Gateway.GetOrCreateCustomer(user.StripeCustomerToken, user.Email, user.GetFullName())
		if err != nil {
			s.failTransition(transition, err)
			return nil, err
		}
		if token != user.StripeCustomerToken {
			// Persist the billing token right away; it is created at most
			// once per user and must survive a later failure.
			if err := s.store.SaveCustomerToken(user.ID, token); err != nil {
				s.failTransition(transition, err)
				return nil, err
			}
			user.StripeCustomerToken = token
		}

		subscriptionID, err := s.Gateway.CreateSubscription(token, plan.ID, map[string]string{
			"object_type": "membership",
			"uuid":        target.ID.String(),
		})
		if err != nil {
			s.failTransition(transition, err)
			return nil, err
		}

		stripePlanID = &plan.ID
		stripeSubscriptionID = &subscriptionID
		if err := s.store.MarkTransitionRemoteConfirmed(transition.ID, plan.ID, subscriptionID); err != nil {
			return nil, err
		}

	default:
		// First assignment to the initial tier: no remote call, nil ids.
	}

	history := &model.MembershipHistory{
		UserID:               user.ID,
		MembershipID:         target.ID,
		StripePlanID:         stripePlanID,
		StripeSubscriptionID: stripeSubscriptionID,
	}

	err := s.store.CommitSubscription(subscriptionCommit{
		UserID:             user.ID,
		MembershipID:       target.ID,
		TransitionID:       transition.ID,
		DowngradeDate:      downgradeDate,
		DeactivatePackages: downgrade && user.ProfileType == model.ProfileFreelancer,
		History:            history,
	})
	if err != nil {
		// A remote subscription may already exist. The transition record is
		// left in its last state so reconciliation can pick it up.
		return nil, err
	}

	targetID := target.ID
	user.CurrentMembershipID = &targetID
	user.CurrentMembership = target
	if downgradeDate != nil {
		user.LastMembershipDowngradeDate = downgradeDate
	}
	return history, nil
}

// CancelRemote cancels the user's most recent remote subscription. Downgrades
// do not call this yet; whether they should (and how proration works) is an
// open product decision, so it stays an explicit entry point for the caller.
func (s *MembershipService) CancelRemote(user *model.User) error {
	last, err := s.store.LatestRemoteHistory(user.ID)
	if err != nil {
		return err
	}
	if last == nil {
		return nil
	}
	return s.Gateway.CancelSubscription(*last.StripeSubscriptionID)
}

// History returns the user's ledger entries in creation order.
func (s *MembershipService) History(userID uint) ([]model.MembershipHistory, error) {
	return s.store.ListHistory(userID)
}

// resolvePlan finds the remote plan whose name matches the tier's monthly
// product name. Missing plans are a configuration error, never created
// implicitly.
func (s *MembershipService) resolvePlan(m *model.Membership) (*payment.Plan, error) {
	plans, err := s.Gateway.ListPlans()
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].Name == m.StripeMonthlyProductName {
			return &plans[i], nil
		}
	}
	return nil, &ConfigurationError{Reason: fmt.Sprintf(
		"no stripe plan named %q for membership %s", m.StripeMonthlyProductName, m.ID)}
}

func (s *MembershipService) failTransition(t *model.MembershipTransition, cause error) {
	meta, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if err := s.store.MarkTransitionFailed(t.ID, datatypes.JSON(meta)); err != nil {
		// The original failure is what the caller needs to see.
		log.Printf("could not mark transition %s as failed: %v", t.ID, err)
	}
}
