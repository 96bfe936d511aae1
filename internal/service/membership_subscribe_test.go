package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/pkg/payment"
)

// memoryStore is an in-memory membershipStore so Subscribe can be driven
// end-to-end without a database.
type memoryStore struct {
	mu          sync.Mutex
	users       map[uint]*model.User
	memberships map[uuid.UUID]*model.Membership
	transitions map[uuid.UUID]*model.MembershipTransition
	history     []model.MembershipHistory
	packages    []model.Package
	commitErr   error
}

func newMemoryStore(user *model.User, tiers ...*model.Membership) *memoryStore {
	stored := *user
	s := &memoryStore{
		users:       map[uint]*model.User{user.ID: &stored},
		memberships: map[uuid.UUID]*model.Membership{},
		transitions: map[uuid.UUID]*model.MembershipTransition{},
	}
	for _, m := range tiers {
		s.memberships[m.ID] = m
	}
	return s
}

func (s *memoryStore) RefreshUser(user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.CurrentMembershipID = stored.CurrentMembershipID
	user.CurrentMembership = stored.CurrentMembership
	user.LastMembershipDowngradeDate = stored.LastMembershipDowngradeDate
	user.LastMembershipPaymentDate = stored.LastMembershipPaymentDate
	user.StripeCustomerToken = stored.StripeCustomerToken
	return nil
}

func (s *memoryStore) CreateTransition(t *model.MembershipTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	s.transitions[t.ID] = t
	return nil
}

func (s *memoryStore) MarkTransitionRemoteConfirmed(id uuid.UUID, planID, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr := s.transitions[id]
	tr.Status = model.TransitionRemoteConfirmed
	tr.StripePlanID = &planID
	tr.StripeSubscriptionID = &subscriptionID
	return nil
}

func (s *memoryStore) MarkTransitionFailed(id uuid.UUID, metadata datatypes.JSON) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr := s.transitions[id]
	tr.Status = model.TransitionFailed
	tr.Metadata = metadata
	return nil
}

func (s *memoryStore) SaveCustomerToken(userID uint, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID].StripeCustomerToken = token
	return nil
}

func (s *memoryStore) CommitSubscription(c subscriptionCommit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	stored := s.users[c.UserID]
	membershipID := c.MembershipID
	stored.CurrentMembershipID = &membershipID
	stored.CurrentMembership = s.memberships[c.MembershipID]
	if c.DowngradeDate != nil {
		stored.LastMembershipDowngradeDate = c.DowngradeDate
	}
	if c.DeactivatePackages {
		for i := range s.packages {
			if s.packages[i].UserID == c.UserID {
				s.packages[i].IsActive = false
			}
		}
	}
	if c.History.ID == uuid.Nil {
		c.History.ID = uuid.New()
	}
	c.History.CreatedAt = time.Now()
	s.history = append(s.history, *c.History)
	s.transitions[c.TransitionID].Status = model.TransitionCommitted
	return nil
}

func (s *memoryStore) LatestRemoteHistory(userID uint) (*model.MembershipHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].UserID == userID && s.history[i].StripeSubscriptionID != nil {
			entry := s.history[i]
			return &entry, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) ListHistory(userID uint) ([]model.MembershipHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []model.MembershipHistory
	for _, h := range s.history {
		if h.UserID == userID {
			entries = append(entries, h)
		}
	}
	return entries, nil
}

func (s *memoryStore) singleTransition(t *testing.T) *model.MembershipTransition {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.transitions, 1)
	for _, tr := range s.transitions {
		return tr
	}
	return nil
}

func newTestService(store membershipStore, gw payment.Gateway, now time.Time) *MembershipService {
	return &MembershipService{Gateway: gw, store: store, now: func() time.Time { return now }}
}

func freelancerUser() *model.User {
	return &model.User{
		Model:       gorm.Model{ID: 1},
		Email:       "dev@example.com",
		FirstName:   "Dana",
		LastName:    "Reyes",
		ProfileType: model.ProfileFreelancer,
	}
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 20, 10, 30, 0, 0, time.UTC)

	t.Run("assigns the initial tier without touching the gateway", func(t *testing.T) {
		t.Parallel()
		user := freelancerUser()
		starter := initialTier()
		store := newMemoryStore(user, starter)
		gw := &fakeGateway{}
		svc := newTestService(store, gw, now)

		history, err := svc.Subscribe(user, starter)
		require.NoError(t, err)

		assert.Zero(t, gw.customerCalls)
		assert.Zero(t, gw.createCalls)
		assert.Nil(t, history.StripePlanID)
		assert.Nil(t, history.StripeSubscriptionID)
		require.Len(t, store.history, 1)
		assert.Equal(t, starter.ID, store.history[0].MembershipID)
		assert.Equal(t, model.TransitionCommitted, store.singleTransition(t).Status)
		assert.Equal(t, starter.ID, *store.users[1].CurrentMembershipID)
	})

	t.Run("paid upgrade creates the remote subscription before committing", func(t *testing.T) {
		t.Parallel()
		user := freelancerUser()
		starter := initialTier()
		user.CurrentMembershipID = &starter.ID
		user.CurrentMembership = starter
		pro := paidTier("pro", "49.00")
		store := newMemoryStore(user, starter, pro)
		gw := &fakeGateway{plans: []payment.Plan{{ID: "plan_pro", Name: "pro-monthly"}}}
		svc := newTestService(store, gw, now)

		history, err := svc.Subscribe(user, pro)
		require.NoError(t, err)

		assert.Equal(t, 1, gw.customerCalls)
		assert.Equal(t, 1, gw.createCalls)
		assert.Equal(t, "plan_pro", gw.lastPlanID)
		assert.Equal(t, pro.ID.String(), gw.lastMetadata["uuid"])
		require.NotNil(t, history.StripePlanID)
		assert.Equal(t, "plan_pro", *history.StripePlanID)
		require.NotNil(t, history.StripeSubscriptionID)
		assert.Equal(t, "sub_fake", *history.StripeSubscriptionID)
		assert.Equal(t, "cus_fake", store.users[1].StripeCustomerToken)
		tr := store.singleTransition(t)
		assert.Equal(t, model.TransitionCommitted, tr.Status)
		assert.Equal(t, "sub_fake", *tr.StripeSubscriptionID)
	})

	t.Run("downgrade records the date and deactivates packages", func(t *testing.T) {
		t.Parallel()
		pro := paidTier("pro", "49.00")
		starter := initialTier()
		user := freelancerUser()
		user.CurrentMembershipID = &pro.ID
		user.CurrentMembership = pro
		store := newMemoryStore(user, starter, pro)
		store.packages = []model.Package{
			{UserID: 1, Title: "Logo design", IsActive: true},
			{UserID: 2, Title: "Someone else's", IsActive: true},
		}
		gw := &fakeGateway{}
		svc := newTestService(store, gw, now)

		history, err := svc.Subscribe(user, starter)
		require.NoError(t, err)

		assert.Zero(t, gw.customerCalls)
		assert.Zero(t, gw.createCalls)
		assert.Nil(t, history.StripePlanID)
		assert.Nil(t, history.StripeSubscriptionID)
		require.NotNil(t, store.users[1].LastMembershipDowngradeDate)
		assert.Equal(t, now.Truncate(24*time.Hour), *store.users[1].LastMembershipDowngradeDate)
		assert.False(t, store.packages[0].IsActive)
		assert.True(t, store.packages[1].IsActive)
		assert.Equal(t, model.TransitionCommitted, store.singleTransition(t).Status)
	})

	t.Run("second downgrade in the same month is throttled", func(t *testing.T) {
		t.Parallel()
		pro := paidTier("pro", "49.00")
		starter := initialTier()
		downgraded := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
		user := freelancerUser()
		user.CurrentMembershipID = &pro.ID
		user.CurrentMembership = pro
		user.LastMembershipDowngradeDate = &downgraded
		store := newMemoryStore(user, starter, pro)
		svc := newTestService(store, &fakeGateway{}, now)

		_, err := svc.Subscribe(user, starter)
		assert.ErrorIs(t, err, ErrDowngradeThrottled)
		assert.Empty(t, store.history)
		assert.Empty(t, store.transitions)
	})

	t.Run("gateway failure fails the transition and leaves state untouched", func(t *testing.T) {
		t.Parallel()
		user := freelancerUser()
		starter := initialTier()
		user.CurrentMembershipID = &starter.ID
		user.CurrentMembership = starter
		pro := paidTier("pro", "49.00")
		store := newMemoryStore(user, starter, pro)
		gw := &fakeGateway{
			plans:        []payment.Plan{{ID: "plan_pro", Name: "pro-monthly"}},
			createSubErr: &payment.GatewayError{Op: "create subscription", Err: errors.New("card declined")},
		}
		svc := newTestService(store, gw, now)

		_, err := svc.Subscribe(user, pro)
		var gatewayErr *payment.GatewayError
		require.True(t, errors.As(err, &gatewayErr))

		tr := store.singleTransition(t)
		assert.Equal(t, model.TransitionFailed, tr.Status)
		assert.NotEmpty(t, tr.Metadata)
		assert.Empty(t, store.history)
		assert.Equal(t, starter.ID, *store.users[1].CurrentMembershipID)
	})

	t.Run("missing remote plan is a configuration error", func(t *testing.T) {
		t.Parallel()
		user := freelancerUser()
		pro := paidTier("pro", "49.00")
		store := newMemoryStore(user, pro)
		svc := newTestService(store, &fakeGateway{}, now)

		_, err := svc.Subscribe(user, pro)
		var configErr *ConfigurationError
		require.True(t, errors.As(err, &configErr))
		assert.Equal(t, model.TransitionFailed, store.singleTransition(t).Status)
		assert.Empty(t, store.history)
	})

	t.Run("commit failure after the remote subscription stays remote_confirmed", func(t *testing.T) {
		t.Parallel()
		user := freelancerUser()
		pro := paidTier("pro", "49.00")
		store := newMemoryStore(user, pro)
		store.commitErr = errors.New("connection reset")
		gw := &fakeGateway{plans: []payment.Plan{{ID: "plan_pro", Name: "pro-monthly"}}}
		svc := newTestService(store, gw, now)

		_, err := svc.Subscribe(user, pro)
		require.Error(t, err)

		assert.Equal(t, 1, gw.createCalls)
		assert.Equal(t, model.TransitionRemoteConfirmed, store.singleTransition(t).Status)
		assert.Empty(t, store.history)
	})

	t.Run("rejects a tier for another profile type", func(t *testing.T) {
		t.Parallel()
		user := freelancerUser()
		clientTier := paidTier("client-plus", "19.00")
		clientTier.ProfileType = model.ProfileClient
		store := newMemoryStore(user, clientTier)
		svc := newTestService(store, &fakeGateway{}, now)

		_, err := svc.Subscribe(user, clientTier)
		var validationErr *ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Empty(t, store.transitions)
	})

	t.Run("classifies against the stored row, not the caller's snapshot", func(t *testing.T) {
		t.Parallel()
		pro := paidTier("pro", "49.00")
		lite := paidTier("lite", "29.00")
		starter := initialTier()
		user := freelancerUser()
		user.CurrentMembershipID = &pro.ID
		user.CurrentMembership = pro
		store := newMemoryStore(user, starter, pro, lite)
		gw := &fakeGateway{plans: []payment.Plan{{ID: "plan_lite", Name: "lite-monthly"}}}
		svc := newTestService(store, gw, now)

		// A snapshot loaded before another request moved the user to pro
		// still points at the starter tier; classification must not trust it.
		stale := freelancerUser()
		stale.CurrentMembershipID = &starter.ID
		stale.CurrentMembership = starter

		history, err := svc.Subscribe(stale, lite)
		require.NoError(t, err)

		assert.Zero(t, gw.createCalls)
		assert.Nil(t, history.StripePlanID)
		assert.Nil(t, history.StripeSubscriptionID)
		require.NotNil(t, store.users[1].LastMembershipDowngradeDate)
		assert.Equal(t, now.Truncate(24*time.Hour), *store.users[1].LastMembershipDowngradeDate)
	})
}
