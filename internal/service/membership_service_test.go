package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentmarket_backend/internal/model"
	"talentmarket_backend/pkg/money"
	"talentmarket_backend/pkg/payment"
)

// fakeGateway implements payment.Gateway for tests.
type fakeGateway struct {
	plans        []payment.Plan
	plansErr     error
	createSubErr error

	customerCalls int
	createCalls   int
	lastPlanID    string
	lastMetadata  map[string]string
	cancelled     []string
}

func (f *fakeGateway) GetOrCreateCustomer(existingToken, email, name string) (string, error) {
	f.customerCalls++
	if existingToken != "" {
		return existingToken, nil
	}
	return "cus_fake", nil
}

func (f *fakeGateway) ListPlans() ([]payment.Plan, error) {
	return f.plans, f.plansErr
}

func (f *fakeGateway) CreateSubscription(customerToken, planID string, metadata map[string]string) (string, error) {
	f.createCalls++
	f.lastPlanID = planID
	f.lastMetadata = metadata
	if f.createSubErr != nil {
		return "", f.createSubErr
	}
	return "sub_fake", nil
}

func (f *fakeGateway) CancelSubscription(subscriptionID string) error {
	f.cancelled = append(f.cancelled, subscriptionID)
	return nil
}

func paidTier(name string, priceMonth string) *model.Membership {
	m := money.MustNew(priceMonth)
	return &model.Membership{
		ID:                       uuid.New(),
		Name:                     name,
		ProfileType:              model.ProfileFreelancer,
		PriceMonth:               &m,
		StripeMonthlyProductName: name + "-monthly",
	}
}

func initialTier() *model.Membership {
	return &model.Membership{
		ID:          uuid.New(),
		Name:        "Freelancer Starter",
		ProfileType: model.ProfileFreelancer,
		IsInitial:   true,
	}
}

func TestIsDowngrade(t *testing.T) {
	t.Parallel()

	svc := &MembershipService{}

	t.Run("false when user has no current membership", func(t *testing.T) {
		t.Parallel()
		user := &model.User{ProfileType: model.ProfileFreelancer}

		assert.False(t, svc.IsDowngrade(user, initialTier()))
		assert.False(t, svc.IsDowngrade(user, paidTier("pro", "29.00")))
	})

	t.Run("false when current membership is the initial tier", func(t *testing.T) {
		t.Parallel()
		user := &model.User{ProfileType: model.ProfileFreelancer, CurrentMembership: initialTier()}

		assert.False(t, svc.IsDowngrade(user, paidTier("pro", "29.00")))
	})

	t.Run("true when target is the initial tier", func(t *testing.T) {
		t.Parallel()
		user := &model.User{ProfileType: model.ProfileFreelancer, CurrentMembership: paidTier("pro", "29.00")}

		assert.True(t, svc.IsDowngrade(user, initialTier()))
	})

	t.Run("strict monthly price comparison between paid tiers", func(t *testing.T) {
		t.Parallel()
		user := &model.User{ProfileType: model.ProfileFreelancer, CurrentMembership: paidTier("pro", "49.00")}

		assert.True(t, svc.IsDowngrade(user, paidTier("lite", "29.00")))
		assert.False(t, svc.IsDowngrade(user, paidTier("elite", "99.00")))
	})

	t.Run("equal prices are not a downgrade", func(t *testing.T) {
		t.Parallel()
		user := &model.User{ProfileType: model.ProfileFreelancer, CurrentMembership: paidTier("pro", "49.00")}

		assert.False(t, svc.IsDowngrade(user, paidTier("pro-v2", "49.00")))
	})
}

func TestNeedsRemoteSubscription(t *testing.T) {
	t.Parallel()

	t.Run("initial tiers never need a remote subscription", func(t *testing.T) {
		t.Parallel()
		assert.False(t, needsRemoteSubscription(false, initialTier()))
		assert.False(t, needsRemoteSubscription(true, initialTier()))
	})

	t.Run("downgrades never need a remote subscription", func(t *testing.T) {
		t.Parallel()
		assert.False(t, needsRemoteSubscription(true, paidTier("lite", "29.00")))
	})

	t.Run("upgrades to paid tiers do", func(t *testing.T) {
		t.Parallel()
		assert.True(t, needsRemoteSubscription(false, paidTier("pro", "49.00")))
	})
}

func TestCanDowngradeAt(t *testing.T) {
	t.Parallel()

	date := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	t.Run("allowed when never downgraded", func(t *testing.T) {
		t.Parallel()
		user := &model.User{}
		assert.True(t, CanDowngradeAt(user, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("blocked within the same calendar month", func(t *testing.T) {
		t.Parallel()
		user := &model.User{LastMembershipDowngradeDate: date(2024, time.March, 15)}
		assert.False(t, CanDowngradeAt(user, time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("allowed in the next month", func(t *testing.T) {
		t.Parallel()
		user := &model.User{LastMembershipDowngradeDate: date(2024, time.March, 15)}
		assert.True(t, CanDowngradeAt(user, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("same month of a different year is allowed", func(t *testing.T) {
		t.Parallel()
		user := &model.User{LastMembershipDowngradeDate: date(2023, time.December, 15)}
		assert.True(t, CanDowngradeAt(user, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
	})
}

func TestResolvePlan(t *testing.T) {
	t.Parallel()

	t.Run("finds the plan by monthly product name", func(t *testing.T) {
		t.Parallel()
		svc := &MembershipService{Gateway: &fakeGateway{plans: []payment.Plan{
			{ID: "plan_1", Name: "other-monthly"},
			{ID: "plan_2", Name: "pro-monthly"},
		}}}

		plan, err := svc.resolvePlan(paidTier("pro", "49.00"))
		require.NoError(t, err)
		assert.Equal(t, "plan_2", plan.ID)
	})

	t.Run("missing plan is a configuration error", func(t *testing.T) {
		t.Parallel()
		svc := &MembershipService{Gateway: &fakeGateway{plans: []payment.Plan{
			{ID: "plan_1", Name: "other-monthly"},
		}}}

		_, err := svc.resolvePlan(paidTier("pro", "49.00"))
		var configErr *ConfigurationError
		assert.True(t, errors.As(err, &configErr))
	})

	t.Run("gateway failure surfaces as a gateway error", func(t *testing.T) {
		t.Parallel()
		svc := &MembershipService{Gateway: &fakeGateway{
			plansErr: &payment.GatewayError{Op: "list plans", Err: errors.New("timeout")},
		}}

		_, err := svc.resolvePlan(paidTier("pro", "49.00"))
		var gatewayErr *payment.GatewayError
		assert.True(t, errors.As(err, &gatewayErr))
	})
}

func TestErrDowngradeThrottledIsValidationError(t *testing.T) {
	t.Parallel()

	var validationErr *ValidationError
	assert.True(t, errors.As(ErrDowngradeThrottled, &validationErr))
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	t.Parallel()

	var locks keyedMutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(7)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}
