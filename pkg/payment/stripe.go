package payment

import (
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/customer"
	"github.com/stripe/stripe-go/v74/plan"
	"github.com/stripe/stripe-go/v74/subscription"
)

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct{}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

func (g *StripeGateway) GetOrCreateCustomer(existingToken, email, name string) (string, error) {
	if existingToken != "" {
		return existingToken, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	c, err := customer.New(params)
	if err != nil {
		return "", &GatewayError{Op: "create customer", Err: err}
	}
	return c.ID, nil
}

func (g *StripeGateway) ListPlans() ([]Plan, error) {
	var plans []Plan
	iter := plan.List(&stripe.PlanListParams{})
	for iter.Next() {
		p := iter.Plan()
		plans = append(plans, Plan{ID: p.ID, Name: p.Nickname})
	}
	if err := iter.Err(); err != nil {
		return nil, &GatewayError{Op: "list plans", Err: err}
	}
	return plans, nil
}

func (g *StripeGateway) CreateSubscription(customerToken, planID string, metadata map[string]string) (string, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerToken),
		Items: []*stripe.SubscriptionItemsParams{
			{Plan: stripe.String(planID)},
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	s, err := subscription.New(params)
	if err != nil {
		return "", &GatewayError{Op: "create subscription", Err: err}
	}
	return s.ID, nil
}

func (g *StripeGateway) CancelSubscription(subscriptionID string) error {
	if _, err := subscription.Cancel(subscriptionID, nil); err != nil {
		return &GatewayError{Op: "cancel subscription", Err: err}
	}
	return nil
}
