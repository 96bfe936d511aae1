package payment

import "fmt"

// Plan is a remote billing plan as listed by the payment processor.
type Plan struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Gateway abstracts the payment processor. The membership service performs
// at most one mutating call per subscribe and never retries; callers decide
// what to do with a *GatewayError.
type Gateway interface {
	// GetOrCreateCustomer returns the existing billing token unchanged, or
	// creates a remote customer record and returns its new token.
	GetOrCreateCustomer(existingToken, email, name string) (string, error)
	ListPlans() ([]Plan, error)
	CreateSubscription(customerToken, planID string, metadata map[string]string) (string, error)
	CancelSubscription(subscriptionID string) error
}

// GatewayError wraps any failure talking to the payment processor so callers
// can distinguish remote faults from local validation problems.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
