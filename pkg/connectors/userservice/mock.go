package userservice

import "context"

// Mock returns canned plan/product data (§4.9 mock variant requirement).
type Mock struct {
	Plan         Plan
	ProductsData []string
}

var _ Client = (*Mock)(nil)

func (m *Mock) PlanForUser(ctx context.Context, userID string) (Plan, error) {
	if m.Plan != "" {
		return m.Plan, nil
	}
	return PlanBasic, nil
}

func (m *Mock) Products(ctx context.Context, category string) ([]string, error) {
	if m.ProductsData != nil {
		return m.ProductsData, nil
	}
	return []string{"stack-basic"}, nil
}

func (m *Mock) Ping(ctx context.Context) error { return nil }
