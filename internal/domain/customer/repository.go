package customer

import "context"

// Repository handles customer data operations
type Repository interface {
	// GetByID retrieves a customer by its ID
	GetByID(ctx context.Context, id string) (Customer, error)

	// GetByEmail retrieves a customer by email address
	GetByEmail(ctx context.Context, email string) (Customer, error)

	// Create creates a new customer
	Create(ctx context.Context, c Customer) (Customer, error)

	// UpdateCurrentPlan points the customer at a plan; nil clears it
	UpdateCurrentPlan(ctx context.Context, id string, planID *string) error

	// List retrieves all customers (admin and sweep use)
	List(ctx context.Context) ([]Customer, error)
}
