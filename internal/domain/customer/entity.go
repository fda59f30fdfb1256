package customer

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"    // Back office - plan catalog and metering levers
	RoleCustomer Role = "customer" // Self-care subscriber
)

// Customer is a billing account holder. CurrentPlanID references the plan the
// customer is subscribed to right now; nil means no active plan.
type Customer struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	PasswordHash  string
	Role          Role
	CurrentPlanID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasActivePlan reports whether the customer currently points at a plan.
func (c *Customer) HasActivePlan() bool {
	return c.CurrentPlanID != nil && *c.CurrentPlanID != ""
}

func (c *Customer) IsAdmin() bool {
	return c.Role == RoleAdmin
}
