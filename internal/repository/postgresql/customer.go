package postgresql

import (
	"context"

	"github.com/telstar/billing-backend-go/internal/domain/customer"
	"github.com/telstar/billing-backend-go/internal/pkg/database"
)

type customerRepository struct {
	db *database.DB
}

// NewCustomerRepository creates a new PostgreSQL customer repository
func NewCustomerRepository(db *database.DB) customer.Repository {
	return &customerRepository{db: db}
}

const customerSelectColumns = `id, name, email, phone, password_hash, role, current_plan_id, created_at, updated_at`

func (r *customerRepository) scanCustomer(row interface {
	Scan(dest ...interface{}) error
}) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.PasswordHash,
		&c.Role,
		&c.CurrentPlanID,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (customer.Customer, error) {
	query := `
		SELECT ` + customerSelectColumns + `
		FROM customers
		WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	return r.scanCustomer(q.QueryRow(ctx, query, id))
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (customer.Customer, error) {
	query := `
		SELECT ` + customerSelectColumns + `
		FROM customers
		WHERE email = $1`

	q := GetQuerier(ctx, r.db)

	return r.scanCustomer(q.QueryRow(ctx, query, email))
}

func (r *customerRepository) Create(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	query := `
		INSERT INTO customers (id, name, email, phone, password_hash, role, current_plan_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	q := GetQuerier(ctx, r.db)

	err := q.QueryRow(ctx, query,
		c.ID,
		c.Name,
		c.Email,
		c.Phone,
		c.PasswordHash,
		c.Role,
		c.CurrentPlanID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return customer.Customer{}, err
	}

	return c, nil
}

func (r *customerRepository) UpdateCurrentPlan(ctx context.Context, id string, planID *string) error {
	query := `
		UPDATE customers
		SET current_plan_id = $2, updated_at = NOW()
		WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, query, id, planID)
	return err
}

func (r *customerRepository) List(ctx context.Context) ([]customer.Customer, error) {
	query := `
		SELECT ` + customerSelectColumns + `
		FROM customers
		ORDER BY created_at DESC`

	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]customer.Customer, 0)
	for rows.Next() {
		c, err := r.scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}

	return customers, rows.Err()
}
