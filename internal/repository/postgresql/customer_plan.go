package postgresql

import (
	"context"
	"time"

	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/pkg/database"
)

type customerPlanRepository struct {
	db *database.DB
}

// NewCustomerPlanRepository creates a new PostgreSQL customer plan repository
func NewCustomerPlanRepository(db *database.DB) billing.CustomerPlanRepository {
	return &customerPlanRepository{db: db}
}

func (r *customerPlanRepository) Get(ctx context.Context, customerID, planID string) (billing.CustomerPlan, error) {
	query := `
		SELECT id, customer_id, plan_id, date_purchased, activation_date, due_date
		FROM customer_plans
		WHERE customer_id = $1 AND plan_id = $2`

	q := GetQuerier(ctx, r.db)

	var cp billing.CustomerPlan
	err := q.QueryRow(ctx, query, customerID, planID).Scan(
		&cp.ID,
		&cp.CustomerID,
		&cp.PlanID,
		&cp.DatePurchased,
		&cp.ActivationDate,
		&cp.DueDate,
	)
	if err != nil {
		return billing.CustomerPlan{}, err
	}

	return cp, nil
}

func (r *customerPlanRepository) Create(ctx context.Context, cp billing.CustomerPlan) (billing.CustomerPlan, error) {
	query := `
		INSERT INTO customer_plans (id, customer_id, plan_id, date_purchased, activation_date, due_date)
		VALUES ($1, $2, $3, $4, $5, $6)`

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, query,
		cp.ID,
		cp.CustomerID,
		cp.PlanID,
		cp.DatePurchased,
		cp.ActivationDate,
		cp.DueDate,
	)
	if err != nil {
		return billing.CustomerPlan{}, err
	}

	return cp, nil
}

func (r *customerPlanRepository) UpdateDates(ctx context.Context, id string, purchased, activation, due time.Time) error {
	query := `
		UPDATE customer_plans
		SET date_purchased = $2, activation_date = $3, due_date = $4
		WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, query, id, purchased, activation, due)
	return err
}

func (r *customerPlanRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM customer_plans WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, query, id)
	return err
}

func (r *customerPlanRepository) ListDueBefore(ctx context.Context, cutoff time.Time) ([]billing.CustomerPlan, error) {
	query := `
		SELECT id, customer_id, plan_id, date_purchased, activation_date, due_date
		FROM customer_plans
		WHERE due_date <= $1
		ORDER BY due_date ASC`

	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]billing.CustomerPlan, 0)
	for rows.Next() {
		var cp billing.CustomerPlan
		err := rows.Scan(
			&cp.ID,
			&cp.CustomerID,
			&cp.PlanID,
			&cp.DatePurchased,
			&cp.ActivationDate,
			&cp.DueDate,
		)
		if err != nil {
			return nil, err
		}
		plans = append(plans, cp)
	}

	return plans, rows.Err()
}
