package postgresql

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/pkg/database"
)

type planRepository struct {
	db *database.DB
}

// NewPlanRepository creates a new PostgreSQL plan repository
func NewPlanRepository(db *database.DB) billing.PlanRepository {
	return &planRepository{db: db}
}

const planSelectColumns = `
	p.id, p.name, p.description, p.rate_per_unit, p.billing_cycle_days, p.type,
	p.created_at, p.updated_at,
	pre.id, pre.units_available, pre.prepaid_balance,
	post.id, post.units_used`

func scanPlan(row interface {
	Scan(dest ...interface{}) error
}) (billing.Plan, error) {
	var p billing.Plan
	var prepaidID *string
	var unitsAvailable *int64
	var prepaidBalance *decimal.Decimal
	var postpaidID *string
	var unitsUsed *int64

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.RatePerUnit,
		&p.BillingCycleDays,
		&p.Type,
		&p.CreatedAt,
		&p.UpdatedAt,
		&prepaidID,
		&unitsAvailable,
		&prepaidBalance,
		&postpaidID,
		&unitsUsed,
	)
	if err != nil {
		return billing.Plan{}, err
	}

	if prepaidID != nil {
		p.Prepaid = &billing.PrepaidPlan{
			ID:             *prepaidID,
			PlanID:         p.ID,
			UnitsAvailable: *unitsAvailable,
			PrepaidBalance: *prepaidBalance,
		}
	}
	if postpaidID != nil {
		p.Postpaid = &billing.PostpaidPlan{
			ID:        *postpaidID,
			PlanID:    p.ID,
			UnitsUsed: *unitsUsed,
		}
	}

	return p, nil
}

func (r *planRepository) GetByID(ctx context.Context, id string) (billing.Plan, error) {
	query := `
		SELECT ` + planSelectColumns + `
		FROM plans p
		LEFT JOIN prepaid_plans pre ON pre.plan_id = p.id
		LEFT JOIN postpaid_plans post ON post.plan_id = p.id
		WHERE p.id = $1`

	q := GetQuerier(ctx, r.db)

	return scanPlan(q.QueryRow(ctx, query, id))
}

func (r *planRepository) GetByName(ctx context.Context, name string) (billing.Plan, error) {
	query := `
		SELECT ` + planSelectColumns + `
		FROM plans p
		LEFT JOIN prepaid_plans pre ON pre.plan_id = p.id
		LEFT JOIN postpaid_plans post ON post.plan_id = p.id
		WHERE p.name = $1`

	q := GetQuerier(ctx, r.db)

	return scanPlan(q.QueryRow(ctx, query, name))
}

func (r *planRepository) ListByType(ctx context.Context, planType billing.PlanType) ([]billing.Plan, error) {
	query := `
		SELECT ` + planSelectColumns + `
		FROM plans p
		LEFT JOIN prepaid_plans pre ON pre.plan_id = p.id
		LEFT JOIN postpaid_plans post ON post.plan_id = p.id
		WHERE p.type = $1
		ORDER BY p.name ASC`

	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, planType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]billing.Plan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}

	return plans, rows.Err()
}

func (r *planRepository) Create(ctx context.Context, p billing.Plan) (billing.Plan, error) {
	query := `
		INSERT INTO plans (id, name, description, rate_per_unit, billing_cycle_days, type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	q := GetQuerier(ctx, r.db)

	err := q.QueryRow(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.RatePerUnit,
		p.BillingCycleDays,
		p.Type,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return billing.Plan{}, err
	}

	if p.Prepaid != nil {
		prepaidQuery := `
			INSERT INTO prepaid_plans (id, plan_id, units_available, prepaid_balance)
			VALUES ($1, $2, $3, $4)`
		if _, err := q.Exec(ctx, prepaidQuery, p.Prepaid.ID, p.ID, p.Prepaid.UnitsAvailable, p.Prepaid.PrepaidBalance); err != nil {
			return billing.Plan{}, err
		}
	}
	if p.Postpaid != nil {
		postpaidQuery := `
			INSERT INTO postpaid_plans (id, plan_id, units_used)
			VALUES ($1, $2, $3)`
		if _, err := q.Exec(ctx, postpaidQuery, p.Postpaid.ID, p.ID, p.Postpaid.UnitsUsed); err != nil {
			return billing.Plan{}, err
		}
	}

	return p, nil
}

func (r *planRepository) UpdatePrepaidUsage(ctx context.Context, variantID string, unitsAvailable int64, prepaidBalance decimal.Decimal) error {
	query := `
		UPDATE prepaid_plans
		SET units_available = $2, prepaid_balance = $3
		WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, query, variantID, unitsAvailable, prepaidBalance)
	return err
}

func (r *planRepository) UpdatePostpaidUsage(ctx context.Context, variantID string, unitsUsed int64) error {
	query := `
		UPDATE postpaid_plans
		SET units_used = $2
		WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, query, variantID, unitsUsed)
	return err
}
