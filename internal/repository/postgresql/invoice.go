package postgresql

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/telstar/billing-backend-go/internal/domain/billing"
	"github.com/telstar/billing-backend-go/internal/pkg/database"
)

type invoiceRepository struct {
	db *database.DB
}

// NewInvoiceRepository creates a new PostgreSQL invoice repository
func NewInvoiceRepository(db *database.DB) billing.InvoiceRepository {
	return &invoiceRepository{db: db}
}

const invoiceSelectColumns = `id, customer_id, customer_name, plan_id, plan_type, units, amount, date, status, created_at`

func scanInvoice(row interface {
	Scan(dest ...interface{}) error
}) (billing.Invoice, error) {
	var inv billing.Invoice
	err := row.Scan(
		&inv.ID,
		&inv.CustomerID,
		&inv.CustomerName,
		&inv.PlanID,
		&inv.PlanType,
		&inv.Units,
		&inv.Amount,
		&inv.Date,
		&inv.Status,
		&inv.CreatedAt,
	)
	return inv, err
}

func (r *invoiceRepository) GetByID(ctx context.Context, id string) (billing.Invoice, error) {
	query := `
		SELECT ` + invoiceSelectColumns + `
		FROM invoices
		WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	return scanInvoice(q.QueryRow(ctx, query, id))
}

func (r *invoiceRepository) Create(ctx context.Context, inv billing.Invoice) (billing.Invoice, error) {
	query := `
		INSERT INTO invoices (id, customer_id, customer_name, plan_id, plan_type, units, amount, date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	q := GetQuerier(ctx, r.db)

	err := q.QueryRow(ctx, query,
		inv.ID,
		inv.CustomerID,
		inv.CustomerName,
		inv.PlanID,
		inv.PlanType,
		inv.Units,
		inv.Amount,
		inv.Date,
		inv.Status,
	).Scan(&inv.CreatedAt)
	if err != nil {
		return billing.Invoice{}, err
	}

	return inv, nil
}

func (r *invoiceRepository) UpdateStatus(ctx context.Context, id string, status billing.InvoiceStatus) error {
	query := `
		UPDATE invoices
		SET status = $2
		WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, query, id, status)
	return err
}

func (r *invoiceRepository) UpdateAmounts(ctx context.Context, id string, units int64, amount decimal.Decimal) error {
	query := `
		UPDATE invoices
		SET units = $2, amount = $3
		WHERE id = $1`

	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, query, id, units, amount)
	return err
}

func (r *invoiceRepository) ListByCustomer(ctx context.Context, customerID string) ([]billing.Invoice, error) {
	query := `
		SELECT ` + invoiceSelectColumns + `
		FROM invoices
		WHERE customer_id = $1
		ORDER BY date DESC, created_at DESC`

	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]billing.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

func (r *invoiceRepository) GetPendingForPlan(ctx context.Context, customerID, planID string, since time.Time) (billing.Invoice, error) {
	query := `
		SELECT ` + invoiceSelectColumns + `
		FROM invoices
		WHERE customer_id = $1 AND plan_id = $2 AND status = $3 AND date >= $4
		ORDER BY date DESC
		LIMIT 1`

	q := GetQuerier(ctx, r.db)

	return scanInvoice(q.QueryRow(ctx, query, customerID, planID, billing.InvoiceStatusNotPaid, since))
}
