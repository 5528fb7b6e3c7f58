package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
)

const saleColumns = `id, client_id, vendor_id, sub_agent_id, service_fee, vendor_commission, sub_agent_commission, payment_status, created_at`

// NewSale описывает данные продажи с рассчитанными комиссиями.
type NewSale struct {
	ClientID           int64
	VendorID           int64
	SubAgentID         *int64
	ServiceFee         decimal.Decimal
	VendorCommission   decimal.Decimal
	SubAgentCommission *decimal.Decimal
}

// UpsertSaleForClient записывает продажу по клиенту: если «живая» продажа уже
// есть, помечает её оплаченной, иначе создаёт новую в статусе PAGO.
func (r *PostgresRepository) UpsertSaleForClient(ctx context.Context, s NewSale) (*model.Sale, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanSale(tx.QueryRow(ctx,
		`SELECT `+saleColumns+`
		 FROM sales
		 WHERE client_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1
		 FOR UPDATE`,
		s.ClientID,
	))
	switch {
	case err == nil:
		sale, err := scanSale(tx.QueryRow(ctx,
			`UPDATE sales
			 SET sub_agent_id = $2, vendor_commission = $3, sub_agent_commission = $4, payment_status = $5
			 WHERE id = $1
			 RETURNING `+saleColumns,
			existing.ID, s.SubAgentID, s.VendorCommission, s.SubAgentCommission, string(model.PaymentStatusPaid),
		))
		if err != nil {
			return nil, fmt.Errorf("update sale: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return sale, nil
	case errors.Is(err, pgx.ErrNoRows):
		sale, err := scanSale(tx.QueryRow(ctx,
			`INSERT INTO sales (client_id, vendor_id, sub_agent_id, service_fee, vendor_commission, sub_agent_commission, payment_status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING `+saleColumns,
			s.ClientID, s.VendorID, s.SubAgentID, s.ServiceFee, s.VendorCommission, s.SubAgentCommission, string(model.PaymentStatusPaid),
		))
		if err != nil {
			return nil, fmt.Errorf("insert sale: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return sale, nil
	default:
		return nil, fmt.Errorf("lock sale: %w", err)
	}
}

// ListSalesByVendors возвращает продажи указанных продавцов, новые первыми.
// Ненулевой clientID дополнительно сужает выборку до одного клиента.
func (r *PostgresRepository) ListSalesByVendors(ctx context.Context, vendorIDs []int64, clientID *int64) ([]model.Sale, error) {
	query := `SELECT ` + saleColumns + `
	          FROM sales
	          WHERE (vendor_id = ANY($1) OR sub_agent_id = ANY($1))`
	args := []any{vendorIDs}

	if clientID != nil {
		args = append(args, *clientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var sales []model.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		sales = append(sales, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return sales, nil
}

// VendorCommissionSummary агрегирует оплаченные продажи продавца: сумму продаж,
// причитающуюся комиссию и число продаж.
func (r *PostgresRepository) VendorCommissionSummary(ctx context.Context, vendorID int64) (*model.CommissionSummary, error) {
	var sum model.CommissionSummary
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(service_fee), 0), COALESCE(SUM(vendor_commission), 0), COUNT(*)
		 FROM sales
		 WHERE vendor_id = $1 AND payment_status = $2`,
		vendorID, string(model.PaymentStatusPaid),
	).Scan(&sum.TotalSold, &sum.CommissionDue, &sum.SaleCount)
	if err != nil {
		return nil, fmt.Errorf("vendor commission summary: %w", err)
	}
	return &sum, nil
}

// SubAgentCommissionSummary агрегирует оплаченные продажи, где участник выступал препостом.
func (r *PostgresRepository) SubAgentCommissionSummary(ctx context.Context, subAgentID int64) (*model.CommissionSummary, error) {
	var sum model.CommissionSummary
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(service_fee), 0), COALESCE(SUM(sub_agent_commission), 0), COUNT(*)
		 FROM sales
		 WHERE sub_agent_id = $1 AND payment_status = $2`,
		subAgentID, string(model.PaymentStatusPaid),
	).Scan(&sum.TotalSold, &sum.CommissionDue, &sum.SaleCount)
	if err != nil {
		return nil, fmt.Errorf("sub-agent commission summary: %w", err)
	}
	return &sum, nil
}

// DashboardSummary собирает сводку для административной панели: продажи,
// платежи, процессы в работе и рейтинг продавцов.
func (r *PostgresRepository) DashboardSummary(ctx context.Context) (*model.DashboardSummary, error) {
	var d model.DashboardSummary

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(service_fee), 0), COUNT(*)
		 FROM sales WHERE payment_status = $1`,
		string(model.PaymentStatusPaid),
	).Scan(&d.TotalSold, &d.SaleCount)
	if err != nil {
		return nil, fmt.Errorf("dashboard sales: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0), COUNT(*)
		 FROM payments WHERE status = $1`,
		string(model.PaymentStatusPaid),
	).Scan(&d.PaymentsReceived, &d.PaymentCount)
	if err != nil {
		return nil, fmt.Errorf("dashboard payments: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE process_status NOT IN ($1, $2)),
		   COUNT(*)
		 FROM clients`,
		string(model.ProcessStatusCompleted), string(model.ProcessStatusCanceled),
	).Scan(&d.ProcessesInFlight, &d.ClientsTotal)
	if err != nil {
		return nil, fmt.Errorf("dashboard clients: %w", err)
	}

	if d.ClientsTotal > 0 {
		d.ConversionRatePct = d.SaleCount * 100 / d.ClientsTotal
	}

	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.name, m.role,
		        COALESCE(SUM(s.service_fee), 0),
		        COALESCE(SUM(s.vendor_commission), 0),
		        COUNT(s.id)
		 FROM members m
		 JOIN sales s ON s.vendor_id = m.id AND s.payment_status = $1
		 GROUP BY m.id, m.name, m.role
		 ORDER BY SUM(s.service_fee) DESC
		 LIMIT 10`,
		string(model.PaymentStatusPaid),
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard ranking: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v model.VendorRanking
		var role string
		if err := rows.Scan(&v.VendorID, &v.Name, &role, &v.TotalSold, &v.Commission, &v.SaleCount); err != nil {
			return nil, fmt.Errorf("scan ranking: %w", err)
		}
		v.Role = model.Role(role)
		d.VendorRanking = append(d.VendorRanking, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &d, nil
}

func scanSale(row pgx.Row) (*model.Sale, error) {
	var s model.Sale
	var status string
	err := row.Scan(&s.ID, &s.ClientID, &s.VendorID, &s.SubAgentID, &s.ServiceFee,
		&s.VendorCommission, &s.SubAgentCommission, &status, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.PaymentStatus = model.PaymentStatus(status)
	return &s, nil
}
