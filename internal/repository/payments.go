package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
)

const paymentColumns = `id, client_id, amount, method, status, confirmed_at, created_at`

// CreatePayment создаёт платёж клиента в статусе PENDENTE.
func (r *PostgresRepository) CreatePayment(ctx context.Context, clientID int64, amount decimal.Decimal, method string) (*model.Payment, error) {
	payment, err := scanPayment(r.pool.QueryRow(ctx,
		`INSERT INTO payments (client_id, amount, method)
		 VALUES ($1, $2, $3)
		 RETURNING `+paymentColumns,
		clientID, amount, method,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return payment, nil
}

// GetPayment возвращает платёж по идентификатору.
func (r *PostgresRepository) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	payment, err := scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

// ConfirmResult содержит итог подтверждения платежа.
// Already=true означает, что платёж уже был подтверждён ранее.
type ConfirmResult struct {
	Payment *model.Payment
	Already bool
}

// ConfirmClientPayment подтверждает платёж клиента: переводит платёж в PAGO,
// клиента в статус PAGO и добавляет запись истории процесса. Повторное
// подтверждение ничего не меняет и возвращает Already=true.
func (r *PostgresRepository) ConfirmClientPayment(ctx context.Context, paymentID int64) (*ConfirmResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := scanPayment(tx.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("lock payment: %w", err)
	}

	if payment.Status == model.PaymentStatusPaid {
		return &ConfirmResult{Payment: payment, Already: true}, nil
	}

	payment, err = scanPayment(tx.QueryRow(ctx,
		`UPDATE payments SET status = $2, confirmed_at = now()
		 WHERE id = $1
		 RETURNING `+paymentColumns,
		paymentID, string(model.PaymentStatusPaid),
	))
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE clients SET process_status = $2 WHERE id = $1`,
		payment.ClientID, string(model.ProcessStatusPaid),
	)
	if err != nil {
		return nil, fmt.Errorf("update client status: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO process_history (client_id, status, description) VALUES ($1, $2, $3)`,
		payment.ClientID, string(model.ProcessStatusPaid), "Pagamento confirmado",
	)
	if err != nil {
		return nil, fmt.Errorf("insert process history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ConfirmResult{Payment: payment}, nil
}

// PaymentFilter задаёт фильтры списка платежей; nil означает «без фильтра».
type PaymentFilter struct {
	ClientID *int64
	Status   *model.PaymentStatus
}

// ListPayments возвращает платежи по фильтру, новые первыми.
func (r *PostgresRepository) ListPayments(ctx context.Context, filter PaymentFilter) ([]model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments`
	var args []any
	var where []string

	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		where = append(where, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + where[0]
		for _, cond := range where[1:] {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	var status string
	err := row.Scan(&p.ID, &p.ClientID, &p.Amount, &p.Method, &status, &p.ConfirmedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}
