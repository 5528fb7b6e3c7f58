package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
)

const membershipPaymentColumns = `id, member_id, tier_id, amount, method, status, confirmed_at, created_at`

// CreateMembershipPayment создаёт платёж за вступление в уровень в статусе PENDENTE.
func (r *PostgresRepository) CreateMembershipPayment(ctx context.Context, memberID, tierID int64, amount decimal.Decimal, method string) (*model.MembershipPayment, error) {
	payment, err := scanMembershipPayment(r.pool.QueryRow(ctx,
		`INSERT INTO membership_payments (member_id, tier_id, amount, method)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+membershipPaymentColumns,
		memberID, tierID, amount, method,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("insert membership payment: %w", err)
	}
	return payment, nil
}

// GetMembershipPayment возвращает платёж за вступление по идентификатору.
func (r *PostgresRepository) GetMembershipPayment(ctx context.Context, id int64) (*model.MembershipPayment, error) {
	payment, err := scanMembershipPayment(r.pool.QueryRow(ctx,
		`SELECT `+membershipPaymentColumns+` FROM membership_payments WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMembershipPaymentNotFound
		}
		return nil, fmt.Errorf("get membership payment: %w", err)
	}
	return payment, nil
}

// MembershipConfirmResult содержит итог подтверждения платежа за вступление.
type MembershipConfirmResult struct {
	Payment *model.MembershipPayment
	Already bool
}

// ConfirmMembershipPayment подтверждает платёж за вступление: переводит платёж
// в PAGO и закрепляет за участником оплаченный уровень. Повторное подтверждение
// ничего не меняет и возвращает Already=true.
func (r *PostgresRepository) ConfirmMembershipPayment(ctx context.Context, paymentID int64) (*MembershipConfirmResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	payment, err := scanMembershipPayment(tx.QueryRow(ctx,
		`SELECT `+membershipPaymentColumns+` FROM membership_payments WHERE id = $1 FOR UPDATE`, paymentID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMembershipPaymentNotFound
		}
		return nil, fmt.Errorf("lock membership payment: %w", err)
	}

	if payment.Status == model.PaymentStatusPaid {
		return &MembershipConfirmResult{Payment: payment, Already: true}, nil
	}

	payment, err = scanMembershipPayment(tx.QueryRow(ctx,
		`UPDATE membership_payments SET status = $2, confirmed_at = now()
		 WHERE id = $1
		 RETURNING `+membershipPaymentColumns,
		paymentID, string(model.PaymentStatusPaid),
	))
	if err != nil {
		return nil, fmt.Errorf("update membership payment: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE members SET tier_id = $2 WHERE id = $1`,
		payment.MemberID, payment.TierID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member tier: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &MembershipConfirmResult{Payment: payment}, nil
}

// MembershipPaymentFilter задаёт фильтры списка платежей за вступление.
type MembershipPaymentFilter struct {
	MemberID *int64
	Status   *model.PaymentStatus
}

// ListMembershipPayments возвращает платежи за вступление по фильтру, новые первыми.
func (r *PostgresRepository) ListMembershipPayments(ctx context.Context, filter MembershipPaymentFilter) ([]model.MembershipPayment, error) {
	query := `SELECT ` + membershipPaymentColumns + ` FROM membership_payments`
	var args []any
	var where []string

	if filter.MemberID != nil {
		args = append(args, *filter.MemberID)
		where = append(where, fmt.Sprintf("member_id = $%d", len(args)))
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
		return nil, fmt.Errorf("select membership payments: %w", err)
	}
	defer rows.Close()

	var payments []model.MembershipPayment
	for rows.Next() {
		p, err := scanMembershipPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan membership payment: %w", err)
		}
		payments = append(payments, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return payments, nil
}

func scanMembershipPayment(row pgx.Row) (*model.MembershipPayment, error) {
	var p model.MembershipPayment
	var status string
	err := row.Scan(&p.ID, &p.MemberID, &p.TierID, &p.Amount, &p.Method, &status, &p.ConfirmedAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}
