package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
)

const bonusColumns = `id, beneficiary_id, payment_id, membership_payment_id, amount, status, generated_at, paid_at`

// CreateBonusForPayment начисляет бонус за платёж клиента. Повторное начисление
// за тот же платёж не создаёт дубликата: возвращается created=false.
func (r *PostgresRepository) CreateBonusForPayment(ctx context.Context, beneficiaryID, paymentID int64, amount decimal.Decimal) (*model.Bonus, bool, error) {
	return r.createBonus(ctx,
		`INSERT INTO bonuses (beneficiary_id, payment_id, amount)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (payment_id) DO NOTHING
		 RETURNING `+bonusColumns,
		`SELECT `+bonusColumns+` FROM bonuses WHERE payment_id = $1`,
		beneficiaryID, paymentID, amount,
	)
}

// CreateBonusForMembershipPayment начисляет бонус за платёж за вступление.
// Повторное начисление за тот же платёж не создаёт дубликата.
func (r *PostgresRepository) CreateBonusForMembershipPayment(ctx context.Context, beneficiaryID, membershipPaymentID int64, amount decimal.Decimal) (*model.Bonus, bool, error) {
	return r.createBonus(ctx,
		`INSERT INTO bonuses (beneficiary_id, membership_payment_id, amount)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (membership_payment_id) DO NOTHING
		 RETURNING `+bonusColumns,
		`SELECT `+bonusColumns+` FROM bonuses WHERE membership_payment_id = $1`,
		beneficiaryID, membershipPaymentID, amount,
	)
}

func (r *PostgresRepository) createBonus(ctx context.Context, insertQuery, selectQuery string, beneficiaryID, sourceID int64, amount decimal.Decimal) (*model.Bonus, bool, error) {
	bonus, err := scanBonus(r.pool.QueryRow(ctx, insertQuery, beneficiaryID, sourceID, amount))
	if err == nil {
		return bonus, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert bonus: %w", err)
	}

	// Конфликт уникальности: бонус за этот платёж уже начислен.
	bonus, err = scanBonus(r.pool.QueryRow(ctx, selectQuery, sourceID))
	if err != nil {
		return nil, false, fmt.Errorf("select existing bonus: %w", err)
	}
	return bonus, false, nil
}

// BonusFilter задаёт фильтры списка бонусов; nil означает «без фильтра».
type BonusFilter struct {
	BeneficiaryID *int64
	Status        *model.BonusStatus
	TierID        *int64
	From          *time.Time
	To            *time.Time
}

// ListBonuses возвращает бонусы с именем получателя и уровнем вступления из
// связанного платежа, новые первыми. Фильтр TierID отбирает бонусы по уровню
// платежа за вступление, породившего бонус.
func (r *PostgresRepository) ListBonuses(ctx context.Context, filter BonusFilter) ([]model.BonusListItem, error) {
	query, args := buildBonusListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select bonuses: %w", err)
	}
	defer rows.Close()

	var items []model.BonusListItem
	for rows.Next() {
		var item model.BonusListItem
		var status string
		err := rows.Scan(&item.ID, &item.BeneficiaryID, &item.PaymentID, &item.MembershipPaymentID,
			&item.Amount, &status, &item.GeneratedAt, &item.PaidAt,
			&item.BeneficiaryName, &item.TierName)
		if err != nil {
			return nil, fmt.Errorf("scan bonus: %w", err)
		}
		item.Status = model.BonusStatus(status)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func buildBonusListQuery(filter BonusFilter) (string, []any) {
	query := `SELECT b.id, b.beneficiary_id, b.payment_id, b.membership_payment_id,
	                 b.amount, b.status, b.generated_at, b.paid_at,
	                 m.name, t.name
	          FROM bonuses b
	          JOIN members m ON m.id = b.beneficiary_id
	          LEFT JOIN membership_payments mp ON mp.id = b.membership_payment_id
	          LEFT JOIN tiers t ON t.id = mp.tier_id`
	var args []any
	var where []string

	if filter.BeneficiaryID != nil {
		args = append(args, *filter.BeneficiaryID)
		where = append(where, fmt.Sprintf("b.beneficiary_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("b.status = $%d", len(args)))
	}
	if filter.TierID != nil {
		args = append(args, *filter.TierID)
		where = append(where, fmt.Sprintf("mp.tier_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("b.generated_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("b.generated_at < $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + where[0]
		for _, cond := range where[1:] {
			query += " AND " + cond
		}
	}
	query += " ORDER BY b.generated_at DESC, b.id DESC"
	return query, args
}

// SummarizeBonuses агрегирует бонусы получателя по статусам PENDENTE и PAGO.
// beneficiaryID == nil даёт сводку по всем участникам.
func (r *PostgresRepository) SummarizeBonuses(ctx context.Context, beneficiaryID *int64) (*model.BonusSummary, error) {
	query := `SELECT
	            COALESCE(SUM(amount) FILTER (WHERE status = $1), 0),
	            COUNT(*) FILTER (WHERE status = $1),
	            COALESCE(SUM(amount) FILTER (WHERE status = $2), 0),
	            COUNT(*) FILTER (WHERE status = $2)
	          FROM bonuses`
	args := []any{string(model.BonusStatusPending), string(model.BonusStatusPaid)}

	if beneficiaryID != nil {
		query += " WHERE beneficiary_id = $3"
		args = append(args, *beneficiaryID)
	}

	var sum model.BonusSummary
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&sum.PendingTotal, &sum.PendingCount, &sum.PaidTotal, &sum.PaidCount)
	if err != nil {
		return nil, fmt.Errorf("summarize bonuses: %w", err)
	}
	return &sum, nil
}

func scanBonus(row pgx.Row) (*model.Bonus, error) {
	var b model.Bonus
	var status string
	err := row.Scan(&b.ID, &b.BeneficiaryID, &b.PaymentID, &b.MembershipPaymentID,
		&b.Amount, &status, &b.GeneratedAt, &b.PaidAt)
	if err != nil {
		return nil, err
	}
	b.Status = model.BonusStatus(status)
	return &b, nil
}
