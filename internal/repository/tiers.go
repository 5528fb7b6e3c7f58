package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
)

// ListTiers возвращает уровни членства в порядке возрастания ранга.
func (r *PostgresRepository) ListTiers(ctx context.Context) ([]model.Tier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, membership_fee, referral_bonus, rank, created_at
		 FROM tiers
		 ORDER BY rank`,
	)
	if err != nil {
		return nil, fmt.Errorf("select tiers: %w", err)
	}
	defer rows.Close()

	var tiers []model.Tier
	for rows.Next() {
		var t model.Tier
		if err := rows.Scan(&t.ID, &t.Name, &t.MembershipFee, &t.ReferralBonus, &t.Rank, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tiers, nil
}

// GetTier возвращает уровень по идентификатору.
func (r *PostgresRepository) GetTier(ctx context.Context, id int64) (*model.Tier, error) {
	return scanTier(r.pool.QueryRow(ctx,
		`SELECT id, name, membership_fee, referral_bonus, rank, created_at
		 FROM tiers
		 WHERE id = $1`,
		id,
	))
}

// GetTierByName возвращает уровень по имени.
func (r *PostgresRepository) GetTierByName(ctx context.Context, name string) (*model.Tier, error) {
	return scanTier(r.pool.QueryRow(ctx,
		`SELECT id, name, membership_fee, referral_bonus, rank, created_at
		 FROM tiers
		 WHERE name = $1`,
		name,
	))
}

func scanTier(row pgx.Row) (*model.Tier, error) {
	var t model.Tier
	err := row.Scan(&t.ID, &t.Name, &t.MembershipFee, &t.ReferralBonus, &t.Rank, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("get tier: %w", err)
	}
	return &t, nil
}

// TierPatch описывает изменяемые поля уровня; nil означает «не менять».
type TierPatch struct {
	MembershipFee *decimal.Decimal
	ReferralBonus *decimal.Decimal
	Rank          *int
}

// UpdateTier изменяет параметры уровня и возвращает снимки до и после изменения.
// Строка блокируется на время транзакции, чтобы снимок «до» был достоверным.
func (r *PostgresRepository) UpdateTier(ctx context.Context, id int64, patch TierPatch) (*model.TierChange, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	before, err := scanTier(tx.QueryRow(ctx,
		`SELECT id, name, membership_fee, referral_bonus, rank, created_at
		 FROM tiers
		 WHERE id = $1
		 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, err
	}

	after, err := scanTier(tx.QueryRow(ctx,
		`UPDATE tiers
		 SET membership_fee = COALESCE($2, membership_fee),
		     referral_bonus = COALESCE($3, referral_bonus),
		     rank = COALESCE($4, rank)
		 WHERE id = $1
		 RETURNING id, name, membership_fee, referral_bonus, rank, created_at`,
		id, patch.MembershipFee, patch.ReferralBonus, patch.Rank,
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &model.TierChange{Before: *before, After: *after}, nil
}
