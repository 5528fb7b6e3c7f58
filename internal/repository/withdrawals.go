package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
)

const withdrawalColumns = `id, member_id, amount, status, rejection_reason, requested_at, approved_at, paid_at`

// remainderEpsilon — допуск на остаток при списании бонусов: остаток меньше
// одного цента считается нулевым.
var remainderEpsilon = decimal.NewFromFloat(0.01)

// AvailableBalance возвращает доступный для вывода баланс участника:
// сумма бонусов PENDENTE минус суммы заявок PENDENTE и APROVADO, но не ниже нуля.
func (r *PostgresRepository) AvailableBalance(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	var pendingBonuses, reserved decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT
		   COALESCE((SELECT SUM(amount) FROM bonuses WHERE beneficiary_id = $1 AND status = $2), 0),
		   COALESCE((SELECT SUM(amount) FROM withdrawals WHERE member_id = $1 AND status IN ($3, $4)), 0)`,
		memberID,
		string(model.BonusStatusPending),
		string(model.WithdrawalStatusPending), string(model.WithdrawalStatusApproved),
	).Scan(&pendingBonuses, &reserved)
	if err != nil {
		return decimal.Zero, fmt.Errorf("available balance: %w", err)
	}
	return availableFrom(pendingBonuses, reserved), nil
}

// CreateWithdrawal создаёт заявку на вывод, проверяя доступный баланс под
// блокировкой строки участника. Конкурентные заявки сериализуются этой блокировкой.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, memberID int64, amount decimal.Decimal) (*model.Withdrawal, error) {
	var withdrawal *model.Withdrawal

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var lockedID int64
		err = tx.QueryRow(ctx,
			`SELECT id FROM members WHERE id = $1 FOR UPDATE`, memberID,
		).Scan(&lockedID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrMemberNotFound
			}
			return fmt.Errorf("lock member: %w", err)
		}

		var pendingBonuses, reserved decimal.Decimal
		err = tx.QueryRow(ctx,
			`SELECT
			   COALESCE((SELECT SUM(amount) FROM bonuses WHERE beneficiary_id = $1 AND status = $2), 0),
			   COALESCE((SELECT SUM(amount) FROM withdrawals WHERE member_id = $1 AND status IN ($3, $4)), 0)`,
			memberID,
			string(model.BonusStatusPending),
			string(model.WithdrawalStatusPending), string(model.WithdrawalStatusApproved),
		).Scan(&pendingBonuses, &reserved)
		if err != nil {
			return fmt.Errorf("available balance: %w", err)
		}

		if amount.GreaterThan(availableFrom(pendingBonuses, reserved)) {
			return ErrInsufficientBalance
		}

		withdrawal, err = scanWithdrawal(tx.QueryRow(ctx,
			`INSERT INTO withdrawals (member_id, amount)
			 VALUES ($1, $2)
			 RETURNING `+withdrawalColumns,
			memberID, amount,
		))
		if err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return withdrawal, nil
}

// GetWithdrawal возвращает заявку на вывод по идентификатору.
func (r *PostgresRepository) GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// WithdrawalFilter задаёт фильтры списка заявок на вывод.
type WithdrawalFilter struct {
	MemberID *int64
	Status   *model.WithdrawalStatus
}

// ListWithdrawals возвращает заявки на вывод по фильтру, новые первыми.
func (r *PostgresRepository) ListWithdrawals(ctx context.Context, filter WithdrawalFilter) ([]model.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`
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
	query += " ORDER BY requested_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return withdrawals, nil
}

// ApproveWithdrawal переводит заявку из PENDENTE в APROVADO.
// Из любого другого статуса переход запрещён.
func (r *PostgresRepository) ApproveWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx,
		`UPDATE withdrawals
		 SET status = $2, approved_at = now()
		 WHERE id = $1 AND status = $3
		 RETURNING `+withdrawalColumns,
		id, string(model.WithdrawalStatusApproved), string(model.WithdrawalStatusPending),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.withdrawalTransitionError(ctx, id)
		}
		return nil, fmt.Errorf("approve withdrawal: %w", err)
	}
	return w, nil
}

// RejectWithdrawal переводит заявку из PENDENTE в CANCELADO с указанием причины.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, id int64, reason string) (*model.Withdrawal, error) {
	w, err := scanWithdrawal(r.pool.QueryRow(ctx,
		`UPDATE withdrawals
		 SET status = $2, rejection_reason = $3
		 WHERE id = $1 AND status = $4
		 RETURNING `+withdrawalColumns,
		id, string(model.WithdrawalStatusCanceled), reason, string(model.WithdrawalStatusPending),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.withdrawalTransitionError(ctx, id)
		}
		return nil, fmt.Errorf("reject withdrawal: %w", err)
	}
	return w, nil
}

// MarkWithdrawalPaid переводит заявку из APROVADO в PAGO и списывает бонусы
// PENDENTE получателя в порядке начисления, пока их сумма не покроет заявку.
// Остаток меньше цента прощается; больший остаток означает нехватку бонусов,
// и транзакция откатывается целиком.
func (r *PostgresRepository) MarkWithdrawalPaid(ctx context.Context, id int64) (*model.Withdrawal, error) {
	var withdrawal *model.Withdrawal

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		w, err := scanWithdrawal(tx.QueryRow(ctx,
			`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id,
		))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrWithdrawalNotFound
			}
			return fmt.Errorf("lock withdrawal: %w", err)
		}

		if w.Status != model.WithdrawalStatusApproved {
			return ErrInvalidWithdrawalStatus
		}

		rows, err := tx.Query(ctx,
			`SELECT id, amount
			 FROM bonuses
			 WHERE beneficiary_id = $1 AND status = $2
			 ORDER BY generated_at, id
			 FOR UPDATE`,
			w.MemberID, string(model.BonusStatusPending),
		)
		if err != nil {
			return fmt.Errorf("lock bonuses: %w", err)
		}

		var pending []bonusSlice
		for rows.Next() {
			var b bonusSlice
			if err := rows.Scan(&b.ID, &b.Amount); err != nil {
				rows.Close()
				return fmt.Errorf("scan bonus: %w", err)
			}
			pending = append(pending, b)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}

		consumed, ok := pickBonusesFIFO(pending, w.Amount)
		if !ok {
			return ErrInsufficientBonusBalance
		}

		if len(consumed) > 0 {
			_, err = tx.Exec(ctx,
				`UPDATE bonuses SET status = $2, paid_at = now() WHERE id = ANY($1)`,
				consumed, string(model.BonusStatusPaid),
			)
			if err != nil {
				return fmt.Errorf("consume bonuses: %w", err)
			}
		}

		withdrawal, err = scanWithdrawal(tx.QueryRow(ctx,
			`UPDATE withdrawals SET status = $2, paid_at = now()
			 WHERE id = $1
			 RETURNING `+withdrawalColumns,
			id, string(model.WithdrawalStatusPaid),
		))
		if err != nil {
			return fmt.Errorf("update withdrawal: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return withdrawal, nil
}

// withdrawalTransitionError различает отсутствующую заявку и недопустимый переход.
func (r *PostgresRepository) withdrawalTransitionError(ctx context.Context, id int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM withdrawals WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check withdrawal: %w", err)
	}
	if !exists {
		return ErrWithdrawalNotFound
	}
	return ErrInvalidWithdrawalStatus
}

// bonusSlice — бонус в очереди на списание.
type bonusSlice struct {
	ID     int64
	Amount decimal.Decimal
}

// availableFrom считает доступный баланс из суммы бонусов и зарезервированных
// заявок, не опускаясь ниже нуля.
func availableFrom(pendingBonuses, reserved decimal.Decimal) decimal.Decimal {
	available := pendingBonuses.Sub(reserved)
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}

// pickBonusesFIFO выбирает бонусы в порядке начисления, пока их сумма не
// покроет target. Возвращает ok=false, если бонусов не хватает: остаток
// не больше remainderEpsilon считается покрытым.
func pickBonusesFIFO(pending []bonusSlice, target decimal.Decimal) ([]int64, bool) {
	remaining := target
	var consumed []int64
	for _, b := range pending {
		if !remaining.GreaterThan(remainderEpsilon) {
			break
		}
		consumed = append(consumed, b.ID)
		remaining = remaining.Sub(b.Amount)
	}
	if remaining.GreaterThan(remainderEpsilon) {
		return nil, false
	}
	return consumed, true
}

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	var status string
	err := row.Scan(&w.ID, &w.MemberID, &w.Amount, &status, &w.RejectionReason,
		&w.RequestedAt, &w.ApprovedAt, &w.PaidAt)
	if err != nil {
		return nil, err
	}
	w.Status = model.WithdrawalStatus(status)
	return &w, nil
}
