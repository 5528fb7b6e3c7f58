package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/credflow/credflow-system/internal/model"
)

// NewAuditEntry описывает данные записи журнала аудита.
type NewAuditEntry struct {
	Entity   string
	EntityID string
	Action   string
	ActorID  *int64
	OldValue string
	NewValue string
	Details  string
}

// CreateAuditEntry добавляет запись в журнал аудита. Журнал только пополняется.
func (r *PostgresRepository) CreateAuditEntry(ctx context.Context, e NewAuditEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_log (entity, entity_id, action, actor_id, old_value, new_value, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.Entity, e.EntityID, e.Action, e.ActorID, e.OldValue, e.NewValue, e.Details,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// AuditFilter задаёт фильтры выборки журнала аудита.
type AuditFilter struct {
	Entity   *string
	EntityID *string
	ActorID  *int64
	From     *time.Time
	To       *time.Time
	Limit    int
}

// ListAuditEntries возвращает записи журнала по фильтру, новые первыми.
// Нулевой Limit заменяется значением по умолчанию 200.
func (r *PostgresRepository) ListAuditEntries(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT id, entity, entity_id, action, actor_id, old_value, new_value, details, created_at
	          FROM audit_log`
	var args []any
	var where []string

	if filter.Entity != nil {
		args = append(args, *filter.Entity)
		where = append(where, fmt.Sprintf("entity = $%d", len(args)))
	}
	if filter.EntityID != nil {
		args = append(args, *filter.EntityID)
		where = append(where, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if filter.ActorID != nil {
		args = append(args, *filter.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + where[0]
		for _, cond := range where[1:] {
			query += " AND " + cond
		}
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select audit entries: %w", err)
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		err := rows.Scan(&e.ID, &e.Entity, &e.EntityID, &e.Action, &e.ActorID,
			&e.OldValue, &e.NewValue, &e.Details, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}
