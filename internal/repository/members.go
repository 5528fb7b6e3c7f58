package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/credflow/credflow-system/internal/model"
)

const memberColumns = `id, name, email, password_hash, role, parent_vendor_id, referrer_id, tier_id, status, created_at`

// NewMember описывает данные для создания участника.
type NewMember struct {
	Name           string
	Email          string
	PasswordHash   string
	Role           model.Role
	ParentVendorID *int64
	ReferrerID     *int64
	TierID         *int64
}

// CreateMember создаёт нового участника сети.
func (r *PostgresRepository) CreateMember(ctx context.Context, m NewMember) (*model.Member, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO members (name, email, password_hash, role, parent_vendor_id, referrer_id, tier_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+memberColumns,
		m.Name, strings.ToLower(m.Email), m.PasswordHash, string(m.Role), m.ParentVendorID, m.ReferrerID, m.TierID,
	)

	member, err := scanMember(row)
	if err != nil {
		if isUniqueViolation(err, "members_email") {
			return nil, fmt.Errorf("%w: %s", ErrEmailExists, m.Email)
		}
		return nil, fmt.Errorf("create member: %w", err)
	}
	return member, nil
}

// GetMember возвращает участника по идентификатору.
func (r *PostgresRepository) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	member, err := scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

// GetMemberByEmail возвращает участника по e-mail.
func (r *PostgresRepository) GetMemberByEmail(ctx context.Context, email string) (*model.Member, error) {
	member, err := scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE email = $1`, strings.ToLower(email),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return member, nil
}

// MemberFilter описывает условия выборки участников.
type MemberFilter struct {
	Roles          []model.Role
	ParentVendorID *int64
	ReferrerID     *int64
	Status         model.MemberStatus
}

// ListMembers возвращает участников по фильтру в порядке создания.
func (r *PostgresRepository) ListMembers(ctx context.Context, f MemberFilter) ([]model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members`
	var conds []string
	var args []any

	if len(f.Roles) > 0 {
		roles := make([]string, 0, len(f.Roles))
		for _, role := range f.Roles {
			roles = append(roles, string(role))
		}
		args = append(args, roles)
		conds = append(conds, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if f.ParentVendorID != nil {
		args = append(args, *f.ParentVendorID)
		conds = append(conds, fmt.Sprintf("parent_vendor_id = $%d", len(args)))
	}
	if f.ReferrerID != nil {
		args = append(args, *f.ReferrerID)
		conds = append(conds, fmt.Sprintf("referrer_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return members, nil
}

// MemberPatch описывает изменяемые поля участника; nil означает «не менять».
type MemberPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Status       *model.MemberStatus
	ReferrerID   **int64
	TierID       **int64
}

// UpdateMember изменяет данные участника и возвращает состояние до и после.
func (r *PostgresRepository) UpdateMember(ctx context.Context, id int64, patch MemberPatch) (before, after *model.Member, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	before, err = scanMember(tx.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrMemberNotFound
		}
		return nil, nil, fmt.Errorf("get member: %w", err)
	}

	updated := *before
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Email != nil {
		updated.Email = strings.ToLower(*patch.Email)
	}
	if patch.PasswordHash != nil {
		updated.PasswordHash = *patch.PasswordHash
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
	}
	if patch.ReferrerID != nil {
		updated.ReferrerID = *patch.ReferrerID
	}
	if patch.TierID != nil {
		updated.TierID = *patch.TierID
	}

	after, err = scanMember(tx.QueryRow(ctx,
		`UPDATE members
		 SET name = $2, email = $3, password_hash = $4, status = $5, referrer_id = $6, tier_id = $7
		 WHERE id = $1
		 RETURNING `+memberColumns,
		id, updated.Name, updated.Email, updated.PasswordHash, string(updated.Status), updated.ReferrerID, updated.TierID,
	))
	if err != nil {
		if isUniqueViolation(err, "members_email") {
			return nil, nil, fmt.Errorf("%w: %s", ErrEmailExists, updated.Email)
		}
		return nil, nil, fmt.Errorf("update member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}

	return before, after, nil
}

// DeleteMember удаляет участника. Участник с зависимыми записями не удаляется.
func (r *PostgresRepository) DeleteMember(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMemberInUse
		}
		return fmt.Errorf("delete member: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func scanMember(row pgx.Row) (*model.Member, error) {
	var m model.Member
	var role, status string
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &role,
		&m.ParentVendorID, &m.ReferrerID, &m.TierID, &status, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	m.Status = model.MemberStatus(status)
	return &m, nil
}
