package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
)

const clientColumns = `id, name, document, phone, email, vendor_id, sub_agent_id, service_fee, process_status, tracking_token, created_at`

// NewClient описывает данные для создания клиента.
type NewClient struct {
	Name          string
	Document      string
	Phone         string
	Email         string
	VendorID      int64
	SubAgentID    *int64
	ServiceFee    decimal.Decimal
	TrackingToken string
}

// CreateClient создаёт клиента и первую запись истории процесса в одной транзакции.
func (r *PostgresRepository) CreateClient(ctx context.Context, c NewClient) (*model.Client, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	client, err := scanClient(tx.QueryRow(ctx,
		`INSERT INTO clients (name, document, phone, email, vendor_id, sub_agent_id, service_fee, tracking_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+clientColumns,
		c.Name, c.Document, c.Phone, c.Email, c.VendorID, c.SubAgentID, c.ServiceFee, c.TrackingToken,
	))
	if err != nil {
		if isUniqueViolation(err, "clients_tracking_token") {
			return nil, ErrTokenExists
		}
		return nil, fmt.Errorf("insert client: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO process_history (client_id, status, description) VALUES ($1, $2, $3)`,
		client.ID, string(model.ProcessStatusReceived), "Cadastro recebido no sistema",
	)
	if err != nil {
		return nil, fmt.Errorf("insert process history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return client, nil
}

// GetClient возвращает клиента по идентификатору.
func (r *PostgresRepository) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	client, err := scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}

// GetClientByToken возвращает клиента по токену отслеживания.
func (r *PostgresRepository) GetClientByToken(ctx context.Context, token string) (*model.Client, error) {
	client, err := scanClient(r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE tracking_token = $1`, token,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client by token: %w", err)
	}
	return client, nil
}

// ListClientsByVendors возвращает клиентов указанных продавцов, новые первыми.
func (r *PostgresRepository) ListClientsByVendors(ctx context.Context, vendorIDs []int64) ([]model.Client, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+`
		 FROM clients
		 WHERE vendor_id = ANY($1)
		 ORDER BY created_at DESC`,
		vendorIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select clients: %w", err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return clients, nil
}

// ClientPatch описывает изменяемые поля клиента; nil означает «не менять».
type ClientPatch struct {
	Name       *string
	Document   *string
	Phone      *string
	Email      *string
	ServiceFee *decimal.Decimal
}

// UpdateClient изменяет данные клиента.
func (r *PostgresRepository) UpdateClient(ctx context.Context, id int64, patch ClientPatch) (*model.Client, error) {
	client, err := scanClient(r.pool.QueryRow(ctx,
		`UPDATE clients
		 SET name = COALESCE($2, name),
		     document = COALESCE($3, document),
		     phone = COALESCE($4, phone),
		     email = COALESCE($5, email),
		     service_fee = COALESCE($6, service_fee)
		 WHERE id = $1
		 RETURNING `+clientColumns,
		id, patch.Name, patch.Document, patch.Phone, patch.Email, patch.ServiceFee,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("update client: %w", err)
	}
	return client, nil
}

// UpdateClientStatus переводит клиента в новый статус процесса и пишет запись истории.
func (r *PostgresRepository) UpdateClientStatus(ctx context.Context, id int64, status model.ProcessStatus, description string) (*model.Client, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	client, err := scanClient(tx.QueryRow(ctx,
		`UPDATE clients SET process_status = $2 WHERE id = $1 RETURNING `+clientColumns,
		id, string(status),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("update client status: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO process_history (client_id, status, description) VALUES ($1, $2, $3)`,
		id, string(status), description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert process history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return client, nil
}

// DeleteClient удаляет клиента вместе с историей процесса.
func (r *PostgresRepository) DeleteClient(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete client: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

// ListProcessHistory возвращает историю процесса клиента, новые записи первыми.
func (r *PostgresRepository) ListProcessHistory(ctx context.Context, clientID int64) ([]model.ProcessHistoryEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, client_id, status, description, created_at
		 FROM process_history
		 WHERE client_id = $1
		 ORDER BY created_at DESC, id DESC`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("select process history: %w", err)
	}
	defer rows.Close()

	var entries []model.ProcessHistoryEntry
	for rows.Next() {
		var e model.ProcessHistoryEntry
		var status string
		if err := rows.Scan(&e.ID, &e.ClientID, &status, &e.Description, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan process history: %w", err)
		}
		e.Status = model.ProcessStatus(status)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}

func scanClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	var status string
	err := row.Scan(&c.ID, &c.Name, &c.Document, &c.Phone, &c.Email, &c.VendorID,
		&c.SubAgentID, &c.ServiceFee, &status, &c.TrackingToken, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.ProcessStatus = model.ProcessStatus(status)
	return &c, nil
}
