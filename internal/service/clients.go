package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
	"github.com/credflow/credflow-system/internal/validation"
)

// tokenAttempts ограничивает число попыток при коллизии токена отслеживания.
const tokenAttempts = 5

// NewClientInput описывает данные для регистрации клиента.
type NewClientInput struct {
	Name       string
	Document   string
	Phone      string
	Email      string
	ServiceFee decimal.Decimal
}

// CreateClient регистрирует клиента за участником: для продавца клиент
// закрепляется напрямую, для препоста — за его родительским продавцом с
// указанием препоста. Токен отслеживания генерируется с повтором при коллизии.
func (s *Service) CreateClient(ctx context.Context, actor *model.Member, in NewClientInput) (*model.Client, error) {
	if !validation.IsValidDocument(in.Document) {
		return nil, fmt.Errorf("invalid document %q", in.Document)
	}
	if !in.ServiceFee.IsPositive() {
		return nil, ErrInvalidAmount
	}

	newClient := repository.NewClient{
		Name:       in.Name,
		Document:   validation.NormalizeDocument(in.Document),
		Phone:      in.Phone,
		Email:      in.Email,
		ServiceFee: in.ServiceFee,
	}

	switch actor.Role {
	case model.RoleVendor, model.RoleAdmin:
		newClient.VendorID = actor.ID
	case model.RoleSubAgent:
		if actor.ParentVendorID == nil {
			return nil, fmt.Errorf("%w: sub-agent has no parent vendor", ErrForbidden)
		}
		newClient.VendorID = *actor.ParentVendorID
		newClient.SubAgentID = &actor.ID
	default:
		return nil, ErrForbidden
	}

	for attempt := 0; attempt < tokenAttempts; attempt++ {
		token, err := validation.NewTrackingToken()
		if err != nil {
			return nil, err
		}
		newClient.TrackingToken = token

		client, err := s.repo.CreateClient(ctx, newClient)
		if err != nil {
			if errors.Is(err, repository.ErrTokenExists) {
				continue
			}
			return nil, err
		}

		s.audit(ctx, repository.NewAuditEntry{
			Entity:   "client",
			EntityID: strconv.FormatInt(client.ID, 10),
			Action:   "create",
			ActorID:  &actor.ID,
			NewValue: marshalForAudit(client),
		})

		return client, nil
	}

	return nil, repository.ErrTokenExists
}

// GetClient возвращает клиента, если он виден запрашивающему участнику.
func (s *Service) GetClient(ctx context.Context, actor *model.Member, id int64) (*model.Client, error) {
	client, err := s.repo.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkClientAccess(ctx, actor, client); err != nil {
		return nil, err
	}
	return client, nil
}

// TrackClient возвращает клиента и историю его процесса по публичному токену.
func (s *Service) TrackClient(ctx context.Context, token string) (*model.Client, []model.ProcessHistoryEntry, error) {
	client, err := s.repo.GetClientByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	history, err := s.repo.ListProcessHistory(ctx, client.ID)
	if err != nil {
		return nil, nil, err
	}

	return client, history, nil
}

// ListClients возвращает клиентов, видимых участнику.
func (s *Service) ListClients(ctx context.Context, actor *model.Member) ([]model.Client, error) {
	ids, err := s.ViewableMemberIDs(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.repo.ListClientsByVendors(ctx, ids)
}

// UpdateClient изменяет данные клиента с проверкой доступа.
func (s *Service) UpdateClient(ctx context.Context, actor *model.Member, id int64, patch repository.ClientPatch) (*model.Client, error) {
	if patch.Document != nil {
		if !validation.IsValidDocument(*patch.Document) {
			return nil, fmt.Errorf("invalid document %q", *patch.Document)
		}
		normalized := validation.NormalizeDocument(*patch.Document)
		patch.Document = &normalized
	}
	if patch.ServiceFee != nil && !patch.ServiceFee.IsPositive() {
		return nil, ErrInvalidAmount
	}

	client, err := s.GetClient(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateClient(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "client",
		EntityID: strconv.FormatInt(id, 10),
		Action:   "update",
		ActorID:  &actor.ID,
		OldValue: marshalForAudit(client),
		NewValue: marshalForAudit(updated),
	})

	return updated, nil
}

// UpdateClientStatus переводит процесс клиента в новый статус.
func (s *Service) UpdateClientStatus(ctx context.Context, actor *model.Member, id int64, status model.ProcessStatus, description string) (*model.Client, error) {
	if _, err := s.GetClient(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.UpdateClientStatus(ctx, id, status, description)
}

// DeleteClient удаляет клиента с проверкой доступа.
func (s *Service) DeleteClient(ctx context.Context, actor *model.Member, id int64) error {
	if _, err := s.GetClient(ctx, actor, id); err != nil {
		return err
	}

	if err := s.repo.DeleteClient(ctx, id); err != nil {
		return err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "client",
		EntityID: strconv.FormatInt(id, 10),
		Action:   "delete",
		ActorID:  &actor.ID,
	})

	return nil
}

// checkClientAccess проверяет, что клиент виден участнику: админ видит всех,
// продавец — своих клиентов и клиентов своих препостов, препост — своих и
// клиентов своего продавца.
func (s *Service) checkClientAccess(ctx context.Context, actor *model.Member, client *model.Client) error {
	if actor.Role == model.RoleAdmin {
		return nil
	}

	ids, err := s.ViewableMemberIDs(ctx, actor)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if client.VendorID == id {
			return nil
		}
		if client.SubAgentID != nil && *client.SubAgentID == id {
			return nil
		}
	}
	return ErrForbidden
}

// ListAuditEntries возвращает записи журнала аудита по фильтру.
func (s *Service) ListAuditEntries(ctx context.Context, filter repository.AuditFilter) ([]model.AuditEntry, error) {
	return s.repo.ListAuditEntries(ctx, filter)
}
