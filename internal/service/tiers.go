package service

import (
	"context"
	"strconv"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

// ListTiers возвращает уровни членства по возрастанию ранга.
func (s *Service) ListTiers(ctx context.Context) ([]model.Tier, error) {
	return s.repo.ListTiers(ctx)
}

// GetTier возвращает уровень по идентификатору.
func (s *Service) GetTier(ctx context.Context, id int64) (*model.Tier, error) {
	return s.repo.GetTier(ctx, id)
}

// UpdateTier изменяет параметры уровня и пишет снимки до и после в журнал аудита.
func (s *Service) UpdateTier(ctx context.Context, actorID, id int64, patch repository.TierPatch) (*model.Tier, error) {
	if patch.MembershipFee != nil && patch.MembershipFee.IsNegative() {
		return nil, ErrInvalidAmount
	}
	if patch.ReferralBonus != nil && patch.ReferralBonus.IsNegative() {
		return nil, ErrInvalidAmount
	}

	change, err := s.repo.UpdateTier(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "tier",
		EntityID: strconv.FormatInt(id, 10),
		Action:   "update",
		ActorID:  &actorID,
		OldValue: marshalForAudit(change.Before),
		NewValue: marshalForAudit(change.After),
	})

	return &change.After, nil
}
