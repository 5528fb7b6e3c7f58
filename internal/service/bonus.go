package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/credflow/credflow-system/internal/config"
	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

// AccrueForClientPayment начисляет реферальный бонус приглашающему продавца,
// чей клиент оплатил услугу. Продавец без приглашающего бонуса не порождает.
// Повторный вызов за тот же платёж дубликата не создаёт.
func (s *Service) AccrueForClientPayment(ctx context.Context, client *model.Client, payment *model.Payment) error {
	vendor, err := s.repo.GetMember(ctx, client.VendorID)
	if err != nil {
		return err
	}
	if vendor.ReferrerID == nil {
		return nil
	}

	// Сумма бонуса определяется уровнем продавца, а не приглашающего.
	amount, err := s.tierBonusOrFallback(ctx, vendor.TierID)
	if err != nil {
		return err
	}

	bonus, created, err := s.repo.CreateBonusForPayment(ctx, *vendor.ReferrerID, payment.ID, amount)
	if err != nil {
		return err
	}
	if !created {
		s.logger.Info("bonus already accrued for payment",
			zap.Int64("paymentID", payment.ID),
			zap.Int64("bonusID", bonus.ID))
		return nil
	}

	s.logger.Info("referral bonus accrued",
		zap.Int64("bonusID", bonus.ID),
		zap.Int64("beneficiaryID", bonus.BeneficiaryID),
		zap.Int64("paymentID", payment.ID),
		zap.String("amount", bonus.Amount.String()))

	return nil
}

// AccrueForMembershipPayment начисляет реферальный бонус приглашающему
// участника, оплатившего вступление в уровень. Повторный вызов за тот же
// платёж дубликата не создаёт.
func (s *Service) AccrueForMembershipPayment(ctx context.Context, payment *model.MembershipPayment) error {
	member, err := s.repo.GetMember(ctx, payment.MemberID)
	if err != nil {
		return err
	}
	if member.ReferrerID == nil {
		return nil
	}

	// Сумма бонуса — бонус уровня, в который вступил участник.
	tier, err := s.repo.GetTier(ctx, payment.TierID)
	if err != nil {
		return err
	}
	amount := tier.ReferralBonus

	bonus, created, err := s.repo.CreateBonusForMembershipPayment(ctx, *member.ReferrerID, payment.ID, amount)
	if err != nil {
		return err
	}
	if !created {
		s.logger.Info("bonus already accrued for membership payment",
			zap.Int64("membershipPaymentID", payment.ID),
			zap.Int64("bonusID", bonus.ID))
		return nil
	}

	s.logger.Info("referral bonus accrued",
		zap.Int64("bonusID", bonus.ID),
		zap.Int64("beneficiaryID", bonus.BeneficiaryID),
		zap.Int64("membershipPaymentID", payment.ID),
		zap.String("amount", bonus.Amount.String()))

	return nil
}

// tierBonusOrFallback возвращает бонус указанного уровня, а при отсутствии
// уровня — значение по умолчанию из настроек или конфигурации.
func (s *Service) tierBonusOrFallback(ctx context.Context, tierID *int64) (decimal.Decimal, error) {
	if tierID != nil {
		tier, err := s.repo.GetTier(ctx, *tierID)
		if err != nil {
			return decimal.Zero, err
		}
		return tier.ReferralBonus, nil
	}

	return s.settingDecimal(ctx, config.KeyReferralBonusFallback, s.cfg.ReferralBonusFallback)
}

// ListBonuses возвращает бонусы по фильтру с данными получателей.
func (s *Service) ListBonuses(ctx context.Context, filter repository.BonusFilter) ([]model.BonusListItem, error) {
	return s.repo.ListBonuses(ctx, filter)
}

// BonusSummary возвращает сводку бонусов получателя; nil даёт сводку по всем.
func (s *Service) BonusSummary(ctx context.Context, beneficiaryID *int64) (*model.BonusSummary, error) {
	return s.repo.SummarizeBonuses(ctx, beneficiaryID)
}
