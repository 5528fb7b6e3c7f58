package service

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

// AvailableBalance возвращает доступный для вывода баланс участника.
func (s *Service) AvailableBalance(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	return s.repo.AvailableBalance(ctx, memberID)
}

// RequestWithdrawal создаёт заявку на вывод средств. Заявки принимаются только
// в день выплат; сумма должна быть положительной и не превышать доступный баланс.
func (s *Service) RequestWithdrawal(ctx context.Context, memberID int64, amount decimal.Decimal) (*model.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if s.now().Weekday() != s.cfg.PayoutWeekday {
		return nil, ErrNotPayoutDay
	}

	withdrawal, err := s.repo.CreateWithdrawal(ctx, memberID, amount)
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal requested",
		zap.Int64("withdrawalID", withdrawal.ID),
		zap.Int64("memberID", memberID),
		zap.String("amount", amount.String()))

	return withdrawal, nil
}

// GetWithdrawal возвращает заявку на вывод по идентификатору.
func (s *Service) GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	return s.repo.GetWithdrawal(ctx, id)
}

// ListWithdrawals возвращает заявки на вывод по фильтру.
func (s *Service) ListWithdrawals(ctx context.Context, filter repository.WithdrawalFilter) ([]model.Withdrawal, error) {
	return s.repo.ListWithdrawals(ctx, filter)
}

// ApproveWithdrawal одобряет заявку на вывод.
func (s *Service) ApproveWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error) {
	withdrawal, err := s.repo.ApproveWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "withdrawal",
		EntityID: strconv.FormatInt(id, 10),
		Action:   "approve",
		ActorID:  &actorID,
	})

	return withdrawal, nil
}

// RejectWithdrawal отклоняет заявку на вывод с указанием причины.
func (s *Service) RejectWithdrawal(ctx context.Context, actorID, id int64, reason string) (*model.Withdrawal, error) {
	withdrawal, err := s.repo.RejectWithdrawal(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "withdrawal",
		EntityID: strconv.FormatInt(id, 10),
		Action:   "reject",
		ActorID:  &actorID,
		Details:  reason,
	})

	return withdrawal, nil
}

// MarkWithdrawalPaid отмечает заявку выплаченной и списывает бонусы получателя
// в порядке начисления.
func (s *Service) MarkWithdrawalPaid(ctx context.Context, actorID, id int64) (*model.Withdrawal, error) {
	withdrawal, err := s.repo.MarkWithdrawalPaid(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "withdrawal",
		EntityID: strconv.FormatInt(id, 10),
		Action:   "mark_paid",
		ActorID:  &actorID,
	})

	s.logger.Info("withdrawal paid",
		zap.Int64("withdrawalID", id),
		zap.Int64("memberID", withdrawal.MemberID),
		zap.String("amount", withdrawal.Amount.String()))

	return withdrawal, nil
}
