package service

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

// amountEpsilon — допуск на расхождение суммы платежа с ожидаемой.
var amountEpsilon = decimal.NewFromFloat(0.01)

// CreateClientPayment создаёт платёж клиента в статусе PENDENTE.
func (s *Service) CreateClientPayment(ctx context.Context, clientID int64, amount decimal.Decimal, method string) (*model.Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return s.repo.CreatePayment(ctx, clientID, amount, method)
}

// CreateClientPaymentByToken создаёт платёж клиента по публичному токену отслеживания.
func (s *Service) CreateClientPaymentByToken(ctx context.Context, token string, amount decimal.Decimal, method string) (*model.Payment, error) {
	client, err := s.repo.GetClientByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.CreateClientPayment(ctx, client.ID, amount, method)
}

// ConfirmClientPayment подтверждает платёж клиента. Первое подтверждение
// записывает продажу с комиссиями и начисляет реферальный бонус приглашающему
// продавца; повторное возвращает подтверждённый платёж с Already=true и
// никаких побочных эффектов не производит.
func (s *Service) ConfirmClientPayment(ctx context.Context, actorID, paymentID int64) (*repository.ConfirmResult, error) {
	result, err := s.repo.ConfirmClientPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if result.Already {
		return result, nil
	}

	client, err := s.repo.GetClient(ctx, result.Payment.ClientID)
	if err != nil {
		return nil, err
	}

	sale, err := s.RecordSaleForPayment(ctx, client)
	if err != nil {
		return nil, err
	}

	if err := s.AccrueForClientPayment(ctx, client, result.Payment); err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "payment",
		EntityID: strconv.FormatInt(paymentID, 10),
		Action:   "confirm",
		ActorID:  &actorID,
		Details:  "sale " + strconv.FormatInt(sale.ID, 10),
	})

	s.logger.Info("client payment confirmed",
		zap.Int64("paymentID", paymentID),
		zap.Int64("clientID", client.ID),
		zap.Int64("saleID", sale.ID))

	return result, nil
}

// GetPayment возвращает платёж клиента по идентификатору.
func (s *Service) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	return s.repo.GetPayment(ctx, id)
}

// ListPayments возвращает платежи клиентов по фильтру.
func (s *Service) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]model.Payment, error) {
	return s.repo.ListPayments(ctx, filter)
}

// CreateMembershipPayment создаёт платёж за вступление в уровень. Сумма должна
// совпадать с платой уровня с точностью до цента.
func (s *Service) CreateMembershipPayment(ctx context.Context, memberID int64, tierName string, amount decimal.Decimal, method string) (*model.MembershipPayment, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	tier, err := s.repo.GetTierByName(ctx, tierName)
	if err != nil {
		return nil, err
	}

	if amount.Sub(tier.MembershipFee).Abs().GreaterThan(amountEpsilon) {
		return nil, &AmountMismatchError{Expected: tier.MembershipFee, Got: amount}
	}

	return s.repo.CreateMembershipPayment(ctx, memberID, tier.ID, amount, method)
}

// ConfirmMembershipPayment подтверждает платёж за вступление. Первое
// подтверждение закрепляет уровень за участником и начисляет реферальный бонус
// его приглашающему; повторное возвращает Already=true.
func (s *Service) ConfirmMembershipPayment(ctx context.Context, actorID, paymentID int64) (*repository.MembershipConfirmResult, error) {
	result, err := s.repo.ConfirmMembershipPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if result.Already {
		return result, nil
	}

	if err := s.AccrueForMembershipPayment(ctx, result.Payment); err != nil {
		return nil, err
	}

	member, err := s.repo.GetMember(ctx, result.Payment.MemberID)
	if err != nil {
		return nil, err
	}
	tier, err := s.repo.GetTier(ctx, result.Payment.TierID)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "membership_payment",
		EntityID: strconv.FormatInt(paymentID, 10),
		Action:   "confirm",
		ActorID:  &actorID,
		OldValue: string(model.PaymentStatusPending),
		NewValue: string(model.PaymentStatusPaid),
		Details:  member.Name + " - " + tier.Name + " - " + result.Payment.Amount.StringFixed(2),
	})

	s.logger.Info("membership payment confirmed",
		zap.Int64("paymentID", paymentID),
		zap.Int64("memberID", result.Payment.MemberID))

	return result, nil
}

// GetMembershipPayment возвращает платёж за вступление по идентификатору.
func (s *Service) GetMembershipPayment(ctx context.Context, id int64) (*model.MembershipPayment, error) {
	return s.repo.GetMembershipPayment(ctx, id)
}

// ListMembershipPayments возвращает платежи за вступление по фильтру.
func (s *Service) ListMembershipPayments(ctx context.Context, filter repository.MembershipPaymentFilter) ([]model.MembershipPayment, error) {
	return s.repo.ListMembershipPayments(ctx, filter)
}
