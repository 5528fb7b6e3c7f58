package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/credflow/credflow-system/internal/config"
	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

var oneHundred = decimal.NewFromInt(100)

// GetCommissionRates возвращает действующие проценты комиссий: значения из
// хранилища настроек перекрывают значения из конфигурации.
func (s *Service) GetCommissionRates(ctx context.Context) (*model.CommissionRates, error) {
	vendorPct, err := s.settingDecimal(ctx, config.KeyVendorCommissionPct, s.cfg.VendorCommissionPct)
	if err != nil {
		return nil, err
	}
	subAgentPct, err := s.settingDecimal(ctx, config.KeySubAgentCommissionPct, s.cfg.SubAgentCommissionPct)
	if err != nil {
		return nil, err
	}
	return &model.CommissionRates{VendorPct: vendorPct, SubAgentPct: subAgentPct}, nil
}

// SetCommissionRates записывает проценты комиссий в хранилище настроек.
// Оба процента должны лежать в диапазоне [0, 100]; запись атомарна.
func (s *Service) SetCommissionRates(ctx context.Context, actorID int64, rates model.CommissionRates) error {
	if !isValidRate(rates.VendorPct) || !isValidRate(rates.SubAgentPct) {
		return ErrRateOutOfRange
	}

	before, err := s.GetCommissionRates(ctx)
	if err != nil {
		return err
	}

	err = s.repo.SetSettings(ctx, map[string]string{
		config.KeyVendorCommissionPct:   rates.VendorPct.String(),
		config.KeySubAgentCommissionPct: rates.SubAgentPct.String(),
	})
	if err != nil {
		return err
	}

	s.audit(ctx, repository.NewAuditEntry{
		Entity:   "config",
		EntityID: "commission_rates",
		Action:   "update",
		ActorID:  &actorID,
		OldValue: marshalForAudit(before),
		NewValue: marshalForAudit(rates),
	})

	return nil
}

// RecordSaleForPayment записывает продажу по подтверждённому платежу клиента:
// комиссии продавца и препоста считаются от стоимости услуги по действующим
// процентам.
func (s *Service) RecordSaleForPayment(ctx context.Context, client *model.Client) (*model.Sale, error) {
	rates, err := s.GetCommissionRates(ctx)
	if err != nil {
		return nil, err
	}

	vendorCommission := client.ServiceFee.Mul(rates.VendorPct).Div(oneHundred).Round(2)

	var subAgentCommission *decimal.Decimal
	if client.SubAgentID != nil {
		c := client.ServiceFee.Mul(rates.SubAgentPct).Div(oneHundred).Round(2)
		subAgentCommission = &c
	}

	return s.repo.UpsertSaleForClient(ctx, repository.NewSale{
		ClientID:           client.ID,
		VendorID:           client.VendorID,
		SubAgentID:         client.SubAgentID,
		ServiceFee:         client.ServiceFee,
		VendorCommission:   vendorCommission,
		SubAgentCommission: subAgentCommission,
	})
}

// CommissionSummary возвращает сводку комиссий участника: продавцу считаются
// его продажи, препосту — продажи с его участием.
func (s *Service) CommissionSummary(ctx context.Context, member *model.Member) (*model.CommissionSummary, error) {
	switch member.Role {
	case model.RoleSubAgent:
		return s.repo.SubAgentCommissionSummary(ctx, member.ID)
	default:
		return s.repo.VendorCommissionSummary(ctx, member.ID)
	}
}

// ListSales возвращает продажи, видимые участнику, при необходимости
// отфильтрованные по клиенту.
func (s *Service) ListSales(ctx context.Context, member *model.Member, clientID *int64) ([]model.Sale, error) {
	ids, err := s.ViewableMemberIDs(ctx, member)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSalesByVendors(ctx, ids, clientID)
}

// AdminDashboard возвращает сводку для административной панели.
func (s *Service) AdminDashboard(ctx context.Context) (*model.DashboardSummary, error) {
	return s.repo.DashboardSummary(ctx)
}

// settingDecimal читает десятичное значение из хранилища настроек,
// возвращая fallback при отсутствии ключа или некорректном значении.
func (s *Service) settingDecimal(ctx context.Context, key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return fallback, nil
		}
		return decimal.Zero, err
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		s.logger.Warn("invalid setting value, using fallback",
			zap.String("key", key),
			zap.String("value", raw))
		return fallback, nil
	}
	return value, nil
}

func isValidRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(oneHundred)
}
