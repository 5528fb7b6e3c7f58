// Package service реализует бизнес-логику сервиса CredFlow.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/credflow/credflow-system/internal/config"
	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

// ErrForbidden возвращается, если операция недоступна текущему участнику.
var (
	ErrForbidden = errors.New("operation forbidden")
	// ErrInvalidCredentials возвращается при неверном e-mail или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotPayoutDay возвращается при запросе вывода вне дня выплат.
	ErrNotPayoutDay = errors.New("withdrawals accepted only on payout day")
	// ErrInvalidAmount возвращается при нулевой или отрицательной сумме.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrRateOutOfRange возвращается при проценте комиссии вне диапазона [0, 100].
	ErrRateOutOfRange = errors.New("commission rate must be between 0 and 100")
	// ErrSelfDeletion возвращается при попытке участника удалить самого себя.
	ErrSelfDeletion = errors.New("cannot delete own account")
	// ErrReferralNotEligible возвращается, если участник не может приглашать по реферальной ссылке.
	ErrReferralNotEligible = errors.New("member is not eligible to refer")
)

// AmountMismatchError возвращается, если сумма платежа не совпадает с ожидаемой.
type AmountMismatchError struct {
	Expected decimal.Decimal
	Got      decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: expected %s, got %s", e.Expected, e.Got)
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	ListTiers(ctx context.Context) ([]model.Tier, error)
	GetTier(ctx context.Context, id int64) (*model.Tier, error)
	GetTierByName(ctx context.Context, name string) (*model.Tier, error)
	UpdateTier(ctx context.Context, id int64, patch repository.TierPatch) (*model.TierChange, error)

	CreateMember(ctx context.Context, m repository.NewMember) (*model.Member, error)
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*model.Member, error)
	ListMembers(ctx context.Context, f repository.MemberFilter) ([]model.Member, error)
	UpdateMember(ctx context.Context, id int64, patch repository.MemberPatch) (before, after *model.Member, err error)
	DeleteMember(ctx context.Context, id int64) error

	CreateClient(ctx context.Context, c repository.NewClient) (*model.Client, error)
	GetClient(ctx context.Context, id int64) (*model.Client, error)
	GetClientByToken(ctx context.Context, token string) (*model.Client, error)
	ListClientsByVendors(ctx context.Context, vendorIDs []int64) ([]model.Client, error)
	UpdateClient(ctx context.Context, id int64, patch repository.ClientPatch) (*model.Client, error)
	UpdateClientStatus(ctx context.Context, id int64, status model.ProcessStatus, description string) (*model.Client, error)
	DeleteClient(ctx context.Context, id int64) error
	ListProcessHistory(ctx context.Context, clientID int64) ([]model.ProcessHistoryEntry, error)

	CreatePayment(ctx context.Context, clientID int64, amount decimal.Decimal, method string) (*model.Payment, error)
	GetPayment(ctx context.Context, id int64) (*model.Payment, error)
	ConfirmClientPayment(ctx context.Context, paymentID int64) (*repository.ConfirmResult, error)
	ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]model.Payment, error)

	CreateMembershipPayment(ctx context.Context, memberID, tierID int64, amount decimal.Decimal, method string) (*model.MembershipPayment, error)
	GetMembershipPayment(ctx context.Context, id int64) (*model.MembershipPayment, error)
	ConfirmMembershipPayment(ctx context.Context, paymentID int64) (*repository.MembershipConfirmResult, error)
	ListMembershipPayments(ctx context.Context, filter repository.MembershipPaymentFilter) ([]model.MembershipPayment, error)

	UpsertSaleForClient(ctx context.Context, s repository.NewSale) (*model.Sale, error)
	ListSalesByVendors(ctx context.Context, vendorIDs []int64, clientID *int64) ([]model.Sale, error)
	VendorCommissionSummary(ctx context.Context, vendorID int64) (*model.CommissionSummary, error)
	SubAgentCommissionSummary(ctx context.Context, subAgentID int64) (*model.CommissionSummary, error)
	DashboardSummary(ctx context.Context) (*model.DashboardSummary, error)

	CreateBonusForPayment(ctx context.Context, beneficiaryID, paymentID int64, amount decimal.Decimal) (*model.Bonus, bool, error)
	CreateBonusForMembershipPayment(ctx context.Context, beneficiaryID, membershipPaymentID int64, amount decimal.Decimal) (*model.Bonus, bool, error)
	ListBonuses(ctx context.Context, filter repository.BonusFilter) ([]model.BonusListItem, error)
	SummarizeBonuses(ctx context.Context, beneficiaryID *int64) (*model.BonusSummary, error)

	AvailableBalance(ctx context.Context, memberID int64) (decimal.Decimal, error)
	CreateWithdrawal(ctx context.Context, memberID int64, amount decimal.Decimal) (*model.Withdrawal, error)
	GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filter repository.WithdrawalFilter) ([]model.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, id int64, reason string) (*model.Withdrawal, error)
	MarkWithdrawalPaid(ctx context.Context, id int64) (*model.Withdrawal, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSettings(ctx context.Context, settings map[string]string) error

	CreateAuditEntry(ctx context.Context, e repository.NewAuditEntry) error
	ListAuditEntries(ctx context.Context, filter repository.AuditFilter) ([]model.AuditEntry, error)
}

// Service содержит бизнес-логику сервиса CredFlow.
type Service struct {
	repo   Repository
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием и конфигурацией.
func NewService(repo Repository, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func (s *Service) audit(ctx context.Context, e repository.NewAuditEntry) {
	if err := s.repo.CreateAuditEntry(ctx, e); err != nil {
		s.logger.Warn("failed to write audit entry",
			zap.String("entity", e.Entity),
			zap.String("action", e.Action),
			zap.Error(err))
	}
}
