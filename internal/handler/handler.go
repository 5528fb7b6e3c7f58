// Package handler содержит HTTP-обработчики API сервиса CredFlow.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/credflow/credflow-system/internal/middleware"
	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
	"github.com/credflow/credflow-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (*model.Member, error)

	ListTiers(ctx context.Context) ([]model.Tier, error)
	GetTier(ctx context.Context, id int64) (*model.Tier, error)
	UpdateTier(ctx context.Context, actorID, id int64, patch repository.TierPatch) (*model.Tier, error)

	CreateMember(ctx context.Context, actorID int64, in service.NewMemberInput) (*model.Member, error)
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	ListMembers(ctx context.Context, f repository.MemberFilter) ([]model.Member, error)
	UpdateMember(ctx context.Context, actorID, id int64, patch repository.MemberPatch) (*model.Member, error)
	DeleteMember(ctx context.Context, actorID, id int64) error
	GetReferralLinkInfo(ctx context.Context, referrerID int64) (*service.ReferralLinkInfo, error)
	ReferralSignup(ctx context.Context, in service.ReferralSignupInput) (*service.ReferralSignupResult, error)
	ReferralTree(ctx context.Context, rootID int64) (*model.ReferralTreeNode, error)
	ReferralForest(ctx context.Context) ([]*model.ReferralTreeNode, error)

	CreateClient(ctx context.Context, actor *model.Member, in service.NewClientInput) (*model.Client, error)
	GetClient(ctx context.Context, actor *model.Member, id int64) (*model.Client, error)
	TrackClient(ctx context.Context, token string) (*model.Client, []model.ProcessHistoryEntry, error)
	ListClients(ctx context.Context, actor *model.Member) ([]model.Client, error)
	UpdateClient(ctx context.Context, actor *model.Member, id int64, patch repository.ClientPatch) (*model.Client, error)
	UpdateClientStatus(ctx context.Context, actor *model.Member, id int64, status model.ProcessStatus, description string) (*model.Client, error)
	DeleteClient(ctx context.Context, actor *model.Member, id int64) error

	CreateClientPayment(ctx context.Context, clientID int64, amount decimal.Decimal, method string) (*model.Payment, error)
	CreateClientPaymentByToken(ctx context.Context, token string, amount decimal.Decimal, method string) (*model.Payment, error)
	ConfirmClientPayment(ctx context.Context, actorID, paymentID int64) (*repository.ConfirmResult, error)
	ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]model.Payment, error)

	CreateMembershipPayment(ctx context.Context, memberID int64, tierName string, amount decimal.Decimal, method string) (*model.MembershipPayment, error)
	ConfirmMembershipPayment(ctx context.Context, actorID, paymentID int64) (*repository.MembershipConfirmResult, error)
	ListMembershipPayments(ctx context.Context, filter repository.MembershipPaymentFilter) ([]model.MembershipPayment, error)

	ListSales(ctx context.Context, member *model.Member, clientID *int64) ([]model.Sale, error)
	CommissionSummary(ctx context.Context, member *model.Member) (*model.CommissionSummary, error)
	AdminDashboard(ctx context.Context) (*model.DashboardSummary, error)

	ListBonuses(ctx context.Context, filter repository.BonusFilter) ([]model.BonusListItem, error)
	BonusSummary(ctx context.Context, beneficiaryID *int64) (*model.BonusSummary, error)

	AvailableBalance(ctx context.Context, memberID int64) (decimal.Decimal, error)
	RequestWithdrawal(ctx context.Context, memberID int64, amount decimal.Decimal) (*model.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filter repository.WithdrawalFilter) ([]model.Withdrawal, error)
	ApproveWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error)
	RejectWithdrawal(ctx context.Context, actorID, id int64, reason string) (*model.Withdrawal, error)
	MarkWithdrawalPaid(ctx context.Context, actorID, id int64) (*model.Withdrawal, error)

	GetCommissionRates(ctx context.Context) (*model.CommissionRates, error)
	SetCommissionRates(ctx context.Context, actorID int64, rates model.CommissionRates) error

	ListAuditEntries(ctx context.Context, filter repository.AuditFilter) ([]model.AuditEntry, error)
}

// Handler реализует HTTP-обработчики API сервиса CredFlow.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

// currentMember возвращает аутентифицированного участника запроса.
func (h *Handler) currentMember(w http.ResponseWriter, r *http.Request) (*model.Member, bool) {
	id, ok := middleware.GetMemberIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return nil, false
	}

	return member, true
}

// requireAdmin возвращает аутентифицированного администратора или пишет 403.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (*model.Member, bool) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return nil, false
	}
	if member.Role != model.RoleAdmin {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return nil, false
	}
	return member, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// respondError отображает ошибки бизнес-логики и хранилища на HTTP-статусы.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var mismatch *service.AmountMismatchError

	switch {
	case errors.Is(err, repository.ErrMemberNotFound),
		errors.Is(err, repository.ErrTierNotFound),
		errors.Is(err, repository.ErrClientNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrMembershipPaymentNotFound),
		errors.Is(err, repository.ErrWithdrawalNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrSelfDeletion),
		errors.Is(err, service.ErrReferralNotEligible):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case errors.Is(err, repository.ErrInsufficientBalance),
		errors.Is(err, repository.ErrInsufficientBonusBalance):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, repository.ErrMemberInUse):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrRateOutOfRange),
		errors.Is(err, service.ErrNotPayoutDay),
		errors.Is(err, repository.ErrInvalidWithdrawalStatus),
		errors.As(err, &mismatch):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// pathID извлекает числовой идентификатор из параметра маршрута.
func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// queryTime разбирает необязательный параметр запроса в формате RFC 3339.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
