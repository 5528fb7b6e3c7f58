package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/credflow/credflow-system/internal/middleware"
	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
	"github.com/credflow/credflow-system/internal/service"
)

// stubService реализует Service для тестов; ненастроенные методы возвращают
// нулевые значения.
type stubService struct {
	member  *model.Member
	authErr error

	tiers []model.Tier

	confirmResult *repository.ConfirmResult
	confirmErr    error

	withdrawal  *model.Withdrawal
	withdrawErr error
}

func (s *stubService) Authenticate(ctx context.Context, email, password string) (*model.Member, error) {
	return s.member, s.authErr
}

func (s *stubService) ListTiers(ctx context.Context) ([]model.Tier, error) {
	return s.tiers, nil
}

func (s *stubService) GetTier(ctx context.Context, id int64) (*model.Tier, error) {
	if len(s.tiers) == 0 {
		return nil, repository.ErrTierNotFound
	}
	return &s.tiers[0], nil
}

func (s *stubService) UpdateTier(ctx context.Context, actorID, id int64, patch repository.TierPatch) (*model.Tier, error) {
	return nil, nil
}

func (s *stubService) CreateMember(ctx context.Context, actorID int64, in service.NewMemberInput) (*model.Member, error) {
	return nil, nil
}

func (s *stubService) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	if s.member == nil {
		return nil, repository.ErrMemberNotFound
	}
	return s.member, nil
}

func (s *stubService) ListMembers(ctx context.Context, f repository.MemberFilter) ([]model.Member, error) {
	return nil, nil
}

func (s *stubService) UpdateMember(ctx context.Context, actorID, id int64, patch repository.MemberPatch) (*model.Member, error) {
	return nil, nil
}

func (s *stubService) DeleteMember(ctx context.Context, actorID, id int64) error { return nil }

func (s *stubService) GetReferralLinkInfo(ctx context.Context, referrerID int64) (*service.ReferralLinkInfo, error) {
	return nil, nil
}

func (s *stubService) ReferralSignup(ctx context.Context, in service.ReferralSignupInput) (*service.ReferralSignupResult, error) {
	return nil, nil
}

func (s *stubService) ReferralForest(ctx context.Context) ([]*model.ReferralTreeNode, error) {
	return nil, nil
}

func (s *stubService) ReferralTree(ctx context.Context, rootID int64) (*model.ReferralTreeNode, error) {
	return nil, nil
}

func (s *stubService) CreateClient(ctx context.Context, actor *model.Member, in service.NewClientInput) (*model.Client, error) {
	return nil, nil
}

func (s *stubService) GetClient(ctx context.Context, actor *model.Member, id int64) (*model.Client, error) {
	return nil, nil
}

func (s *stubService) TrackClient(ctx context.Context, token string) (*model.Client, []model.ProcessHistoryEntry, error) {
	return nil, nil, repository.ErrClientNotFound
}

func (s *stubService) ListClients(ctx context.Context, actor *model.Member) ([]model.Client, error) {
	return nil, nil
}

func (s *stubService) UpdateClient(ctx context.Context, actor *model.Member, id int64, patch repository.ClientPatch) (*model.Client, error) {
	return nil, nil
}

func (s *stubService) UpdateClientStatus(ctx context.Context, actor *model.Member, id int64, status model.ProcessStatus, description string) (*model.Client, error) {
	return nil, nil
}

func (s *stubService) DeleteClient(ctx context.Context, actor *model.Member, id int64) error {
	return nil
}

func (s *stubService) CreateClientPayment(ctx context.Context, clientID int64, amount decimal.Decimal, method string) (*model.Payment, error) {
	return nil, nil
}

func (s *stubService) CreateClientPaymentByToken(ctx context.Context, token string, amount decimal.Decimal, method string) (*model.Payment, error) {
	return nil, nil
}

func (s *stubService) ConfirmClientPayment(ctx context.Context, actorID, paymentID int64) (*repository.ConfirmResult, error) {
	return s.confirmResult, s.confirmErr
}

func (s *stubService) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]model.Payment, error) {
	return nil, nil
}

func (s *stubService) CreateMembershipPayment(ctx context.Context, memberID int64, tierName string, amount decimal.Decimal, method string) (*model.MembershipPayment, error) {
	return nil, nil
}

func (s *stubService) ConfirmMembershipPayment(ctx context.Context, actorID, paymentID int64) (*repository.MembershipConfirmResult, error) {
	return nil, nil
}

func (s *stubService) ListMembershipPayments(ctx context.Context, filter repository.MembershipPaymentFilter) ([]model.MembershipPayment, error) {
	return nil, nil
}

func (s *stubService) ListSales(ctx context.Context, member *model.Member, clientID *int64) ([]model.Sale, error) {
	return nil, nil
}

func (s *stubService) CommissionSummary(ctx context.Context, member *model.Member) (*model.CommissionSummary, error) {
	return nil, nil
}

func (s *stubService) AdminDashboard(ctx context.Context) (*model.DashboardSummary, error) {
	return nil, nil
}

func (s *stubService) ListBonuses(ctx context.Context, filter repository.BonusFilter) ([]model.BonusListItem, error) {
	return nil, nil
}

func (s *stubService) BonusSummary(ctx context.Context, beneficiaryID *int64) (*model.BonusSummary, error) {
	return nil, nil
}

func (s *stubService) AvailableBalance(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubService) RequestWithdrawal(ctx context.Context, memberID int64, amount decimal.Decimal) (*model.Withdrawal, error) {
	return s.withdrawal, s.withdrawErr
}

func (s *stubService) ListWithdrawals(ctx context.Context, filter repository.WithdrawalFilter) ([]model.Withdrawal, error) {
	return nil, nil
}

func (s *stubService) ApproveWithdrawal(ctx context.Context, actorID, id int64) (*model.Withdrawal, error) {
	return s.withdrawal, s.withdrawErr
}

func (s *stubService) RejectWithdrawal(ctx context.Context, actorID, id int64, reason string) (*model.Withdrawal, error) {
	return s.withdrawal, s.withdrawErr
}

func (s *stubService) MarkWithdrawalPaid(ctx context.Context, actorID, id int64) (*model.Withdrawal, error) {
	return s.withdrawal, s.withdrawErr
}

func (s *stubService) GetCommissionRates(ctx context.Context) (*model.CommissionRates, error) {
	return nil, nil
}

func (s *stubService) SetCommissionRates(ctx context.Context, actorID int64, rates model.CommissionRates) error {
	return nil
}

func (s *stubService) ListAuditEntries(ctx context.Context, filter repository.AuditFilter) ([]model.AuditEntry, error) {
	return nil, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger := zap.NewNop()
	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

// authRequest снабжает запрос действующим cookie авторизации.
func authRequest(h *Handler, req *http.Request, memberID int64) {
	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, memberID)
	req.AddCookie(rec.Result().Cookies()[0])
}

func TestLogin_SetsCookie(t *testing.T) {
	svc := &stubService{
		member: &model.Member{ID: 1, Email: "admin@credflow.com", Role: model.RoleAdmin, Status: model.MemberStatusActive},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "admin@credflow.com", Password: "secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("no auth cookie set")
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "user@credflow.com", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestConfirmPayment_AlreadyConfirmed(t *testing.T) {
	svc := &stubService{
		member: &model.Member{ID: 1, Role: model.RoleAdmin, Status: model.MemberStatusActive},
		confirmResult: &repository.ConfirmResult{
			Payment: &model.Payment{ID: 5, Status: model.PaymentStatusPaid},
			Already: true,
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/payments/5/confirm", nil)
	authRequest(h, req, 1)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp confirmResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Already {
		t.Fatalf("already = false, want true")
	}
}

func TestConfirmPayment_ForbiddenForVendor(t *testing.T) {
	svc := &stubService{
		member: &model.Member{ID: 2, Role: model.RoleVendor, Status: model.MemberStatusActive},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/payments/5/confirm", nil)
	authRequest(h, req, 2)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestRequestWithdrawal_InsufficientBalance(t *testing.T) {
	svc := &stubService{
		member:      &model.Member{ID: 3, Role: model.RoleVendor, Status: model.MemberStatusActive},
		withdrawErr: repository.ErrInsufficientBalance,
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(withdrawRequest{Amount: decimal.NewFromInt(500)})
	req := httptest.NewRequest(http.MethodPost, "/api/withdrawals", bytes.NewReader(body))
	authRequest(h, req, 3)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusPaymentRequired)
	}
}

func TestRequestWithdrawal_NotPayoutDay(t *testing.T) {
	svc := &stubService{
		member:      &model.Member{ID: 3, Role: model.RoleVendor, Status: model.MemberStatusActive},
		withdrawErr: service.ErrNotPayoutDay,
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(withdrawRequest{Amount: decimal.NewFromInt(50)})
	req := httptest.NewRequest(http.MethodPost, "/api/withdrawals", bytes.NewReader(body))
	authRequest(h, req, 3)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestListTiers_RequiresAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/tiers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestListTiers_JSONResponse(t *testing.T) {
	svc := &stubService{
		member: &model.Member{ID: 1, Role: model.RoleVendor, Status: model.MemberStatusActive},
		tiers: []model.Tier{
			{ID: 1, Name: "BRONZE", MembershipFee: decimal.NewFromInt(200), ReferralBonus: decimal.NewFromInt(100), Rank: 1},
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/tiers", nil)
	authRequest(h, req, 1)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var tiers []model.Tier
	if err := json.NewDecoder(res.Body).Decode(&tiers); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(tiers) != 1 || tiers[0].Name != "BRONZE" {
		t.Fatalf("unexpected tiers: %+v", tiers)
	}
}

func TestWithdrawalActions_StatusMapping(t *testing.T) {
	actions := []struct {
		name string
		path string
		body []byte
	}{
		{name: "approve", path: "/api/withdrawals/7/approve"},
		{name: "reject", path: "/api/withdrawals/7/reject", body: []byte(`{"reason":"dados incorretos"}`)},
		{name: "pay", path: "/api/withdrawals/7/pay"},
	}
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "wrong status", err: repository.ErrInvalidWithdrawalStatus, wantStatus: http.StatusBadRequest},
		{name: "not found", err: repository.ErrWithdrawalNotFound, wantStatus: http.StatusNotFound},
	}

	for _, action := range actions {
		for _, tc := range cases {
			t.Run(action.name+" "+tc.name, func(t *testing.T) {
				svc := &stubService{
					member:      &model.Member{ID: 1, Role: model.RoleAdmin, Status: model.MemberStatusActive},
					withdrawErr: tc.err,
				}
				h := newTestHandler(t, svc)
				router := h.SetupRouter()

				req := httptest.NewRequest(http.MethodPost, action.path, bytes.NewReader(action.body))
				authRequest(h, req, 1)

				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)

				if rec.Result().StatusCode != tc.wantStatus {
					t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tc.wantStatus)
				}
			})
		}
	}
}
