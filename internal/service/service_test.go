package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/credflow/credflow-system/internal/config"
	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

func testConfig() *config.Config {
	return &config.Config{
		VendorCommissionPct:   dec("20"),
		SubAgentCommissionPct: dec("5"),
		ReferralBonusFallback: dec("100"),
		PayoutWeekday:         time.Thursday,
	}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, testConfig(), zap.NewNop())
}

// stubRepo реализует Repository для тестов; ненастроенные методы возвращают
// нулевые значения.
type stubRepo struct {
	members map[int64]*model.Member
	tiers   map[int64]*model.Tier

	memberByEmail *model.Member

	confirmResult *repository.ConfirmResult
	confirmErr    error

	client *model.Client

	createdSale    *repository.NewSale
	createdBonus   bool
	bonusAmount    decimal.Decimal
	bonusExisting  *model.Bonus
	bonusDuplicate bool

	createdWithdrawal       *model.Withdrawal
	createdMembershipTierID int64

	membershipConfirm *repository.MembershipConfirmResult
	withdrawalErr     error

	auditEntries []repository.NewAuditEntry
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) ListTiers(ctx context.Context) ([]model.Tier, error) {
	var tiers []model.Tier
	for _, t := range s.tiers {
		tiers = append(tiers, *t)
	}
	return tiers, nil
}

func (s *stubRepo) GetTier(ctx context.Context, id int64) (*model.Tier, error) {
	if t, ok := s.tiers[id]; ok {
		return t, nil
	}
	return nil, repository.ErrTierNotFound
}

func (s *stubRepo) GetTierByName(ctx context.Context, name string) (*model.Tier, error) {
	for _, t := range s.tiers {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, repository.ErrTierNotFound
}

func (s *stubRepo) UpdateTier(ctx context.Context, id int64, patch repository.TierPatch) (*model.TierChange, error) {
	return nil, nil
}

func (s *stubRepo) CreateMember(ctx context.Context, m repository.NewMember) (*model.Member, error) {
	return &model.Member{ID: 100, Name: m.Name, Email: m.Email, Role: m.Role, ReferrerID: m.ReferrerID}, nil
}

func (s *stubRepo) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	if m, ok := s.members[id]; ok {
		return m, nil
	}
	return nil, repository.ErrMemberNotFound
}

func (s *stubRepo) GetMemberByEmail(ctx context.Context, email string) (*model.Member, error) {
	if s.memberByEmail == nil {
		return nil, repository.ErrMemberNotFound
	}
	return s.memberByEmail, nil
}

func (s *stubRepo) ListMembers(ctx context.Context, f repository.MemberFilter) ([]model.Member, error) {
	return nil, nil
}

func (s *stubRepo) UpdateMember(ctx context.Context, id int64, patch repository.MemberPatch) (*model.Member, *model.Member, error) {
	return nil, nil, nil
}

func (s *stubRepo) DeleteMember(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) CreateClient(ctx context.Context, c repository.NewClient) (*model.Client, error) {
	return nil, nil
}

func (s *stubRepo) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	if s.client == nil {
		return nil, repository.ErrClientNotFound
	}
	return s.client, nil
}

func (s *stubRepo) GetClientByToken(ctx context.Context, token string) (*model.Client, error) {
	return nil, repository.ErrClientNotFound
}

func (s *stubRepo) ListClientsByVendors(ctx context.Context, vendorIDs []int64) ([]model.Client, error) {
	return nil, nil
}

func (s *stubRepo) UpdateClient(ctx context.Context, id int64, patch repository.ClientPatch) (*model.Client, error) {
	return nil, nil
}

func (s *stubRepo) UpdateClientStatus(ctx context.Context, id int64, status model.ProcessStatus, description string) (*model.Client, error) {
	return nil, nil
}

func (s *stubRepo) DeleteClient(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) ListProcessHistory(ctx context.Context, clientID int64) ([]model.ProcessHistoryEntry, error) {
	return nil, nil
}

func (s *stubRepo) CreatePayment(ctx context.Context, clientID int64, amount decimal.Decimal, method string) (*model.Payment, error) {
	return &model.Payment{ID: 1, ClientID: clientID, Amount: amount, Method: method, Status: model.PaymentStatusPending}, nil
}

func (s *stubRepo) GetPayment(ctx context.Context, id int64) (*model.Payment, error) {
	return nil, repository.ErrPaymentNotFound
}

func (s *stubRepo) ConfirmClientPayment(ctx context.Context, paymentID int64) (*repository.ConfirmResult, error) {
	return s.confirmResult, s.confirmErr
}

func (s *stubRepo) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]model.Payment, error) {
	return nil, nil
}

func (s *stubRepo) CreateMembershipPayment(ctx context.Context, memberID, tierID int64, amount decimal.Decimal, method string) (*model.MembershipPayment, error) {
	s.createdMembershipTierID = tierID
	return &model.MembershipPayment{ID: 1, MemberID: memberID, TierID: tierID, Amount: amount, Status: model.PaymentStatusPending}, nil
}

func (s *stubRepo) GetMembershipPayment(ctx context.Context, id int64) (*model.MembershipPayment, error) {
	return nil, repository.ErrMembershipPaymentNotFound
}

func (s *stubRepo) ConfirmMembershipPayment(ctx context.Context, paymentID int64) (*repository.MembershipConfirmResult, error) {
	if s.membershipConfirm == nil {
		return nil, repository.ErrMembershipPaymentNotFound
	}
	return s.membershipConfirm, nil
}

func (s *stubRepo) ListMembershipPayments(ctx context.Context, filter repository.MembershipPaymentFilter) ([]model.MembershipPayment, error) {
	return nil, nil
}

func (s *stubRepo) UpsertSaleForClient(ctx context.Context, sale repository.NewSale) (*model.Sale, error) {
	s.createdSale = &sale
	return &model.Sale{
		ID:                 1,
		ClientID:           sale.ClientID,
		VendorID:           sale.VendorID,
		SubAgentID:         sale.SubAgentID,
		ServiceFee:         sale.ServiceFee,
		VendorCommission:   sale.VendorCommission,
		SubAgentCommission: sale.SubAgentCommission,
		PaymentStatus:      model.PaymentStatusPaid,
	}, nil
}

func (s *stubRepo) ListSalesByVendors(ctx context.Context, vendorIDs []int64, clientID *int64) ([]model.Sale, error) {
	return nil, nil
}

func (s *stubRepo) VendorCommissionSummary(ctx context.Context, vendorID int64) (*model.CommissionSummary, error) {
	return nil, nil
}

func (s *stubRepo) SubAgentCommissionSummary(ctx context.Context, subAgentID int64) (*model.CommissionSummary, error) {
	return nil, nil
}

func (s *stubRepo) DashboardSummary(ctx context.Context) (*model.DashboardSummary, error) {
	return nil, nil
}

func (s *stubRepo) CreateBonusForPayment(ctx context.Context, beneficiaryID, paymentID int64, amount decimal.Decimal) (*model.Bonus, bool, error) {
	if s.bonusDuplicate {
		return s.bonusExisting, false, nil
	}
	s.createdBonus = true
	s.bonusAmount = amount
	return &model.Bonus{ID: 1, BeneficiaryID: beneficiaryID, PaymentID: &paymentID, Amount: amount, Status: model.BonusStatusPending}, true, nil
}

func (s *stubRepo) CreateBonusForMembershipPayment(ctx context.Context, beneficiaryID, membershipPaymentID int64, amount decimal.Decimal) (*model.Bonus, bool, error) {
	if s.bonusDuplicate {
		return s.bonusExisting, false, nil
	}
	s.createdBonus = true
	s.bonusAmount = amount
	return &model.Bonus{ID: 1, BeneficiaryID: beneficiaryID, MembershipPaymentID: &membershipPaymentID, Amount: amount, Status: model.BonusStatusPending}, true, nil
}

func (s *stubRepo) ListBonuses(ctx context.Context, filter repository.BonusFilter) ([]model.BonusListItem, error) {
	return nil, nil
}

func (s *stubRepo) SummarizeBonuses(ctx context.Context, beneficiaryID *int64) (*model.BonusSummary, error) {
	return nil, nil
}

func (s *stubRepo) AvailableBalance(ctx context.Context, memberID int64) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *stubRepo) CreateWithdrawal(ctx context.Context, memberID int64, amount decimal.Decimal) (*model.Withdrawal, error) {
	s.createdWithdrawal = &model.Withdrawal{ID: 1, MemberID: memberID, Amount: amount, Status: model.WithdrawalStatusPending}
	return s.createdWithdrawal, nil
}

func (s *stubRepo) GetWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	return nil, repository.ErrWithdrawalNotFound
}

func (s *stubRepo) ListWithdrawals(ctx context.Context, filter repository.WithdrawalFilter) ([]model.Withdrawal, error) {
	return nil, nil
}

func (s *stubRepo) ApproveWithdrawal(ctx context.Context, id int64) (*model.Withdrawal, error) {
	if s.withdrawalErr != nil {
		return nil, s.withdrawalErr
	}
	return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusApproved}, nil
}

func (s *stubRepo) RejectWithdrawal(ctx context.Context, id int64, reason string) (*model.Withdrawal, error) {
	if s.withdrawalErr != nil {
		return nil, s.withdrawalErr
	}
	return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusCanceled, RejectionReason: reason}, nil
}

func (s *stubRepo) MarkWithdrawalPaid(ctx context.Context, id int64) (*model.Withdrawal, error) {
	if s.withdrawalErr != nil {
		return nil, s.withdrawalErr
	}
	return &model.Withdrawal{ID: id, Status: model.WithdrawalStatusPaid}, nil
}

func (s *stubRepo) GetSetting(ctx context.Context, key string) (string, error) {
	return "", repository.ErrSettingNotFound
}

func (s *stubRepo) SetSettings(ctx context.Context, settings map[string]string) error { return nil }

func (s *stubRepo) CreateAuditEntry(ctx context.Context, e repository.NewAuditEntry) error {
	s.auditEntries = append(s.auditEntries, e)
	return nil
}

func (s *stubRepo) ListAuditEntries(ctx context.Context, filter repository.AuditFilter) ([]model.AuditEntry, error) {
	return nil, nil
}

func testTiers() map[int64]*model.Tier {
	return map[int64]*model.Tier{
		1: {ID: 1, Name: "BRONZE", MembershipFee: dec("200"), ReferralBonus: dec("100"), Rank: 1},
		2: {ID: 2, Name: "PRATA", MembershipFee: dec("300"), ReferralBonus: dec("150"), Rank: 2},
		3: {ID: 3, Name: "OURO", MembershipFee: dec("500"), ReferralBonus: dec("250"), Rank: 3},
	}
}

func TestValidateReferralEligibility(t *testing.T) {
	repo := &stubRepo{tiers: testTiers()}
	svc := newTestService(repo)

	tests := []struct {
		name         string
		referrerTier *int64
		status       model.MemberStatus
		targetTier   int64
		wantErr      bool
	}{
		{name: "gold refers silver", referrerTier: ptr(int64(3)), status: model.MemberStatusActive, targetTier: 2},
		{name: "gold refers bronze", referrerTier: ptr(int64(3)), status: model.MemberStatusActive, targetTier: 1},
		{name: "silver refers bronze", referrerTier: ptr(int64(2)), status: model.MemberStatusActive, targetTier: 1},
		{name: "silver cannot refer silver", referrerTier: ptr(int64(2)), status: model.MemberStatusActive, targetTier: 2, wantErr: true},
		{name: "bronze cannot refer", referrerTier: ptr(int64(1)), status: model.MemberStatusActive, targetTier: 1, wantErr: true},
		{name: "no tier cannot refer", referrerTier: nil, status: model.MemberStatusActive, targetTier: 1, wantErr: true},
		{name: "inactive cannot refer", referrerTier: ptr(int64(3)), status: model.MemberStatusInactive, targetTier: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			referrer := &model.Member{ID: 1, Role: model.RoleVendor, TierID: tt.referrerTier, Status: tt.status}
			err := svc.ValidateReferralEligibility(context.Background(), referrer, repo.tiers[tt.targetTier])
			if tt.wantErr && !errors.Is(err, ErrReferralNotEligible) {
				t.Fatalf("expected ErrReferralNotEligible, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRecordSaleForPayment_CommissionSplit(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	client := &model.Client{
		ID:         10,
		VendorID:   1,
		SubAgentID: ptr(int64(2)),
		ServiceFee: dec("400"),
	}

	sale, err := svc.RecordSaleForPayment(context.Background(), client)
	if err != nil {
		t.Fatalf("RecordSaleForPayment() error = %v", err)
	}

	if !sale.VendorCommission.Equal(dec("80")) {
		t.Errorf("vendor commission = %s, want 80", sale.VendorCommission)
	}
	if sale.SubAgentCommission == nil || !sale.SubAgentCommission.Equal(dec("20")) {
		t.Errorf("sub-agent commission = %v, want 20", sale.SubAgentCommission)
	}
}

func TestRecordSaleForPayment_NoSubAgent(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	client := &model.Client{ID: 10, VendorID: 1, ServiceFee: dec("400")}

	sale, err := svc.RecordSaleForPayment(context.Background(), client)
	if err != nil {
		t.Fatalf("RecordSaleForPayment() error = %v", err)
	}

	if sale.SubAgentCommission != nil {
		t.Errorf("sub-agent commission = %v, want nil", sale.SubAgentCommission)
	}
}

func TestRequestWithdrawal_PayoutDayGate(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo)

	// 2024-01-04 — четверг, 2024-01-05 — пятница.
	thursday := time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)
	friday := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	svc.now = func() time.Time { return friday }
	if _, err := svc.RequestWithdrawal(context.Background(), 1, dec("50")); !errors.Is(err, ErrNotPayoutDay) {
		t.Fatalf("expected ErrNotPayoutDay on friday, got %v", err)
	}

	svc.now = func() time.Time { return thursday }
	w, err := svc.RequestWithdrawal(context.Background(), 1, dec("50"))
	if err != nil {
		t.Fatalf("RequestWithdrawal() on thursday error = %v", err)
	}
	if !w.Amount.Equal(dec("50")) {
		t.Errorf("withdrawal amount = %s, want 50", w.Amount)
	}
}

func TestRequestWithdrawal_RejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(&stubRepo{})
	svc.now = func() time.Time { return time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC) }

	for _, amount := range []string{"0", "-10"} {
		if _, err := svc.RequestWithdrawal(context.Background(), 1, dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestCreateMembershipPayment_AmountMismatch(t *testing.T) {
	repo := &stubRepo{tiers: testTiers()}
	svc := newTestService(repo)

	_, err := svc.CreateMembershipPayment(context.Background(), 1, "PRATA", dec("299"), "pix")
	var mismatch *AmountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected AmountMismatchError, got %v", err)
	}
	if !mismatch.Expected.Equal(dec("300")) {
		t.Errorf("expected amount = %s, want 300", mismatch.Expected)
	}

	// Расхождение не больше цента допускается.
	if _, err := svc.CreateMembershipPayment(context.Background(), 1, "PRATA", dec("300.005"), "pix"); err != nil {
		t.Fatalf("sub-cent mismatch must be accepted, got %v", err)
	}
	if _, err := svc.CreateMembershipPayment(context.Background(), 1, "PRATA", dec("300.01"), "pix"); err != nil {
		t.Fatalf("one-cent mismatch must be accepted, got %v", err)
	}
}

func TestConfirmClientPayment_AlreadyConfirmed(t *testing.T) {
	repo := &stubRepo{
		confirmResult: &repository.ConfirmResult{
			Payment: &model.Payment{ID: 5, ClientID: 10, Status: model.PaymentStatusPaid},
			Already: true,
		},
	}
	svc := newTestService(repo)

	result, err := svc.ConfirmClientPayment(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("ConfirmClientPayment() error = %v", err)
	}
	if !result.Already {
		t.Fatalf("expected Already=true")
	}
	if repo.createdSale != nil {
		t.Errorf("sale must not be recorded on repeated confirmation")
	}
	if repo.createdBonus {
		t.Errorf("bonus must not be accrued on repeated confirmation")
	}
}

func TestConfirmClientPayment_RecordsSaleAndBonus(t *testing.T) {
	referrerID := int64(7)
	repo := &stubRepo{
		tiers: testTiers(),
		members: map[int64]*model.Member{
			1: {ID: 1, Role: model.RoleVendor, ReferrerID: &referrerID, TierID: ptr(int64(3)), Status: model.MemberStatusActive},
			7: {ID: 7, Role: model.RoleVendor, Status: model.MemberStatusActive},
		},
		client: &model.Client{ID: 10, VendorID: 1, ServiceFee: dec("400")},
		confirmResult: &repository.ConfirmResult{
			Payment: &model.Payment{ID: 5, ClientID: 10, Status: model.PaymentStatusPaid},
		},
	}
	svc := newTestService(repo)

	result, err := svc.ConfirmClientPayment(context.Background(), 1, 5)
	if err != nil {
		t.Fatalf("ConfirmClientPayment() error = %v", err)
	}
	if result.Already {
		t.Fatalf("unexpected Already=true")
	}
	if repo.createdSale == nil {
		t.Fatalf("sale must be recorded on first confirmation")
	}
	if !repo.createdBonus {
		t.Fatalf("bonus must be accrued on first confirmation")
	}
	// Сумма бонуса — бонус уровня продавца (OURO).
	if !repo.bonusAmount.Equal(dec("250")) {
		t.Errorf("bonus amount = %s, want 250", repo.bonusAmount)
	}
}

func TestAccrueForClientPayment_FallbackAmount(t *testing.T) {
	referrerID := int64(7)
	repo := &stubRepo{
		tiers: testTiers(),
		members: map[int64]*model.Member{
			1: {ID: 1, Role: model.RoleVendor, ReferrerID: &referrerID, Status: model.MemberStatusActive},
			7: {ID: 7, Role: model.RoleVendor, Status: model.MemberStatusActive},
		},
	}
	svc := newTestService(repo)

	client := &model.Client{ID: 10, VendorID: 1, ServiceFee: dec("400")}
	payment := &model.Payment{ID: 5, ClientID: 10}

	if err := svc.AccrueForClientPayment(context.Background(), client, payment); err != nil {
		t.Fatalf("AccrueForClientPayment() error = %v", err)
	}
	// Продавец без уровня даёт бонус по умолчанию.
	if !repo.bonusAmount.Equal(dec("100")) {
		t.Errorf("bonus amount = %s, want 100", repo.bonusAmount)
	}
}

func TestAccrueForClientPayment_NoReferrer(t *testing.T) {
	repo := &stubRepo{
		members: map[int64]*model.Member{
			1: {ID: 1, Role: model.RoleVendor, Status: model.MemberStatusActive},
		},
	}
	svc := newTestService(repo)

	client := &model.Client{ID: 10, VendorID: 1, ServiceFee: dec("400")}
	payment := &model.Payment{ID: 5, ClientID: 10}

	if err := svc.AccrueForClientPayment(context.Background(), client, payment); err != nil {
		t.Fatalf("AccrueForClientPayment() error = %v", err)
	}
	if repo.createdBonus {
		t.Errorf("vendor without referrer must not produce a bonus")
	}
}

func TestAccrueForClientPayment_Duplicate(t *testing.T) {
	referrerID := int64(7)
	repo := &stubRepo{
		tiers: testTiers(),
		members: map[int64]*model.Member{
			1: {ID: 1, Role: model.RoleVendor, ReferrerID: &referrerID, TierID: ptr(int64(3)), Status: model.MemberStatusActive},
			7: {ID: 7, Role: model.RoleVendor, Status: model.MemberStatusActive},
		},
		bonusDuplicate: true,
		bonusExisting:  &model.Bonus{ID: 42, BeneficiaryID: 7, Amount: dec("250"), Status: model.BonusStatusPending},
	}
	svc := newTestService(repo)

	client := &model.Client{ID: 10, VendorID: 1, ServiceFee: dec("400")}
	payment := &model.Payment{ID: 5, ClientID: 10}

	if err := svc.AccrueForClientPayment(context.Background(), client, payment); err != nil {
		t.Fatalf("AccrueForClientPayment() error = %v", err)
	}
	if repo.createdBonus {
		t.Errorf("duplicate accrual must not create a new bonus")
	}
}

func TestAccrueForMembershipPayment_JoinedTierAmount(t *testing.T) {
	referrerID := int64(7)
	repo := &stubRepo{
		tiers: testTiers(),
		members: map[int64]*model.Member{
			2: {ID: 2, Role: model.RoleVendor, ReferrerID: &referrerID, TierID: ptr(int64(2)), Status: model.MemberStatusActive},
			7: {ID: 7, Role: model.RoleVendor, TierID: ptr(int64(3)), Status: model.MemberStatusActive},
		},
	}
	svc := newTestService(repo)

	// Бонус считается по уровню вступления, а не по уровню приглашающего.
	payment := &model.MembershipPayment{ID: 3, MemberID: 2, TierID: 2}
	if err := svc.AccrueForMembershipPayment(context.Background(), payment); err != nil {
		t.Fatalf("AccrueForMembershipPayment() error = %v", err)
	}
	if !repo.bonusAmount.Equal(dec("150")) {
		t.Errorf("bonus amount = %s, want 150", repo.bonusAmount)
	}
}

func TestAuthenticate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	tests := []struct {
		name     string
		member   *model.Member
		password string
		wantErr  bool
	}{
		{
			name:     "valid credentials",
			member:   &model.Member{ID: 1, PasswordHash: string(hash), Status: model.MemberStatusActive},
			password: "secret",
		},
		{
			name:     "wrong password",
			member:   &model.Member{ID: 1, PasswordHash: string(hash), Status: model.MemberStatusActive},
			password: "wrong",
			wantErr:  true,
		},
		{
			name:     "inactive member",
			member:   &model.Member{ID: 1, PasswordHash: string(hash), Status: model.MemberStatusInactive},
			password: "secret",
			wantErr:  true,
		},
		{
			name:     "unknown email",
			member:   nil,
			password: "secret",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(&stubRepo{memberByEmail: tt.member})
			_, err := svc.Authenticate(context.Background(), "user@example.com", tt.password)
			if tt.wantErr && !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDeleteMember_SelfDeletion(t *testing.T) {
	svc := newTestService(&stubRepo{})

	if err := svc.DeleteMember(context.Background(), 1, 1); !errors.Is(err, ErrSelfDeletion) {
		t.Fatalf("expected ErrSelfDeletion, got %v", err)
	}
}

func TestConfirmMembershipPayment_AuditCarriesStatusChange(t *testing.T) {
	referrerID := int64(7)
	repo := &stubRepo{
		tiers: testTiers(),
		members: map[int64]*model.Member{
			2: {ID: 2, Name: "Maria Souza", Role: model.RoleVendor, ReferrerID: &referrerID, TierID: ptr(int64(2)), Status: model.MemberStatusActive},
			7: {ID: 7, Role: model.RoleVendor, TierID: ptr(int64(3)), Status: model.MemberStatusActive},
		},
		membershipConfirm: &repository.MembershipConfirmResult{
			Payment: &model.MembershipPayment{ID: 3, MemberID: 2, TierID: 2, Amount: dec("300"), Status: model.PaymentStatusPaid},
		},
	}
	svc := newTestService(repo)

	if _, err := svc.ConfirmMembershipPayment(context.Background(), 9, 3); err != nil {
		t.Fatalf("ConfirmMembershipPayment() error = %v", err)
	}

	var entry *repository.NewAuditEntry
	for i := range repo.auditEntries {
		if repo.auditEntries[i].Entity == "membership_payment" {
			entry = &repo.auditEntries[i]
		}
	}
	if entry == nil {
		t.Fatal("no audit entry recorded for the membership payment")
	}
	if entry.OldValue != string(model.PaymentStatusPending) || entry.NewValue != string(model.PaymentStatusPaid) {
		t.Errorf("audit status change = %q -> %q, want PENDENTE -> PAGO", entry.OldValue, entry.NewValue)
	}
	if want := "Maria Souza - PRATA - 300.00"; entry.Details != want {
		t.Errorf("audit details = %q, want %q", entry.Details, want)
	}
}

func TestWithdrawalActions_PropagateTransitionErrors(t *testing.T) {
	ops := []struct {
		name string
		call func(svc *Service) error
	}{
		{name: "approve", call: func(svc *Service) error {
			_, err := svc.ApproveWithdrawal(context.Background(), 9, 1)
			return err
		}},
		{name: "reject", call: func(svc *Service) error {
			_, err := svc.RejectWithdrawal(context.Background(), 9, 1, "dados incorretos")
			return err
		}},
		{name: "mark paid", call: func(svc *Service) error {
			_, err := svc.MarkWithdrawalPaid(context.Background(), 9, 1)
			return err
		}},
	}

	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			repo := &stubRepo{withdrawalErr: repository.ErrInvalidWithdrawalStatus}
			svc := newTestService(repo)

			if err := op.call(svc); !errors.Is(err, repository.ErrInvalidWithdrawalStatus) {
				t.Fatalf("expected ErrInvalidWithdrawalStatus, got %v", err)
			}
			if len(repo.auditEntries) != 0 {
				t.Errorf("failed transition must not be audited, got %d entries", len(repo.auditEntries))
			}

			repo.withdrawalErr = repository.ErrWithdrawalNotFound
			if err := op.call(svc); !errors.Is(err, repository.ErrWithdrawalNotFound) {
				t.Fatalf("expected ErrWithdrawalNotFound, got %v", err)
			}
		})
	}
}
