// Package model содержит доменные сущности сервиса CredFlow.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль участника партнёрской сети.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVendor   Role = "vendedor"
	RoleSubAgent Role = "preposto"
)

// MemberStatus описывает статус участника.
type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "ATIVO"
	MemberStatusInactive MemberStatus = "INATIVO"
)

// Tier описывает уровень членства с платой за вступление и суммой реферального бонуса.
type Tier struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	MembershipFee decimal.Decimal `json:"membershipFee"`
	ReferralBonus decimal.Decimal `json:"referralBonus"`
	Rank          int             `json:"rank"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Member представляет участника сети: администратора, продавца или препоста.
type Member struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	PasswordHash   string       `json:"-"`
	Role           Role         `json:"role"`
	ParentVendorID *int64       `json:"parentVendorId,omitempty"`
	ReferrerID     *int64       `json:"referrerId,omitempty"`
	TierID         *int64       `json:"tierId,omitempty"`
	Status         MemberStatus `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// ProcessStatus описывает этап обработки клиентской заявки.
type ProcessStatus string

const (
	ProcessStatusReceived    ProcessStatus = "CADASTRO_RECEBIDO"
	ProcessStatusInReview    ProcessStatus = "EM_ANALISE"
	ProcessStatusInProgress  ProcessStatus = "EM_ANDAMENTO"
	ProcessStatusAwaitingPay ProcessStatus = "AGUARDANDO_PAGAMENTO"
	ProcessStatusPaid        ProcessStatus = "PAGO"
	ProcessStatusCompleted   ProcessStatus = "CONCLUIDO"
	ProcessStatusCanceled    ProcessStatus = "CANCELADO"
)

// Client описывает клиента, заведённого продавцом или препостом.
type Client struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Document      string          `json:"document"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email"`
	VendorID      int64           `json:"vendorId"`
	SubAgentID    *int64          `json:"subAgentId,omitempty"`
	ServiceFee    decimal.Decimal `json:"serviceFee"`
	ProcessStatus ProcessStatus   `json:"processStatus"`
	TrackingToken string          `json:"trackingToken"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ProcessHistoryEntry описывает запись истории обработки клиентской заявки.
type ProcessHistoryEntry struct {
	ID          int64         `json:"id"`
	ClientID    int64         `json:"clientId"`
	Status      ProcessStatus `json:"status"`
	Description string        `json:"description"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// PaymentStatus описывает статус платежа.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDENTE"
	PaymentStatusPaid    PaymentStatus = "PAGO"
)

// Payment описывает платёж клиента за услугу.
type Payment struct {
	ID          int64           `json:"id"`
	ClientID    int64           `json:"clientId"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Status      PaymentStatus   `json:"status"`
	ConfirmedAt *time.Time      `json:"confirmedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// MembershipPayment описывает платёж участника за вступление в уровень.
type MembershipPayment struct {
	ID          int64           `json:"id"`
	MemberID    int64           `json:"memberId"`
	TierID      int64           `json:"tierId"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Status      PaymentStatus   `json:"status"`
	ConfirmedAt *time.Time      `json:"confirmedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Sale описывает продажу с разбивкой комиссий продавца и препоста.
// На клиента существует не более одной «живой» продажи.
type Sale struct {
	ID                 int64            `json:"id"`
	ClientID           int64            `json:"clientId"`
	VendorID           int64            `json:"vendorId"`
	SubAgentID         *int64           `json:"subAgentId,omitempty"`
	ServiceFee         decimal.Decimal  `json:"serviceFee"`
	VendorCommission   decimal.Decimal  `json:"vendorCommission"`
	SubAgentCommission *decimal.Decimal `json:"subAgentCommission,omitempty"`
	PaymentStatus      PaymentStatus    `json:"paymentStatus"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// BonusStatus описывает статус реферального бонуса.
type BonusStatus string

const (
	BonusStatusPending  BonusStatus = "PENDENTE"
	BonusStatusPaid     BonusStatus = "PAGO"
	BonusStatusCanceled BonusStatus = "CANCELADO"
)

// Bonus описывает реферальный бонус, начисленный за подтверждённый платёж.
// Заполнено ровно одно из полей PaymentID и MembershipPaymentID.
type Bonus struct {
	ID                  int64           `json:"id"`
	BeneficiaryID       int64           `json:"beneficiaryId"`
	PaymentID           *int64          `json:"paymentId,omitempty"`
	MembershipPaymentID *int64          `json:"membershipPaymentId,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	Status              BonusStatus     `json:"status"`
	GeneratedAt         time.Time       `json:"generatedAt"`
	PaidAt              *time.Time      `json:"paidAt,omitempty"`
}

// WithdrawalStatus описывает статус заявки на вывод средств.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "PENDENTE"
	WithdrawalStatusApproved WithdrawalStatus = "APROVADO"
	WithdrawalStatusPaid     WithdrawalStatus = "PAGO"
	WithdrawalStatusCanceled WithdrawalStatus = "CANCELADO"
)

// Withdrawal описывает заявку участника на вывод накопленных бонусов.
type Withdrawal struct {
	ID              int64            `json:"id"`
	MemberID        int64            `json:"memberId"`
	Amount          decimal.Decimal  `json:"amount"`
	Status          WithdrawalStatus `json:"status"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	RequestedAt     time.Time        `json:"requestedAt"`
	ApprovedAt      *time.Time       `json:"approvedAt,omitempty"`
	PaidAt          *time.Time       `json:"paidAt,omitempty"`
}

// AuditEntry описывает запись журнала аудита. Журнал только пополняется.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entityId"`
	Action    string    `json:"action"`
	ActorID   *int64    `json:"actorId,omitempty"`
	OldValue  string    `json:"oldValue,omitempty"`
	NewValue  string    `json:"newValue,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommissionRates содержит действующие проценты комиссий продавца и препоста.
type CommissionRates struct {
	VendorPct   decimal.Decimal `json:"vendorPct"`
	SubAgentPct decimal.Decimal `json:"subAgentPct"`
}

// BonusSummary агрегирует бонусы по статусам PENDENTE и PAGO.
type BonusSummary struct {
	PendingTotal decimal.Decimal `json:"pendingTotal"`
	PendingCount int64           `json:"pendingCount"`
	PaidTotal    decimal.Decimal `json:"paidTotal"`
	PaidCount    int64           `json:"paidCount"`
}

// BonusListItem — бонус с данными получателя и уровня для списков.
type BonusListItem struct {
	Bonus
	BeneficiaryName string  `json:"beneficiaryName"`
	TierName        *string `json:"tierName,omitempty"`
}

// ReferralTreeNode — узел дерева индикаций: участник и те, кого он привёл.
type ReferralTreeNode struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	Email     string              `json:"email"`
	Role      Role                `json:"role"`
	TierName  string              `json:"tierName,omitempty"`
	Referrals []*ReferralTreeNode `json:"referrals"`
}

// TierChange содержит снимки уровня до и после изменения, для аудита.
type TierChange struct {
	Before Tier `json:"before"`
	After  Tier `json:"after"`
}

// CommissionSummary агрегирует продажи и причитающиеся комиссии.
type CommissionSummary struct {
	TotalSold     decimal.Decimal `json:"totalSold"`
	CommissionDue decimal.Decimal `json:"commissionDue"`
	SaleCount     int64           `json:"saleCount"`
}

// VendorRanking — строка рейтинга продавцов по оплаченным продажам.
type VendorRanking struct {
	VendorID   int64           `json:"vendorId"`
	Name       string          `json:"name"`
	Role       Role            `json:"role"`
	TotalSold  decimal.Decimal `json:"totalSold"`
	Commission decimal.Decimal `json:"commission"`
	SaleCount  int64           `json:"saleCount"`
}

// DashboardSummary — сводка для административной панели.
type DashboardSummary struct {
	TotalSold         decimal.Decimal `json:"totalSold"`
	SaleCount         int64           `json:"saleCount"`
	PaymentsReceived  decimal.Decimal `json:"paymentsReceived"`
	PaymentCount      int64           `json:"paymentCount"`
	ProcessesInFlight int64           `json:"processesInFlight"`
	ClientsTotal      int64           `json:"clientsTotal"`
	ConversionRatePct int64           `json:"conversionRatePct"`
	VendorRanking     []VendorRanking `json:"vendorRanking"`
}
