package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

// ListSales возвращает продажи, видимые текущему участнику.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var clientID *int64
	if raw := r.URL.Query().Get("clientId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		clientID = &id
	}

	sales, err := h.service.ListSales(r.Context(), member, clientID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, sales)
}

// GetCommissionSummary возвращает сводку комиссий текущего участника.
func (h *Handler) GetCommissionSummary(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	summary, err := h.service.CommissionSummary(r.Context(), member)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// GetDashboard возвращает сводку административной панели.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	summary, err := h.service.AdminDashboard(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// ListBonuses возвращает бонусы: администратор видит все, остальные — только свои.
func (h *Handler) ListBonuses(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var filter repository.BonusFilter
	if member.Role != model.RoleAdmin {
		filter.BeneficiaryID = &member.ID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.BonusStatus(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("tierId"); raw != "" {
		tierID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		filter.TierID = &tierID
	}
	var err error
	if filter.From, err = queryTime(r, "from"); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	bonuses, err := h.service.ListBonuses(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, bonuses)
}

// GetBonusSummary возвращает сводку бонусов: администратору — общую,
// остальным — собственную.
func (h *Handler) GetBonusSummary(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var beneficiaryID *int64
	if member.Role != model.RoleAdmin {
		beneficiaryID = &member.ID
	}

	summary, err := h.service.BonusSummary(r.Context(), beneficiaryID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

type balanceResponse struct {
	Available decimal.Decimal `json:"available"`
}

// GetBalance возвращает доступный для вывода баланс текущего участника.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	available, err := h.service.AvailableBalance(r.Context(), member.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, balanceResponse{Available: available})
}

type withdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// RequestWithdrawal создаёт заявку на вывод средств текущего участника.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), member.ID, req.Amount)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, withdrawal)
}

// ListWithdrawals возвращает заявки на вывод: администратор видит все,
// остальные — только свои.
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var filter repository.WithdrawalFilter
	if member.Role != model.RoleAdmin {
		filter.MemberID = &member.ID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.WithdrawalStatus(raw)
		filter.Status = &status
	}

	withdrawals, err := h.service.ListWithdrawals(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawals)
}

// ApproveWithdrawal одобряет заявку на вывод. Доступно только администратору.
func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	withdrawal, err := h.service.ApproveWithdrawal(r.Context(), admin.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawal)
}

type rejectWithdrawalRequest struct {
	Reason string `json:"reason"`
}

// RejectWithdrawal отклоняет заявку на вывод. Доступно только администратору.
func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req rejectWithdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	withdrawal, err := h.service.RejectWithdrawal(r.Context(), admin.ID, id, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawal)
}

// PayWithdrawal отмечает заявку выплаченной и списывает бонусы получателя.
// Доступно только администратору.
func (h *Handler) PayWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	withdrawal, err := h.service.MarkWithdrawalPaid(r.Context(), admin.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawal)
}

// GetCommissionRates возвращает действующие проценты комиссий.
func (h *Handler) GetCommissionRates(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentMember(w, r); !ok {
		return
	}

	rates, err := h.service.GetCommissionRates(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, rates)
}

type setRatesRequest struct {
	VendorPct   decimal.Decimal `json:"vendorPct"`
	SubAgentPct decimal.Decimal `json:"subAgentPct"`
}

// SetCommissionRates изменяет проценты комиссий. Доступно только администратору.
func (h *Handler) SetCommissionRates(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req setRatesRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := h.service.SetCommissionRates(r.Context(), admin.ID, model.CommissionRates{
		VendorPct:   req.VendorPct,
		SubAgentPct: req.SubAgentPct,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// ListAuditEntries возвращает записи журнала аудита. Доступно только администратору.
func (h *Handler) ListAuditEntries(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var filter repository.AuditFilter
	if entity := r.URL.Query().Get("entity"); entity != "" {
		filter.Entity = &entity
	}
	if entityID := r.URL.Query().Get("entityId"); entityID != "" {
		filter.EntityID = &entityID
	}
	if raw := r.URL.Query().Get("actorId"); raw != "" {
		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		filter.ActorID = &actorID
	}
	var err error
	if filter.From, err = queryTime(r, "from"); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}

	entries, err := h.service.ListAuditEntries(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}
