package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
)

type createPaymentRequest struct {
	ClientID int64           `json:"clientId"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method"`
}

// CreatePayment создаёт платёж клиента в статусе PENDENTE.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var req createPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Платёж заводится только по видимому клиенту.
	if _, err := h.service.GetClient(r.Context(), member, req.ClientID); err != nil {
		h.respondError(w, r, err)
		return
	}

	payment, err := h.service.CreateClientPayment(r.Context(), req.ClientID, req.Amount, req.Method)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, payment)
}

type trackPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

// CreatePaymentByToken создаёт платёж по публичному токену отслеживания.
func (h *Handler) CreatePaymentByToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req trackPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payment, err := h.service.CreateClientPaymentByToken(r.Context(), token, req.Amount, req.Method)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, payment)
}

type confirmResponse struct {
	Already bool           `json:"already"`
	Payment *model.Payment `json:"payment"`
}

// ConfirmPayment подтверждает платёж клиента. Повторное подтверждение
// возвращает already=true без побочных эффектов. Доступно только администратору.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.ConfirmClientPayment(r.Context(), admin.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, confirmResponse{Already: result.Already, Payment: result.Payment})
}

// ListPayments возвращает платежи клиентов с фильтрами по клиенту и статусу.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	filter, ok := paymentFilterFromQuery(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, payments)
}

func paymentFilterFromQuery(w http.ResponseWriter, r *http.Request) (repository.PaymentFilter, bool) {
	var filter repository.PaymentFilter
	if raw := r.URL.Query().Get("clientId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return filter, false
		}
		filter.ClientID = &id
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.PaymentStatus(raw)
		filter.Status = &status
	}
	return filter, true
}

type createMembershipPaymentRequest struct {
	TierName string          `json:"tierName"`
	Amount   decimal.Decimal `json:"amount"`
	Method   string          `json:"method"`
}

// CreateMembershipPayment создаёт платёж текущего участника за вступление в уровень.
func (h *Handler) CreateMembershipPayment(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var req createMembershipPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.TierName == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payment, err := h.service.CreateMembershipPayment(r.Context(), member.ID, req.TierName, req.Amount, req.Method)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, payment)
}

type membershipConfirmResponse struct {
	Already bool                      `json:"already"`
	Payment *model.MembershipPayment `json:"payment"`
}

// ConfirmMembershipPayment подтверждает платёж за вступление. Доступно только
// администратору.
func (h *Handler) ConfirmMembershipPayment(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.ConfirmMembershipPayment(r.Context(), admin.ID, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, membershipConfirmResponse{Already: result.Already, Payment: result.Payment})
}

// ListMembershipPayments возвращает платежи за вступление: администратор видит
// все, остальные — только свои.
func (h *Handler) ListMembershipPayments(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var filter repository.MembershipPaymentFilter
	if member.Role != model.RoleAdmin {
		filter.MemberID = &member.ID
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.PaymentStatus(raw)
		filter.Status = &status
	}

	payments, err := h.service.ListMembershipPayments(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, payments)
}
