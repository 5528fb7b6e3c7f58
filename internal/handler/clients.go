package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
	"github.com/credflow/credflow-system/internal/service"
)

type createClientRequest struct {
	Name       string          `json:"name"`
	Document   string          `json:"document"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
	ServiceFee decimal.Decimal `json:"serviceFee"`
}

// CreateClient регистрирует клиента за текущим участником.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var req createClientRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Document == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	client, err := h.service.CreateClient(r.Context(), member, service.NewClientInput{
		Name:       req.Name,
		Document:   req.Document,
		Phone:      req.Phone,
		Email:      req.Email,
		ServiceFee: req.ServiceFee,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, client)
}

// GetClientByID возвращает клиента, если он виден текущему участнику.
func (h *Handler) GetClientByID(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	client, err := h.service.GetClient(r.Context(), member, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, client)
}

// ListClients возвращает клиентов, видимых текущему участнику.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	clients, err := h.service.ListClients(r.Context(), member)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, clients)
}

type updateClientRequest struct {
	Name       *string          `json:"name,omitempty"`
	Document   *string          `json:"document,omitempty"`
	Phone      *string          `json:"phone,omitempty"`
	Email      *string          `json:"email,omitempty"`
	ServiceFee *decimal.Decimal `json:"serviceFee,omitempty"`
}

// UpdateClient изменяет данные клиента.
func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateClientRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	client, err := h.service.UpdateClient(r.Context(), member, id, repository.ClientPatch{
		Name:       req.Name,
		Document:   req.Document,
		Phone:      req.Phone,
		Email:      req.Email,
		ServiceFee: req.ServiceFee,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, client)
}

type updateClientStatusRequest struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}

var validProcessStatuses = map[model.ProcessStatus]bool{
	model.ProcessStatusReceived:    true,
	model.ProcessStatusInReview:    true,
	model.ProcessStatusInProgress:  true,
	model.ProcessStatusAwaitingPay: true,
	model.ProcessStatusPaid:        true,
	model.ProcessStatusCompleted:   true,
	model.ProcessStatusCanceled:    true,
}

// UpdateClientStatus переводит процесс клиента в новый статус.
func (h *Handler) UpdateClientStatus(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateClientStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	status := model.ProcessStatus(req.Status)
	if !validProcessStatuses[status] {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	client, err := h.service.UpdateClientStatus(r.Context(), member, id, status, req.Description)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, client)
}

// DeleteClient удаляет клиента.
func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteClient(r.Context(), member, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type trackResponse struct {
	Client  *model.Client               `json:"client"`
	History []model.ProcessHistoryEntry `json:"history"`
}

// TrackClient возвращает статус заявки и историю процесса по публичному токену.
func (h *Handler) TrackClient(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	client, history, err := h.service.TrackClient(r.Context(), token)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, trackResponse{Client: client, History: history})
}
