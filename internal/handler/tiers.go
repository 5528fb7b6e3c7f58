package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/credflow/credflow-system/internal/repository"
)

// ListTiers возвращает уровни членства по возрастанию ранга.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.service.ListTiers(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tiers)
}

// GetTierByID возвращает уровень по идентификатору.
func (h *Handler) GetTierByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tier, err := h.service.GetTier(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tier)
}

type updateTierRequest struct {
	MembershipFee *decimal.Decimal `json:"membershipFee,omitempty"`
	ReferralBonus *decimal.Decimal `json:"referralBonus,omitempty"`
	Rank          *int             `json:"rank,omitempty"`
}

// UpdateTier изменяет параметры уровня. Доступно только администратору.
func (h *Handler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateTierRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	tier, err := h.service.UpdateTier(r.Context(), admin.ID, id, repository.TierPatch{
		MembershipFee: req.MembershipFee,
		ReferralBonus: req.ReferralBonus,
		Rank:          req.Rank,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tier)
}
