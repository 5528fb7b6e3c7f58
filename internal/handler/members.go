package handler

import (
	"net/http"
	"strconv"

	"github.com/credflow/credflow-system/internal/model"
	"github.com/credflow/credflow-system/internal/repository"
	"github.com/credflow/credflow-system/internal/service"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию участника и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	member, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.authMiddleware.SetAuthCookie(w, member.ID)
	h.writeJSON(w, http.StatusOK, member)
}

// Logout сбрасывает cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type createMemberRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Role           string `json:"role"`
	ParentVendorID *int64 `json:"parentVendorId,omitempty"`
	TierName       string `json:"tierName,omitempty"`
}

// CreateMember регистрирует нового участника. Администратор создаёт участника
// любой роли, продавец — только препостов под собой.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var req createMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	role := model.Role(req.Role)
	if role != model.RoleAdmin && role != model.RoleVendor && role != model.RoleSubAgent {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleVendor:
		if role != model.RoleSubAgent {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		req.ParentVendorID = &actor.ID
	default:
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	member, err := h.service.CreateMember(r.Context(), actor.ID, service.NewMemberInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		Role:           role,
		ParentVendorID: req.ParentVendorID,
		TierName:       req.TierName,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, member)
}

// GetMemberByID возвращает участника по идентификатору.
func (h *Handler) GetMemberByID(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.currentMember(w, r); !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	member, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, member)
}

// ListMembers возвращает участников: администратору — всех по фильтрам,
// продавцу — его препостов.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	var filter repository.MemberFilter
	switch actor.Role {
	case model.RoleAdmin:
		if role := r.URL.Query().Get("role"); role != "" {
			filter.Roles = []model.Role{model.Role(role)}
		}
		if status := r.URL.Query().Get("status"); status != "" {
			filter.Status = model.MemberStatus(status)
		}
		if raw := r.URL.Query().Get("referrerId"); raw != "" {
			referrerID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			filter.ReferrerID = &referrerID
		}
	case model.RoleVendor:
		filter.Roles = []model.Role{model.RoleSubAgent}
		filter.ParentVendorID = &actor.ID
	default:
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	members, err := h.service.ListMembers(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, members)
}

type updateMemberRequest struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Status     *string `json:"status,omitempty"`
	TierID     *int64  `json:"tierId,omitempty"`
	ReferrerID *int64  `json:"referrerId,omitempty"`
}

// UpdateMember изменяет данные участника. Доступно только администратору.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	patch := repository.MemberPatch{
		Name:  req.Name,
		Email: req.Email,
	}
	if req.Status != nil {
		status := model.MemberStatus(*req.Status)
		if status != model.MemberStatusActive && status != model.MemberStatusInactive {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		patch.Status = &status
	}
	if req.TierID != nil {
		patch.TierID = &req.TierID
	}
	if req.ReferrerID != nil {
		patch.ReferrerID = &req.ReferrerID
	}

	member, err := h.service.UpdateMember(r.Context(), admin.ID, id, patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, member)
}

// DeleteMember удаляет участника. Доступно только администратору.
func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteMember(r.Context(), admin.ID, id); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetReferralTree возвращает дерево индикаций участника.
func (h *Handler) GetReferralTree(w http.ResponseWriter, r *http.Request) {
	member, ok := h.currentMember(w, r)
	if !ok {
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	// Не-администратор видит только собственное дерево.
	if member.Role != model.RoleAdmin && member.ID != id {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	tree, err := h.service.ReferralTree(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tree)
}

// GetReferralForest возвращает полный лес индикаций. Доступно только
// администратору.
func (h *Handler) GetReferralForest(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	forest, err := h.service.ReferralForest(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, forest)
}

// GetReferralLink возвращает публичные данные реферальной страницы.
func (h *Handler) GetReferralLink(w http.ResponseWriter, r *http.Request) {
	referrerID, err := pathID(r, "referrerID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	info, err := h.service.GetReferralLinkInfo(r.Context(), referrerID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, info)
}

type referralSignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	TierName string `json:"tierName"`
	Method   string `json:"method"`
}

// ReferralSignup регистрирует нового продавца по реферальной ссылке.
func (h *Handler) ReferralSignup(w http.ResponseWriter, r *http.Request) {
	referrerID, err := pathID(r, "referrerID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req referralSignupRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" || req.TierName == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	result, err := h.service.ReferralSignup(r.Context(), service.ReferralSignupInput{
		ReferrerID: referrerID,
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		TierName:   req.TierName,
		Method:     req.Method,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}
