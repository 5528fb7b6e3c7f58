package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/credflow/credflow-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса CredFlow.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Get("/signup/referral/{referrerID}", h.GetReferralLink)
		r.Post("/signup/referral/{referrerID}", h.ReferralSignup)

		r.Get("/track/{token}", h.TrackClient)
		r.Post("/track/{token}/payments", h.CreatePaymentByToken)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/tiers", h.ListTiers)
			r.Get("/tiers/{id}", h.GetTierByID)
			r.Patch("/tiers/{id}", h.UpdateTier)

			r.Get("/members", h.ListMembers)
			r.Post("/members", h.CreateMember)
			r.Get("/members/{id}", h.GetMemberByID)
			r.Patch("/members/{id}", h.UpdateMember)
			r.Delete("/members/{id}", h.DeleteMember)
			r.Get("/members/referral-tree", h.GetReferralForest)
			r.Get("/members/{id}/referral-tree", h.GetReferralTree)

			r.Get("/clients", h.ListClients)
			r.Post("/clients", h.CreateClient)
			r.Get("/clients/{id}", h.GetClientByID)
			r.Patch("/clients/{id}", h.UpdateClient)
			r.Delete("/clients/{id}", h.DeleteClient)
			r.Patch("/clients/{id}/status", h.UpdateClientStatus)

			r.Get("/payments", h.ListPayments)
			r.Post("/payments", h.CreatePayment)
			r.Post("/payments/{id}/confirm", h.ConfirmPayment)

			r.Get("/membership-payments", h.ListMembershipPayments)
			r.Post("/membership-payments", h.CreateMembershipPayment)
			r.Post("/membership-payments/{id}/confirm", h.ConfirmMembershipPayment)

			r.Get("/sales", h.ListSales)
			r.Get("/sales/summary", h.GetCommissionSummary)
			r.Get("/dashboard", h.GetDashboard)

			r.Get("/bonuses", h.ListBonuses)
			r.Get("/bonuses/summary", h.GetBonusSummary)

			r.Get("/withdrawals", h.ListWithdrawals)
			r.Post("/withdrawals", h.RequestWithdrawal)
			r.Get("/withdrawals/balance", h.GetBalance)
			r.Post("/withdrawals/{id}/approve", h.ApproveWithdrawal)
			r.Post("/withdrawals/{id}/reject", h.RejectWithdrawal)
			r.Post("/withdrawals/{id}/pay", h.PayWithdrawal)

			r.Get("/commissions/config", h.GetCommissionRates)
			r.Put("/commissions/config", h.SetCommissionRates)

			r.Get("/audit", h.ListAuditEntries)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
