package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/imedia765/memberhub/internal/auth"
	"github.com/imedia765/memberhub/internal/db/bunx"
	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/roles"
	"github.com/imedia765/memberhub/internal/services/payment"
)

type paymentView struct {
	ID          string    `json:"id"`
	MemberID    string    `json:"member_id"`
	CollectorID *string   `json:"collector_id,omitempty"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	PaymentDate time.Time `json:"payment_date"`
}

func paymentsView(payments []models.Payment) []paymentView {
	out := make([]paymentView, 0, len(payments))
	for i := range payments {
		p := &payments[i]
		out = append(out, paymentView{
			ID:          p.ID,
			MemberID:    p.MemberID,
			CollectorID: p.CollectorID,
			Amount:      p.Amount,
			Status:      p.Status,
			PaymentDate: p.PaymentDate,
		})
	}
	return out
}

// HandleFinancials lists the payments the caller's role entitles them to,
// with the aggregate summary attached.
func HandleFinancials(payments *payment.Service, resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())
		rs := resolver.Lookup(r.Context(), principal.MemberID)

		listed, err := payments.Financials(r.Context(), principal.MemberID, rs)
		if err != nil {
			if errors.Is(err, payment.ErrForbidden) {
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			log.Printf("financials: %v", err)
			respondError(w, http.StatusInternalServerError, "financials unavailable")
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"payments": paymentsView(listed),
			"summary":  payment.Summarize(listed),
		})
	}
}

// HandlePaymentSummary returns only the aggregate statistics over the
// payments the caller's role entitles them to.
func HandlePaymentSummary(payments *payment.Service, resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())
		rs := resolver.Lookup(r.Context(), principal.MemberID)

		listed, err := payments.Financials(r.Context(), principal.MemberID, rs)
		if err != nil {
			if errors.Is(err, payment.ErrForbidden) {
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			log.Printf("payment summary: %v", err)
			respondError(w, http.StatusInternalServerError, "summary unavailable")
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{"summary": payment.Summarize(listed)})
	}
}

// HandleOwnPayments lists the caller's own payment history.
func HandleOwnPayments(payments *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())

		listed, err := payments.ForMember(r.Context(), principal.MemberID)
		if err != nil {
			log.Printf("own payments: %v", err)
			respondError(w, http.StatusInternalServerError, "payments unavailable")
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"payments": paymentsView(listed),
			"summary":  payment.Summarize(listed),
		})
	}
}

type recordPaymentRequest struct {
	MemberID    string  `json:"member_id"`
	CollectorID *string `json:"collector_id"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	PaymentDate string  `json:"payment_date"`
}

// HandleRecordPayment stores a new payment.
func HandleRecordPayment(payments *payment.Service, resolver *roles.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.PrincipalFromContext(r.Context())
		rs := resolver.Lookup(r.Context(), principal.MemberID)

		var req recordPaymentRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if req.MemberID == "" || req.Amount <= 0 {
			respondError(w, http.StatusBadRequest, "member_id and a positive amount are required")
			return
		}

		status := req.Status
		if status == "" {
			status = models.PaymentStatusPending
		}
		if status != models.PaymentStatusPaid && status != models.PaymentStatusPending {
			respondError(w, http.StatusBadRequest, "status must be paid or pending")
			return
		}

		paymentDate := time.Now()
		if req.PaymentDate != "" {
			parsed, err := time.Parse(time.RFC3339, req.PaymentDate)
			if err != nil {
				respondError(w, http.StatusBadRequest, "payment_date must be RFC 3339")
				return
			}
			paymentDate = parsed
		}

		p := &models.Payment{
			ID:          bunx.NewUUIDv7(),
			MemberID:    req.MemberID,
			CollectorID: req.CollectorID,
			Amount:      req.Amount,
			Status:      status,
			PaymentDate: paymentDate,
		}
		if err := payments.Record(r.Context(), principal.MemberID, rs, p); err != nil {
			if errors.Is(err, payment.ErrForbidden) {
				respondError(w, http.StatusForbidden, "forbidden")
				return
			}
			log.Printf("record payment: %v", err)
			respondError(w, http.StatusInternalServerError, "payment not recorded")
			return
		}

		respondJSON(w, http.StatusCreated, map[string]string{"id": p.ID})
	}
}
