// Package payment serves the financials surface: payment listings scoped
// by role and the aggregate figures shown on the dashboard.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/imedia765/memberhub/internal/repository"
	"github.com/imedia765/memberhub/internal/roles"
)

// ErrForbidden is returned when the caller's role does not permit the
// financials query.
var ErrForbidden = errors.New("forbidden")

// Summary aggregates a set of payments for display.
type Summary struct {
	Count        int     `json:"count"`
	PaidCount    int     `json:"paid_count"`
	PendingCount int     `json:"pending_count"`
	Total        float64 `json:"total"`
	PaidTotal    float64 `json:"paid_total"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	P90          float64 `json:"p90"`
}

// Service answers payment queries over the repository.
type Service struct {
	payments repository.PaymentRepository
}

// NewService creates the payment service.
func NewService(payments repository.PaymentRepository) *Service {
	return &Service{payments: payments}
}

// ForMember lists the caller's own payments. Every authenticated member may
// see their own history.
func (s *Service) ForMember(ctx context.Context, memberID string) ([]models.Payment, error) {
	payments, err := s.payments.ListByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list payments for member %s: %w", memberID, err)
	}
	return payments, nil
}

// Financials lists the payments the caller's role entitles them to:
// admins see everything, collectors see their own collections.
func (s *Service) Financials(ctx context.Context, callerID string, callerRoles roles.RoleSet) ([]models.Payment, error) {
	switch {
	case callerRoles.HasRole(roles.RoleAdmin):
		payments, err := s.payments.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		return payments, nil
	case callerRoles.HasRole(roles.RoleCollector):
		payments, err := s.payments.ListByCollector(ctx, callerID)
		if err != nil {
			return nil, fmt.Errorf("list collector payments: %w", err)
		}
		return payments, nil
	default:
		return nil, ErrForbidden
	}
}

// Record stores a new payment. Collectors record for their own members,
// admins for anyone.
func (s *Service) Record(ctx context.Context, callerID string, callerRoles roles.RoleSet, payment *models.Payment) error {
	switch {
	case callerRoles.HasRole(roles.RoleAdmin):
	case callerRoles.HasRole(roles.RoleCollector):
		payment.CollectorID = &callerID
	default:
		return ErrForbidden
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	return nil
}

// Summarize computes the aggregate figures for a payment set. An empty set
// yields the zero summary rather than NaNs.
func Summarize(payments []models.Payment) Summary {
	summary := Summary{Count: len(payments)}
	if len(payments) == 0 {
		return summary
	}

	amounts := make([]float64, 0, len(payments))
	for _, p := range payments {
		amounts = append(amounts, p.Amount)
		summary.Total += p.Amount
		switch p.Status {
		case models.PaymentStatusPaid:
			summary.PaidCount++
			summary.PaidTotal += p.Amount
		case models.PaymentStatusPending:
			summary.PendingCount++
		}
	}

	summary.Mean = stat.Mean(amounts, nil)

	// Quantile needs sorted input.
	sort.Float64s(amounts)
	summary.Median = stat.Quantile(0.5, stat.Empirical, amounts, nil)
	summary.P90 = stat.Quantile(0.9, stat.Empirical, amounts, nil)
	return summary
}
