package repository

import (
	"context"
	"fmt"

	"github.com/imedia765/memberhub/internal/db/models"
	"github.com/uptrace/bun"
)

// BunPaymentRepository implements PaymentRepository using Bun ORM
type BunPaymentRepository struct {
	db *bun.DB
}

// NewBunPaymentRepository creates a new Bun-based payment repository
func NewBunPaymentRepository(db *bun.DB) *BunPaymentRepository {
	return &BunPaymentRepository{db: db}
}

// Create inserts a new payment record
func (r *BunPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	_, err := r.db.NewInsert().
		Model(payment).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ListByMember returns a member's payments, newest first
func (r *BunPaymentRepository) ListByMember(ctx context.Context, memberID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.NewSelect().
		Model(&payments).
		Where("member_id = ?", memberID).
		Order("payment_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments by member: %w", err)
	}
	return payments, nil
}

// ListByCollector returns the payments collected by a collector, newest first
func (r *BunPaymentRepository) ListByCollector(ctx context.Context, collectorID string) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.NewSelect().
		Model(&payments).
		Where("collector_id = ?", collectorID).
		Order("payment_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments by collector: %w", err)
	}
	return payments, nil
}

// List returns all payments, newest first
func (r *BunPaymentRepository) List(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.NewSelect().
		Model(&payments).
		Order("payment_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
