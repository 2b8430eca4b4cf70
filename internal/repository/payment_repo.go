package repository

import (
	"context"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository interface {
	// InsertIgnoreDuplicates writes only rows whose UniqueCode is not already
	// stored and returns how many were actually inserted. Re-importing an
	// overlapping bank statement is therefore a zero-write no-op.
	InsertIgnoreDuplicates(ctx context.Context, payments []model.Payment) (int, error)
	ListAfterWindow(ctx context.Context) ([]model.Payment, error)
	ListByCounterparty(ctx context.Context, counterpartyID string) ([]model.Payment, error)
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) InsertIgnoreDuplicates(ctx context.Context, payments []model.Payment) (int, error) {
	if len(payments) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&payments)
	return int(res.RowsAffected), res.Error
}

func (r *paymentRepo) ListAfterWindow(ctx context.Context) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("after_window = ?", true).
		Order("date").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) ListByCounterparty(ctx context.Context, counterpartyID string) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("counterparty_id = ?", counterpartyID).
		Order("date").
		Find(&payments).Error
	return payments, err
}
