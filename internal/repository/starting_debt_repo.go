package repository

import (
	"context"

	"github.com/BorisSolomonia/Tasty-new-sub000/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StartingDebtRepository interface {
	List(ctx context.Context) ([]model.StartingDebt, error)
	UpsertBatch(ctx context.Context, debts []model.StartingDebt) error
}

type startingDebtRepo struct{ db *gorm.DB }

func NewStartingDebtRepository(db *gorm.DB) StartingDebtRepository {
	return &startingDebtRepo{db: db}
}

func (r *startingDebtRepo) List(ctx context.Context) ([]model.StartingDebt, error) {
	var debts []model.StartingDebt
	err := r.db.WithContext(ctx).Find(&debts).Error
	return debts, err
}

func (r *startingDebtRepo) UpsertBatch(ctx context.Context, debts []model.StartingDebt) error {
	if len(debts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "counterparty_id"}},
			UpdateAll: true,
		}).
		Create(&debts).Error
}
