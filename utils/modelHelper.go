package utils

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model from db
// (may return RecordNotFound)
func FetchModel[T any](ctx context.Context, db *gorm.DB, id int, associations ...string) (*T, error) {
	dbCtx := db.WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		return nil, NotFoundOr(err)
	}
	return &result, nil
}

// fetch model with SELECT ... FOR UPDATE; db must be a transaction
// (may return RecordNotFound)
func FetchModelForUpdate[T any](ctx context.Context, tx *gorm.DB, id int, associations ...string) (*T, error) {
	dbCtx := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		return nil, NotFoundOr(err)
	}
	return &result, nil
}
