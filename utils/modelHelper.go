package utils

import (
	"context"
	"errors"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model from db.
// The tenant guard scopes the query to ctx's organization, so a row of another
// organization is reported as ErrNotFound.
func FetchModel[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	return fetchModel[T](config.GetDB().WithContext(ctx), id, associations...)
}

// FetchModelTx is FetchModel inside an open transaction.
func FetchModelTx[T any](tx *gorm.DB, id int, associations ...string) (*T, error) {
	return fetchModel[T](tx, id, associations...)
}

// FetchModelForUpdate reads and row-locks the model until tx ends.
func FetchModelForUpdate[T any](tx *gorm.DB, id int) (*T, error) {
	return fetchModel[T](tx.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

// FetchModelUnscoped also returns soft-deleted rows.
func FetchModelUnscoped[T any](ctx context.Context, id int, associations ...string) (*T, error) {
	return fetchModel[T](config.GetDB().WithContext(ctx).Unscoped(), id, associations...)
}

func fetchModel[T any](dbCtx *gorm.DB, id int, associations ...string) (*T, error) {
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}
