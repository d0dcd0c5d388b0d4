package middlewares

import (
	"context"

	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type lawyerReader struct {
	db *gorm.DB
}

func (r *lawyerReader) getLawyers(ctx context.Context, ids []int) []*dataloader.Result[*models.Lawyer] {
	var results []models.Lawyer
	err := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Lawyer](len(ids), err)
	}
	return generateLoaderResults(results, ids)
}

func GetLawyer(ctx context.Context, id int) (*models.Lawyer, error) {
	loaders := For(ctx)
	return loaders.lawyerLoader.Load(ctx, id)()
}

func GetLawyers(ctx context.Context, ids []int) ([]*models.Lawyer, []error) {
	loaders := For(ctx)
	return loaders.lawyerLoader.LoadMany(ctx, ids)()
}
