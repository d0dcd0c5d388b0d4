package middlewares

import (
	"context"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders batch the lookups made while rendering lists, one set per request.
type Loaders struct {
	clientLoader *dataloader.Loader[int, *models.Client]
	lawyerLoader *dataloader.Loader[int, *models.Lawyer]
}

func NewLoaders(conn *gorm.DB) *Loaders {
	clientReader := &clientReader{db: conn}
	lawyerReader := &lawyerReader{db: conn}

	return &Loaders{
		clientLoader: dataloader.NewBatchedLoader(clientReader.getClients, dataloader.WithWait[int, *models.Client](time.Millisecond)),
		lawyerLoader: dataloader.NewBatchedLoader(lawyerReader.getLawyers, dataloader.WithWait[int, *models.Lawyer](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// For returns the request's loaders; outside a request it builds a fresh set.
func For(ctx context.Context) *Loaders {
	if l, ok := ctx.Value(loadersKey).(*Loaders); ok {
		return l
	}
	return NewLoaders(config.GetDB())
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults orders rows by the requested ids; ids with no row
// (other tenant, purged) resolve to nil.
func generateLoaderResults[T models.Cursor](results []T, ids []int) []*dataloader.Result[*T] {
	resultMap := make(map[int]*T, len(results))
	for i := range results {
		resultMap[results[i].GetId()] = &results[i]
	}

	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[id]})
	}
	return loaderResults
}
