package models

import (
	"context"
	"strings"

	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/AbdiTefera1/casewise-sub001/models")

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// actorFromContext returns the acting user; internal jobs have none.
func actorFromContext(ctx context.Context) (int, string) {
	userId, _ := utils.GetUserIdFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	return userId, userName
}

func isAdmin(ctx context.Context) bool {
	role, _ := utils.GetUserRoleFromContext(ctx)
	return UserRole(role) == UserRoleAdmin
}

// likePattern escapes LIKE wildcards in user search input.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}
