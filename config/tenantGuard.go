package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/AbdiTefera1/casewise-sub001/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const tenantColumn = "organization_id"

// TenantParent is implemented by child models that carry no organization_id of
// their own and belong to a tenant through a parent row (task -> case).
type TenantParent interface {
	TenantParent() (foreignKey string, parentTable string)
}

// TenantGuardPlugin enforces multi-tenant isolation by scoping every
// query/update/delete to the request's organization_id, and stamping it on create.
//
// NOTE:
//   - Raw SQL (db.Raw / db.Exec) is not rewritten. Those must include organization_id manually.
//   - A bare db.Table(...) statement with no model fails with ErrForbidden unless bypassed.
//   - A tenant model touched without an organization in context fails with ErrUnauthorized.
//   - Child rows are only created under a parent owned by the caller's organization.
//   - Internal bypass is explicit via context flags.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	// Query
	if err := db.Callback().Query().Before("gorm:query").Register("tenant_guard:query", tenantGuardCallback); err != nil {
		return err
	}
	// Row (Row/Rows)
	if err := db.Callback().Row().Before("gorm:row").Register("tenant_guard:row", tenantGuardCallback); err != nil {
		return err
	}
	// Update
	if err := db.Callback().Update().Before("gorm:update").Register("tenant_guard:update", tenantGuardCallback); err != nil {
		return err
	}
	// Delete (soft deletes included)
	if err := db.Callback().Delete().Before("gorm:delete").Register("tenant_guard:delete", tenantGuardCallback); err != nil {
		return err
	}
	// Create
	if err := db.Callback().Create().Before("gorm:create").Register("tenant_guard:create", tenantGuardCreateCallback); err != nil {
		return err
	}
	return nil
}

func tenantGuardCallback(db *gorm.DB) {
	stmt := db.Statement
	if stmt == nil || stmt.SQL.Len() > 0 {
		return
	}
	if stmt.Schema == nil {
		// no model to scope by: only internal jobs may address a table directly
		if stmt.Table != "" && !shouldBypassTenantScope(contextOf(stmt)) {
			db.AddError(appctx.ErrForbidden)
		}
		return
	}

	hasColumn := schemaHasTenantColumn(stmt.Schema)
	parent, hasParent := tenantParentOf(stmt.Schema)
	if !hasColumn && !hasParent {
		return
	}

	ctx := contextOf(stmt)
	if shouldBypassTenantScope(ctx) {
		return
	}
	organizationID := organizationIdFromContext(ctx)
	if organizationID == "" {
		db.AddError(appctx.ErrUnauthorized)
		return
	}

	if hasColumn {
		if whereHasOrganizationID(stmt.Clauses["WHERE"], organizationID) {
			return
		}
		stmt.AddClause(clause.Where{
			Exprs: []clause.Expression{
				clause.Eq{
					Column: clause.Column{Table: stmt.Table, Name: tenantColumn},
					Value:  organizationID,
				},
			},
		})
		return
	}

	foreignKey, parentTable := parent.TenantParent()
	stmt.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Expr{
				SQL: "? IN (SELECT id FROM ? WHERE organization_id = ?)",
				Vars: []interface{}{
					clause.Column{Table: stmt.Table, Name: foreignKey},
					clause.Table{Name: parentTable},
					organizationID,
				},
			},
		},
	})
}

// tenantGuardCreateCallback stamps organization_id on new rows, and refuses rows
// that name an organization other than the caller's. Child rows must point at a
// parent owned by the caller's organization.
func tenantGuardCreateCallback(db *gorm.DB) {
	stmt := db.Statement
	if stmt == nil || stmt.Schema == nil {
		return
	}
	field := stmt.Schema.LookUpField(tenantColumn)
	if field == nil {
		if parent, ok := tenantParentOf(stmt.Schema); ok {
			guardChildCreate(db, parent)
		}
		return
	}

	ctx := contextOf(stmt)
	bypass := shouldBypassTenantScope(ctx)
	organizationID := organizationIdFromContext(ctx)
	if organizationID == "" && !bypass {
		db.AddError(appctx.ErrUnauthorized)
		return
	}

	stamp := func(rv reflect.Value) {
		current, zero := field.ValueOf(ctx, rv)
		if zero {
			if organizationID == "" {
				// bypassed jobs must set the tenant themselves
				db.AddError(appctx.ErrInvalidArgument)
				return
			}
			if err := field.Set(ctx, rv, organizationID); err != nil {
				db.AddError(err)
			}
			return
		}
		if bypass {
			return
		}
		if s, ok := current.(string); ok && s != organizationID {
			db.AddError(appctx.ErrForbidden)
		}
	}

	eachRow(stmt, stamp)
}

// guardChildCreate checks that every parent id referenced by the new rows
// belongs to the caller's organization.
func guardChildCreate(db *gorm.DB, parent TenantParent) {
	stmt := db.Statement
	ctx := contextOf(stmt)
	if shouldBypassTenantScope(ctx) {
		return
	}
	organizationID := organizationIdFromContext(ctx)
	if organizationID == "" {
		db.AddError(appctx.ErrUnauthorized)
		return
	}

	foreignKey, parentTable := parent.TenantParent()
	fkField := stmt.Schema.LookUpField(foreignKey)
	if fkField == nil {
		db.AddError(fmt.Errorf("%w: %s has no column %s", appctx.ErrForbidden, stmt.Schema.Table, foreignKey))
		return
	}

	seen := map[any]struct{}{}
	var ids []any
	eachRow(stmt, func(rv reflect.Value) {
		v, _ := fkField.ValueOf(ctx, rv)
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			ids = append(ids, v)
		}
	})
	if len(ids) == 0 {
		return
	}

	var owned int64
	lookup := appctx.Set(ctx, appctx.ContextKeySkipTenantScope, true)
	err := db.Session(&gorm.Session{NewDB: true, Context: lookup}).
		Table(parentTable).
		Where("organization_id = ? AND id IN ?", organizationID, ids).
		Count(&owned).Error
	if err != nil {
		db.AddError(err)
		return
	}
	if owned != int64(len(ids)) {
		db.AddError(appctx.ErrForbidden)
	}
}

func eachRow(stmt *gorm.Statement, fn func(reflect.Value)) {
	rv := reflect.Indirect(stmt.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			fn(reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		fn(rv)
	}
}

func contextOf(stmt *gorm.Statement) context.Context {
	if stmt.Context == nil {
		return context.Background()
	}
	return stmt.Context
}

func schemaHasTenantColumn(s *schema.Schema) bool {
	for _, f := range s.Fields {
		if strings.EqualFold(f.DBName, tenantColumn) {
			return true
		}
	}
	return false
}

func tenantParentOf(s *schema.Schema) (TenantParent, bool) {
	if s.ModelType == nil {
		return nil, false
	}
	tp, ok := reflect.New(s.ModelType).Interface().(TenantParent)
	return tp, ok
}

func organizationIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(appctx.ContextKeyOrganizationId).(string); ok && v != "" {
		return v
	}
	return ""
}

func shouldBypassTenantScope(ctx context.Context) bool {
	skip, _ := appctx.GetBool(ctx, appctx.ContextKeySkipTenantScope)
	return skip
}

// whereHasOrganizationID reports whether the statement already filters on the
// caller's own organization. A filter on any other organization does not count.
func whereHasOrganizationID(c clause.Clause, organizationID string) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if eq, ok := e.(clause.Eq); ok && colIsOrganizationID(eq.Column) {
			if v, ok := eq.Value.(string); ok && v == organizationID {
				return true
			}
		}
	}
	return false
}

func colIsOrganizationID(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	default:
		return false
	}
}
