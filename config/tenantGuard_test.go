package config

import (
	"context"
	"testing"

	"github.com/AbdiTefera1/casewise-sub001/appctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type guardedClient struct {
	ID             int
	OrganizationId string
	Name           string
	DeletedAt      gorm.DeletedAt
}

func (guardedClient) TableName() string { return "clients" }

type guardedTask struct {
	ID        int
	CaseId    int
	Title     string
	DeletedAt gorm.DeletedAt
}

func (guardedTask) TableName() string { return "tasks" }

func (guardedTask) TenantParent() (string, string) { return "case_id", "cases" }

type globalSetting struct {
	ID  int
	Key string
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/casewise?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.Use(NewTenantGuardPlugin()))
	return db
}

func orgCtx(org string) context.Context {
	return appctx.Set(context.Background(), appctx.ContextKeyOrganizationId, org)
}

func TestTenantGuard_InjectsOrganizationOnQuery(t *testing.T) {
	db := dryRunDB(t)

	var rows []guardedClient
	stmt := db.WithContext(orgCtx("org-a")).Find(&rows).Statement

	require.NoError(t, stmt.Error)
	sql := stmt.SQL.String()
	assert.Contains(t, sql, "`clients`.`organization_id` = ?")
	assert.Contains(t, sql, "`clients`.`deleted_at` IS NULL")
	assert.Contains(t, stmt.Vars, "org-a")
}

func TestTenantGuard_GuessedIdStillScoped(t *testing.T) {
	db := dryRunDB(t)

	var row guardedClient
	stmt := db.WithContext(orgCtx("org-a")).Where("id = ?", 42).Take(&row).Statement

	require.NoError(t, stmt.Error)
	assert.Contains(t, stmt.SQL.String(), "`clients`.`organization_id` = ?")
	assert.Contains(t, stmt.Vars, "org-a")
	assert.Contains(t, stmt.Vars, 42)
}

func TestTenantGuard_ForeignOrganizationFilterDoesNotReplaceScope(t *testing.T) {
	db := dryRunDB(t)

	var rows []guardedClient
	stmt := db.WithContext(orgCtx("org-a")).Where("organization_id = ?", "org-b").Find(&rows).Statement

	require.NoError(t, stmt.Error)
	assert.Contains(t, stmt.Vars, "org-a")
	assert.Contains(t, stmt.Vars, "org-b")
}

func TestTenantGuard_RejectsMissingOrganization(t *testing.T) {
	db := dryRunDB(t)

	var rows []guardedClient
	tx := db.WithContext(context.Background()).Find(&rows)

	require.ErrorIs(t, tx.Error, appctx.ErrUnauthorized)
	assert.Empty(t, tx.Statement.SQL.String())
}

func TestTenantGuard_RejectsMissingOrganizationOnUpdateAndDelete(t *testing.T) {
	db := dryRunDB(t)

	tx := db.WithContext(context.Background()).Model(&guardedClient{ID: 1}).Update("name", "x")
	require.ErrorIs(t, tx.Error, appctx.ErrUnauthorized)

	tx = db.WithContext(context.Background()).Delete(&guardedClient{ID: 1})
	require.ErrorIs(t, tx.Error, appctx.ErrUnauthorized)
}

func TestTenantGuard_SoftDeleteIsScoped(t *testing.T) {
	db := dryRunDB(t)

	stmt := db.WithContext(orgCtx("org-a")).Delete(&guardedClient{ID: 7}).Statement

	require.NoError(t, stmt.Error)
	sql := stmt.SQL.String()
	assert.Contains(t, sql, "UPDATE `clients` SET `deleted_at`")
	assert.Contains(t, sql, "`clients`.`organization_id` = ?")
}

func TestTenantGuard_ScopesChildThroughParent(t *testing.T) {
	db := dryRunDB(t)

	var rows []guardedTask
	stmt := db.WithContext(orgCtx("org-a")).Where("case_id = ?", 3).Find(&rows).Statement

	require.NoError(t, stmt.Error)
	assert.Contains(t, stmt.SQL.String(), "`tasks`.`case_id` IN (SELECT id FROM `cases` WHERE organization_id = ?)")
	assert.Contains(t, stmt.Vars, "org-a")
}

func TestTenantGuard_IgnoresUntenantedModels(t *testing.T) {
	db := dryRunDB(t)

	var rows []globalSetting
	tx := db.WithContext(context.Background()).Find(&rows)

	require.NoError(t, tx.Error)
	assert.NotContains(t, tx.Statement.SQL.String(), "organization_id")
}

func TestTenantGuard_BypassForInternalJobs(t *testing.T) {
	db := dryRunDB(t)
	ctx := appctx.Set(context.Background(), appctx.ContextKeySkipTenantScope, true)

	var rows []guardedClient
	tx := db.WithContext(ctx).Find(&rows)

	require.NoError(t, tx.Error)
	assert.NotContains(t, tx.Statement.SQL.String(), "organization_id")
}

func TestTenantGuard_StampsOrganizationOnCreate(t *testing.T) {
	db := dryRunDB(t)

	c := guardedClient{Name: "Acme"}
	tx := db.WithContext(orgCtx("org-a")).Create(&c)

	require.NoError(t, tx.Error)
	assert.Equal(t, "org-a", c.OrganizationId)

	batch := []guardedClient{{Name: "one"}, {Name: "two"}}
	tx = db.WithContext(orgCtx("org-a")).Create(&batch)
	require.NoError(t, tx.Error)
	assert.Equal(t, "org-a", batch[0].OrganizationId)
	assert.Equal(t, "org-a", batch[1].OrganizationId)
}

func TestTenantGuard_RejectsCreateForOtherOrganization(t *testing.T) {
	db := dryRunDB(t)

	c := guardedClient{OrganizationId: "org-b", Name: "Intruder"}
	tx := db.WithContext(orgCtx("org-a")).Create(&c)

	require.ErrorIs(t, tx.Error, appctx.ErrForbidden)
}

func TestTenantGuard_CreateWithoutOrganizationFails(t *testing.T) {
	db := dryRunDB(t)

	c := guardedClient{Name: "Nobody"}
	tx := db.WithContext(context.Background()).Create(&c)

	require.ErrorIs(t, tx.Error, appctx.ErrUnauthorized)
}

func TestTenantGuard_ChildCreateWithoutOrganizationFails(t *testing.T) {
	db := dryRunDB(t)

	task := guardedTask{CaseId: 999, Title: "orphan"}
	tx := db.WithContext(context.Background()).Create(&task)

	require.ErrorIs(t, tx.Error, appctx.ErrUnauthorized)
	assert.Empty(t, tx.Statement.SQL.String())
}

func TestTenantGuard_ChildCreateChecksParentOwnership(t *testing.T) {
	db := dryRunDB(t)

	// a dry run finds no parent rows, so the parent cannot be the caller's
	task := guardedTask{CaseId: 777, Title: "foreign case"}
	tx := db.WithContext(orgCtx("org-a")).Create(&task)
	require.ErrorIs(t, tx.Error, appctx.ErrForbidden)

	batch := []guardedTask{{CaseId: 1, Title: "a"}, {CaseId: 2, Title: "b"}}
	tx = db.WithContext(orgCtx("org-a")).Create(&batch)
	require.ErrorIs(t, tx.Error, appctx.ErrForbidden)
}

func TestTenantGuard_ChildCreateBypassForInternalJobs(t *testing.T) {
	db := dryRunDB(t)
	ctx := appctx.Set(context.Background(), appctx.ContextKeySkipTenantScope, true)

	task := guardedTask{CaseId: 5, Title: "seeded"}
	tx := db.WithContext(ctx).Create(&task)

	require.NoError(t, tx.Error)
	assert.Contains(t, tx.Statement.SQL.String(), "INSERT INTO `tasks`")
}

func TestTenantGuard_BareTableFailsClosed(t *testing.T) {
	db := dryRunDB(t)

	var rows []map[string]any
	tx := db.WithContext(orgCtx("org-a")).Table("clients").Find(&rows)
	require.ErrorIs(t, tx.Error, appctx.ErrForbidden)

	var n int64
	tx = db.WithContext(orgCtx("org-a")).Table("invoices").Count(&n)
	require.ErrorIs(t, tx.Error, appctx.ErrForbidden)

	ctx := appctx.Set(context.Background(), appctx.ContextKeySkipTenantScope, true)
	tx = db.WithContext(ctx).Table("clients").Find(&rows)
	require.NoError(t, tx.Error)
}
