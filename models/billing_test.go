package models

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// dryRunDB installs a statement-only connection with the tenant guard as the
// package's global DB.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/casewise?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, db.Use(config.NewTenantGuardPlugin()))

	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(prev) })
	return db
}

func TestReconciledStatus_PartialThenFullThenDelete(t *testing.T) {
	total := dec("500")

	// 300 of 500: still unpaid
	status := reconciledStatus(InvoiceStatusUnpaid, total, dec("300"), false)
	assert.Equal(t, InvoiceStatusUnpaid, status)

	// +200: settled
	status = reconciledStatus(status, total, dec("500"), false)
	assert.Equal(t, InvoiceStatusPaid, status)

	// the 200 payment is deleted: reopened
	status = reconciledStatus(status, total, dec("300"), true)
	assert.Equal(t, InvoiceStatusUnpaid, status)
}

func TestReconciledStatus_DirectionIsOneWay(t *testing.T) {
	// a recorded payment never reopens an invoice
	assert.Equal(t, InvoiceStatusPaid, reconciledStatus(InvoiceStatusPaid, dec("100"), dec("40"), false))
	// a deletion never settles one
	assert.Equal(t, InvoiceStatusUnpaid, reconciledStatus(InvoiceStatusUnpaid, dec("100"), dec("100"), true))
	// exact cents count as paid
	assert.Equal(t, InvoiceStatusPaid, reconciledStatus(InvoiceStatusUnpaid, dec("100.10"), dec("100.1"), false))
}

func TestExpectedInvoiceStatus(t *testing.T) {
	assert.Equal(t, InvoiceStatusPaid, expectedInvoiceStatus(dec("250"), dec("250.00")))
	assert.Equal(t, InvoiceStatusUnpaid, expectedInvoiceStatus(dec("250"), dec("249.99")))
	assert.Equal(t, InvoiceStatusUnpaid, expectedInvoiceStatus(dec("250"), decimal.Zero))
}

func TestDisplayStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	assert.Equal(t, InvoiceStatusOverdue, Invoice{Status: InvoiceStatusUnpaid, DueDate: past}.DisplayStatus(now))
	assert.Equal(t, InvoiceStatusUnpaid, Invoice{Status: InvoiceStatusUnpaid, DueDate: future}.DisplayStatus(now))
	assert.Equal(t, InvoiceStatusPaid, Invoice{Status: InvoiceStatusPaid, DueDate: past}.DisplayStatus(now))
}

func TestBuildInvoiceItems_RoundsLinesAndSumsTotal(t *testing.T) {
	items, total := buildInvoiceItems([]*NewInvoiceItem{
		{Description: "Consultation", Quantity: dec("1.5"), UnitPrice: dec("200")},
		{Description: "Filing fee", Quantity: dec("3"), UnitPrice: dec("33.333")},
	})

	require.Len(t, items, 2)
	assert.True(t, items[0].Amount.Equal(dec("300")))
	assert.True(t, items[1].Amount.Equal(dec("100")), items[1].Amount.String())
	assert.True(t, total.Equal(dec("400")), total.String())
	assert.Equal(t, 1, items[0].SortOrder)
	assert.Equal(t, 2, items[1].SortOrder)
}

func TestNewPaymentValidate_AmountMustBePositive(t *testing.T) {
	for _, amount := range []string{"0", "-50", "-0.01"} {
		input := NewPayment{Amount: dec(amount), PaymentDate: time.Now(), Method: PaymentMethodCash}
		err := input.validate()
		require.ErrorIs(t, err, utils.ErrInvalidArgument, amount)
		assert.Contains(t, err.Error(), "amount must be greater than zero")
	}

	// the column keeps 4 places; anything past cents would be rounded away on insert
	for _, amount := range []string{"0.00001", "0.005", "10.125"} {
		input := NewPayment{Amount: dec(amount), PaymentDate: time.Now(), Method: PaymentMethodCash}
		err := input.validate()
		require.ErrorIs(t, err, utils.ErrInvalidArgument, amount)
		assert.Contains(t, err.Error(), "at most 2 decimal places")
	}

	for _, amount := range []string{"0.01", "12.50", "300"} {
		input := NewPayment{Amount: dec(amount), PaymentDate: time.Now(), Method: PaymentMethodCash}
		assert.NoError(t, input.validate(), amount)
	}
}

func TestOrderedItemsSortsBySortOrder(t *testing.T) {
	db := dryRunDB(t)
	ctx := utils.SetOrganizationIdInContext(context.Background(), "org-a")

	var rows []InvoiceItem
	stmt := db.WithContext(ctx).Scopes(orderedItems).Where("invoice_id = ?", 3).Find(&rows).Statement

	require.NoError(t, stmt.Error)
	assert.Contains(t, stmt.SQL.String(), "ORDER BY sort_order")
}

func TestApplyInvoiceStatusFilter(t *testing.T) {
	db := dryRunDB(t)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ctx := utils.SetOrganizationIdInContext(context.Background(), "org-a")

	q, err := applyInvoiceStatusFilter(db.WithContext(ctx).Model(&Invoice{}), InvoiceStatusOverdue, now)
	require.NoError(t, err)
	var rows []Invoice
	stmt := q.Find(&rows).Statement
	require.NoError(t, stmt.Error)
	assert.Contains(t, stmt.SQL.String(), "invoices.status = ? AND invoices.due_date < ?")
	assert.Contains(t, stmt.Vars, InvoiceStatusUnpaid)
	assert.Contains(t, stmt.Vars, now)

	_, err = applyInvoiceStatusFilter(db.Model(&Invoice{}), InvoiceStatus("DRAFT"), now)
	assert.ErrorIs(t, err, utils.ErrInvalidArgument)
}

func TestInvoiceQuery_IsTenantScoped(t *testing.T) {
	dryRunDB(t)
	ctx := utils.SetOrganizationIdInContext(context.Background(), "org-a")
	status := InvoiceStatusPaid
	search := "INV_1"

	q, err := invoiceQuery(ctx, InvoiceFilter{Status: &status, Search: &search}, time.Now())
	require.NoError(t, err)
	var rows []Invoice
	stmt := q.Find(&rows).Statement

	require.NoError(t, stmt.Error)
	sql := stmt.SQL.String()
	assert.Contains(t, sql, "`invoices`.`organization_id` = ?")
	assert.Contains(t, sql, "invoices.invoice_number LIKE ?")
	assert.Contains(t, stmt.Vars, "org-a")
	assert.Contains(t, stmt.Vars, `%INV\_1%`)

	_, err = invoiceQuery(context.Background(), InvoiceFilter{}, time.Now())
	assert.ErrorIs(t, err, utils.ErrUnauthorized)
}

func TestNewPaymentAcceptsBothDateSpellings(t *testing.T) {
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, body := range []string{
		`{"amount":"10","payment_date":"2026-03-01T00:00:00Z","method":"CASH"}`,
		`{"amount":"10","paymentDate":"2026-03-01T00:00:00Z","method":"CASH"}`,
	} {
		var input NewPayment
		require.NoError(t, json.Unmarshal([]byte(body), &input))
		assert.True(t, want.Equal(input.PaymentDate), body)
		assert.True(t, input.Amount.Equal(dec("10")))
		assert.Equal(t, PaymentMethodCash, input.Method)
	}
}
