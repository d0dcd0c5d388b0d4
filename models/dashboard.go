package models

import (
	"context"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type DashboardSummary struct {
	OpenCases            int64           `json:"open_cases"`
	PendingCases         int64           `json:"pending_cases"`
	TasksDueThisWeek     int64           `json:"tasks_due_this_week"`
	UpcomingAppointments int64           `json:"upcoming_appointments"`
	UnpaidInvoices       int64           `json:"unpaid_invoices"`
	OverdueInvoices      int64           `json:"overdue_invoices"`
	OutstandingBalance   decimal.Decimal `json:"outstanding_balance"`
	UnreadNotifications  int64           `json:"unread_notifications"`
}

// GetDashboardSummary runs the independent counts concurrently.
func GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "dashboard.summary")
	defer span.End()

	now := time.Now()
	weekEnd := now.AddDate(0, 0, 7)
	summary := &DashboardSummary{OutstandingBalance: decimal.Zero}

	g, gCtx := errgroup.WithContext(ctx)
	db := func() *gorm.DB { return config.GetDB().WithContext(gCtx) }

	g.Go(func() error {
		return db().Model(&Case{}).Where("status = ?", CaseStatusOpen).Count(&summary.OpenCases).Error
	})
	g.Go(func() error {
		return db().Model(&Case{}).Where("status = ?", CaseStatusPending).Count(&summary.PendingCases).Error
	})
	g.Go(func() error {
		return db().Model(&Task{}).
			Where("status <> ? AND due_date IS NOT NULL AND due_date < ?", TaskStatusDone, weekEnd).
			Count(&summary.TasksDueThisWeek).Error
	})
	g.Go(func() error {
		return db().Model(&Appointment{}).
			Where("status = ? AND starts_at >= ? AND starts_at < ?", AppointmentStatusScheduled, now, weekEnd).
			Count(&summary.UpcomingAppointments).Error
	})
	g.Go(func() error {
		return db().Model(&Invoice{}).Where("status = ?", InvoiceStatusUnpaid).Count(&summary.UnpaidInvoices).Error
	})
	g.Go(func() error {
		dbCtx, err := applyInvoiceStatusFilter(db().Model(&Invoice{}), InvoiceStatusOverdue, now)
		if err != nil {
			return err
		}
		return dbCtx.Count(&summary.OverdueInvoices).Error
	})
	g.Go(func() error {
		balance, err := outstandingBalance(gCtx)
		if err != nil {
			return err
		}
		summary.OutstandingBalance = balance
		return nil
	})
	g.Go(func() error {
		if _, ok := utils.GetUserIdFromContext(gCtx); !ok {
			return nil
		}
		n, err := CountUnreadNotifications(gCtx)
		if err != nil {
			return err
		}
		summary.UnreadNotifications = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

// outstandingBalance is the unpaid total minus what has been paid on unpaid invoices.
func outstandingBalance(ctx context.Context) (decimal.Decimal, error) {
	db := config.GetDB().WithContext(ctx)

	var total decimal.NullDecimal
	if err := db.Model(&Invoice{}).
		Select("COALESCE(SUM(total), 0)").
		Where("status = ?", InvoiceStatusUnpaid).
		Row().Scan(&total); err != nil {
		return decimal.Zero, err
	}

	var paid decimal.NullDecimal
	if err := db.Model(&Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id IN (?)", db.Model(&Invoice{}).Select("id").Where("status = ?", InvoiceStatusUnpaid)).
		Row().Scan(&paid); err != nil {
		return decimal.Zero, err
	}
	return total.Decimal.Sub(paid.Decimal), nil
}
