package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// Invoice.Status holds UNPAID or PAID. It is a projection of the invoice's live
// payments and is only written by RecomputeInvoiceStatus.
type Invoice struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"size:36;not null;uniqueIndex:idx_invoice_number,priority:1;index:idx_invoice_status,priority:1" json:"organization_id"`
	ClientId       int             `gorm:"not null;index" json:"client_id"`
	CaseId         *int            `gorm:"index" json:"case_id"`
	InvoiceNumber  string          `gorm:"size:40;not null;uniqueIndex:idx_invoice_number,priority:2" json:"invoice_number"`
	SequenceNo     int64           `gorm:"not null" json:"sequence_no"`
	Total          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total"`
	Status         InvoiceStatus   `gorm:"size:10;not null;default:UNPAID;index:idx_invoice_status,priority:2" json:"status"`
	IssueDate      time.Time       `gorm:"not null" json:"issue_date"`
	DueDate        time.Time       `gorm:"not null;index:idx_invoice_status,priority:3" json:"due_date"`
	Notes          string          `gorm:"type:text" json:"notes"`
	Items          []*InvoiceItem  `gorm:"foreignKey:InvoiceId" json:"items,omitempty"`
	CreatedBy      int             `json:"created_by"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`

	// response only
	DisplayedStatus InvoiceStatus    `gorm:"-" json:"display_status"`
	AmountPaid      *decimal.Decimal `gorm:"-" json:"amount_paid,omitempty"`
}

// InvoiceItem belongs to a tenant through its invoice.
type InvoiceItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   int             `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"size:255;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	SortOrder   int             `gorm:"not null;default:0" json:"sort_order"`
}

func (InvoiceItem) TenantParent() (string, string) { return "invoice_id", "invoices" }

type NewInvoiceItem struct {
	Description string          `json:"description" validate:"required,max=255"`
	Quantity    decimal.Decimal `json:"quantity" validate:"dgt0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"dgte0"`
}

type NewInvoice struct {
	ClientId  int               `json:"client_id" validate:"required,gt=0"`
	CaseId    *int              `json:"case_id"`
	IssueDate *time.Time        `json:"issue_date"`
	DueDate   time.Time         `json:"due_date" validate:"required"`
	Notes     string            `json:"notes"`
	Items     []*NewInvoiceItem `json:"items" validate:"required,min=1,dive,required"`
}

type InvoiceFilter struct {
	Status         *InvoiceStatus `form:"status"`
	ClientId       *int           `form:"client_id"`
	CaseId         *int           `form:"case_id"`
	Search         *string        `form:"search"`
	IncludeDeleted bool           `form:"include_deleted"`
}

func (i Invoice) GetCursor() time.Time { return i.CreatedAt }
func (i Invoice) GetId() int           { return i.ID }

// DisplayStatus derives OVERDUE for an unpaid invoice past its due date.
func (i Invoice) DisplayStatus(now time.Time) InvoiceStatus {
	if i.Status == InvoiceStatusUnpaid && i.DueDate.Before(now) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

func (i *Invoice) fillDisplayStatus(now time.Time) {
	i.DisplayedStatus = i.DisplayStatus(now)
}

// buildInvoiceItems prices the lines. Amounts are rounded to cents; the total is their sum.
func buildInvoiceItems(input []*NewInvoiceItem) ([]*InvoiceItem, decimal.Decimal) {
	items := make([]*InvoiceItem, 0, len(input))
	total := decimal.Zero
	for idx, in := range input {
		amount := in.Quantity.Mul(in.UnitPrice).Round(2)
		items = append(items, &InvoiceItem{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      amount,
			SortOrder:   idx + 1,
		})
		total = total.Add(amount)
	}
	return items, total
}

func (input *NewInvoice) validate(ctx context.Context) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	issueDate := time.Now()
	if input.IssueDate != nil {
		issueDate = *input.IssueDate
	}
	if input.DueDate.Before(issueDate.Truncate(24 * time.Hour)) {
		return fmt.Errorf("%w: due_date is before issue_date", utils.ErrInvalidArgument)
	}
	if err := utils.ValidateResourceId[Client](ctx, input.ClientId); err != nil {
		return fmt.Errorf("%w: client", err)
	}
	if input.CaseId != nil {
		count, err := utils.ResourceCountWhere[Case](ctx, "id = ? AND client_id = ?", *input.CaseId, input.ClientId)
		if err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("%w: case of client", utils.ErrNotFound)
		}
	}
	return nil
}

func CreateInvoice(ctx context.Context, input *NewInvoice) (*Invoice, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	items, total := buildInvoiceItems(input.Items)
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: invoice total must be greater than zero", utils.ErrInvalidArgument)
	}

	seq, number, err := NextIdentifier(ctx, SequenceKindInvoice)
	if err != nil {
		return nil, err
	}
	userId, _ := actorFromContext(ctx)
	issueDate := time.Now()
	if input.IssueDate != nil {
		issueDate = *input.IssueDate
	}

	invoice := Invoice{
		ClientId:      input.ClientId,
		CaseId:        input.CaseId,
		InvoiceNumber: number,
		SequenceNo:    seq,
		Total:         total,
		Status:        InvoiceStatusUnpaid,
		IssueDate:     issueDate,
		DueDate:       input.DueDate,
		Notes:         input.Notes,
		Items:         items,
		CreatedBy:     userId,
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := tx.Create(&invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionCreate, EntityTypeInvoice, invoice.ID, nil, invoice, "invoice "+invoice.InvoiceNumber+" issued"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invoice.fillDisplayStatus(time.Now())
	return &invoice, nil
}

func countLivePayments(tx *gorm.DB, invoiceId int) (int64, error) {
	var count int64
	err := tx.Model(&Payment{}).Where("invoice_id = ?", invoiceId).Count(&count).Error
	return count, err
}

// UpdateInvoice replaces the header and lines of an invoice that has no live payments.
func UpdateInvoice(ctx context.Context, id int, input *NewInvoice) (*Invoice, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	items, total := buildInvoiceItems(input.Items)
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: invoice total must be greater than zero", utils.ErrInvalidArgument)
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	invoice, err := utils.FetchModelForUpdate[Invoice](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	paid, err := countLivePayments(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if paid > 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: invoice %s has payments", utils.ErrInvalidState, invoice.InvoiceNumber)
	}
	before := *invoice

	invoice.ClientId = input.ClientId
	invoice.CaseId = input.CaseId
	if input.IssueDate != nil {
		invoice.IssueDate = *input.IssueDate
	}
	invoice.DueDate = input.DueDate
	invoice.Notes = input.Notes
	invoice.Total = total

	if err := tx.Model(invoice).Select("client_id", "case_id", "issue_date", "due_date", "notes", "total").
		Updates(invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Where("invoice_id = ?", id).Delete(&InvoiceItem{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, item := range items {
		item.InvoiceId = id
	}
	if err := tx.Create(&items).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	invoice.Items = items

	if err := recordActivity(tx, ActivityActionUpdate, EntityTypeInvoice, invoice.ID, before, invoice, "invoice "+invoice.InvoiceNumber+" updated"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	invoice.fillDisplayStatus(time.Now())
	return invoice, nil
}

// DeleteInvoice soft-deletes an invoice. Invoices with live payments cannot be deleted;
// delete the payments first.
func DeleteInvoice(ctx context.Context, id int) (*Invoice, error) {
	ctx, span := tracer.Start(ctx, "invoice.delete")
	defer span.End()
	span.SetAttributes(attribute.Int("invoice_id", id))

	tx := config.GetDB().WithContext(ctx).Begin()
	invoice, err := utils.FetchModelForUpdate[Invoice](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	paid, err := countLivePayments(tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if paid > 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: invoice %s has %d payment(s)", utils.ErrInvalidState, invoice.InvoiceNumber, paid)
	}
	if err := tx.Delete(invoice).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionDelete, EntityTypeInvoice, invoice.ID, invoice, nil, "invoice "+invoice.InvoiceNumber+" deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// orderedItems keeps invoice lines in the order they were entered.
func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order").Order("id")
}

// GetInvoice loads an invoice with its lines and paid amount.
func GetInvoice(ctx context.Context, id int) (*Invoice, error) {
	invoice := &Invoice{}
	err := config.GetDB().WithContext(ctx).Preload("Items", orderedItems).First(invoice, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	paid, err := sumLivePayments(config.GetDB().WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	invoice.AmountPaid = &paid
	invoice.fillDisplayStatus(time.Now())
	return invoice, nil
}

// applyInvoiceStatusFilter narrows dbCtx to a status. OVERDUE is the derived
// view over unpaid invoices whose due date has passed.
func applyInvoiceStatusFilter(dbCtx *gorm.DB, status InvoiceStatus, now time.Time) (*gorm.DB, error) {
	switch status {
	case "":
		return dbCtx, nil
	case InvoiceStatusOverdue:
		return dbCtx.Where("invoices.status = ? AND invoices.due_date < ?", InvoiceStatusUnpaid, now), nil
	case InvoiceStatusUnpaid, InvoiceStatusPaid:
		return dbCtx.Where("invoices.status = ?", status), nil
	}
	return nil, fmt.Errorf("%w: unknown invoice status %q", utils.ErrInvalidArgument, status)
}

func invoiceQuery(ctx context.Context, filter InvoiceFilter, now time.Time) (*gorm.DB, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Invoice{})
	if filter.IncludeDeleted {
		dbCtx = dbCtx.Unscoped()
	}
	if filter.Status != nil {
		var err error
		if dbCtx, err = applyInvoiceStatusFilter(dbCtx, *filter.Status, now); err != nil {
			return nil, err
		}
	}
	if filter.ClientId != nil {
		dbCtx = dbCtx.Where("invoices.client_id = ?", *filter.ClientId)
	}
	if filter.CaseId != nil {
		dbCtx = dbCtx.Where("invoices.case_id = ?", *filter.CaseId)
	}
	if filter.Search != nil && *filter.Search != "" {
		dbCtx = dbCtx.Where("invoices.invoice_number LIKE ?", likePattern(*filter.Search))
	}
	return dbCtx, nil
}

func ListInvoices(ctx context.Context, filter InvoiceFilter, page PageInput) (*Connection[Invoice], error) {
	now := time.Now()
	dbCtx, err := invoiceQuery(ctx, filter, now)
	if err != nil {
		return nil, err
	}
	conn, err := FetchPage[Invoice](dbCtx, "invoices", page)
	if err != nil {
		return nil, err
	}
	for _, e := range conn.Edges {
		e.Node.fillDisplayStatus(now)
	}
	return conn, nil
}

func GetInvoicePayments(ctx context.Context, invoiceId int) ([]*Payment, error) {
	if err := utils.ValidateResourceId[Invoice](ctx, invoiceId); err != nil {
		return nil, err
	}
	var payments []*Payment
	if err := config.GetDB().WithContext(ctx).
		Where("invoice_id = ?", invoiceId).
		Order("payment_date, id").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
