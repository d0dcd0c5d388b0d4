package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

// Payment is immutable once recorded; it can only be (soft) deleted.
type Payment struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"size:36;not null;index" json:"organization_id"`
	InvoiceId      int             `gorm:"not null;index" json:"invoice_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentDate    time.Time       `gorm:"not null" json:"payment_date"`
	Method         PaymentMethod   `gorm:"size:20;not null" json:"method"`
	Reference      *string         `gorm:"size:100" json:"reference"`
	Notes          *string         `gorm:"type:text" json:"notes"`
	CreatedBy      int             `json:"created_by"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

type NewPayment struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date" validate:"required"`
	Method      PaymentMethod   `json:"method" validate:"required,oneof=CASH BANK_TRANSFER CARD CHECK OTHER"`
	Reference   *string         `json:"reference" validate:"omitempty,max=100"`
	Notes       *string         `json:"notes"`
}

// UnmarshalJSON also accepts the camelCase paymentDate older clients send.
func (input *NewPayment) UnmarshalJSON(b []byte) error {
	type plain NewPayment
	aux := struct {
		*plain
		PaymentDateCamel *time.Time `json:"paymentDate"`
	}{plain: (*plain)(input)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if input.PaymentDate.IsZero() && aux.PaymentDateCamel != nil {
		input.PaymentDate = *aux.PaymentDateCamel
	}
	return nil
}

// PaymentEvent is the outbox payload of payment mutations.
type PaymentEvent struct {
	Payment       *Payment        `json:"payment"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceTotal  decimal.Decimal `json:"invoice_total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PrevStatus    InvoiceStatus   `json:"prev_status"`
	Status        InvoiceStatus   `json:"status"`
}

func (input *NewPayment) validate() error {
	// checked first so a bad amount never reaches the store
	if !input.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", utils.ErrInvalidArgument)
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return fmt.Errorf("%w: amount must have at most 2 decimal places", utils.ErrInvalidArgument)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	input.Reference = utils.TrimPtr(input.Reference)
	input.Notes = utils.TrimPtr(input.Notes)
	return nil
}

// sumLivePayments aggregates the non-deleted payments of an invoice from scratch.
func sumLivePayments(tx *gorm.DB, invoiceId int) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	row := tx.Model(&Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id = ?", invoiceId).
		Row()
	if err := row.Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

// reconciledStatus is the invoice status after a payment mutation. Recording a
// payment can only settle an invoice; deleting one can only reopen it.
func reconciledStatus(current InvoiceStatus, total, paid decimal.Decimal, deleting bool) InvoiceStatus {
	if paid.GreaterThanOrEqual(total) {
		if deleting {
			return current
		}
		return InvoiceStatusPaid
	}
	if deleting {
		return InvoiceStatusUnpaid
	}
	return current
}

// RecomputeInvoiceStatus re-derives invoice.Status from its live payments in tx
// and persists it when it changed. invoice must be row-locked by the caller.
func RecomputeInvoiceStatus(tx *gorm.DB, invoice *Invoice, deleting bool) (decimal.Decimal, error) {
	paid, err := sumLivePayments(tx, invoice.ID)
	if err != nil {
		return decimal.Zero, err
	}
	status := reconciledStatus(invoice.Status, invoice.Total, paid, deleting)
	if status != invoice.Status {
		if err := tx.Model(&Invoice{}).Where("id = ?", invoice.ID).Update("status", status).Error; err != nil {
			return decimal.Zero, err
		}
		invoice.Status = status
	}
	return paid, nil
}

// RecordPayment adds a payment to an invoice and settles it once fully paid.
// Payments that would push the paid amount past the total are rejected.
func RecordPayment(ctx context.Context, invoiceId int, input *NewPayment) (*Payment, error) {
	ctx, span := tracer.Start(ctx, "billing.record_payment")
	defer span.End()
	span.SetAttributes(attribute.Int("invoice_id", invoiceId))

	if err := input.validate(); err != nil {
		return nil, err
	}
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	invoice, err := utils.FetchModelForUpdate[Invoice](tx, invoiceId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if invoice.Status == InvoiceStatusPaid {
		tx.Rollback()
		return nil, fmt.Errorf("%w: invoice %s is already paid", utils.ErrInvalidState, invoice.InvoiceNumber)
	}

	paidBefore, err := sumLivePayments(tx, invoice.ID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if paidBefore.Add(input.Amount).GreaterThan(invoice.Total) {
		tx.Rollback()
		return nil, fmt.Errorf("%w: payment of %s exceeds the outstanding balance %s",
			utils.ErrInvalidArgument, input.Amount.StringFixed(2), invoice.Total.Sub(paidBefore).StringFixed(2))
	}

	userId, _ := actorFromContext(ctx)
	payment := Payment{
		InvoiceId:   invoice.ID,
		Amount:      input.Amount,
		PaymentDate: input.PaymentDate,
		Method:      input.Method,
		Reference:   input.Reference,
		Notes:       input.Notes,
		CreatedBy:   userId,
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	prevStatus := invoice.Status
	paid, err := RecomputeInvoiceStatus(tx, invoice, false)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	event := PaymentEvent{
		Payment:       &payment,
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceTotal:  invoice.Total,
		AmountPaid:    paid,
		PrevStatus:    prevStatus,
		Status:        invoice.Status,
	}
	description := fmt.Sprintf("payment of %s recorded on %s", payment.Amount.StringFixed(2), invoice.InvoiceNumber)
	if err := recordActivity(tx, ActivityActionCreate, EntityTypePayment, payment.ID, nil, event, description); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("invoice_status", string(invoice.Status)))
	return &payment, nil
}

// DeletePayment soft-deletes a payment and reopens its invoice when the
// remaining payments no longer cover the total.
func DeletePayment(ctx context.Context, paymentId int) (*Payment, error) {
	ctx, span := tracer.Start(ctx, "billing.delete_payment")
	defer span.End()
	span.SetAttributes(attribute.Int("payment_id", paymentId))

	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	payment, err := utils.FetchModelTx[Payment](tx, paymentId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	// lock order invoice -> payment, same as RecordPayment
	invoice, err := utils.FetchModelForUpdate[Invoice](tx, payment.InvoiceId)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	res := tx.Delete(payment)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// deleted concurrently while we waited for the invoice lock
		tx.Rollback()
		return nil, utils.ErrorRecordNotFound
	}

	prevStatus := invoice.Status
	paid, err := RecomputeInvoiceStatus(tx, invoice, true)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	event := PaymentEvent{
		Payment:       payment,
		InvoiceNumber: invoice.InvoiceNumber,
		InvoiceTotal:  invoice.Total,
		AmountPaid:    paid,
		PrevStatus:    prevStatus,
		Status:        invoice.Status,
	}
	description := fmt.Sprintf("payment of %s removed from %s", payment.Amount.StringFixed(2), invoice.InvoiceNumber)
	if err := recordActivity(tx, ActivityActionDelete, EntityTypePayment, payment.ID, event, nil, description); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return payment, nil
}

// InvoiceDrift is an invoice whose stored status disagrees with its payments.
type InvoiceDrift struct {
	InvoiceId     int             `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Stored        InvoiceStatus   `json:"stored"`
	Expected      InvoiceStatus   `json:"expected"`
}

func expectedInvoiceStatus(total, paid decimal.Decimal) InvoiceStatus {
	if paid.GreaterThanOrEqual(total) {
		return InvoiceStatusPaid
	}
	return InvoiceStatusUnpaid
}

// ReconcileInvoices re-derives the status of every live invoice of ctx's
// organization and reports the drifted ones. Unless dryRun, drift is fixed,
// one invoice per transaction.
func ReconcileInvoices(ctx context.Context, dryRun bool) ([]InvoiceDrift, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)

	var ids []int
	if err := db.Model(&Invoice{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}

	var drifts []InvoiceDrift
	for _, id := range ids {
		tx := db.Begin()
		invoice, err := utils.FetchModelForUpdate[Invoice](tx, id)
		if err != nil {
			tx.Rollback()
			if errors.Is(err, utils.ErrorRecordNotFound) {
				continue
			}
			return drifts, err
		}
		paid, err := sumLivePayments(tx, id)
		if err != nil {
			tx.Rollback()
			return drifts, err
		}
		expected := expectedInvoiceStatus(invoice.Total, paid)
		if expected == invoice.Status {
			tx.Rollback()
			continue
		}
		drifts = append(drifts, InvoiceDrift{
			InvoiceId:     id,
			InvoiceNumber: invoice.InvoiceNumber,
			Total:         invoice.Total,
			AmountPaid:    paid,
			Stored:        invoice.Status,
			Expected:      expected,
		})
		if dryRun {
			tx.Rollback()
			continue
		}
		before := *invoice
		if err := tx.Model(&Invoice{}).Where("id = ?", id).Update("status", expected).Error; err != nil {
			tx.Rollback()
			return drifts, err
		}
		invoice.Status = expected
		if err := recordActivity(tx, ActivityActionStatus, EntityTypeInvoice, id, before, invoice, "invoice "+invoice.InvoiceNumber+" status reconciled"); err != nil {
			tx.Rollback()
			return drifts, err
		}
		if err := tx.Commit().Error; err != nil {
			return drifts, err
		}
	}
	return drifts, nil
}
