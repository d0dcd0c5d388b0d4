package models

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	invoiceExportSheet = "Invoices"
	maxExportRows      = 10000
)

type ExcelExporter interface {
	GetCellValues() []interface{}
}

type invoiceExportRow struct {
	Invoice    *Invoice
	ClientName string
	AmountPaid decimal.Decimal
	Now        time.Time
}

var invoiceExportHeadings = []string{
	"Invoice Number", "Client", "Issue Date", "Due Date", "Total", "Paid", "Balance", "Status",
}

func (r invoiceExportRow) GetCellValues() []interface{} {
	total, _ := r.Invoice.Total.Float64()
	paid, _ := r.AmountPaid.Float64()
	balance, _ := r.Invoice.Total.Sub(r.AmountPaid).Float64()
	return []interface{}{
		r.Invoice.InvoiceNumber,
		r.ClientName,
		r.Invoice.IssueDate.Format("2006-01-02"),
		r.Invoice.DueDate.Format("2006-01-02"),
		total,
		paid,
		balance,
		string(r.Invoice.DisplayStatus(r.Now)),
	}
}

// ExportInvoices writes the invoices matching filter as an xlsx workbook.
func ExportInvoices(ctx context.Context, filter InvoiceFilter, w io.Writer) error {
	now := time.Now()
	dbCtx, err := invoiceQuery(ctx, filter, now)
	if err != nil {
		return err
	}
	var invoices []*Invoice
	if err := dbCtx.Order("invoices.created_at DESC").Limit(maxExportRows).Find(&invoices).Error; err != nil {
		return err
	}

	clientIds := make([]int, 0, len(invoices))
	invoiceIds := make([]int, 0, len(invoices))
	for _, inv := range invoices {
		clientIds = append(clientIds, inv.ClientId)
		invoiceIds = append(invoiceIds, inv.ID)
	}
	clientNames, err := clientNamesById(ctx, clientIds)
	if err != nil {
		return err
	}
	paidByInvoice, err := paidAmountsByInvoice(ctx, invoiceIds)
	if err != nil {
		return err
	}

	rows := make([]ExcelExporter, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, invoiceExportRow{
			Invoice:    inv,
			ClientName: clientNames[inv.ClientId],
			AmountPaid: paidByInvoice[inv.ID],
			Now:        now,
		})
	}

	f, err := exportExcel(invoiceExportSheet, rows, invoiceExportHeadings...)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func exportExcel(sheetName string, data []ExcelExporter, headings ...string) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}
	for rowNo, d := range data {
		for col, value := range d.GetCellValues() {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNo+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func clientNamesById(ctx context.Context, ids []int) (map[int]string, error) {
	result := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var clients []Client
	if err := config.GetDB().WithContext(ctx).Unscoped().
		Select("id", "name").Where("id IN ?", ids).Find(&clients).Error; err != nil {
		return nil, err
	}
	for _, c := range clients {
		result[c.ID] = c.Name
	}
	return result, nil
}

func paidAmountsByInvoice(ctx context.Context, ids []int) (map[int]decimal.Decimal, error) {
	result := make(map[int]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var sums []struct {
		InvoiceId int
		Paid      decimal.Decimal
	}
	if err := config.GetDB().WithContext(ctx).Model(&Payment{}).
		Select("invoice_id, COALESCE(SUM(amount), 0) AS paid").
		Where("invoice_id IN ?", ids).
		Group("invoice_id").
		Scan(&sums).Error; err != nil {
		return nil, fmt.Errorf("sum payments: %w", err)
	}
	for _, s := range sums {
		result[s.InvoiceId] = s.Paid
	}
	return result, nil
}
