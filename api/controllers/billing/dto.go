package billing

import (
	"time"

	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/pkg/db/models"
)

const dateLayout = "2006-01-02"

type ledgerEntryDTO struct {
	ID             string  `json:"id"`
	SupplierID     string  `json:"supplierId"`
	OrderID        *string `json:"orderId"`
	OrderType      string  `json:"orderType"`
	EffectiveValue string  `json:"effectiveValue"`
	FeePercentage  string  `json:"feePercentage"`
	FeeAmount      string  `json:"feeAmount"`
	Status         string  `json:"status"`
	CompletedAt    string  `json:"completedAt"`
	InvoiceID      *string `json:"invoiceId"`
	Notes          *string `json:"notes,omitempty"`
}

type invoiceDTO struct {
	ID          string     `json:"id"`
	SupplierID  string     `json:"supplierId"`
	Period      string     `json:"period"`
	PeriodStart string     `json:"periodStart"`
	PeriodEnd   string     `json:"periodEnd"`
	TotalFees   string     `json:"totalFees"`
	EntryCount  int        `json:"entryCount"`
	DueDate     string     `json:"dueDate"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type invoiceDetailDTO struct {
	Invoice invoiceDTO       `json:"invoice"`
	Lines   []ledgerEntryDTO `json:"lines"`
}

type feePolicyDTO struct {
	ID            string    `json:"id"`
	SupplierID    string    `json:"supplierId"`
	FeePercentage string    `json:"feePercentage"`
	EffectiveFrom time.Time `json:"effectiveFrom"`
	CreatedAt     time.Time `json:"createdAt"`
}

type invoicedSupplierDTO struct {
	SupplierID   string `json:"supplierId"`
	InvoiceID    string `json:"invoiceId"`
	Created      bool   `json:"created"`
	EntriesAdded int    `json:"entriesAdded"`
	TotalFees    string `json:"totalFees"`
}

type cycleReportDTO struct {
	Period    string                `json:"period"`
	Suppliers int                   `json:"suppliers"`
	Invoiced  []invoicedSupplierDTO `json:"invoiced"`
	Skipped   []string              `json:"skipped"`
	Failed    map[string]string     `json:"failed"`
}

func toLedgerEntryDTO(e models.LedgerEntry) ledgerEntryDTO {
	dto := ledgerEntryDTO{
		ID:             e.ID.String(),
		SupplierID:     e.SupplierID.String(),
		OrderType:      string(e.OrderType),
		EffectiveValue: e.EffectiveValue.StringFixed(2),
		FeePercentage:  e.FeePercentage.String(),
		FeeAmount:      e.FeeAmount.StringFixed(2),
		Status:         e.Status.String(),
		CompletedAt:    e.CompletedAt.UTC().Format(time.RFC3339),
		Notes:          e.Notes,
	}
	if e.OrderID != nil {
		id := e.OrderID.String()
		dto.OrderID = &id
	}
	if e.InvoiceID != nil {
		id := e.InvoiceID.String()
		dto.InvoiceID = &id
	}
	return dto
}

func toLedgerEntryDTOs(entries []models.LedgerEntry) []ledgerEntryDTO {
	out := make([]ledgerEntryDTO, len(entries))
	for i, entry := range entries {
		out[i] = toLedgerEntryDTO(entry)
	}
	return out
}

func toInvoiceDTO(inv models.Invoice) invoiceDTO {
	return invoiceDTO{
		ID:          inv.ID.String(),
		SupplierID:  inv.SupplierID.String(),
		Period:      invoices.PeriodOf(inv.PeriodStart).String(),
		PeriodStart: inv.PeriodStart.UTC().Format(dateLayout),
		PeriodEnd:   inv.PeriodEnd.UTC().Format(dateLayout),
		TotalFees:   inv.TotalFees.StringFixed(2),
		EntryCount:  inv.EntryCount,
		DueDate:     inv.DueDate.UTC().Format(dateLayout),
		Status:      string(inv.Status),
		PaidAt:      inv.PaidAt,
		CreatedAt:   inv.CreatedAt.UTC(),
	}
}

func toFeePolicyDTO(p models.SupplierFeePolicy) feePolicyDTO {
	return feePolicyDTO{
		ID:            p.ID.String(),
		SupplierID:    p.SupplierID.String(),
		FeePercentage: p.FeePercentage.String(),
		EffectiveFrom: p.EffectiveFrom.UTC(),
		CreatedAt:     p.CreatedAt.UTC(),
	}
}

func toCycleReportDTO(report invoices.CycleReport) cycleReportDTO {
	dto := cycleReportDTO{
		Period:    report.Period.String(),
		Suppliers: report.Suppliers,
		Invoiced:  make([]invoicedSupplierDTO, 0, len(report.Invoiced)),
		Skipped:   make([]string, 0, len(report.Skipped)),
		Failed:    make(map[string]string, len(report.Failed)),
	}
	for _, res := range report.Invoiced {
		dto.Invoiced = append(dto.Invoiced, toInvoicedSupplierDTO(res))
	}
	for _, id := range report.Skipped {
		dto.Skipped = append(dto.Skipped, id.String())
	}
	for id, err := range report.Failed {
		dto.Failed[id.String()] = err.Error()
	}
	return dto
}

func toInvoicedSupplierDTO(res invoices.SupplierResult) invoicedSupplierDTO {
	dto := invoicedSupplierDTO{Created: res.Created, EntriesAdded: res.EntriesAdded}
	if res.Invoice != nil {
		dto.SupplierID = res.Invoice.SupplierID.String()
		dto.InvoiceID = res.Invoice.ID.String()
		dto.TotalFees = res.Invoice.TotalFees.StringFixed(2)
	}
	return dto
}
