package billing

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/feeledger/internal/fees"
	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/internal/ledgerquery"
	"github.com/angelmondragon/feeledger/pkg/db/models"
)

// LedgerReader is the read side consumed by the ledger, export and summary routes.
type LedgerReader interface {
	Query(ctx context.Context, spec ledgerquery.QuerySpec) ([]models.LedgerEntry, error)
	Export(ctx context.Context, spec ledgerquery.QuerySpec, w io.Writer) error
	Summary(ctx context.Context, supplierID uuid.UUID, now time.Time) (*ledgerquery.Summary, error)
}

// InvoiceReader serves invoice listings, detail and statements.
type InvoiceReader interface {
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	Lines(ctx context.Context, invoiceID uuid.UUID) ([]models.LedgerEntry, error)
	RenderPDF(ctx context.Context, invoiceID uuid.UUID) ([]byte, error)
}

// InvoiceCycler triggers batching and payment confirmation.
type InvoiceCycler interface {
	RunCycle(ctx context.Context, period invoices.Period) (invoices.CycleReport, error)
	RunSupplier(ctx context.Context, supplierID uuid.UUID, period invoices.Period) (*invoices.SupplierResult, error)
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
}

// EntryTransitioner applies admin status corrections.
type EntryTransitioner interface {
	Transition(ctx context.Context, input ledger.TransitionInput) (*models.LedgerEntry, error)
}

// FeePolicyWriter records supplier fee policies.
type FeePolicyWriter interface {
	SetPolicy(ctx context.Context, input fees.SetPolicyInput) (*models.SupplierFeePolicy, error)
}
