// Package ledgerquery serves read-only views of the fee ledger: filtered and
// sorted listings, CSV export and the supplier billing summary.
package ledgerquery

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

// CSVHeader is the fixed export column order.
var CSVHeader = []string{
	"date",
	"order_id",
	"order_type",
	"effective_value",
	"fee_percentage",
	"fee_amount",
	"status",
	"invoice_id",
	"notes",
}

type readRunner interface {
	WithReadTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Engine holds no per-request state and is safe for concurrent use.
type Engine struct {
	ledgerRepo  ledger.Repository
	invoiceRepo invoices.Repository
	db          readRunner
	dueSoon     time.Duration
}

type EngineParams struct {
	LedgerRepo  ledger.Repository
	InvoiceRepo invoices.Repository
	DB          readRunner
	// DueSoonWindow defaults to seven days.
	DueSoonWindow time.Duration
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.LedgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.InvoiceRepo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("read transaction runner required")
	}
	window := params.DueSoonWindow
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &Engine{
		ledgerRepo:  params.LedgerRepo,
		invoiceRepo: params.InvoiceRepo,
		db:          params.DB,
		dueSoon:     window,
	}, nil
}

// Query returns the entries matching spec in a deterministic order.
func (e *Engine) Query(ctx context.Context, spec QuerySpec) ([]models.LedgerEntry, error) {
	spec = spec.normalized()
	var entries []models.LedgerEntry
	err := e.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		entries, err = e.ledgerRepo.WithTx(tx).Search(ctx, spec.filter())
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "query ledger")
	}
	sortEntries(entries, spec.SortKey, spec.SortDirection)
	return entries, nil
}

// Export writes the result of spec as CSV. Zero matches still produce the header.
func (e *Engine) Export(ctx context.Context, spec QuerySpec, w io.Writer) error {
	entries, err := e.Query(ctx, spec)
	if err != nil {
		return err
	}
	return WriteCSV(w, entries)
}

// WriteCSV serializes entries in the given order.
func WriteCSV(w io.Writer, entries []models.LedgerEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i := range entries {
		if err := cw.Write(csvRecord(&entries[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// exactDecimal renders at least two places and keeps any finer stored precision.
func exactDecimal(d decimal.Decimal) string {
	places := int32(2)
	for !d.Equal(d.Round(places)) {
		places++
	}
	return d.StringFixed(places)
}

func csvRecord(entry *models.LedgerEntry) []string {
	orderID := ""
	if entry.OrderID != nil {
		orderID = entry.OrderID.String()
	}
	invoiceID := ""
	if entry.InvoiceID != nil {
		invoiceID = entry.InvoiceID.String()
	}
	notes := ""
	if entry.Notes != nil {
		notes = *entry.Notes
	}
	return []string{
		entry.CompletedAt.UTC().Format(dateLayout),
		orderID,
		string(entry.OrderType),
		exactDecimal(entry.EffectiveValue),
		exactDecimal(entry.FeePercentage),
		entry.FeeAmount.StringFixed(2),
		entry.Status.String(),
		invoiceID,
		notes,
	}
}
