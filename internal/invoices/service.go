// Package invoices batches pending ledger entries into monthly supplier invoices.
package invoices

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/pkg/db"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/events"
	"github.com/angelmondragon/feeledger/pkg/locks"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithReadTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// IssueObserver records invoice issuance.
type IssueObserver interface {
	ObserveInvoiceIssued(entries int)
}

// Service runs the invoice cycle and manages invoice lifecycle.
type Service interface {
	RunCycle(ctx context.Context, period Period) (CycleReport, error)
	RunSupplier(ctx context.Context, supplierID uuid.UUID, period Period) (*SupplierResult, error)
	MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
	Lines(ctx context.Context, invoiceID uuid.UUID) ([]models.LedgerEntry, error)
	ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Invoice, error)
	RenderPDF(ctx context.Context, invoiceID uuid.UUID) ([]byte, error)
}

// SupplierResult describes what one supplier's batch did. Invoice is the
// latest invoice written to and Invoices lists every one, oldest period first.
type SupplierResult struct {
	Invoice       *models.Invoice
	Created       bool
	EntriesAdded  int
	EntryIDsAdded []uuid.UUID
	Invoices      []InvoiceBatch
}

// InvoiceBatch is the part of a supplier run that landed on one invoice.
type InvoiceBatch struct {
	Invoice  *models.Invoice
	Created  bool
	EntryIDs []uuid.UUID
}

// CycleReport summarizes a full cycle run.
type CycleReport struct {
	Period    Period
	Invoiced  []SupplierResult
	Skipped   []uuid.UUID
	Failed    map[uuid.UUID]error
	Suppliers int
}

type ServiceParams struct {
	Repo        Repository
	LedgerRepo  ledger.Repository
	Ledger      ledger.Service
	DB          txRunner
	Locker      locks.SupplierLocker
	Publisher   events.Publisher
	Observer    IssueObserver
	Logger      *logger.Logger
	DueDays     int
	Clock       func() time.Time
	PDFRenderer StatementRenderer
}

type service struct {
	repo       Repository
	ledgerRepo ledger.Repository
	ledger     ledger.Service
	db         txRunner
	locker     locks.SupplierLocker
	publisher  events.Publisher
	observer   IssueObserver
	logg       *logger.Logger
	dueDays    int
	now        func() time.Time
	renderer   StatementRenderer
}

// NewService wires the invoice cycle.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("invoice repository required")
	}
	if params.LedgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("supplier locker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DueDays < 0 {
		return nil, fmt.Errorf("due days must be non-negative")
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	renderer := params.PDFRenderer
	if renderer == nil {
		renderer = NewMarotoRenderer()
	}
	return &service{
		repo:       params.Repo,
		ledgerRepo: params.LedgerRepo,
		ledger:     params.Ledger,
		db:         params.DB,
		locker:     params.Locker,
		publisher:  publisher,
		observer:   params.Observer,
		logg:       params.Logger,
		dueDays:    params.DueDays,
		now:        now,
		renderer:   renderer,
	}, nil
}

// RunCycle invoices every supplier with pending entries completed up to the end
// of period. A failing
// supplier is logged and collected; the run continues with the next one.
func (s *service) RunCycle(ctx context.Context, period Period) (CycleReport, error) {
	if period.IsZero() {
		return CycleReport{}, pkgerrors.New(pkgerrors.CodeValidation, "period is required")
	}
	report := CycleReport{Period: period, Failed: map[uuid.UUID]error{}}

	var suppliers []uuid.UUID
	if err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		suppliers, err = s.ledgerRepo.WithTx(tx).SuppliersWithPending(ctx, period.Cutoff())
		return err
	}); err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers with pending entries")
	}
	report.Suppliers = len(suppliers)

	cycleCtx := s.logg.WithField(ctx, "period", period.String())
	var errs error
	for _, supplierID := range suppliers {
		supplierCtx := s.logg.WithSupplierID(cycleCtx, supplierID.String())
		result, err := s.RunSupplier(supplierCtx, supplierID, period)
		switch {
		case err == nil:
			report.Invoiced = append(report.Invoiced, *result)
			s.logg.Info(s.logg.WithFields(supplierCtx, map[string]any{
				"invoice_id":    result.Invoice.ID.String(),
				"entries_added": result.EntriesAdded,
				"invoices":      len(result.Invoices),
				"created":       result.Created,
			}), "supplier invoiced")
		case pkgerrors.HasCode(err, pkgerrors.CodeNoEligibleEntries):
			report.Skipped = append(report.Skipped, supplierID)
			s.logg.Info(supplierCtx, "no eligible entries, supplier skipped")
		default:
			report.Failed[supplierID] = err
			errs = multierr.Append(errs, fmt.Errorf("supplier %s: %w", supplierID, err))
			s.logg.Error(supplierCtx, "invoice cycle failed for supplier", err)
		}
	}
	return report, errs
}

// RunSupplier invoices the supplier's pending entries completed up to the end
// of period. Each entry lands on the invoice of the month it completed in; an
// entry whose month is already paid is carried into period's invoice. Re-running
// it is safe: existing invoices are reused and only newly pending entries are
// appended.
func (s *service) RunSupplier(ctx context.Context, supplierID uuid.UUID, period Period) (*SupplierResult, error) {
	if supplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	if period.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period is required")
	}

	var result *SupplierResult
	err := s.locker.WithSupplierLock(ctx, supplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			result, err = s.batchSupplier(ctx, tx, supplierID, period)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	for _, batch := range result.Invoices {
		if s.observer != nil {
			s.observer.ObserveInvoiceIssued(len(batch.EntryIDs))
		}
		s.publishIssued(ctx, batch.Invoice)
	}
	return result, nil
}

func (s *service) batchSupplier(ctx context.Context, tx *gorm.DB, supplierID uuid.UUID, period Period) (*SupplierResult, error) {
	repo := s.repo.WithTx(tx)

	pending, err := s.ledgerRepo.WithTx(tx).ListPending(ctx, supplierID, period.Cutoff())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending entries")
	}
	if len(pending) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoEligibleEntries, "no pending entries for period")
	}

	plan, err := planBatches(ctx, repo, supplierID, pending, period)
	if err != nil {
		return nil, err
	}
	if len(plan) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNoEligibleEntries, "invoice for period is finalized; pending entries roll into the next cycle")
	}

	result := &SupplierResult{}
	for _, target := range plan {
		invoice, created, err := s.openInvoice(ctx, repo, supplierID, target.period)
		if err != nil {
			return nil, err
		}
		if err := s.ledger.InvoiceEntriesTx(ctx, tx, invoice.ID, target.entryIDs); err != nil {
			return nil, err
		}
		reloaded, err := repo.FindByID(ctx, invoice.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
		}
		result.Invoices = append(result.Invoices, InvoiceBatch{Invoice: reloaded, Created: created, EntryIDs: target.entryIDs})
		result.Invoice = reloaded
		result.Created = created
		result.EntryIDsAdded = append(result.EntryIDsAdded, target.entryIDs...)
	}
	result.EntriesAdded = len(result.EntryIDsAdded)
	return result, nil
}

type batchTarget struct {
	period   Period
	entryIDs []uuid.UUID
}

// planBatches groups pending entries, already in batch order, by the month they
// completed in. A month whose invoice is paid hands its entries to period; when
// period's own invoice is paid too they stay pending for a later cycle.
func planBatches(ctx context.Context, repo Repository, supplierID uuid.UUID, pending []models.LedgerEntry, period Period) ([]batchTarget, error) {
	finalized := map[Period]bool{}
	isFinalized := func(p Period) (bool, error) {
		if done, ok := finalized[p]; ok {
			return done, nil
		}
		invoice, err := repo.FindBySupplierPeriod(ctx, supplierID, p.Start())
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			finalized[p] = false
		case err != nil:
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice for period")
		default:
			finalized[p] = invoice.Finalized()
		}
		return finalized[p], nil
	}

	var plan []batchTarget
	index := map[Period]int{}
	for _, entry := range pending {
		target := PeriodOf(entry.CompletedAt)
		done, err := isFinalized(target)
		if err != nil {
			return nil, err
		}
		if done {
			target = period
			if done, err = isFinalized(target); err != nil {
				return nil, err
			}
			if done {
				continue
			}
		}
		i, ok := index[target]
		if !ok {
			i = len(plan)
			index[target] = i
			plan = append(plan, batchTarget{period: target})
		}
		plan[i].entryIDs = append(plan[i].entryIDs, entry.ID)
	}
	sort.SliceStable(plan, func(a, b int) bool {
		return plan[a].period.Start().Before(plan[b].period.Start())
	})
	return plan, nil
}

// openInvoice returns the supplier's invoice for p, creating it when missing.
func (s *service) openInvoice(ctx context.Context, repo Repository, supplierID uuid.UUID, p Period) (*models.Invoice, bool, error) {
	invoice, err := repo.FindBySupplierPeriod(ctx, supplierID, p.Start())
	if err == nil {
		return invoice, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice for period")
	}
	invoice = &models.Invoice{
		SupplierID:  supplierID,
		PeriodStart: p.Start(),
		PeriodEnd:   p.End(),
		DueDate:     p.DueDate(s.dueDays),
		Status:      enums.InvoiceStatusOpen,
	}
	if err := repo.Create(ctx, invoice); err != nil {
		if db.IsUniqueViolation(err, "idx_invoices_supplier_period") {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeStaleState, err, "invoice for period created concurrently")
		}
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invoice")
	}
	return invoice, true, nil
}

func (s *service) publishIssued(ctx context.Context, invoice *models.Invoice) {
	err := s.publisher.Publish(ctx, enums.EventFeeInvoiceIssued, invoice.ID, events.FeeInvoiceIssuedEvent{
		InvoiceID:   invoice.ID,
		SupplierID:  invoice.SupplierID,
		PeriodStart: invoice.PeriodStart,
		PeriodEnd:   invoice.PeriodEnd,
		TotalFees:   invoice.TotalFees,
		EntryCount:  invoice.EntryCount,
		DueDate:     invoice.DueDate,
	})
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "invoice_id", invoice.ID.String()), "failed to publish invoice issued event", err)
	}
}

// MarkInvoicePaid records external settlement: every invoiced entry becomes paid
// and the invoice closes. Disputed entries keep their status, but a later revert
// returns them to paid since the payment covered them. Paying an already paid
// invoice returns it unchanged.
func (s *service) MarkInvoicePaid(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == enums.InvoiceStatusPaid {
		return invoice, nil
	}

	err = s.locker.WithSupplierLock(ctx, invoice.SupplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			ledgerRepo := s.ledgerRepo.WithTx(tx)

			entries, err := ledgerRepo.ListByInvoice(ctx, invoiceID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoice entries")
			}
			for _, entry := range entries {
				if entry.Status != enums.LedgerEntryStatusInvoiced {
					continue
				}
				if _, err := s.ledger.TransitionTx(ctx, tx, ledger.TransitionInput{
					EntryID: entry.ID,
					From:    enums.LedgerEntryStatusInvoiced,
					To:      enums.LedgerEntryStatusPaid,
				}); err != nil {
					return err
				}
			}

			if _, err := ledgerRepo.SettleDisputedPriors(ctx, invoiceID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle disputed entries")
			}

			rows, err := repo.MarkPaid(ctx, invoiceID, s.now())
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoice paid")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeStaleState, "invoice changed since it was read")
			}
			if _, _, err := ledgerRepo.ReconcileInvoice(ctx, invoiceID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile invoice total")
			}
			invoice, err = repo.FindByID(ctx, invoiceID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload invoice")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkOverdue flips open invoices past their due date, one supplier at a time
// under that supplier's lock. A supplier that fails is reported and retried on
// the next run; the others are still processed.
func (s *service) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	var suppliers []uuid.UUID
	if err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		suppliers, err = s.repo.WithTx(tx).SuppliersPastDue(ctx, now)
		return err
	}); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list suppliers with past due invoices")
	}

	var (
		total int64
		errs  error
	)
	for _, supplierID := range suppliers {
		err := s.locker.WithSupplierLock(ctx, supplierID, func(ctx context.Context) error {
			return s.db.WithTx(ctx, func(tx *gorm.DB) error {
				rows, err := s.repo.WithTx(tx).MarkOverdue(ctx, supplierID, now)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark invoices overdue")
				}
				total += rows
				return nil
			})
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("supplier %s: %w", supplierID, err))
		}
	}
	return total, errs
}

func (s *service) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	var invoice *models.Invoice
	err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		found, err := s.repo.WithTx(tx).FindByID(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		invoice = found
		return nil
	})
	return invoice, err
}

// Lines returns the invoice's entries ordered by completion time then id.
func (s *service) Lines(ctx context.Context, invoiceID uuid.UUID) ([]models.LedgerEntry, error) {
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	var entries []models.LedgerEntry
	err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		entries, err = s.ledgerRepo.WithTx(tx).ListByInvoice(ctx, invoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoice lines")
		}
		return nil
	})
	return entries, err
}

func (s *service) ListBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.Invoice, error) {
	if supplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	var invoices []models.Invoice
	err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		invoices, err = s.repo.WithTx(tx).ListBySupplier(ctx, supplierID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
		}
		return nil
	})
	return invoices, err
}

func (s *service) RenderPDF(ctx context.Context, invoiceID uuid.UUID) ([]byte, error) {
	var (
		invoice *models.Invoice
		lines   []models.LedgerEntry
	)
	if invoiceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice id is required")
	}
	err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		found, err := s.repo.WithTx(tx).FindByID(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		invoice = found
		lines, err = s.ledgerRepo.WithTx(tx).ListByInvoice(ctx, invoiceID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoice lines")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.Render(ctx, *invoice, lines)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render invoice statement")
	}
	return doc, nil
}
