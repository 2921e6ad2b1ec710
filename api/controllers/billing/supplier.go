package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/feeledger/api/middleware"
	"github.com/angelmondragon/feeledger/api/responses"
	"github.com/angelmondragon/feeledger/api/validators"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

func supplierFromRequest(r *http.Request) (uuid.UUID, error) {
	id := middleware.SupplierID(r.Context())
	if id == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "supplier context missing")
	}
	return id, nil
}

func SupplierSummary(svc LedgerReader, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		supplierID, err := supplierFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		summary, err := svc.Summary(ctx, supplierID, now())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

func SupplierLedger(svc LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		supplierID, err := supplierFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		spec, err := parseLedgerQuery(r, &supplierID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		entries, err := svc.Query(ctx, spec)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": toLedgerEntryDTOs(entries)})
	}
}

// SupplierExport streams the caller's filtered ledger as a CSV attachment.
func SupplierExport(svc LedgerReader, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		supplierID, err := supplierFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		spec, err := parseLedgerQuery(r, &supplierID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeExport(w, r, svc, spec, now, logg)
	}
}

func SupplierInvoices(svc InvoiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		supplierID, err := supplierFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		list, err := svc.ListBySupplier(ctx, supplierID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]invoiceDTO, len(list))
		for i, inv := range list {
			out[i] = toInvoiceDTO(inv)
		}
		responses.WriteSuccess(w, map[string]any{"invoices": out})
	}
}

func SupplierInvoiceDetail(svc InvoiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		inv, err := ownedInvoice(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		lines, err := svc.Lines(ctx, inv.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoiceDetailDTO{
			Invoice: toInvoiceDTO(*inv),
			Lines:   toLedgerEntryDTOs(lines),
		})
	}
}

func SupplierInvoicePDF(svc InvoiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		inv, err := ownedInvoice(r, svc)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		body, err := svc.RenderPDF(ctx, inv.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		filename := "invoice-" + toInvoiceDTO(*inv).Period + ".pdf"
		responses.WriteFile(w, "application/pdf", filename, body)
	}
}

// ownedInvoice loads the invoice named in the path and hides invoices that
// belong to another supplier behind NotFound.
func ownedInvoice(r *http.Request, svc InvoiceReader) (*models.Invoice, error) {
	supplierID, err := supplierFromRequest(r)
	if err != nil {
		return nil, err
	}
	invoiceID, err := validators.ParseUUIDParam(r, "invoiceId")
	if err != nil {
		return nil, err
	}
	inv, err := svc.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.SupplierID != supplierID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
	}
	return inv, nil
}
