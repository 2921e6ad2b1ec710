package billing

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/feeledger/api/middleware"
	"github.com/angelmondragon/feeledger/api/responses"
	"github.com/angelmondragon/feeledger/api/validators"
	"github.com/angelmondragon/feeledger/internal/fees"
	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

type transitionRequest struct {
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	InvoiceID string `json:"invoiceId" validate:"omitempty,uuid"`
}

type invoiceCycleRequest struct {
	Period     string `json:"period" validate:"omitempty,datetime=2006-01"`
	SupplierID string `json:"supplierId" validate:"omitempty,uuid"`
}

type feePolicyRequest struct {
	FeePercentage string `json:"feePercentage" validate:"required,decimal"`
	EffectiveFrom string `json:"effectiveFrom" validate:"omitempty,datetime=2006-01-02"`
}

func AdminLedger(svc LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		supplierID, err := validators.ParseOptionalUUIDQuery(r, "supplier_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		spec, err := parseLedgerQuery(r, supplierID)
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

func AdminExport(svc LedgerReader, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		supplierID, err := validators.ParseOptionalUUIDQuery(r, "supplier_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		spec, err := parseLedgerQuery(r, supplierID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		writeExport(w, r, svc, spec, now, logg)
	}
}

// AdminTransitionEntry applies a manual status correction guarded by the expected current status.
func AdminTransitionEntry(svc EntryTransitioner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		entryID, err := validators.ParseUUIDParam(r, "entryId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		from, err := enums.ParseLedgerEntryStatus(strings.TrimSpace(body.From))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from status"))
			return
		}
		to, err := enums.ParseLedgerEntryStatus(strings.TrimSpace(body.To))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to status"))
			return
		}
		input := ledger.TransitionInput{EntryID: entryID, From: from, To: to}
		if body.InvoiceID != "" {
			invoiceID := uuid.MustParse(body.InvoiceID)
			input.InvoiceID = &invoiceID
		}

		entry, err := svc.Transition(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithFields(ctx, map[string]any{
				"entry_id": entry.ID.String(),
				"from":     from.String(),
				"to":       to.String(),
			}), "billing.entry.manual_transition")
		}
		responses.WriteSuccess(w, toLedgerEntryDTO(*entry))
	}
}

// AdminRunInvoiceCycle batches the requested month, defaulting to the previous
// one. With a supplierId only that supplier is processed.
func AdminRunInvoiceCycle(svc InvoiceCycler, now func() time.Time, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var body invoiceCycleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		period := invoices.PreviousPeriod(now())
		if body.Period != "" {
			parsed, err := invoices.ParsePeriod(body.Period)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			period = parsed
		}

		if body.SupplierID != "" {
			result, err := svc.RunSupplier(ctx, uuid.MustParse(body.SupplierID), period)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, cycleReportDTO{
				Period:    period.String(),
				Suppliers: 1,
				Invoiced:  []invoicedSupplierDTO{toInvoicedSupplierDTO(*result)},
				Skipped:   []string{},
				Failed:    map[string]string{},
			})
			return
		}

		report, err := svc.RunCycle(ctx, period)
		if err != nil && len(report.Failed) == 0 {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCycleReportDTO(report))
	}
}

func AdminMarkInvoicePaid(svc InvoiceCycler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		invoiceID, err := validators.ParseUUIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		inv, err := svc.MarkInvoicePaid(ctx, invoiceID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toInvoiceDTO(*inv))
	}
}

// AdminSetFeePolicy records a new fee rate for the supplier. Entries created
// before the policy keep the rate they were created with.
func AdminSetFeePolicy(svc FeePolicyWriter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		supplierID, err := validators.ParseUUIDParam(r, "supplierId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body feePolicyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(body.FeePercentage))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "feePercentage must be a decimal"))
			return
		}

		input := fees.SetPolicyInput{SupplierID: supplierID, FeePercentage: rate}
		if body.EffectiveFrom != "" {
			effective, err := time.Parse(dateLayout, body.EffectiveFrom)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "effectiveFrom must be YYYY-MM-DD"))
				return
			}
			input.EffectiveFrom = effective
		}
		if actor := middleware.ActorID(ctx); actor != uuid.Nil {
			input.CreatedBy = &actor
		}

		policy, err := svc.SetPolicy(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toFeePolicyDTO(*policy))
	}
}
