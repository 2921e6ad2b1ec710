package disputes

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/feeledger/api/middleware"
	"github.com/angelmondragon/feeledger/api/responses"
	"github.com/angelmondragon/feeledger/api/validators"
	disputesvc "github.com/angelmondragon/feeledger/internal/disputes"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

// Service is the subset of the dispute workflow exposed over HTTP.
type Service interface {
	Open(ctx context.Context, input disputesvc.OpenInput) (*models.Dispute, error)
	SupplierRespond(ctx context.Context, input disputesvc.RespondInput) (*models.Dispute, error)
	AddNote(ctx context.Context, input disputesvc.NoteInput) (*models.DisputeNote, error)
	Resolve(ctx context.Context, input disputesvc.ResolveInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, query disputesvc.ListQuery) ([]models.Dispute, error)
}

type openRequest struct {
	OrderID       string `json:"orderId" validate:"required,uuid"`
	SupplierID    string `json:"supplierId" validate:"omitempty,uuid"`
	BuyerType     string `json:"buyerType" validate:"required"`
	IssueCategory string `json:"issueCategory" validate:"required"`
	Description   string `json:"description" validate:"required,max=4000"`
}

type respondRequest struct {
	Response string `json:"response" validate:"required,max=4000"`
}

type noteRequest struct {
	Note string `json:"note" validate:"required,max=4000"`
}

type resolveRequest struct {
	Outcome                string  `json:"outcome" validate:"required,max=4000"`
	Decision               string  `json:"decision" validate:"omitempty,oneof=upheld denied"`
	AdjustedEffectiveValue *string `json:"adjustedEffectiveValue" validate:"omitempty,decimal"`
}

func (b *openRequest) Sanitize()    { b.Description = validators.CleanText(b.Description) }
func (b *respondRequest) Sanitize() { b.Response = validators.CleanText(b.Response) }
func (b *noteRequest) Sanitize()    { b.Note = validators.CleanText(b.Note) }
func (b *resolveRequest) Sanitize() { b.Outcome = validators.CleanText(b.Outcome) }

// BuyerOpen files a dispute against a completed order on behalf of the caller.
func BuyerOpen(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		buyerID := middleware.ActorID(ctx)
		if buyerID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
			return
		}
		var body openRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		buyerType, err := enums.ParseBuyerType(strings.TrimSpace(body.BuyerType))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyerType"))
			return
		}
		category, err := enums.ParseIssueCategory(strings.TrimSpace(body.IssueCategory))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid issueCategory"))
			return
		}

		input := disputesvc.OpenInput{
			OrderID:       uuid.MustParse(body.OrderID),
			BuyerID:       buyerID,
			BuyerType:     buyerType,
			IssueCategory: category,
			Description:   body.Description,
		}
		if body.SupplierID != "" {
			input.SupplierID = uuid.MustParse(body.SupplierID)
		}

		dispute, err := svc.Open(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDisputeDTO(*dispute))
	}
}

func SupplierRespond(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		supplierID := middleware.SupplierID(ctx)
		if supplierID == uuid.Nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "supplier context missing"))
			return
		}
		disputeID, err := validators.ParseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body respondRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		dispute, err := svc.SupplierRespond(ctx, disputesvc.RespondInput{
			DisputeID:  disputeID,
			SupplierID: supplierID,
			Response:   body.Response,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSupplierDisputeDTO(*dispute))
	}
}

// AdminList serves the dispute queue with optional filters and sorting.
func AdminList(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		list, err := svc.List(ctx, query)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out := make([]disputeDTO, len(list))
		for i, d := range list {
			out[i] = toDisputeDTO(d)
		}
		responses.WriteSuccess(w, map[string]any{"disputes": out})
	}
}

func AdminDetail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		disputeID, err := validators.ParseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		dispute, err := svc.Get(ctx, disputeID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeDTO(*dispute))
	}
}

func AdminNote(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		disputeID, err := validators.ParseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body noteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		note, err := svc.AddNote(ctx, disputesvc.NoteInput{
			DisputeID: disputeID,
			AuthorID:  middleware.ActorID(ctx),
			Note:      body.Note,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toNoteDTO(*note))
	}
}

// AdminResolve closes a dispute and applies the decision to the ledger entry.
func AdminResolve(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		disputeID, err := validators.ParseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body resolveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := disputesvc.ResolveInput{
			DisputeID:  disputeID,
			ResolvedBy: middleware.ActorID(ctx),
			Outcome:    body.Outcome,
			Decision:   enums.DisputeDecision(body.Decision),
		}
		if body.AdjustedEffectiveValue != nil {
			value, err := decimal.NewFromString(strings.TrimSpace(*body.AdjustedEffectiveValue))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "adjustedEffectiveValue must be a decimal"))
				return
			}
			input.AdjustedEffectiveValue = &value
		}

		dispute, err := svc.Resolve(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeDTO(*dispute))
	}
}

func parseListQuery(r *http.Request) (disputesvc.ListQuery, error) {
	q := r.URL.Query()
	var query disputesvc.ListQuery

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := enums.ParseDisputeStatus(raw)
		if err != nil {
			return query, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		query.Filter.Status = &status
	}
	if raw := strings.TrimSpace(q.Get("issueCategory")); raw != "" {
		category, err := enums.ParseIssueCategory(raw)
		if err != nil {
			return query, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid issueCategory")
		}
		query.Filter.IssueCategory = &category
	}
	if raw := strings.TrimSpace(q.Get("buyerType")); raw != "" {
		buyerType, err := enums.ParseBuyerType(raw)
		if err != nil {
			return query, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyerType")
		}
		query.Filter.BuyerType = &buyerType
	}
	supplierID, err := validators.ParseOptionalUUIDQuery(r, "supplierId")
	if err != nil {
		return query, err
	}
	query.Filter.SupplierID = supplierID

	key, direction, err := disputesvc.ParseSort(q.Get("sortKey"), q.Get("sortDirection"))
	if err != nil {
		return query, err
	}
	query.SortKey = key
	query.Direction = direction
	return query, nil
}
