// Package disputes tracks buyer complaints against completed orders and applies
// their outcome to the ledger.
package disputes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/pkg/db"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/locks"
)

const maxTextLength = 4000

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithReadTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the dispute state machine.
type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.Dispute, error)
	SupplierRespond(ctx context.Context, input RespondInput) (*models.Dispute, error)
	AddNote(ctx context.Context, input NoteInput) (*models.DisputeNote, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	List(ctx context.Context, query ListQuery) ([]models.Dispute, error)
}

// OpenInput is a buyer's complaint. SupplierID may be omitted when the order
// already has a ledger entry.
type OpenInput struct {
	OrderID       uuid.UUID
	SupplierID    uuid.UUID
	BuyerID       uuid.UUID
	BuyerType     enums.BuyerType
	IssueCategory enums.IssueCategory
	Description   string
}

type RespondInput struct {
	DisputeID  uuid.UUID
	SupplierID uuid.UUID
	Response   string
}

type NoteInput struct {
	DisputeID uuid.UUID
	AuthorID  uuid.UUID
	Note      string
}

// ResolveInput closes a dispute. Decision defaults to denied. An adjusted
// effective value is only meaningful for an upheld dispute.
type ResolveInput struct {
	DisputeID              uuid.UUID
	ResolvedBy             uuid.UUID
	Outcome                string
	Decision               enums.DisputeDecision
	AdjustedEffectiveValue *decimal.Decimal
}

type ListQuery struct {
	Filter    Filter
	SortKey   SortKey
	Direction SortDirection
}

type ServiceParams struct {
	Repo       Repository
	LedgerRepo ledger.Repository
	Ledger     ledger.Service
	DB         txRunner
	Locker     locks.SupplierLocker
	Clock      func() time.Time
}

type service struct {
	repo       Repository
	ledgerRepo ledger.Repository
	ledger     ledger.Service
	db         txRunner
	locker     locks.SupplierLocker
	now        func() time.Time
}

// NewService wires the dispute workflow.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("dispute repository required")
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
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		ledgerRepo: params.LedgerRepo,
		ledger:     params.Ledger,
		db:         params.DB,
		locker:     params.Locker,
		now:        now,
	}, nil
}

func (s *service) Open(ctx context.Context, input OpenInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if !input.BuyerType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid buyer type %q", input.BuyerType))
	}
	if !input.IssueCategory.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid issue category %q", input.IssueCategory))
	}
	description, err := requiredText("description", input.Description)
	if err != nil {
		return nil, err
	}

	supplierID, err := s.resolveSupplier(ctx, input)
	if err != nil {
		return nil, err
	}

	dispute := &models.Dispute{
		OrderID:       input.OrderID,
		SupplierID:    supplierID,
		BuyerID:       input.BuyerID,
		BuyerType:     input.BuyerType,
		IssueCategory: input.IssueCategory,
		Status:        enums.DisputeStatusOpen,
		Description:   description,
	}

	err = s.locker.WithSupplierLock(ctx, supplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if _, err := repo.FindByOrderID(ctx, input.OrderID); err == nil {
				return pkgerrors.New(pkgerrors.CodeConflict, "a dispute already exists for this order")
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing dispute")
			}

			entry, err := s.ledgerRepo.WithTx(tx).FindByOrderID(ctx, input.OrderID)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
			case err != nil:
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger entry for order")
			default:
				if entry.SupplierID != supplierID {
					return pkgerrors.New(pkgerrors.CodeValidation, "order does not belong to supplier")
				}
				dispute.LedgerEntryID = &entry.ID
				if entry.Status != enums.LedgerEntryStatusDisputed {
					if _, err := s.ledger.TransitionTx(ctx, tx, ledger.TransitionInput{
						EntryID: entry.ID,
						From:    entry.Status,
						To:      enums.LedgerEntryStatusDisputed,
					}); err != nil {
						return err
					}
				}
			}

			if err := repo.Create(ctx, dispute); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "a dispute already exists for this order")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *service) resolveSupplier(ctx context.Context, input OpenInput) (uuid.UUID, error) {
	if input.SupplierID != uuid.Nil {
		return input.SupplierID, nil
	}
	entry, err := s.ledger.GetByOrderID(ctx, input.OrderID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required when the order has no ledger entry")
		}
		return uuid.Nil, err
	}
	return entry.SupplierID, nil
}

func (s *service) SupplierRespond(ctx context.Context, input RespondInput) (*models.Dispute, error) {
	if input.SupplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "supplier context missing")
	}
	response, err := requiredText("response", input.Response)
	if err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if current.SupplierID != input.SupplierID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "dispute does not belong to supplier")
	}
	if !CanTransition(current.Status, enums.DisputeStatusSupplierResponded) {
		return nil, disputeStateError(current.Status, enums.DisputeStatusSupplierResponded)
	}

	var updated *models.Dispute
	err = s.locker.WithSupplierLock(ctx, current.SupplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			rows, err := repo.UpdateFrom(ctx, current.ID, enums.DisputeStatusOpen, map[string]any{
				"status":            enums.DisputeStatusSupplierResponded,
				"supplier_response": response,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record supplier response")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeStaleState, "dispute changed since it was read")
			}
			updated, err = findDispute(ctx, repo, current.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddNote appends an internal note. Notes are accepted in every status.
func (s *service) AddNote(ctx context.Context, input NoteInput) (*models.DisputeNote, error) {
	if input.AuthorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "author identity missing")
	}
	text, err := requiredText("note", input.Note)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, input.DisputeID); err != nil {
		return nil, err
	}
	note := &models.DisputeNote{
		DisputeID: input.DisputeID,
		AuthorID:  input.AuthorID,
		Note:      text,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).AddNote(ctx, note); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add dispute note")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.ResolvedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "resolver identity missing")
	}
	outcome, err := requiredText("outcome", input.Outcome)
	if err != nil {
		return nil, err
	}
	decision := input.Decision
	if decision == "" {
		decision = enums.DisputeDecisionDenied
	}
	if !decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid decision %q", decision))
	}
	if input.AdjustedEffectiveValue != nil {
		if decision != enums.DisputeDecisionUpheld {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "an adjusted effective value requires an upheld decision")
		}
		if input.AdjustedEffectiveValue.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjusted effective value must be non-negative")
		}
	}

	current, err := s.Get(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if current.Status == enums.DisputeStatusResolved {
		return nil, alreadyResolved()
	}

	var resolved *models.Dispute
	err = s.locker.WithSupplierLock(ctx, current.SupplierID, func(ctx context.Context) error {
		return s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			latest, err := findDispute(ctx, repo, current.ID)
			if err != nil {
				return err
			}
			if latest.Status == enums.DisputeStatusResolved {
				return alreadyResolved()
			}

			entryID, err := s.linkedEntry(ctx, tx, latest)
			if err != nil {
				return err
			}
			if entryID == nil && input.AdjustedEffectiveValue != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "the order has no ledger entry to adjust")
			}

			now := s.now().UTC()
			resolvedBy := input.ResolvedBy
			rows, err := repo.UpdateFrom(ctx, latest.ID, latest.Status, map[string]any{
				"status":      enums.DisputeStatusResolved,
				"decision":    decision,
				"outcome":     outcome,
				"resolved_by": resolvedBy,
				"resolved_at": now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeStaleState, "dispute changed since it was read")
			}

			if entryID != nil {
				if err := s.applyToLedger(ctx, tx, *entryID, decision, input.AdjustedEffectiveValue); err != nil {
					return err
				}
			}

			resolved, err = findDispute(ctx, repo, latest.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// linkedEntry returns the dispute's ledger entry. A dispute opened before its
// order completed is linked here to the entry that has since been created.
func (s *service) linkedEntry(ctx context.Context, tx *gorm.DB, dispute *models.Dispute) (*uuid.UUID, error) {
	if dispute.LedgerEntryID != nil {
		return dispute.LedgerEntryID, nil
	}
	ledgerRepo := s.ledgerRepo.WithTx(tx)
	entry, err := ledgerRepo.FindByOrderID(ctx, dispute.OrderID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger entry for order")
	case entry.SupplierID != dispute.SupplierID:
		return nil, nil
	}
	if _, err := ledgerRepo.LinkDispute(ctx, dispute.ID, entry.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link dispute to ledger entry")
	}
	return &entry.ID, nil
}

// applyToLedger carries a resolution into the linked entry:
// denied reverts the entry to its prior status; upheld with an adjusted value
// recomputes the fee and then reverts; upheld without one leaves the entry
// disputed for a manual billing adjustment.
func (s *service) applyToLedger(ctx context.Context, tx *gorm.DB, entryID uuid.UUID, decision enums.DisputeDecision, adjusted *decimal.Decimal) error {
	entry, err := s.ledgerRepo.WithTx(tx).FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load linked ledger entry")
	}

	if adjusted != nil {
		if _, err := s.ledger.AdjustEffectiveValueTx(ctx, tx, entry.ID, *adjusted); err != nil {
			return err
		}
	}
	if entry.Status != enums.LedgerEntryStatusDisputed || entry.PriorStatus == nil {
		return nil
	}
	if decision == enums.DisputeDecisionUpheld && adjusted == nil {
		return nil
	}
	_, err = s.ledger.TransitionTx(ctx, tx, ledger.TransitionInput{
		EntryID: entry.ID,
		From:    enums.LedgerEntryStatusDisputed,
		To:      *entry.PriorStatus,
	})
	return err
}

func (s *service) Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id is required")
	}
	var dispute *models.Dispute
	err := s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		dispute, err = findDispute(ctx, s.repo.WithTx(tx), disputeID)
		return err
	})
	return dispute, err
}

func (s *service) List(ctx context.Context, query ListQuery) ([]models.Dispute, error) {
	key, direction, err := ParseSort(string(query.SortKey), string(query.Direction))
	if err != nil {
		return nil, err
	}
	var disputes []models.Dispute
	err = s.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		disputes, err = s.repo.WithTx(tx).List(ctx, query.Filter)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortDisputes(disputes, key, direction)
	return disputes, nil
}

func findDispute(ctx context.Context, repo Repository, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}

func requiredText(field, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
	}
	if len(trimmed) > maxTextLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be at most %d characters", field, maxTextLength))
	}
	return trimmed, nil
}
