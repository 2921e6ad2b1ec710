package disputes

import (
	"time"

	"github.com/angelmondragon/feeledger/pkg/db/models"
)

type noteDTO struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
}

type disputeDTO struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"orderId"`
	SupplierID       string     `json:"supplierId"`
	LedgerEntryID    *string    `json:"ledgerEntryId"`
	BuyerID          string     `json:"buyerId"`
	BuyerType        string     `json:"buyerType"`
	IssueCategory    string     `json:"issueCategory"`
	Status           string     `json:"status"`
	Description      string     `json:"description"`
	SupplierResponse *string    `json:"supplierResponse"`
	Decision         *string    `json:"decision"`
	Outcome          *string    `json:"outcome"`
	ResolvedBy       *string    `json:"resolvedBy"`
	ResolvedAt       *time.Time `json:"resolvedAt"`
	AdminNotes       []noteDTO  `json:"adminNotes"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// supplierDisputeDTO omits internal admin notes.
type supplierDisputeDTO struct {
	ID               string  `json:"id"`
	OrderID          string  `json:"orderId"`
	IssueCategory    string  `json:"issueCategory"`
	Status           string  `json:"status"`
	Description      string  `json:"description"`
	SupplierResponse *string `json:"supplierResponse"`
}

func toDisputeDTO(d models.Dispute) disputeDTO {
	dto := disputeDTO{
		ID:               d.ID.String(),
		OrderID:          d.OrderID.String(),
		SupplierID:       d.SupplierID.String(),
		BuyerID:          d.BuyerID.String(),
		BuyerType:        string(d.BuyerType),
		IssueCategory:    string(d.IssueCategory),
		Status:           string(d.Status),
		Description:      d.Description,
		SupplierResponse: d.SupplierResponse,
		Outcome:          d.Outcome,
		ResolvedAt:       d.ResolvedAt,
		AdminNotes:       make([]noteDTO, len(d.AdminNotes)),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
	if d.LedgerEntryID != nil {
		id := d.LedgerEntryID.String()
		dto.LedgerEntryID = &id
	}
	if d.Decision != nil {
		decision := string(*d.Decision)
		dto.Decision = &decision
	}
	if d.ResolvedBy != nil {
		id := d.ResolvedBy.String()
		dto.ResolvedBy = &id
	}
	for i, n := range d.AdminNotes {
		dto.AdminNotes[i] = toNoteDTO(n)
	}
	return dto
}

func toNoteDTO(n models.DisputeNote) noteDTO {
	return noteDTO{ID: n.ID.String(), AuthorID: n.AuthorID.String(), Note: n.Note, CreatedAt: n.CreatedAt.UTC()}
}

func toSupplierDisputeDTO(d models.Dispute) supplierDisputeDTO {
	return supplierDisputeDTO{
		ID:               d.ID.String(),
		OrderID:          d.OrderID.String(),
		IssueCategory:    string(d.IssueCategory),
		Status:           string(d.Status),
		Description:      d.Description,
		SupplierResponse: d.SupplierResponse,
	}
}
