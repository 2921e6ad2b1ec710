package disputes

import (
	"bytes"
	"sort"
	"strings"

	"github.com/angelmondragon/feeledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

// SortKey orders the admin queue.
type SortKey string

const (
	SortByCreatedAt     SortKey = "createdAt"
	SortByUpdatedAt     SortKey = "updatedAt"
	SortByStatus        SortKey = "status"
	SortByIssueCategory SortKey = "issueCategory"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSort validates raw sort parameters, defaulting to newest first.
func ParseSort(rawKey, rawDirection string) (SortKey, SortDirection, error) {
	key := SortKey(strings.TrimSpace(rawKey))
	switch key {
	case "":
		key = SortByCreatedAt
	case SortByCreatedAt, SortByUpdatedAt, SortByStatus, SortByIssueCategory:
	default:
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "sortKey must be one of createdAt, updatedAt, status, issueCategory")
	}
	direction := SortDirection(strings.ToLower(strings.TrimSpace(rawDirection)))
	switch direction {
	case "":
		direction = SortDesc
	case SortAsc, SortDesc:
	default:
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "sortDirection must be asc or desc")
	}
	return key, direction, nil
}

// sortDisputes orders in place; equal keys fall back to id ascending.
func sortDisputes(disputes []models.Dispute, key SortKey, direction SortDirection) {
	cmp := func(a, b models.Dispute) int {
		switch key {
		case SortByUpdatedAt:
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case SortByStatus:
			return strings.Compare(string(a.Status), string(b.Status))
		case SortByIssueCategory:
			return strings.Compare(string(a.IssueCategory), string(b.IssueCategory))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(disputes, func(i, j int) bool {
		c := cmp(disputes[i], disputes[j])
		if c != 0 {
			if direction == SortDesc {
				return c > 0
			}
			return c < 0
		}
		return bytes.Compare(disputes[i].ID[:], disputes[j].ID[:]) < 0
	})
}
