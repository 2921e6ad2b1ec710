package ledgerquery

import (
	"bytes"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

// SortKey names a sortable ledger column.
type SortKey string

const (
	SortByCompletedAt    SortKey = "completed_at"
	SortByEffectiveValue SortKey = "effective_value"
	SortByFeeAmount      SortKey = "fee_amount"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

const dateLayout = "2006-01-02"

// QuerySpec is an immutable description of a ledger view. StartDate and
// EndDate are calendar days and both inclusive.
type QuerySpec struct {
	SupplierID    *uuid.UUID
	StartDate     *time.Time
	EndDate       *time.Time
	OrderType     *enums.OrderType
	Status        *enums.LedgerEntryStatus
	SortKey       SortKey
	SortDirection SortDirection
}

// RawQuery carries unparsed query-string values.
type RawQuery struct {
	StartDate     string
	EndDate       string
	OrderType     string
	Status        string
	SortKey       string
	SortDirection string
}

// Parse validates raw values into a QuerySpec scoped to supplierID, which may be nil for admin scope.
func Parse(raw RawQuery, supplierID *uuid.UUID) (QuerySpec, error) {
	spec := QuerySpec{SupplierID: supplierID}

	var err error
	if spec.StartDate, err = parseDate("start_date", raw.StartDate); err != nil {
		return QuerySpec{}, err
	}
	if spec.EndDate, err = parseDate("end_date", raw.EndDate); err != nil {
		return QuerySpec{}, err
	}
	if spec.StartDate != nil && spec.EndDate != nil && spec.EndDate.Before(*spec.StartDate) {
		return QuerySpec{}, pkgerrors.New(pkgerrors.CodeValidation, "end_date must not be before start_date")
	}

	if v := strings.TrimSpace(raw.OrderType); v != "" {
		orderType, err := enums.ParseOrderType(v)
		if err != nil {
			return QuerySpec{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order_type")
		}
		spec.OrderType = &orderType
	}
	if v := strings.TrimSpace(raw.Status); v != "" {
		status, err := enums.ParseLedgerEntryStatus(v)
		if err != nil {
			return QuerySpec{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		spec.Status = &status
	}

	switch key := SortKey(strings.TrimSpace(raw.SortKey)); key {
	case "":
	case SortByCompletedAt, SortByEffectiveValue, SortByFeeAmount:
		spec.SortKey = key
	default:
		return QuerySpec{}, pkgerrors.New(pkgerrors.CodeValidation, "sort_key must be one of completed_at, effective_value, fee_amount")
	}
	switch dir := SortDirection(strings.ToLower(strings.TrimSpace(raw.SortDirection))); dir {
	case "":
	case SortAsc, SortDesc:
		spec.SortDirection = dir
	default:
		return QuerySpec{}, pkgerrors.New(pkgerrors.CodeValidation, "sort_direction must be asc or desc")
	}
	return spec.normalized(), nil
}

func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, field+" must be formatted YYYY-MM-DD")
	}
	return &parsed, nil
}

// normalized fills the default sort of newest first.
func (q QuerySpec) normalized() QuerySpec {
	if q.SortKey == "" {
		q.SortKey = SortByCompletedAt
	}
	if q.SortDirection == "" {
		q.SortDirection = SortDesc
	}
	return q
}

func (q QuerySpec) filter() ledger.Filter {
	f := ledger.Filter{
		SupplierID: q.SupplierID,
		OrderType:  q.OrderType,
		Status:     q.Status,
	}
	if q.StartDate != nil {
		from := truncateDay(*q.StartDate)
		f.From = &from
	}
	if q.EndDate != nil {
		to := truncateDay(*q.EndDate).AddDate(0, 0, 1)
		f.To = &to
	}
	return f
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sortEntries orders in place; equal keys fall back to id ascending.
func sortEntries(entries []models.LedgerEntry, key SortKey, direction SortDirection) {
	cmp := func(a, b models.LedgerEntry) int {
		switch key {
		case SortByEffectiveValue:
			return a.EffectiveValue.Cmp(b.EffectiveValue)
		case SortByFeeAmount:
			return a.FeeAmount.Cmp(b.FeeAmount)
		default:
			return a.CompletedAt.Compare(b.CompletedAt)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		c := cmp(entries[i], entries[j])
		if c != 0 {
			if direction == SortAsc {
				return c < 0
			}
			return c > 0
		}
		return bytes.Compare(entries[i].ID[:], entries[j].ID[:]) < 0
	})
}
