package invoices

import (
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

const periodLayout = "2006-01"

// Period is one calendar month in UTC.
type Period struct {
	start time.Time
}

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	u := t.UTC()
	return Period{start: time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)}
}

// PreviousPeriod returns the month before the one containing now.
func PreviousPeriod(now time.Time) Period {
	return PeriodOf(now).Prev()
}

// ParsePeriod accepts YYYY-MM.
func ParsePeriod(raw string) (Period, error) {
	t, err := time.Parse(periodLayout, strings.TrimSpace(raw))
	if err != nil {
		return Period{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("period %q must be formatted YYYY-MM", raw))
	}
	return PeriodOf(t), nil
}

// Start is the first instant of the month.
func (p Period) Start() time.Time { return p.start }

// End is the last calendar day of the month at midnight.
func (p Period) End() time.Time { return p.start.AddDate(0, 1, -1) }

// Cutoff is the first instant after the month; entries completed before it are eligible.
func (p Period) Cutoff() time.Time { return p.start.AddDate(0, 1, 0) }

// Prev returns the preceding month.
func (p Period) Prev() Period { return Period{start: p.start.AddDate(0, -1, 0)} }

// Next returns the following month.
func (p Period) Next() Period { return Period{start: p.start.AddDate(0, 1, 0)} }

// DueDate is dueDays after the last day of the month.
func (p Period) DueDate(dueDays int) time.Time { return p.End().AddDate(0, 0, dueDays) }

// IsZero reports whether p was never set.
func (p Period) IsZero() bool { return p.start.IsZero() }

func (p Period) String() string { return p.start.Format(periodLayout) }
