package billing

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/feeledger/internal/ledgerquery"
)

func rawLedgerQuery(r *http.Request) ledgerquery.RawQuery {
	q := r.URL.Query()
	return ledgerquery.RawQuery{
		StartDate:     q.Get("start_date"),
		EndDate:       q.Get("end_date"),
		OrderType:     q.Get("order_type"),
		Status:        q.Get("status"),
		SortKey:       q.Get("sort_key"),
		SortDirection: q.Get("sort_direction"),
	}
}

func parseLedgerQuery(r *http.Request, supplierID *uuid.UUID) (ledgerquery.QuerySpec, error) {
	return ledgerquery.Parse(rawLedgerQuery(r), supplierID)
}

func exportFilename(now func() time.Time) string {
	return "billing-ledger-" + now().UTC().Format(dateLayout) + ".csv"
}
