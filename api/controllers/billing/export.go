package billing

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/angelmondragon/feeledger/api/responses"
	"github.com/angelmondragon/feeledger/internal/ledgerquery"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

// writeExport buffers the CSV; a failed query yields a JSON error, never a partial attachment.
func writeExport(w http.ResponseWriter, r *http.Request, svc LedgerReader, spec ledgerquery.QuerySpec, now func() time.Time, logg *logger.Logger) {
	ctx := r.Context()
	var buf bytes.Buffer
	if err := svc.Export(ctx, spec, &buf); err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	if err := responses.WriteCSV(w, exportFilename(now), func(out io.Writer) error {
		_, err := buf.WriteTo(out)
		return err
	}); err != nil && logg != nil {
		logg.Error(ctx, "billing.export.write_failed", err)
	}
}
