package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIError {
	t.Helper()
	var body ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"invoiceId": "inv-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body SuccessEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "inv-1", body.Data.(map[string]any)["invoiceId"])
}

func TestWriteErrorExposurePolicy(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		message     string
		wantDetails bool
		retryAfter  bool
	}{
		{
			name:        "validation shows message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "periodEnd before periodStart").WithDetails(map[string]any{"field": "periodEnd"}),
			status:      http.StatusBadRequest,
			message:     "periodEnd before periodStart",
			wantDetails: true,
		},
		{
			name:    "already resolved hides details",
			err:     pkgerrors.New(pkgerrors.CodeAlreadyResolved, "dispute closed").WithDetails(map[string]any{"status": "RESOLVED"}),
			status:  http.StatusConflict,
			message: "dispute closed",
		},
		{
			name:        "stale state is retryable",
			err:         pkgerrors.New(pkgerrors.CodeStaleState, "invoice changed"),
			status:      http.StatusConflict,
			message:     "invoice changed",
			retryAfter:  true,
			wantDetails: false,
		},
		{
			name:       "busy supplier lock",
			err:        pkgerrors.New(pkgerrors.CodeBusy, "supplier lock held"),
			status:     http.StatusServiceUnavailable,
			message:    "supplier lock held",
			retryAfter: true,
		},
		{
			name:        "dependency keeps public message",
			err:         pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "redis down").WithDetails(map[string]any{"dependency": "redis"}),
			status:      http.StatusServiceUnavailable,
			message:     "dependency unavailable",
			wantDetails: true,
			retryAfter:  true,
		},
		{
			name:    "untyped errors are internal",
			err:     errors.New("sql: connection reset"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.retryAfter, w.Header().Get("Retry-After") != "")
			apiErr := decodeError(t, w)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.wantDetails, apiErr.Details != nil)
		})
	}
}

func TestWriteErrorLogsByStatus(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "billing-api", Level: zerolog.DebugLevel, Output: &buf})

	WriteError(context.Background(), logg, httptest.NewRecorder(),
		pkgerrors.New(pkgerrors.CodeInvalidTransition, "PAID to DRAFT").WithDetails(map[string]any{"step": "invoice.transition"}))
	var rejected map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rejected))
	assert.Equal(t, "warn", rejected["level"])
	assert.Equal(t, "invoice.transition", rejected["step"])
	assert.EqualValues(t, http.StatusUnprocessableEntity, rejected["http_status"])

	buf.Reset()
	WriteError(context.Background(), logg, httptest.NewRecorder(), errors.New("boom"))
	var failed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &failed))
	assert.Equal(t, "error", failed["level"])
	assert.Equal(t, string(pkgerrors.CodeInternal), failed["error_code"])
}

func TestWriteCSVSetsAttachmentHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	err := WriteCSV(w, "billing-ledger-2024-02-01.csv", func(out io.Writer) error {
		_, err := io.WriteString(out, "a,b\n")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, `attachment; filename="billing-ledger-2024-02-01.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}

func TestWriteFile(t *testing.T) {
	w := httptest.NewRecorder()
	WriteFile(w, "application/pdf", "INV-2024-01.pdf", []byte("%PDF"))
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", w.Body.String())
}
