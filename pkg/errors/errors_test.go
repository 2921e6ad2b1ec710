package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataPolicy(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		message   bool
		details   bool
	}{
		{CodeValidation, http.StatusBadRequest, false, true, true},
		{CodeUnauthorized, http.StatusUnauthorized, false, true, false},
		{CodeForbidden, http.StatusForbidden, false, true, false},
		{CodeNotFound, http.StatusNotFound, false, true, false},
		{CodeConflict, http.StatusConflict, false, true, false},
		{CodeStateConflict, http.StatusUnprocessableEntity, false, true, true},
		{CodeInvalidTransition, http.StatusUnprocessableEntity, false, true, true},
		{CodeStaleState, http.StatusConflict, true, true, true},
		{CodeAlreadyResolved, http.StatusConflict, false, true, false},
		{CodeNoEligibleEntries, http.StatusUnprocessableEntity, false, true, true},
		{CodeBusy, http.StatusServiceUnavailable, true, true, false},
		{CodeIdempotency, http.StatusConflict, false, true, true},
		{CodeRateLimit, http.StatusTooManyRequests, false, true, false},
		{CodeInternal, http.StatusInternalServerError, true, false, false},
		{CodeDependency, http.StatusServiceUnavailable, true, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.message, meta.ExposeMessage)
			assert.Equal(t, tt.details, meta.DetailsAllowed)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
	assert.False(t, meta.ExposeMessage)
}

func TestErrorConstructors(t *testing.T) {
	base := Newf(CodeValidation, "fee percentage %s out of range", "120")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "fee percentage 120 out of range", base.Message())
	assert.Equal(t, "VALIDATION_ERROR: fee percentage 120 out of range", base.Error())
	assert.Nil(t, base.Details())

	base.WithDetails(map[string]any{"field": "feePercentage"})
	assert.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "duplicate order")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())

	assert.Nil(t, Wrap(CodeConflict, nil, "no cause").Unwrap())
}

func TestAsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("invoice cycle: %w", New(CodeForbidden, "no entry"))
	require.NotNil(t, As(err))
	assert.Equal(t, CodeForbidden, CodeOf(err))
	assert.Nil(t, As(nil))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Empty(t, nilErr.Error())
}

func TestHasCodeAndRetryable(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeBusy, "lock timeout"))
	assert.True(t, HasCode(err, CodeBusy))
	assert.False(t, HasCode(err, CodeStaleState))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(New(CodeInvalidTransition, "nope")))
	assert.False(t, IsRetryable(stdErrors.New("plain")))
}

func TestDumpCarriesPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_invoices_supplier_period", TableName: "invoices"}
	dump := Dump(Wrap(CodeDependency, pgErr, "create invoice"))

	assert.Equal(t, CodeDependency, dump.Code)
	require.NotNil(t, dump.Postgres)
	assert.Equal(t, "23505", dump.Postgres.Code)
	assert.Equal(t, "idx_invoices_supplier_period", dump.Postgres.Constraint)
	assert.Len(t, dump.Chain, 2)

	fields := dump.Fields()
	assert.Equal(t, "invoices", fields["pg_table"])

	pqDump := Dump(fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Table: "ledger_entries"}))
	require.NotNil(t, pqDump.Postgres)
	assert.Equal(t, "23503", pqDump.Postgres.Code)
	assert.Equal(t, CodeInternal, CodeOf(fmt.Errorf("insert: %w", &pq.Error{})))
}

func TestDumpWithoutDatabaseError(t *testing.T) {
	assert.Equal(t, ErrorDump{}, Dump(nil))

	dump := Dump(New(CodeBusy, "supplier locked"))
	assert.Nil(t, dump.Postgres)
	_, hasPG := dump.Fields()["pg_code"]
	assert.False(t, hasPG)
}
