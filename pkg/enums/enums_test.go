package enums

import "testing"

func TestParseAcceptsKnownValues(t *testing.T) {
	tests := []struct {
		name  string
		parse func(string) (string, error)
		raw   string
	}{
		{"ledger status", wrap(ParseLedgerEntryStatus), "disputed"},
		{"order type", wrap(ParseOrderType), "rental"},
		{"invoice status", wrap(ParseInvoiceStatus), "overdue"},
		{"dispute status", wrap(ParseDisputeStatus), "supplier_responded"},
		{"dispute decision", wrap(ParseDisputeDecision), "upheld"},
		{"issue category", wrap(ParseIssueCategory), "quantity_short"},
		{"buyer type", wrap(ParseBuyerType), "contractor"},
		{"role", wrap(ParseRole), "admin"},
		{"event type", wrap(ParseBillingEventType), "order_completed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.parse(tt.raw)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.raw, err)
			}
			if got != tt.raw {
				t.Fatalf("expected %q got %q", tt.raw, got)
			}
		})
	}
}

func TestParseRejectsUnknownAndMiscased(t *testing.T) {
	if _, err := ParseLedgerEntryStatus("Pending"); err == nil {
		t.Fatal("expected case-sensitive rejection")
	}
	if _, err := ParseOrderType("sale"); err == nil {
		t.Fatal("expected unknown order type to fail")
	}
	if _, err := ParseIssueCategory(""); err == nil {
		t.Fatal("expected empty issue category to fail")
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}

func TestIsValid(t *testing.T) {
	if !LedgerEntryStatusPaid.IsValid() || LedgerEntryStatus("refunded").IsValid() {
		t.Fatal("ledger entry status validity mismatch")
	}
	if !DisputeStatusResolved.IsValid() || DisputeStatus("closed").IsValid() {
		t.Fatal("dispute status validity mismatch")
	}
	if !EventFeeInvoiceIssued.IsValid() || BillingEventType("order_created").IsValid() {
		t.Fatal("billing event type validity mismatch")
	}
}

func wrap[T ~string](parse func(string) (T, error)) func(string) (string, error) {
	return func(raw string) (string, error) {
		v, err := parse(raw)
		return string(v), err
	}
}
