package invoices

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/angelmondragon/feeledger/pkg/db/models"
)

const statementDateLayout = "2006-01-02"

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// StatementRenderer turns an invoice and its lines into a printable document.
type StatementRenderer interface {
	Render(ctx context.Context, invoice models.Invoice, lines []models.LedgerEntry) ([]byte, error)
}

// MarotoRenderer renders A4 invoice statements.
type MarotoRenderer struct{}

// NewMarotoRenderer constructs the PDF renderer.
func NewMarotoRenderer() *MarotoRenderer { return &MarotoRenderer{} }

// Render lays out header, line table and totals, and returns the PDF bytes.
func (r *MarotoRenderer) Render(_ context.Context, invoice models.Invoice, lines []models.LedgerEntry) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Success fee invoice "+invoice.ID.String(), true).
		Build()

	m := maroto.New(cfg)
	m.AddRows(statementHeader(invoice))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(lineTableHeader())
	for _, r := range lineRows(lines) {
		m.AddRows(r)
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalRow(invoice))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate statement pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func statementHeader(invoice models.Invoice) core.Row {
	return row.New(20).Add(
		col.New(7).Add(
			text.New("SUCCESS FEE INVOICE", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Supplier: "+invoice.SupplierID.String(), props.Text{
				Size: 8, Top: 9, Color: colorGray,
			}),
			text.New("Invoice: "+invoice.ID.String(), props.Text{
				Size: 8, Top: 14, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(fmt.Sprintf("Period %s to %s",
				invoice.PeriodStart.Format(statementDateLayout),
				invoice.PeriodEnd.Format(statementDateLayout)), props.Text{
				Size: 8, Align: align.Right, Top: 1,
			}),
			text.New("Due "+invoice.DueDate.Format(statementDateLayout), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 7,
			}),
			text.New("Status: "+invoice.Status.String(), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func lineTableHeader() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2,
		}))
	}
	return row.New(8).Add(
		h("Date", 2, align.Left),
		h("Order", 4, align.Left),
		h("Type", 1, align.Center),
		h("Value", 2, align.Right),
		h("Rate", 1, align.Right),
		h("Fee", 2, align.Right),
	)
}

func lineRows(lines []models.LedgerEntry) []core.Row {
	rows := make([]core.Row, 0, len(lines))
	for _, entry := range lines {
		order := "(purged)"
		if entry.OrderID != nil {
			order = entry.OrderID.String()
		}
		rows = append(rows, row.New(6).Add(
			col.New(2).Add(text.New(entry.CompletedAt.Format(statementDateLayout), props.Text{Size: 7, Top: 1})),
			col.New(4).Add(text.New(order, props.Text{Size: 7, Top: 1})),
			col.New(1).Add(text.New(string(entry.OrderType), props.Text{Size: 7, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(entry.EffectiveValue.StringFixed(2), props.Text{Size: 7, Align: align.Right, Top: 1})),
			col.New(1).Add(text.New(entry.FeePercentage.String()+"%", props.Text{Size: 7, Align: align.Right, Top: 1})),
			col.New(2).Add(text.New(entry.FeeAmount.StringFixed(2), props.Text{Size: 7, Align: align.Right, Top: 1})),
		))
	}
	return rows
}

func totalRow(invoice models.Invoice) core.Row {
	return row.New(12).Add(
		col.New(8),
		col.New(2).Add(text.New("TOTAL FEES:", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2,
		})),
		col.New(2).Add(text.New(invoice.TotalFees.StringFixed(2), props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Top: 2,
		})),
	)
}
