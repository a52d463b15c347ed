/*
export.go - XLSX export of a member's project breakdown

PURPOSE:
  Renders the ranked per-project payables of one member as a workbook
  with a header row, one row per project and a totals row.

SEE ALSO:
  - handlers.go: ExportMemberBreakdowns serves the workbook
*/
package api

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/studio-finance/finance"
)

// BreakdownSheet is the sheet written by BuildBreakdownWorkbook.
const BreakdownSheet = "Payables"

var breakdownHeaders = []string{
	"Project", "Project ID", "Events", "Unique Months",
	"Payable", "Paid", "Pending", "Balance",
}

var breakdownColumnWidths = []float64{28, 38, 10, 14, 14, 14, 14, 14}

// BuildBreakdownWorkbook renders a member's ranked breakdowns as XLSX:
// a header row, one row per project in the given order and a totals row.
func BuildBreakdownWorkbook(member finance.Member, breakdowns []BreakdownDTO) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so Close is called explicitly below.

	index, err := f.NewSheet(BreakdownSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Payables for %s", displayName(member)),
		Creator: "studio-finance",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range breakdownHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(BreakdownSheet, cell, h); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(BreakdownSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(BreakdownSheet, col, col, breakdownColumnWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	var (
		events                          int
		payable, paid, pending, balance decimal.Decimal
	)
	for i, b := range breakdowns {
		row := []any{
			b.ProjectName, b.ProjectID, b.EventCount, b.UniqueMonthCount,
			money(b.Payable), money(b.Paid), money(b.Pending), money(b.Balance),
		}
		if err := writeRow(f, i+2, row); err != nil {
			f.Close()
			return nil, err
		}

		events += b.EventCount
		payable = payable.Add(b.Payable)
		paid = paid.Add(b.Paid)
		pending = pending.Add(b.Pending)
		balance = balance.Add(b.Balance)
	}

	totals := []any{
		"Total", "", events, "",
		money(payable), money(paid), money(pending), money(balance),
	}
	if err := writeRow(f, len(breakdowns)+2, totals); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetPanes(BreakdownSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(BreakdownSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

// money converts an amount for a spreadsheet cell. Totals are summed in
// decimal before conversion.
func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func displayName(m finance.Member) string {
	if m.Name != "" {
		return m.Name
	}
	return string(m.ID)
}
