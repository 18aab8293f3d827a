// Package export renders calculation audit records as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// AuditSheet is the name of the worksheet holding audit rows.
const AuditSheet = "Calculation Audit"

// AuditHeader is the header row, one column per audit field.
var AuditHeader = []string{
	"ID",
	"Assessment ID",
	"Algorithms",
	"Framingham Risk (%)",
	"QRISK3 Risk (%)",
	"Lp(a) Modifier",
	"Governing Risk (%)",
	"Category",
	"Cache Hit",
	"Warnings",
	"Fingerprint",
	"Created At (UTC)",
}

var columnWidths = []float64{8, 38, 20, 18, 16, 14, 18, 12, 10, 50, 66, 22}

// WriteAuditXLSX writes the records as a single-sheet workbook.
func WriteAuditXLSX(w io.Writer, records []*domain.AuditRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(AuditSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(AuditSheet, "A1", &AuditHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(AuditHeader))
	if err != nil {
		return fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(AuditSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(AuditSheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		row := auditRow(rec)
		if err := f.SetSheetRow(AuditSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(AuditSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func auditRow(rec *domain.AuditRecord) []interface{} {
	return []interface{}{
		rec.ID,
		rec.AssessmentID,
		rec.Algorithms,
		optionalCell(rec.FraminghamRisk),
		optionalCell(rec.QRISK3Risk),
		rec.LpaModifier,
		rec.GoverningRisk,
		rec.GoverningCategory,
		yesNo(rec.CacheHit),
		rec.Warnings,
		rec.Fingerprint,
		rec.CreatedAt.UTC().Format(time.DateTime),
	}
}

func optionalCell(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
