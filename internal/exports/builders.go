package exports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	calibration "gagetrack/internal/calibration/domain"
	gagesapp "gagetrack/internal/gages/application"
)

// BuildGagesPDF renders the gage inventory report.
func BuildGagesPDF(companyID string, views []gagesapp.GageView, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Gage Inventory")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Company: %s", companyID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(70, 6, "Name", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Serial", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Freq (days)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Next Due", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Days Left", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, view := range views {
		pdf.CellFormat(70, 6, view.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, view.SerialNumber, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", view.FrequencyDays), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, formatDue(view.NextDueDate), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, string(view.DueStatus), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, formatDays(view.DaysUntilDue), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildGagesXLSX renders the gage inventory workbook.
func BuildGagesXLSX(companyID string, views []gagesapp.GageView, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "gages"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Gage Inventory")
	_ = f.SetCellValue(sheet, "A2", "Company")
	_ = f.SetCellValue(sheet, "B2", companyID)
	_ = f.SetCellValue(sheet, "A3", "Generated")
	_ = f.SetCellValue(sheet, "B3", generatedAt.UTC().Format(time.RFC3339))

	headers := []string{"Name", "Serial", "Department", "Frequency (days)", "Next Due", "Status", "Days Left"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, view := range views {
		row := i + 6
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), view.Name)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), view.SerialNumber)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), view.DepartmentID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), view.FrequencyDays)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), formatDue(view.NextDueDate))
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), string(view.DueStatus))
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), formatDays(view.DaysUntilDue))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRecordsPDF renders the calibration history report.
func BuildRecordsPDF(companyID string, records []calibration.Record, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Calibration Records")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Company: %s", companyID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(60, 6, "Gage", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Mode", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Calibrated", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Measured", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Calibrated To", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Performed By", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, rec := range records {
		measured, calibrated := "-", "-"
		if rec.Mode == calibration.WorkflowSimple {
			measured = fmt.Sprintf("%.4f", rec.MeasuredValue)
			calibrated = fmt.Sprintf("%.4f", rec.CalibratedValue)
		}
		pdf.CellFormat(60, 6, rec.GageID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, string(rec.Mode), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, rec.CalibratedAt.Format("2006-01-02"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, measured, "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, calibrated, "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, rec.PerformedBy, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildRecordsXLSX renders the calibration history workbook.
func BuildRecordsXLSX(companyID string, records []calibration.Record, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "calibration_records"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Calibration Records")
	_ = f.SetCellValue(sheet, "A2", "Company")
	_ = f.SetCellValue(sheet, "B2", companyID)
	_ = f.SetCellValue(sheet, "A3", "Generated")
	_ = f.SetCellValue(sheet, "B3", generatedAt.UTC().Format(time.RFC3339))

	headers := []string{"Gage", "Mode", "Calibrated At", "Measured", "Calibrated To", "Performed By", "Cert File"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, rec := range records {
		row := i + 6
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.GageID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), string(rec.Mode))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), rec.CalibratedAt.Format("2006-01-02"))
		if rec.Mode == calibration.WorkflowSimple {
			_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), rec.MeasuredValue)
			_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), rec.CalibratedValue)
		}
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), rec.PerformedBy)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), rec.CertFile)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDue(due *time.Time) string {
	if due == nil {
		return "unscheduled"
	}
	return due.Format("2006-01-02")
}

func formatDays(days *int) string {
	if days == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *days)
}
