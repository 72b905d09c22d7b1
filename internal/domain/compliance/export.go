package compliance

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	metricsSheet = "Daily metrics"
	originsSheet = "Record origins"
)

var (
	metricsHeader = []interface{}{"Date", "Record type", "Due", "Done", "Ad hoc", "Overdue", "Compliance (%)"}
	originsHeader = []interface{}{"Date", "Time", "Resident", "Record type", "Meal type", "Origin", "Due time", "Record ID"}
)

// ExportXLSX renders a report as a two-sheet workbook. Range totals follow
// the daily rows of the metrics sheet under the date "TOTAL".
func ExportXLSX(report *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(metricsSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(originsSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	metricRows := [][]interface{}{metricsHeader}
	for _, day := range report.Days {
		for _, m := range day.Metrics {
			metricRows = append(metricRows, metricRow(day.Date, m))
		}
	}
	for _, m := range report.Totals {
		metricRows = append(metricRows, metricRow("TOTAL", m))
	}

	originRows := [][]interface{}{originsHeader}
	for _, day := range report.Days {
		for _, o := range day.Origins {
			originRows = append(originRows, []interface{}{
				o.Date, o.Time, o.ResidentName, string(o.RecordType), o.MealType,
				string(o.Origin), o.DueTime, o.RecordID.String(),
			})
		}
	}

	if err := writeSheet(f, metricsSheet, metricRows, headerStyle); err != nil {
		return nil, err
	}
	if err := writeSheet(f, originsSheet, originRows, headerStyle); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func metricRow(date string, m Metric) []interface{} {
	var pct interface{} = ""
	if m.Compliance != nil {
		pct = *m.Compliance
	}
	return []interface{}{date, string(m.RecordType), m.Due, m.Done, m.AdHoc, m.Overdue, pct}
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return fmt.Errorf("convert column number: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return f.SetColWidth(sheet, "A", last, 16)
}
