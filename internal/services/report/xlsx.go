// Package report renders analysis results as spreadsheets.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"AlphaLab/internal/domain/models"
)

const (
	SheetSummary = "summary"
	SheetDaily   = "daily_ic"
	SheetLayers  = "layers"
	SheetTop     = "top"
	SheetBottom  = "bottom"
)

// WriteAnalysisXLSX writes one workbook with a sheet per analysis section.
// Undefined numbers are left as empty cells.
func WriteAnalysisXLSX(w io.Writer, a *models.AlphaAnalysis) error {
	f := excelize.NewFile()
	defer f.Close()

	s := a.Summary
	summary := [][]interface{}{
		{"alpha", a.Alpha},
		{"date", a.Date.Time().Format(models.DateLayout)},
		{"horizon", a.Horizon},
		{"mean_ic", cell(s.MeanIC)},
		{"std_ic", cell(s.StdIC)},
		{"icir", cell(s.ICIR)},
		{"positive_ratio", cell(s.PositiveRatio)},
		{"days", s.Days},
		{"defined_days", s.DefinedDays},
	}

	daily := [][]interface{}{{"date", "ic", "cumulative_ic", "n"}}
	for _, r := range a.Daily {
		daily = append(daily, []interface{}{r.Date.Time().Format(models.DateLayout), cell(r.IC), cell(r.Cumulative), r.N})
	}

	layers := [][]interface{}{{"bucket", "count", "mean_return", "min_factor", "max_factor"}}
	for _, b := range a.Layers {
		layers = append(layers, []interface{}{b.Bucket + 1, b.Count, cell(b.MeanReturn), cell(b.MinFactor), cell(b.MaxFactor)})
	}

	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetSummary, summary},
		{SheetDaily, daily},
		{SheetLayers, layers},
		{SheetTop, exposureRows(a.Top)},
		{SheetBottom, exposureRows(a.Bottom)},
	}
	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("new sheet %s: %w", sh.name, err)
		}
		for r, row := range sh.rows {
			ref, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.name, ref, &row); err != nil {
				return fmt.Errorf("write %s row %d: %w", sh.name, r+1, err)
			}
		}
	}
	if len(daily) > 1 {
		if err := f.SetPanes(SheetDaily, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return fmt.Errorf("freeze header: %w", err)
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func exposureRows(xs []models.Exposure) [][]interface{} {
	rows := [][]interface{}{{"security", "name", "industry", "value", "forward_return"}}
	for _, x := range xs {
		rows = append(rows, []interface{}{x.Security, x.Name, x.Industry, cell(x.Value), cell(x.Return)})
	}
	return rows
}

func cell(n models.Number) interface{} {
	if !n.Valid() {
		return nil
	}
	return n.Float()
}
