package models

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportInventoryXLSX builds the printable count sheet for one
// warehouse: all rolls in display order plus a totals row.
func ExportInventoryXLSX(ctx context.Context, warehouse string) (*excelize.File, error) {
	rolls, totals, err := ListRollsWithTotals(ctx, warehouse, nil)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return nil, err
	}

	// Add headers
	f.SetCellValue(sheet, "A1", "RollID")
	f.SetCellValue(sheet, "B1", "MaterialType")
	f.SetCellValue(sheet, "C1", "Weight")
	f.SetCellValue(sheet, "D1", "Warehouse")
	f.SetCellValue(sheet, "E1", "SubLocation")
	f.SetCellValue(sheet, "F1", "CreatedAt")

	// Add data
	for i, r := range rolls {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, r.RollID)
		f.SetCellValue(sheet, "B"+row, r.MaterialType)
		f.SetCellValue(sheet, "C"+row, r.Weight)
		f.SetCellValue(sheet, "D"+row, string(r.Warehouse))
		f.SetCellValue(sheet, "E"+row, r.SubLocation)
		f.SetCellValue(sheet, "F"+row, r.CreatedAt.Format("2006-01-02 15:04"))
	}

	totalsRow := fmt.Sprint(len(rolls) + 3)
	f.SetCellValue(sheet, "A"+totalsRow, "Totals")
	f.SetCellValue(sheet, "B"+totalsRow, fmt.Sprintf("%d roll(s)", totals.Count))
	f.SetCellValue(sheet, "C"+totalsRow, totals.TotalWeight)

	return f, nil
}
