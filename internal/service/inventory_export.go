package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const inventorySheet = "Inventory"

var inventoryExportHeaders = []string{"Product ID", "Product", "Vendors", "Total", "Online", "Offline"}

// ExportAggregatedXLSX renders the platform-wide per-product stock as an
// xlsx workbook.
func ExportAggregatedXLSX(ctx context.Context, inventory InventoryService) ([]byte, error) {
	rows, err := inventory.Aggregated(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", inventorySheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range inventoryExportHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(inventorySheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, r := range rows {
		values := []interface{}{r.ProductID, r.ProductName, r.VendorCount, r.TotalStock, r.OnlineStock, r.OfflineStock}
		if err := f.SetSheetRow(inventorySheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
