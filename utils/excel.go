package utils

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"cafeapi/model"

	"github.com/xuri/excelize/v2"
)

// CafeColumns is the header row written by WriteCafes.
var CafeColumns = []string{
	"id", "name", "map_url", "img_url", "location", "seats",
	"has_sockets", "has_toilet", "has_wifi", "can_take_calls", "coffee_price",
}

// headerAliases maps form-style headers onto column names.
var headerAliases = map[string]string{
	"loc":     "location",
	"sockets": "has_sockets",
	"toilet":  "has_toilet",
	"wifi":    "has_wifi",
	"calls":   "can_take_calls",
}

// SheetRow is one data row keyed by normalized header. Cells that are
// blank or missing are absent from Values.
type SheetRow struct {
	Number int
	Values map[string]string
}

func (r SheetRow) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// ReadSheetRows parses the first sheet of an .xlsx workbook. The first row
// must be a header.
func ReadSheetRows(r io.Reader) ([]SheetRow, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer xl.Close()

	sheets := xl.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := xl.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, errors.New("Excel must have a header row and at least one row of data")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		if alias, ok := headerAliases[h]; ok {
			h = alias
		}
		header[i] = h
	}

	var out []SheetRow
	for i, row := range rows[1:] {
		values := make(map[string]string, len(row))
		for col, cell := range row {
			if col >= len(header) || header[col] == "" || cell == "" {
				continue
			}
			values[header[col]] = cell
		}
		if len(values) == 0 {
			continue
		}
		out = append(out, SheetRow{Number: i + 2, Values: values})
	}
	return out, nil
}

// WriteCafes renders cafes into a single-sheet workbook.
func WriteCafes(cafes []model.Cafe) (*excelize.File, error) {
	xl := excelize.NewFile()
	sheet := xl.GetSheetName(0)

	header := make([]interface{}, len(CafeColumns))
	for i, c := range CafeColumns {
		header[i] = c
	}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		xl.Close()
		return nil, err
	}

	for i, c := range cafes {
		price := ""
		if c.CoffeePrice != nil {
			price = *c.CoffeePrice
		}
		row := []interface{}{
			c.ID, c.Name, c.MapURL, c.ImgURL, c.Location, c.Seats,
			c.HasSockets, c.HasToilet, c.HasWifi, c.CanTakeCalls, price,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			xl.Close()
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			xl.Close()
			return nil, err
		}
	}
	return xl, nil
}
