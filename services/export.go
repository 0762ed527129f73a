package services

import (
	"bytes"
	"fmt"
	"strings"

	"aidirectory/models"

	"github.com/xuri/excelize/v2"
)

const favoritesSheet = "Favorites"

var favoritesHeader = []string{
	"Tool",
	"Category",
	"Access Level",
	"Rating",
	"Industries",
	"Website",
	"Price Type",
	"Saved At",
}

// ExportFavorites renders favorites as an XLSX workbook.
func ExportFavorites(favs []models.Favorite) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(favoritesSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	for i, h := range favoritesHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(favoritesSheet, cell, h); err != nil {
			return nil, err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(favoritesHeader))
	if err := f.SetCellStyle(favoritesSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, err
	}

	for r, fav := range favs {
		t := fav.Tool
		if t == nil {
			continue
		}
		category := ""
		if t.Category != nil {
			category = t.Category.Name
		}
		industries := make([]string, len(t.Industries))
		for i, ind := range t.Industries {
			industries[i] = ind.Name
		}
		row := []any{
			t.Name,
			category,
			string(t.AccessLevel),
			t.Rating,
			strings.Join(industries, ", "),
			t.WebsiteURL,
			t.PricePointType,
			fav.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(favoritesSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(favoritesSheet, "A", "A", 30)
	_ = f.SetColWidth(favoritesSheet, "E", "F", 35)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
