package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/studysync/pkg/models"
)

// ItemAdder schedules a new review item. Existing items are reported with created=false.
type ItemAdder interface {
	AddItem(ctx context.Context, ownerID, itemID string, kind models.ItemKind) (*models.ReviewItem, bool, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath     string // Path to the Excel or CSV file
	ItemIDColumn string // Column with the item id
	OwnerColumn  string // Column with the owner id, optional when DefaultOwner is set
	KindColumn   string // Column with the item kind (flashcard or question)
	DefaultOwner string // Owner used when the owner cell is empty
	SheetName    string // Name of the sheet to import; the first sheet when empty
	StartRow     int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		ItemIDColumn: "A",
		OwnerColumn:  "B",
		KindColumn:   "C",
		StartRow:     2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int      `json:"totalProcessed"`
	Created        int      `json:"created"`
	Skipped        int      `json:"skipped"`
	Errors         []string `json:"errors"`
}

// ImportItems imports review items from an Excel or CSV file
func ImportItems(ctx context.Context, adder ItemAdder, config ImportConfig) (*ImportResult, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		rows, err = readCSV(config.FilePath)
	} else {
		rows, err = readExcel(config.FilePath, config.SheetName)
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		rowNum := i + 1
		if rowNum < config.StartRow || isBlank(row) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		result.TotalProcessed++
		if err := processRow(ctx, adder, config, row, result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}
	return result, nil
}

// readExcel returns every row of the sheet
func readExcel(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return rows, nil
}

// readCSV returns every record of the file
func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// processRow creates the item described by one row
func processRow(ctx context.Context, adder ItemAdder, config ImportConfig, row []string, result *ImportResult) error {
	itemID := cell(row, config.ItemIDColumn)
	owner := cell(row, config.OwnerColumn)
	if owner == "" {
		owner = config.DefaultOwner
	}
	kind := models.ItemKind(strings.ToLower(cell(row, config.KindColumn)))

	if itemID == "" {
		return fmt.Errorf("item id cannot be empty")
	}
	if owner == "" {
		return fmt.Errorf("owner cannot be empty")
	}

	item, created, err := adder.AddItem(ctx, owner, itemID, kind)
	if err != nil {
		return err
	}
	if !created {
		if item.OwnerID != owner {
			return fmt.Errorf("item %s already belongs to another owner", itemID)
		}
		result.Skipped++
		return nil
	}
	result.Created++
	return nil
}

// cell returns the trimmed value at an Excel column letter, or "" when out of range
func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
