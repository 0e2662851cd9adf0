package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/xuri/excelize/v2"

	"grantlens/internal/normalize"
)

// GrantReader reads the raw grant extract from a CSV or XLSX file. Values
// come back untouched; the normalizer owns all parsing.
type GrantReader struct {
	path     string
	fileType string // "csv" or "xlsx"
	progress bool
}

// NewGrantReader creates a reader that dispatches on the file extension
func NewGrantReader(path string, progress bool) *GrantReader {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(path)) == ".csv" {
		fileType = "csv"
	}
	return &GrantReader{path: path, fileType: fileType, progress: progress}
}

// ReadGrants reads every data row of the extract
func (r *GrantReader) ReadGrants(ctx context.Context) ([]normalize.RawGrant, error) {
	start := time.Now()
	log.Printf("[GrantReader] reading %s file %s", r.fileType, r.path)

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("grant file not found: %s", r.path)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = readCSVRows(r.path)
	default:
		rows, err = readSheetRows(r.path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("grant file %s needs a header row and at least one data row", r.path)
	}

	columns, err := mapGrantColumns(rows[0])
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	if r.progress {
		bar = progressbar.NewOptions(len(rows)-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("reading grants"),
		)
	}

	raws := make([]normalize.RawGrant, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raws = append(raws, normalize.RawGrant{
			Row:        i + 2, // 1-based, after the header
			Grantee:    cell(row, columns.grantee),
			Program:    cell(row, columns.program),
			Amount:     cell(row, columns.amount),
			FiscalYear: cell(row, columns.fiscalYear),
			Geography:  cell(row, columns.geography),
			Class:      cell(row, columns.class),
		})
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	log.Printf("[GrantReader] read %d rows in %v", len(raws), time.Since(start))
	return raws, nil
}

// grantColumns holds the header positions of the expected columns
type grantColumns struct {
	grantee    int
	program    int
	amount     int
	fiscalYear int
	geography  int
	class      int
}

// headerAliases maps each logical column to the header spellings seen in
// real extracts
var headerAliases = map[string][]string{
	"grantee":     {"grantee", "grantee name", "organization", "recipient"},
	"program":     {"program", "program type", "program area", "project type"},
	"amount":      {"amount", "award amount", "award", "funding", "funding amount"},
	"fiscal_year": {"fiscal year", "fiscal_year", "fy", "year"},
	"geography":   {"geography", "state", "location", "state/territory"},
	"class":       {"grantee class", "grantee_class", "class", "organization type", "entity type"},
}

func mapGrantColumns(header []string) (grantColumns, error) {
	idx := func(logical string) int {
		for i, h := range header {
			h = normalizeHeader(h)
			for _, alias := range headerAliases[logical] {
				if h == alias {
					return i
				}
			}
		}
		return -1
	}

	columns := grantColumns{
		grantee:    idx("grantee"),
		program:    idx("program"),
		amount:     idx("amount"),
		fiscalYear: idx("fiscal_year"),
		geography:  idx("geography"),
		class:      idx("class"),
	}
	if columns.grantee < 0 || columns.amount < 0 || columns.fiscalYear < 0 || columns.geography < 0 {
		return columns, fmt.Errorf("grant file header is missing required columns (have: %s)",
			strings.Join(header, ", "))
	}
	return columns, nil
}

// normalizeHeader lowercases and strips a UTF-8 BOM so exports from
// spreadsheet tools match the alias table
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func readCSVRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv file: %w", err)
	}
	return rows, nil
}

func readSheetRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}
