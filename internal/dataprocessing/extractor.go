package dataprocessing

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"qcpulse/internal/config"
	"qcpulse/pkg/contracts/domain"
)

// excelErrorSentinels are formula-error values that normalize to
// absent cells.
var excelErrorSentinels = map[string]bool{
	"#DIV/0!": true,
	"#N/A":    true,
	"#VALUE!": true,
	"#REF!":   true,
	"#NAME?":  true,
}

// Extractor converts spreadsheet files into typed row records with
// provenance. One instance is safe for reuse across files; it holds no
// per-file state.
type Extractor struct {
	classifier *Classifier
	cfg        config.PipelineConfig
	logger     *slog.Logger
}

// NewExtractor creates an extractor with the given pipeline
// configuration.
func NewExtractor(cfg config.PipelineConfig, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		classifier: NewClassifier(cfg.CategoryPatterns),
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "extractor")),
	}
}

// ExtractFile parses one spreadsheet into a FileParseResult. Fatal
// problems (unreadable file, no usable sheets) are recorded on the
// result rather than returned; a broken file never aborts the batch.
func (e *Extractor) ExtractFile(filePath string) *domain.FileParseResult {
	result := &domain.FileParseResult{
		FilePath: filePath,
		FileName: filepath.Base(filePath),
	}
	result.Category = e.classifier.Classify(result.FileName)

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to parse file: %v", err))
		return result
	}
	defer f.Close()

	for _, sheetName := range f.GetSheetList() {
		if e.shouldSkipSheet(sheetName) {
			continue
		}

		sheet, err := e.extractSheet(f, sheetName, result.FileName)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to parse sheet %s: %v", sheetName, err))
			continue
		}
		if sheet != nil {
			result.Sheets = append(result.Sheets, *sheet)
		}
	}

	if len(result.Sheets) > 0 {
		result.Success = true
	} else {
		result.Errors = append(result.Errors, "No valid data sheets found")
	}

	e.logger.Info("file extracted",
		slog.String("file", result.FileName),
		slog.String("category", string(result.Category)),
		slog.Int("sheets", len(result.Sheets)),
		slog.Bool("success", result.Success))

	return result
}

// ExtractFiles parses a batch of files and groups the results by
// detected category.
func (e *Extractor) ExtractFiles(filePaths []string) map[domain.ReportCategory][]*domain.FileParseResult {
	results := make(map[domain.ReportCategory][]*domain.FileParseResult)
	for _, category := range domain.AllCategories() {
		results[category] = nil
	}

	for _, path := range filePaths {
		result := e.ExtractFile(path)
		results[result.Category] = append(results[result.Category], result)
	}

	return results
}

// shouldSkipSheet filters out chart/graph/summary sheets, which hold
// no tabular data.
func (e *Extractor) shouldSkipSheet(name string) bool {
	nameLower := strings.ToLower(name)
	for _, token := range e.cfg.SkipSheetTokens {
		if strings.Contains(nameLower, token) {
			return true
		}
	}
	return false
}

// extractSheet converts one worksheet into an ExtractedSheet, or nil
// when the sheet yields no data rows.
func (e *Extractor) extractSheet(f *excelize.File, sheetName, fileName string) (*domain.ExtractedSheet, error) {
	grid, err := e.loadGrid(f, sheetName)
	if err != nil {
		return nil, err
	}
	if len(grid) < 2 {
		return nil, nil
	}

	headerRow := e.findHeaderRow(grid)
	headers := e.materializeHeaders(grid, headerRow)

	rows := e.extractRows(grid, headers, headerRow)
	if len(rows) == 0 {
		return nil, nil
	}

	return &domain.ExtractedSheet{
		Name:      sheetName,
		FileName:  fileName,
		HeaderRow: headerRow,
		Headers:   headers,
		Rows:      rows,
	}, nil
}

// loadGrid reads the sheet into a rectangular grid of typed values,
// with every merged range dissolved and filled with its top-left value
// so row logic never sees the holes merging leaves behind.
func (e *Extractor) loadGrid(f *excelize.File, sheetName string) ([][]any, error) {
	raw, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	width := 0
	for _, row := range raw {
		if len(row) > width {
			width = len(row)
		}
	}

	grid := make([][]any, len(raw))
	for i, row := range raw {
		grid[i] = make([]any, width)
		for j := range row {
			grid[i][j] = typedValue(row[j])
		}
	}

	merges, err := f.GetMergeCells(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged ranges: %w", err)
	}

	for _, merge := range merges {
		startCol, startRow, err := excelize.CellNameToCoordinates(merge.GetStartAxis())
		if err != nil {
			continue
		}
		endCol, endRow, err := excelize.CellNameToCoordinates(merge.GetEndAxis())
		if err != nil {
			continue
		}

		value := typedValue(merge.GetCellValue())
		for r := startRow; r <= endRow && r <= len(grid); r++ {
			for c := startCol; c <= endCol && c <= width; c++ {
				grid[r-1][c-1] = value
			}
		}
	}

	return grid, nil
}

// typedValue maps a raw cell string to its logical type: nil for
// blank, float64 for numbers, string otherwise. Excel stores numbers
// and date serials the same way, so dates stay numeric here and are
// resolved by NormalizeDate downstream.
func typedValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n
	}
	return trimmed
}

// scoreHeaderRow rates how header-like a row is: +10 per cell
// containing a known header keyword, +2 per non-empty string cell, -1
// per non-empty numeric cell, normalized by the non-empty count so
// short decorative rows cannot outscore real headers.
func (e *Extractor) scoreHeaderRow(row []any) float64 {
	score := 0.0
	nonEmpty := 0

	for _, cell := range row {
		if cell == nil {
			continue
		}
		if s, ok := cell.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}

		nonEmpty++
		cellText := strings.ToLower(strings.TrimSpace(fmt.Sprint(cell)))

		for _, keyword := range e.cfg.HeaderKeywords {
			if strings.Contains(cellText, keyword) {
				score += 10
				break
			}
		}

		switch cell.(type) {
		case string:
			score += 2
		case float64:
			score--
		}
	}

	if nonEmpty > 0 {
		score = score / float64(nonEmpty) * float64(min(nonEmpty, 10))
	}

	return score
}

// findHeaderRow scans the top of the grid for the best-scoring row.
// Ties favor the earlier row; a scan where everything scores 0 falls
// back to row 1. Returns a 1-based row index.
func (e *Extractor) findHeaderRow(grid [][]any) int {
	bestScore := 0.0
	bestRow := 0

	limit := min(e.cfg.MaxHeaderScanRows, len(grid))
	for i := 0; i < limit; i++ {
		score := e.scoreHeaderRow(grid[i])
		if score > bestScore {
			bestScore = score
			bestRow = i + 1
		}
	}

	if bestRow == 0 {
		bestRow = 1
	}
	return bestRow
}

// materializeHeaders turns the header row into normalized column
// names. Empty header cells get a positional placeholder; trailing
// placeholder columns with no data in the next 10 rows are dropped to
// protect against decorative trailing columns.
func (e *Extractor) materializeHeaders(grid [][]any, headerRow int) []string {
	headerCells := grid[headerRow-1]

	headers := make([]string, 0, len(headerCells))
	seen := make(map[string]int, len(headerCells))
	for col, cell := range headerCells {
		text := ""
		if cell != nil {
			text = strings.TrimSpace(fmt.Sprint(cell))
		}
		name := fmt.Sprintf("COL_%d", col+1)
		if text != "" {
			name = strings.ReplaceAll(strings.ToUpper(text), "\n", " ")
		}
		// Duplicate names are disambiguated by position so rows keep
		// one value per column.
		seen[name]++
		if count := seen[name]; count > 1 {
			name = fmt.Sprintf("%s_%d", name, count)
		}
		headers = append(headers, name)
	}

	for len(headers) > 0 && strings.HasPrefix(headers[len(headers)-1], "COL_") {
		col := len(headers) - 1
		hasData := false
		for r := headerRow; r < min(headerRow+9, len(grid)); r++ {
			if col < len(grid[r]) && grid[r][col] != nil {
				hasData = true
				break
			}
		}
		if hasData {
			break
		}
		headers = headers[:col]
	}

	return headers
}

// extractRows walks the rows below the header, cleaning values and
// dropping fully-blank rows. A run of more than 10 blank rows stops
// the scan, which keeps footer and notes regions out of the data.
func (e *Extractor) extractRows(grid [][]any, headers []string, headerRow int) []domain.ExtractedRow {
	var rows []domain.ExtractedRow
	emptyRun := 0

	for r := headerRow; r < len(grid); r++ {
		cells := make(map[string]any, len(headers))
		hasValue := false

		for col, header := range headers {
			var value any
			if col < len(grid[r]) {
				value = cleanValue(grid[r][col])
			}
			if value != nil {
				cells[header] = value
				hasValue = true
			}
		}

		if hasValue {
			rows = append(rows, domain.ExtractedRow{
				Cells:     cells,
				SourceRow: r + 1,
			})
			emptyRun = 0
		} else {
			emptyRun++
			if emptyRun > 10 {
				break
			}
		}
	}

	return rows
}

// cleanValue normalizes Excel error sentinels and blank strings to
// absent. Numbers pass through with their sign intact; sign
// normalization belongs to validation.
func cleanValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" || excelErrorSentinels[trimmed] {
			return nil
		}
		return trimmed
	default:
		return value
	}
}
