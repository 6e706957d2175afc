package domain

// ReportCategory identifies which of the known quality-control report
// formats a file belongs to. Assigned once per file at classification
// time and never changed afterwards.
type ReportCategory string

const (
	CategoryProductionCumulative ReportCategory = "production_cumulative"
	CategoryCumulative           ReportCategory = "cumulative"
	CategoryAssembly             ReportCategory = "assembly"
	CategoryVisual               ReportCategory = "visual"
	CategoryIntegrity            ReportCategory = "integrity"
	CategoryShopfloor            ReportCategory = "shopfloor"
	CategoryUnknown              ReportCategory = "unknown"
)

// AllCategories lists every known category in a stable order. Used by
// callers that group parse results per category.
func AllCategories() []ReportCategory {
	return []ReportCategory{
		CategoryProductionCumulative,
		CategoryCumulative,
		CategoryAssembly,
		CategoryVisual,
		CategoryIntegrity,
		CategoryShopfloor,
		CategoryUnknown,
	}
}

// IsProduction reports whether files of this category carry production
// and dispatch volumes.
func (c ReportCategory) IsProduction() bool {
	return c == CategoryProductionCumulative || c == CategoryCumulative
}

// IsInspection reports whether files of this category carry per-stage
// inspection outcomes and defect counters.
func (c ReportCategory) IsInspection() bool {
	switch c {
	case CategoryAssembly, CategoryVisual, CategoryIntegrity, CategoryShopfloor:
		return true
	}
	return false
}

// StageCode identifies a discrete inspection step in the manufacturing
// flow.
type StageCode string

const (
	StageShopfloor StageCode = "SHOPFLOOR"
	StageAssembly  StageCode = "ASSEMBLY"
	StageVisual    StageCode = "VISUAL"
	StageIntegrity StageCode = "INTEGRITY"
	StageUnknown   StageCode = "UNKNOWN"
)

// StageForCategory maps an inspection report category to its stage.
func StageForCategory(c ReportCategory) StageCode {
	switch c {
	case CategoryShopfloor:
		return StageShopfloor
	case CategoryAssembly:
		return StageAssembly
	case CategoryVisual:
		return StageVisual
	case CategoryIntegrity:
		return StageIntegrity
	default:
		return StageUnknown
	}
}

// DisplayName returns the human-readable stage name used in reports.
func (s StageCode) DisplayName() string {
	switch s {
	case StageShopfloor:
		return "Shopfloor Rejection"
	case StageAssembly:
		return "Assembly Inspection"
	case StageVisual:
		return "Visual Inspection"
	case StageIntegrity:
		return "Balloon & Valve Integrity"
	default:
		return string(s)
	}
}

// DataSource records where a value or finding came from, down to the
// row and optionally the column. Every derived metric carries at least
// one of these.
type DataSource struct {
	FileName   string `json:"file_name"`
	SheetName  string `json:"sheet_name"`
	RowNumbers []int  `json:"row_numbers"`
	ColumnName string `json:"column_name,omitempty"`
}

// ExtractedRow is one data row recovered from a sheet: normalized
// column name to raw cell value, plus the 1-based source row index.
// Values are string, float64 or time.Time as produced by the
// extractor; absent cells are simply missing from the map.
type ExtractedRow struct {
	Cells     map[string]any `json:"cells"`
	SourceRow int            `json:"source_row"`
}

// ExtractedSheet is the tabular content recovered from one worksheet.
type ExtractedSheet struct {
	Name      string         `json:"name"`
	FileName  string         `json:"file_name"`
	HeaderRow int            `json:"header_row"`
	Headers   []string       `json:"headers"`
	Rows      []ExtractedRow `json:"rows"`
}

// RowCount returns the number of extracted data rows.
func (s *ExtractedSheet) RowCount() int {
	return len(s.Rows)
}

// FileParseResult is the per-file outcome of extraction. A file with
// zero usable sheets is marked unsuccessful but does not abort the
// batch.
type FileParseResult struct {
	FilePath string           `json:"file_path"`
	FileName string           `json:"file_name"`
	Category ReportCategory   `json:"category"`
	Sheets   []ExtractedSheet `json:"sheets"`
	Errors   []string         `json:"errors"`
	Success  bool             `json:"success"`
}

// SheetSummary is the compact per-sheet view stored in the
// post-extraction snapshot.
type SheetSummary struct {
	Name     string   `json:"name"`
	Headers  []string `json:"headers"`
	RowCount int      `json:"row_count"`
}

// FileSummary is the compact per-file view stored in the
// post-extraction snapshot.
type FileSummary struct {
	FileName string         `json:"file_name"`
	Success  bool           `json:"success"`
	Sheets   []SheetSummary `json:"sheets"`
	Errors   []string       `json:"errors"`
}

// Summarize collapses a parse result to its snapshot form.
func (r *FileParseResult) Summarize() FileSummary {
	summary := FileSummary{
		FileName: r.FileName,
		Success:  r.Success,
		Errors:   r.Errors,
	}
	for _, sheet := range r.Sheets {
		summary.Sheets = append(summary.Sheets, SheetSummary{
			Name:     sheet.Name,
			Headers:  sheet.Headers,
			RowCount: sheet.RowCount(),
		})
	}
	return summary
}
