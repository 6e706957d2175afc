// Package validation applies the per-category consistency rules to
// extracted rows, producing hard errors and auto-correctable warnings
// with full provenance, plus the batch-level abort decision.
package validation

import (
	"fmt"
	"log/slog"
	"strings"

	"qcpulse/internal/config"
	"qcpulse/internal/dataprocessing"
	"qcpulse/pkg/contracts/domain"
)

// Column patterns for the validation-side field resolution.
var (
	productionPatterns = []string{"PRODUCTION", "PRODUCED", "PROD QTY"}
	rejectionPatterns  = []string{"REJECTION", "REJECTED", "TOTAL REJ", "REJ QTY"}
	receivedPatterns   = []string{"RECEIVED", "REC QTY", "INPUT"}
	inspectedPatterns  = []string{"INSPECTED", "INSP QTY", "CHECKED"}
	acceptedPatterns   = []string{"ACCEPTED", "ACC QTY", "PASSED"}
	rejectedPatterns   = []string{"REJECTED", "REJ QTY", "FAILED"}
)

// inspectedTolerance is the allowed slack before an
// accepted+rejected/inspected mismatch is flagged.
const inspectedTolerance = 1

// RowValidator checks every extracted row of a batch against the
// category-specific consistency rules.
type RowValidator struct {
	cfg    config.PipelineConfig
	logger *slog.Logger
}

// NewRowValidator creates a validator with the given pipeline
// configuration.
func NewRowValidator(cfg config.PipelineConfig, logger *slog.Logger) *RowValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RowValidator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "row_validator")),
	}
}

// Validate inspects every row of every parsed file. A file that failed
// to parse contributes one error per parse failure, attributed to the
// whole file. Errors are collected, never short-circuiting.
func (v *RowValidator) Validate(parsed map[domain.ReportCategory][]*domain.FileParseResult) *domain.ValidationResult {
	result := &domain.ValidationResult{Valid: true}

	for category, results := range parsed {
		for _, parseResult := range results {
			if !parseResult.Success {
				for _, msg := range parseResult.Errors {
					addError(result, msg, domain.DataSource{
						FileName:   parseResult.FileName,
						SheetName:  "N/A",
						RowNumbers: []int{0},
					}, "")
				}
				continue
			}

			for _, sheet := range parseResult.Sheets {
				result.TotalRows += sheet.RowCount()

				for _, row := range sheet.Rows {
					switch {
					case category.IsProduction():
						v.validateProductionRow(sheet, row, result)
					case category.IsInspection():
						v.validateInspectionRow(sheet, row, result)
						v.validateDefectColumns(sheet, row, result)
					}
				}
			}
		}
	}

	result.ValidRows = result.TotalRows - result.ErrorRows
	if result.ValidRows < 0 {
		// Parse failures add errors without adding rows.
		result.ValidRows = 0
	}

	v.logger.Info("validation complete",
		slog.Int("total_rows", result.TotalRows),
		slog.Int("error_rows", result.ErrorRows),
		slog.Int("warnings", len(result.Warnings)),
		slog.Bool("valid", result.Valid))

	return result
}

// ShouldAbort reports whether the batch exceeds the configured
// error-row ratio. This is a blunt global circuit breaker, not a
// per-file one. A batch that yielded no rows at all aborts on its
// first error, which covers the case where every file failed to parse.
func (v *RowValidator) ShouldAbort(result *domain.ValidationResult) bool {
	if result.ErrorRows == 0 {
		return false
	}
	return float64(result.ErrorRows) > v.cfg.AbortErrorRatio*float64(result.TotalRows)
}

// validateProductionRow checks a production/cumulative row: rejection
// must not exceed production, and negative quantities are warned and
// later treated as absolute values.
func (v *RowValidator) validateProductionRow(sheet domain.ExtractedSheet, row domain.ExtractedRow, result *domain.ValidationResult) {
	_, prodValue := dataprocessing.FindColumnValue(sheet.Headers, row, productionPatterns)
	prodNum, prodOK := dataprocessing.NumericValue(prodValue)

	_, rejValue := dataprocessing.FindColumnValue(sheet.Headers, row, rejectionPatterns)
	rejNum, rejOK := dataprocessing.NumericValue(rejValue)

	if prodOK && rejOK && rejNum > prodNum {
		addError(result,
			fmt.Sprintf("Rejection (%v) exceeds production (%v)", rejNum, prodNum),
			rowSource(sheet, row, "REJECTION"),
			fmt.Sprint(rejNum))
	}

	if prodOK && prodNum < 0 {
		addWarning(result,
			fmt.Sprintf("Negative production value: %v (using absolute)", prodNum),
			rowSource(sheet, row, "PRODUCTION"),
			fmt.Sprint(prodNum))
	}

	if rejOK && rejNum < 0 {
		addWarning(result,
			fmt.Sprintf("Negative rejection value: %v (using absolute)", rejNum),
			rowSource(sheet, row, "REJECTION"),
			fmt.Sprint(rejNum))
	}
}

// validateInspectionRow checks an inspection row: accepted + rejected
// should match inspected within the tolerance, and rejected must not
// exceed received.
func (v *RowValidator) validateInspectionRow(sheet domain.ExtractedSheet, row domain.ExtractedRow, result *domain.ValidationResult) {
	_, receivedValue := dataprocessing.FindColumnValue(sheet.Headers, row, receivedPatterns)
	_, inspectedValue := dataprocessing.FindColumnValue(sheet.Headers, row, inspectedPatterns)
	_, acceptedValue := dataprocessing.FindColumnValue(sheet.Headers, row, acceptedPatterns)
	_, rejectedValue := dataprocessing.FindColumnValue(sheet.Headers, row, rejectedPatterns)

	receivedNum, receivedOK := dataprocessing.NumericValue(receivedValue)
	inspectedNum, inspectedOK := dataprocessing.NumericValue(inspectedValue)
	acceptedNum, acceptedOK := dataprocessing.NumericValue(acceptedValue)
	rejectedNum, rejectedOK := dataprocessing.NumericValue(rejectedValue)

	if acceptedOK && rejectedOK && inspectedOK {
		total := acceptedNum + rejectedNum
		if diff := total - inspectedNum; diff > inspectedTolerance || diff < -inspectedTolerance {
			addWarning(result,
				fmt.Sprintf("Accepted (%v) + Rejected (%v) = %v doesn't match Inspected (%v)",
					acceptedNum, rejectedNum, total, inspectedNum),
				rowSource(sheet, row, ""),
				"")
		}
	}

	if rejectedOK && receivedOK && rejectedNum > receivedNum {
		addError(result,
			fmt.Sprintf("Rejected (%v) exceeds received (%v)", rejectedNum, receivedNum),
			rowSource(sheet, row, "REJECTED"),
			fmt.Sprint(rejectedNum))
	}
}

// validateDefectColumns warns on any non-metadata column carrying a
// negative numeric value; the aggregator uses absolute values.
func (v *RowValidator) validateDefectColumns(sheet domain.ExtractedSheet, row domain.ExtractedRow, result *domain.ValidationResult) {
	for _, header := range sheet.Headers {
		value, ok := row.Cells[header]
		if !ok || v.isMetadataColumn(header) {
			continue
		}

		if num, numOK := dataprocessing.NumericValue(value); numOK && num < 0 {
			addWarning(result,
				fmt.Sprintf("Negative defect count: %v (using absolute)", value),
				rowSource(sheet, row, header),
				fmt.Sprint(value))
		}
	}
}

// isMetadataColumn filters columns that identify the row rather than
// count anything. The token list comes from the pipeline config.
func (v *RowValidator) isMetadataColumn(header string) bool {
	for _, token := range v.cfg.MetadataColumns {
		if strings.Contains(header, token) {
			return true
		}
	}
	return false
}

func rowSource(sheet domain.ExtractedSheet, row domain.ExtractedRow, column string) domain.DataSource {
	return domain.DataSource{
		FileName:   sheet.FileName,
		SheetName:  sheet.Name,
		RowNumbers: []int{row.SourceRow},
		ColumnName: column,
	}
}

func addError(result *domain.ValidationResult, message string, source domain.DataSource, value string) {
	result.Errors = append(result.Errors, domain.ValidationFinding{
		Message:  message,
		Severity: domain.SeverityError,
		Source:   source,
		Value:    value,
	})
	result.Valid = false
	result.ErrorRows++
}

func addWarning(result *domain.ValidationResult, message string, source domain.DataSource, value string) {
	result.Warnings = append(result.Warnings, domain.ValidationFinding{
		Message:  message,
		Severity: domain.SeverityWarning,
		Source:   source,
		Value:    value,
	})
}
