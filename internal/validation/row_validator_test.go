package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcpulse/internal/config"
	"qcpulse/pkg/contracts/domain"
)

func newTestValidator(t *testing.T) *RowValidator {
	t.Helper()
	return NewRowValidator(config.Default().Pipeline, nil)
}

func testRow(sourceRow int, cells map[string]any) domain.ExtractedRow {
	return domain.ExtractedRow{Cells: cells, SourceRow: sourceRow}
}

func parsedBatch(category domain.ReportCategory, headers []string, rows ...domain.ExtractedRow) map[domain.ReportCategory][]*domain.FileParseResult {
	return map[domain.ReportCategory][]*domain.FileParseResult{
		category: {{
			FileName: "report.xlsx",
			Category: category,
			Success:  true,
			Sheets: []domain.ExtractedSheet{{
				Name:      "APRIL 25",
				FileName:  "report.xlsx",
				HeaderRow: 1,
				Headers:   headers,
				Rows:      rows,
			}},
		}},
	}
}

func TestValidate_RejectionExceedsProduction(t *testing.T) {
	headers := []string{"DATE", "PRODUCTION QTY", "REJECTION QTY"}
	result := newTestValidator(t).Validate(parsedBatch(domain.CategoryProductionCumulative, headers,
		testRow(2, map[string]any{"PRODUCTION QTY": 1000.0, "REJECTION QTY": 1200.0}),
		testRow(3, map[string]any{"PRODUCTION QTY": 1000.0, "REJECTION QTY": 900.0}),
	))

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "Rejection (1200) exceeds production (1000)")
	assert.Equal(t, []int{2}, result.Errors[0].Source.RowNumbers)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 1, result.ErrorRows)
	assert.Equal(t, 1, result.ValidRows)
}

func TestValidate_NegativeProductionWarns(t *testing.T) {
	headers := []string{"PRODUCTION QTY", "REJECTION QTY"}
	result := newTestValidator(t).Validate(parsedBatch(domain.CategoryCumulative, headers,
		testRow(2, map[string]any{"PRODUCTION QTY": -500.0, "REJECTION QTY": -600.0}),
	))

	// Sign anomalies are auto-corrected downstream, so the row stays
	// valid.
	assert.True(t, result.Valid)
	assert.Zero(t, result.ErrorRows)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0].Message, "Negative production value: -500 (using absolute)")
	assert.Contains(t, result.Warnings[1].Message, "Negative rejection value: -600 (using absolute)")
}

func TestValidate_InspectionCountMismatchWarns(t *testing.T) {
	headers := []string{"RECEIVED QTY", "INSPECTED QTY", "ACCEPTED QTY", "REJECTED QTY"}
	result := newTestValidator(t).Validate(parsedBatch(domain.CategoryAssembly, headers,
		testRow(2, map[string]any{
			"RECEIVED QTY": 100.0, "INSPECTED QTY": 100.0,
			"ACCEPTED QTY": 60.0, "REJECTED QTY": 35.0,
		}),
	))

	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "Accepted (60) + Rejected (35) = 95 doesn't match Inspected (100)")
}

func TestValidate_InspectionCountWithinTolerance(t *testing.T) {
	headers := []string{"INSPECTED QTY", "ACCEPTED QTY", "REJECTED QTY"}
	result := newTestValidator(t).Validate(parsedBatch(domain.CategoryVisual, headers,
		testRow(2, map[string]any{"INSPECTED QTY": 100.0, "ACCEPTED QTY": 95.0, "REJECTED QTY": 4.0}),
	))

	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidate_RejectedExceedsReceived(t *testing.T) {
	headers := []string{"RECEIVED QTY", "REJECTED QTY"}
	result := newTestValidator(t).Validate(parsedBatch(domain.CategoryShopfloor, headers,
		testRow(5, map[string]any{"RECEIVED QTY": 40.0, "REJECTED QTY": 50.0}),
	))

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "Rejected (50) exceeds received (40)")
	assert.Equal(t, []int{5}, result.Errors[0].Source.RowNumbers)
}

func TestValidate_NegativeDefectCountWarns(t *testing.T) {
	headers := []string{"S.NO", "INSPECTED QTY", "COAG"}
	result := newTestValidator(t).Validate(parsedBatch(domain.CategoryVisual, headers,
		testRow(2, map[string]any{"S.NO": -1.0, "INSPECTED QTY": 100.0, "COAG": -3.0}),
	))

	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "Negative defect count: -3")
	assert.Equal(t, "COAG", result.Warnings[0].Source.ColumnName)
}

func TestValidate_ParseFailuresBecomeErrors(t *testing.T) {
	parsed := map[domain.ReportCategory][]*domain.FileParseResult{
		domain.CategoryUnknown: {{
			FileName: "broken.xlsx",
			Category: domain.CategoryUnknown,
			Success:  false,
			Errors:   []string{"Failed to parse file: zip: not a valid zip file"},
		}},
	}

	result := newTestValidator(t).Validate(parsed)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "N/A", result.Errors[0].Source.SheetName)
	assert.Equal(t, []int{0}, result.Errors[0].Source.RowNumbers)
	assert.Equal(t, domain.SeverityError, result.Errors[0].Severity)
	assert.Zero(t, result.TotalRows)
	assert.Zero(t, result.ValidRows)
}

func TestShouldAbort_BatchWithOnlyParseFailures(t *testing.T) {
	validator := newTestValidator(t)

	parsed := map[domain.ReportCategory][]*domain.FileParseResult{
		domain.CategoryUnknown: {{
			FileName: "broken.xlsx",
			Category: domain.CategoryUnknown,
			Success:  false,
			Errors:   []string{"Failed to parse file: zip: not a valid zip file"},
		}},
	}

	result := validator.Validate(parsed)

	// No rows were extracted, but the batch still carries errors and
	// must not sail through to computation.
	assert.Zero(t, result.TotalRows)
	assert.Equal(t, 1, result.ErrorRows)
	assert.True(t, validator.ShouldAbort(result))
}

func TestValidate_EmptyBatch(t *testing.T) {
	result := newTestValidator(t).Validate(map[domain.ReportCategory][]*domain.FileParseResult{})

	assert.True(t, result.Valid)
	assert.Zero(t, result.TotalRows)
	assert.Empty(t, result.Errors)
}

func TestShouldAbort(t *testing.T) {
	validator := newTestValidator(t)

	tests := []struct {
		name      string
		totalRows int
		errorRows int
		want      bool
	}{
		{"no errors never aborts", 0, 0, false},
		{"clean batch keeps going", 100, 0, false},
		{"below half keeps going", 100, 50, false},
		{"over half aborts", 100, 51, true},
		{"all errors aborts", 10, 10, true},
		{"errors without rows abort", 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := &domain.ValidationResult{
				TotalRows: tt.totalRows,
				ErrorRows: tt.errorRows,
			}
			assert.Equal(t, tt.want, validator.ShouldAbort(result))
		})
	}
}
