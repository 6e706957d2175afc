package dataprocessing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcpulse/internal/config"
	"qcpulse/pkg/contracts/domain"
)

func testRow(sourceRow int, cells map[string]any) domain.ExtractedRow {
	return domain.ExtractedRow{Cells: cells, SourceRow: sourceRow}
}

func productionSheet(rows ...domain.ExtractedRow) domain.ExtractedSheet {
	return domain.ExtractedSheet{
		Name:      "Sheet1",
		FileName:  "YEARLY PRODUCTION COMMULATIVE 2025-26.xlsx",
		HeaderRow: 1,
		Headers:   []string{"DATE", "PRODUCTION QTY", "DISPATCH QTY"},
		Rows:      rows,
	}
}

func parsedBatch(category domain.ReportCategory, sheets ...domain.ExtractedSheet) map[domain.ReportCategory][]*domain.FileParseResult {
	result := &domain.FileParseResult{
		FileName: sheets[0].FileName,
		Category: category,
		Sheets:   sheets,
		Success:  true,
	}
	return map[domain.ReportCategory][]*domain.FileParseResult{category: {result}}
}

func TestProcessParsed_FoldsProductionByMonth(t *testing.T) {
	agg := NewAggregator(config.Default().Pipeline, nil)

	agg.ProcessParsed(parsedBatch(domain.CategoryProductionCumulative, productionSheet(
		testRow(2, map[string]any{"DATE": "2025-04-10", "PRODUCTION QTY": 600.0, "DISPATCH QTY": 500.0}),
		testRow(3, map[string]any{"DATE": "2025-04-20", "PRODUCTION QTY": 400.0, "DISPATCH QTY": 300.0}),
		testRow(4, map[string]any{"DATE": "2025-05-05", "PRODUCTION QTY": 900.0}),
	)))

	require.Len(t, agg.Production, 2)
	assert.Equal(t, 1000.0, agg.Production["2025-04"].Produced)
	assert.Equal(t, 800.0, agg.Production["2025-04"].Dispatched)
	assert.Equal(t, 900.0, agg.Production["2025-05"].Produced)
	assert.Equal(t, 0.0, agg.Production["2025-05"].Dispatched)
	assert.Len(t, agg.Sources, 3)
}

func TestProcessParsed_SkipsProductionRowsWithoutMonth(t *testing.T) {
	agg := NewAggregator(config.Default().Pipeline, nil)

	agg.ProcessParsed(parsedBatch(domain.CategoryProductionCumulative, productionSheet(
		testRow(2, map[string]any{"PRODUCTION QTY": 600.0}),
		testRow(3, map[string]any{"DATE": "TOTAL", "PRODUCTION QTY": 400.0}),
	)))

	assert.Empty(t, agg.Production)
}

func TestProcessParsed_InspectionMonthFallbackChain(t *testing.T) {
	agg := NewAggregator(config.Default().Pipeline, nil)

	headers := []string{"DATE", "INSPECTED QTY", "REJECTED QTY"}
	withDate := domain.ExtractedSheet{
		Name: "JULY 25", FileName: "ASSEMBLY REJECTION REPORT.xlsx", HeaderRow: 1,
		Headers: headers,
		Rows: []domain.ExtractedRow{
			testRow(2, map[string]any{"DATE": "2025-06-01", "INSPECTED QTY": 100.0, "REJECTED QTY": 5.0}),
			testRow(3, map[string]any{"INSPECTED QTY": 200.0, "REJECTED QTY": 8.0}),
		},
	}
	noMonthAnywhere := domain.ExtractedSheet{
		Name: "Sheet2", FileName: "ASSEMBLY REJECTION REPORT.xlsx", HeaderRow: 1,
		Headers: []string{"INSPECTED QTY", "REJECTED QTY"},
		Rows: []domain.ExtractedRow{
			testRow(2, map[string]any{"INSPECTED QTY": 50.0, "REJECTED QTY": 2.0}),
		},
	}

	agg.ProcessParsed(parsedBatch(domain.CategoryAssembly, withDate, noMonthAnywhere))

	months := agg.Stages[domain.StageAssembly]
	require.NotNil(t, months)
	// Row date wins, then the sheet-name month, then the configured
	// fallback.
	assert.Equal(t, 100.0, months["2025-06"].Inspected)
	assert.Equal(t, 200.0, months["2025-07"].Inspected)
	assert.Equal(t, 50.0, months["2025-04"].Inspected)
}

func TestProcessParsed_NegativeCountsFoldAsAbsolute(t *testing.T) {
	agg := NewAggregator(config.Default().Pipeline, nil)

	agg.ProcessParsed(parsedBatch(domain.CategoryShopfloor, domain.ExtractedSheet{
		Name: "APRIL 25", FileName: "SHOPFLOOR REJECTION REPORT.xlsx", HeaderRow: 1,
		Headers: []string{"RECEIVED QTY", "REJECTED QTY"},
		Rows: []domain.ExtractedRow{
			testRow(2, map[string]any{"RECEIVED QTY": 500.0, "REJECTED QTY": -12.0}),
		},
	}))

	cell := agg.Stages[domain.StageShopfloor]["2025-04"]
	require.NotNil(t, cell)
	assert.Equal(t, 12.0, cell.Rejected)
}

func TestCollectDefects(t *testing.T) {
	agg := NewAggregator(config.Default().Pipeline, nil)

	agg.ProcessParsed(parsedBatch(domain.CategoryVisual, domain.ExtractedSheet{
		Name: "MAY 25", FileName: "VISUAL INSPECTION REPORT.xlsx", HeaderRow: 1,
		Headers: []string{"INSPECTED QTY", "SURFACE COAG", "PIN HOLE", "LEAKAGE"},
		Rows: []domain.ExtractedRow{
			testRow(2, map[string]any{
				"INSPECTED QTY": 100.0,
				"SURFACE COAG":  4.0,
				"PIN HOLE":      3.0,
				"LEAKAGE":       0.0,
			}),
			testRow(3, map[string]any{
				"INSPECTED QTY": 100.0,
				"PIN HOLE":      2.0,
			}),
		},
	}))

	// "SURFACE COAG" matches COAG first in vocabulary order even though
	// SURFACE appears first in the column name.
	assert.Equal(t, 4.0, agg.Defects["COAG"]["2025-05"])
	assert.Equal(t, 5.0, agg.Defects["PIN HOLE"]["2025-05"])

	// Zero counts contribute nothing.
	_, present := agg.Defects["LEAKAGE"]
	assert.False(t, present)
}

func TestCollectDefects_RecordsColumnProvenance(t *testing.T) {
	agg := NewAggregator(config.Default().Pipeline, nil)

	agg.AddDefect("COAG", "2025-04", 3, domain.DataSource{
		FileName:   "VISUAL INSPECTION REPORT.xlsx",
		SheetName:  "APRIL 25",
		RowNumbers: []int{4},
		ColumnName: "COAGULATION",
	})

	require.Len(t, agg.Sources, 1)
	assert.Equal(t, "COAGULATION", agg.Sources[0].ColumnName)
}

func TestBoundedSources_CapsAtConfiguredLimit(t *testing.T) {
	cfg := config.Default().Pipeline
	cfg.MaxSourcesPerMetric = 10
	agg := NewAggregator(cfg, nil)

	for i := 0; i < 25; i++ {
		agg.AddProduction("2025-04", 10, 5, domain.DataSource{
			FileName:   "YEARLY PRODUCTION COMMULATIVE 2025-26.xlsx",
			SheetName:  "Sheet1",
			RowNumbers: []int{i + 2},
		})
	}

	assert.Len(t, agg.Sources, 25)
	assert.Len(t, agg.BoundedSources(), 10)
	assert.Equal(t, []int{2}, agg.BoundedSources()[0].RowNumbers)
}

func TestAddStageData_AccumulatesAcrossCalls(t *testing.T) {
	agg := NewAggregator(config.Default().Pipeline, nil)

	for i := 0; i < 3; i++ {
		agg.AddStageData(domain.StageAssembly, "2025-04", 100, 90, 85, 5, domain.DataSource{
			FileName:   "ASSEMBLY REJECTION REPORT.xlsx",
			SheetName:  "APRIL 25",
			RowNumbers: []int{i + 2},
		})
	}

	cell := agg.Stages[domain.StageAssembly]["2025-04"]
	require.NotNil(t, cell)
	assert.Equal(t, 300.0, cell.Received)
	assert.Equal(t, 270.0, cell.Inspected)
	assert.Equal(t, 255.0, cell.Accepted)
	assert.Equal(t, 15.0, cell.Rejected)
}

func TestSafeNumeric(t *testing.T) {
	tests := []struct {
		value any
		want  float64
	}{
		{42.0, 42},
		{-42.0, 42},
		{"1,250", 1250},
		{"  7 ", 7},
		{"N/A", 0},
		{nil, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.value), func(t *testing.T) {
			assert.Equal(t, tt.want, safeNumeric(tt.value))
		})
	}
}
