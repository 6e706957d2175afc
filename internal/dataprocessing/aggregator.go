package dataprocessing

import (
	"log/slog"
	"strings"

	"qcpulse/internal/config"
	"qcpulse/pkg/contracts/domain"
)

// Column patterns for the aggregation-side field resolution. These are
// looser than the validator's: aggregation tolerates more spellings
// because a missed column only costs a zero contribution.
var (
	producedPatterns   = []string{"PRODUCTION", "PRODUCED", "PROD QTY"}
	dispatchedPatterns = []string{"DISPATCH", "DISPATCHED"}
	receivedPatterns   = []string{"RECEIVED", "REC", "INPUT"}
	inspectedPatterns  = []string{"INSPECTED", "INSP", "CHECKED", "TOTAL"}
	acceptedPatterns   = []string{"ACCEPTED", "ACC", "PASSED", "OK"}
	rejectedPatterns   = []string{"REJECTED", "REJ", "FAILED", "NG"}
)

// ProductionTotals is the per-month production accumulator cell.
type ProductionTotals struct {
	Produced   float64
	Dispatched float64
}

// StageTotals is the per-stage per-month inspection accumulator cell.
type StageTotals struct {
	Received  float64
	Inspected float64
	Accepted  float64
	Rejected  float64
}

// Aggregator folds validated rows into the three time-indexed
// accumulators. One instance belongs to exactly one pipeline run; it
// is never shared across batches and is discarded after computation.
type Aggregator struct {
	Production map[string]*ProductionTotals
	Stages     map[domain.StageCode]map[string]*StageTotals
	Defects    map[string]map[string]float64
	Sources    []domain.DataSource

	cfg    config.PipelineConfig
	logger *slog.Logger
}

// NewAggregator creates an empty aggregator for one pipeline run.
func NewAggregator(cfg config.PipelineConfig, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		Production: make(map[string]*ProductionTotals),
		Stages:     make(map[domain.StageCode]map[string]*StageTotals),
		Defects:    make(map[string]map[string]float64),
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "aggregator")),
	}
}

// AddProduction accumulates one month's production contribution.
func (a *Aggregator) AddProduction(month string, produced, dispatched float64, source domain.DataSource) {
	cell, ok := a.Production[month]
	if !ok {
		cell = &ProductionTotals{}
		a.Production[month] = cell
	}
	cell.Produced += produced
	cell.Dispatched += dispatched
	a.Sources = append(a.Sources, source)
}

// AddStageData accumulates one inspection row's contribution.
func (a *Aggregator) AddStageData(stage domain.StageCode, month string, received, inspected, accepted, rejected float64, source domain.DataSource) {
	months, ok := a.Stages[stage]
	if !ok {
		months = make(map[string]*StageTotals)
		a.Stages[stage] = months
	}
	cell, ok := months[month]
	if !ok {
		cell = &StageTotals{}
		months[month] = cell
	}
	cell.Received += received
	cell.Inspected += inspected
	cell.Accepted += accepted
	cell.Rejected += rejected
	a.Sources = append(a.Sources, source)
}

// AddDefect accumulates one defect counter contribution.
func (a *Aggregator) AddDefect(defectCode, month string, count float64, source domain.DataSource) {
	months, ok := a.Defects[defectCode]
	if !ok {
		months = make(map[string]float64)
		a.Defects[defectCode] = months
	}
	months[month] += count
	a.Sources = append(a.Sources, source)
}

// ProcessParsed folds every successfully parsed file into the
// accumulators: production categories feed the production totals,
// inspection categories feed the stage metrics and defect counters.
func (a *Aggregator) ProcessParsed(parsed map[domain.ReportCategory][]*domain.FileParseResult) {
	for _, category := range []domain.ReportCategory{domain.CategoryProductionCumulative, domain.CategoryCumulative} {
		a.processProduction(parsed[category])
	}
	for _, category := range []domain.ReportCategory{domain.CategoryShopfloor, domain.CategoryAssembly, domain.CategoryVisual, domain.CategoryIntegrity} {
		a.processInspection(parsed[category], domain.StageForCategory(category))
	}

	a.logger.Info("aggregation complete",
		slog.Int("production_months", len(a.Production)),
		slog.Int("stages", len(a.Stages)),
		slog.Int("defect_codes", len(a.Defects)))
}

func (a *Aggregator) processProduction(results []*domain.FileParseResult) {
	for _, result := range results {
		for _, sheet := range result.Sheets {
			for _, row := range sheet.Rows {
				month := MonthKeyFromRow(sheet.Headers, row)
				if month == "" {
					continue
				}

				_, produced := FindColumnValue(sheet.Headers, row, producedPatterns)
				_, dispatched := FindColumnValue(sheet.Headers, row, dispatchedPatterns)

				a.AddProduction(month, safeNumeric(produced), safeNumeric(dispatched), domain.DataSource{
					FileName:   sheet.FileName,
					SheetName:  sheet.Name,
					RowNumbers: []int{row.SourceRow},
				})
			}
		}
	}
}

func (a *Aggregator) processInspection(results []*domain.FileParseResult, stage domain.StageCode) {
	for _, result := range results {
		for _, sheet := range result.Sheets {
			sheetMonth := MonthKeyFromSheetName(sheet.Name)

			for _, row := range sheet.Rows {
				month := MonthKeyFromRow(sheet.Headers, row)
				if month == "" {
					month = sheetMonth
				}
				if month == "" {
					month = a.cfg.FallbackMonth
				}

				_, received := FindColumnValue(sheet.Headers, row, receivedPatterns)
				_, inspected := FindColumnValue(sheet.Headers, row, inspectedPatterns)
				_, accepted := FindColumnValue(sheet.Headers, row, acceptedPatterns)
				_, rejected := FindColumnValue(sheet.Headers, row, rejectedPatterns)

				a.AddStageData(stage, month,
					safeNumeric(received),
					safeNumeric(inspected),
					safeNumeric(accepted),
					safeNumeric(rejected),
					domain.DataSource{
						FileName:   sheet.FileName,
						SheetName:  sheet.Name,
						RowNumbers: []int{row.SourceRow},
					})

				a.collectDefects(sheet, row, month)
			}
		}
	}
}

// collectDefects scans the row's columns for known defect names. The
// first vocabulary token contained in a column name wins for that
// column; zero counts contribute nothing.
func (a *Aggregator) collectDefects(sheet domain.ExtractedSheet, row domain.ExtractedRow, month string) {
	for _, header := range sheet.Headers {
		value, ok := row.Cells[header]
		if !ok {
			continue
		}

		headerUpper := strings.ToUpper(header)
		for _, token := range a.cfg.DefectVocabulary {
			if strings.Contains(headerUpper, token) {
				if count := safeNumeric(value); count > 0 {
					a.AddDefect(token, month, count, domain.DataSource{
						FileName:   sheet.FileName,
						SheetName:  sheet.Name,
						RowNumbers: []int{row.SourceRow},
						ColumnName: header,
					})
				}
				break
			}
		}
	}
}

// BoundedSources returns the run's provenance list capped to the
// configured response-size limit.
func (a *Aggregator) BoundedSources() []domain.DataSource {
	limit := a.cfg.MaxSourcesPerMetric
	if limit <= 0 || len(a.Sources) <= limit {
		return a.Sources
	}
	return a.Sources[:limit]
}
