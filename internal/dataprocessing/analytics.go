package dataprocessing

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"qcpulse/internal/config"
	"qcpulse/pkg/contracts/domain"
)

// Analyzer derives the final statistics from a run's accumulators.
// All derivations are pure functions over the aggregator state.
type Analyzer struct {
	cfg    config.PipelineConfig
	logger *slog.Logger
}

// NewAnalyzer creates an analyzer with the given pipeline
// configuration.
func NewAnalyzer(cfg config.PipelineConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "analyzer")),
	}
}

// ComputeStatistics aggregates the parsed batch and derives the full
// statistics snapshot.
func (a *Analyzer) ComputeStatistics(parsed map[domain.ReportCategory][]*domain.FileParseResult) *domain.StatsSnapshot {
	aggregator := NewAggregator(a.cfg, a.logger)
	aggregator.ProcessParsed(parsed)
	return a.ComputeFromAggregator(aggregator)
}

// ComputeFromAggregator derives the statistics snapshot from an
// already-populated aggregator.
func (a *Analyzer) ComputeFromAggregator(agg *Aggregator) *domain.StatsSnapshot {
	kpis := a.computeKPIs(agg)
	stageKPIs := a.computeStageKPIs(agg)
	pareto := a.computeDefectPareto(agg)

	snapshot := &domain.StatsSnapshot{
		KPIs:           kpis,
		StageKPIs:      stageKPIs,
		RejectionTrend: a.computeRejectionTrend(agg),
		DefectPareto:   pareto,
		DefectTrends:   a.computeDefectTrends(agg),
		GeneratedAt:    time.Now().UTC(),
	}
	snapshot.Summary = a.buildSummary(kpis, stageKPIs, pareto)

	a.logger.Info("statistics computed",
		slog.Float64("rejection_rate", kpis.RejectionRate),
		slog.Int("stage_kpis", len(stageKPIs)),
		slog.Int("pareto_defects", len(pareto.Defects)))

	return snapshot
}

// computeKPIs derives the headline indicators.
func (a *Analyzer) computeKPIs(agg *Aggregator) domain.KPISnapshot {
	var totalProduced, totalDispatched float64
	for _, cell := range agg.Production {
		totalProduced += cell.Produced
		totalDispatched += cell.Dispatched
	}

	var totalRejected float64
	for _, months := range agg.Stages {
		for _, cell := range months {
			totalRejected += cell.Rejected
		}
	}

	rejectionRate := 0.0
	if totalProduced > 0 {
		rejectionRate = totalRejected / totalProduced * 100
	}
	yieldRate := 100 - rejectionRate

	months := sortedKeys(agg.Production)
	rateChange := 0.0
	trend := "stable"
	if len(months) >= 2 {
		currentRate := a.monthlyRejectionRate(agg, months[len(months)-1])
		previousRate := a.monthlyRejectionRate(agg, months[len(months)-2])
		rateChange = currentRate - previousRate
		switch {
		case rateChange > 0.5:
			trend = "up"
		case rateChange < -0.5:
			trend = "down"
		}
	}

	productionDate := time.Now().UTC()
	if len(months) > 0 {
		if d, err := time.Parse("2006-01-02", months[len(months)-1]+"-01"); err == nil {
			productionDate = d
		}
	}

	watchBatches := 0
	for _, stageMonths := range agg.Stages {
		for _, cell := range stageMonths {
			if cell.Inspected > 0 && cell.Rejected/cell.Inspected*100 > 10 {
				watchBatches++
			}
		}
	}

	return domain.KPISnapshot{
		RejectionRate:       round2(rejectionRate),
		RejectionRateChange: round2(rateChange),
		RejectionTrend:      trend,
		YieldRate:           round2(yieldRate),
		TotalProduced:       int64(totalProduced),
		TotalDispatched:     int64(totalDispatched),
		TotalRejected:       int64(totalRejected),
		ProductionDate:      productionDate,
		FinancialImpact:     round2(totalRejected * a.cfg.CostPerRejectedUnit),
		WatchBatches:        watchBatches,
		Sources:             agg.BoundedSources(),
	}
}

// monthlyRejectionRate is the month's total rejections over its
// production, as a percentage; 0 when the month saw no production.
func (a *Analyzer) monthlyRejectionRate(agg *Aggregator, month string) float64 {
	cell, ok := agg.Production[month]
	if !ok || cell.Produced <= 0 {
		return 0
	}

	var rejected float64
	for _, stageMonths := range agg.Stages {
		if stageCell, ok := stageMonths[month]; ok {
			rejected += stageCell.Rejected
		}
	}
	return rejected / cell.Produced * 100
}

// computeStageKPIs derives the per-stage indicators, sorted by
// rejected count descending.
func (a *Analyzer) computeStageKPIs(agg *Aggregator) []domain.StageKPI {
	var totalRejected float64
	for _, months := range agg.Stages {
		for _, cell := range months {
			totalRejected += cell.Rejected
		}
	}

	kpis := make([]domain.StageKPI, 0, len(agg.Stages))
	for stage, months := range agg.Stages {
		var inspected, accepted, rejected float64
		for _, cell := range months {
			inspected += cell.Inspected
			accepted += cell.Accepted
			rejected += cell.Rejected
		}

		rejectionRate := 0.0
		if inspected > 0 {
			rejectionRate = rejected / inspected * 100
		}
		contribution := 0.0
		if totalRejected > 0 {
			contribution = rejected / totalRejected * 100
		}

		kpis = append(kpis, domain.StageKPI{
			StageCode:           stage,
			StageName:           stage.DisplayName(),
			Inspected:           int64(inspected),
			Accepted:            int64(accepted),
			Rejected:            int64(rejected),
			RejectionRate:       round2(rejectionRate),
			ContributionPercent: round2(contribution),
		})
	}

	sort.Slice(kpis, func(i, j int) bool {
		if kpis[i].Rejected != kpis[j].Rejected {
			return kpis[i].Rejected > kpis[j].Rejected
		}
		return kpis[i].StageCode < kpis[j].StageCode
	})

	return kpis
}

// computeRejectionTrend builds the monthly rejection-rate series, one
// point per month present in the production accumulator, in calendar
// order.
func (a *Analyzer) computeRejectionTrend(agg *Aggregator) domain.TrendChart {
	months := sortedKeys(agg.Production)

	points := make([]domain.TrendDataPoint, 0, len(months))
	for _, month := range months {
		points = append(points, domain.TrendDataPoint{
			Date:  midMonth(month),
			Value: round2(a.monthlyRejectionRate(agg, month)),
			Label: month,
		})
	}

	return domain.TrendChart{
		Title:  "Monthly Rejection Rate Trend",
		XLabel: "Month",
		YLabel: "Rejection Rate (%)",
		Series: []domain.TrendSeries{
			{Name: "Rejection %", Data: points, Color: "#ef4444"},
		},
	}
}

// computeDefectPareto ranks defects by total count with running
// cumulative percentage. Threshold80 is the first index at which the
// cumulative percentage reaches or exceeds 80.
func (a *Analyzer) computeDefectPareto(agg *Aggregator) domain.ParetoChart {
	type defectTotal struct {
		code  string
		count float64
	}

	totals := make([]defectTotal, 0, len(agg.Defects))
	var grandTotal float64
	for code, months := range agg.Defects {
		var count float64
		for _, c := range months {
			count += c
		}
		totals = append(totals, defectTotal{code: code, count: count})
		grandTotal += count
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].count != totals[j].count {
			return totals[i].count > totals[j].count
		}
		return totals[i].code < totals[j].code
	})

	defects := make([]domain.DefectData, 0, len(totals))
	cumulative := 0.0
	threshold80 := 0
	thresholdSet := false

	for idx, total := range totals {
		percentage := 0.0
		if grandTotal > 0 {
			percentage = total.count / grandTotal * 100
		}
		cumulative += percentage

		if !thresholdSet && cumulative >= 80 {
			threshold80 = idx
			thresholdSet = true
		}

		defects = append(defects, domain.DefectData{
			DefectCode:           total.code,
			DefectName:           titleCase(total.code),
			Count:                int64(total.count),
			Percentage:           round2(percentage),
			CumulativePercentage: round2(cumulative),
		})
	}

	return domain.ParetoChart{
		Title:       "Defect Pareto Analysis (Top 80%)",
		Defects:     defects,
		Threshold80: threshold80,
	}
}

// computeDefectTrends builds monthly series for the top 5 defect codes
// across the union of months seen for any defect, classifying each
// series direction by comparing first-half and second-half sums with a
// 10% tolerance band.
func (a *Analyzer) computeDefectTrends(agg *Aggregator) []domain.DefectTrend {
	type defectTotal struct {
		code  string
		count float64
	}

	totals := make([]defectTotal, 0, len(agg.Defects))
	for code, months := range agg.Defects {
		var count float64
		for _, c := range months {
			count += c
		}
		totals = append(totals, defectTotal{code: code, count: count})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].count != totals[j].count {
			return totals[i].count > totals[j].count
		}
		return totals[i].code < totals[j].code
	})
	if len(totals) > 5 {
		totals = totals[:5]
	}

	monthSet := make(map[string]bool)
	for _, months := range agg.Defects {
		for month := range months {
			monthSet[month] = true
		}
	}
	allMonths := make([]string, 0, len(monthSet))
	for month := range monthSet {
		allMonths = append(allMonths, month)
	}
	sort.Strings(allMonths)

	trends := make([]domain.DefectTrend, 0, len(totals))
	for _, total := range totals {
		points := make([]domain.TrendDataPoint, 0, len(allMonths))
		for _, month := range allMonths {
			points = append(points, domain.TrendDataPoint{
				Date:  midMonth(month),
				Value: agg.Defects[total.code][month],
				Label: month,
			})
		}

		direction := "stable"
		if len(points) >= 2 {
			half := len(points) / 2
			var firstHalf, secondHalf float64
			for _, p := range points[:half] {
				firstHalf += p.Value
			}
			for _, p := range points[half:] {
				secondHalf += p.Value
			}
			switch {
			case secondHalf > firstHalf*1.1:
				direction = "increasing"
			case secondHalf < firstHalf*0.9:
				direction = "decreasing"
			}
		}

		average := 0.0
		if len(points) > 0 {
			var sum float64
			for _, p := range points {
				sum += p.Value
			}
			average = sum / float64(len(points))
		}

		trends = append(trends, domain.DefectTrend{
			DefectCode:     total.code,
			DefectName:     titleCase(total.code),
			MonthlyData:    points,
			AverageRate:    round2(average),
			TrendDirection: direction,
		})
	}

	return trends
}

// buildSummary renders the short narrative combining the headline
// numbers for a management audience. Purely templated text.
func (a *Analyzer) buildSummary(kpis domain.KPISnapshot, stageKPIs []domain.StageKPI, pareto domain.ParetoChart) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Summary: Yield is %.2f%%, Rejection %.2f%%. ", kpis.YieldRate, kpis.RejectionRate)
	fmt.Fprintf(&b, "Financial loss: ₹%.0f. ", kpis.FinancialImpact)

	if len(stageKPIs) > 0 {
		top := stageKPIs[0]
		fmt.Fprintf(&b, "Focus on %s (%.2f%%). ", top.StageName, top.RejectionRate)
	}

	if len(pareto.Defects) > 0 {
		top := pareto.Defects[0]
		fmt.Fprintf(&b, "Fix '%s' to recover %.2f%%.", top.DefectName, top.Percentage)
	}

	switch kpis.RejectionTrend {
	case "up":
		b.WriteString(" Trending UP.")
	case "down":
		b.WriteString(" Trending DOWN.")
	}

	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// midMonth anchors a month key to its 15th for charting.
func midMonth(month string) time.Time {
	d, err := time.Parse("2006-01-02", month+"-15")
	if err != nil {
		return time.Now().UTC()
	}
	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// titleCase renders a defect token as a display name, e.g.
// "BLACK MARK" becomes "Black Mark".
func titleCase(code string) string {
	words := strings.Fields(strings.ToLower(strings.ReplaceAll(code, "_", " ")))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
