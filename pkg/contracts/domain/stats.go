package domain

import "time"

// KPISnapshot holds the headline indicators for one pipeline run.
type KPISnapshot struct {
	RejectionRate       float64      `json:"rejection_rate"`
	RejectionRateChange float64      `json:"rejection_rate_change"`
	RejectionTrend      string       `json:"rejection_trend"` // up, down, stable
	YieldRate           float64      `json:"yield_rate"`
	TotalProduced       int64        `json:"total_produced"`
	TotalDispatched     int64        `json:"total_dispatched"`
	TotalRejected       int64        `json:"total_rejected"`
	ProductionDate      time.Time    `json:"production_date"`
	FinancialImpact     float64      `json:"financial_impact"`
	WatchBatches        int          `json:"watch_batches"`
	Sources             []DataSource `json:"sources,omitempty"`
}

// StageKPI holds the per-inspection-stage indicators.
type StageKPI struct {
	StageCode           StageCode    `json:"stage_code"`
	StageName           string       `json:"stage_name"`
	Inspected           int64        `json:"inspected"`
	Accepted            int64        `json:"accepted"`
	Rejected            int64        `json:"rejected"`
	RejectionRate       float64      `json:"rejection_rate"`
	ContributionPercent float64      `json:"contribution_percent"`
	Sources             []DataSource `json:"sources,omitempty"`
}

// TrendDataPoint is a single point on a time-series chart.
type TrendDataPoint struct {
	Date    time.Time    `json:"date"`
	Value   float64      `json:"value"`
	Label   string       `json:"label,omitempty"`
	Sources []DataSource `json:"sources,omitempty"`
}

// TrendSeries is one named line on a trend chart.
type TrendSeries struct {
	Name  string           `json:"name"`
	Data  []TrendDataPoint `json:"data"`
	Color string           `json:"color,omitempty"`
}

// TrendChart is a complete renderable trend chart.
type TrendChart struct {
	Title  string        `json:"title"`
	XLabel string        `json:"x_label"`
	YLabel string        `json:"y_label"`
	Series []TrendSeries `json:"series"`
}

// DefectData is one ranked entry on the Pareto chart.
type DefectData struct {
	DefectCode           string       `json:"defect_code"`
	DefectName           string       `json:"defect_name"`
	Count                int64        `json:"count"`
	Percentage           float64      `json:"percentage"`
	CumulativePercentage float64      `json:"cumulative_percentage"`
	Sources              []DataSource `json:"sources,omitempty"`
}

// ParetoChart is the ranked defect breakdown with the index at which
// the running cumulative percentage first reaches 80%.
type ParetoChart struct {
	Title       string       `json:"title"`
	Defects     []DefectData `json:"defects"`
	Threshold80 int          `json:"threshold_80"`
}

// DefectTrend is the monthly series for one of the top defect codes.
type DefectTrend struct {
	DefectCode     string           `json:"defect_code"`
	DefectName     string           `json:"defect_name"`
	MonthlyData    []TrendDataPoint `json:"monthly_data"`
	AverageRate    float64          `json:"average_rate"`
	TrendDirection string           `json:"trend_direction"` // increasing, decreasing, stable
}

// StatsSnapshot is the final artifact of one pipeline run.
type StatsSnapshot struct {
	KPIs           KPISnapshot   `json:"kpis"`
	StageKPIs      []StageKPI    `json:"stage_kpis"`
	RejectionTrend TrendChart    `json:"rejection_trend"`
	DefectPareto   ParetoChart   `json:"defect_pareto"`
	DefectTrends   []DefectTrend `json:"defect_trends"`
	Summary        string        `json:"summary,omitempty"`
	GeneratedAt    time.Time     `json:"generated_at"`
}
