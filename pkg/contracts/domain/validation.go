package domain

// Severity classifies a validation finding. Errors mark rows invalid;
// warnings indicate a value the aggregator auto-corrects downstream.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationFinding is a single consistency check outcome with full
// provenance back to the offending cell.
type ValidationFinding struct {
	Message  string     `json:"message"`
	Severity Severity   `json:"severity"`
	Source   DataSource `json:"source"`
	Value    string     `json:"value,omitempty"`
}

// ValidationResult aggregates the findings for one batch. Valid is
// true when no errors are present, even if warnings exist.
type ValidationResult struct {
	Valid     bool                `json:"valid"`
	Errors    []ValidationFinding `json:"errors"`
	Warnings  []ValidationFinding `json:"warnings"`
	TotalRows int                 `json:"total_rows"`
	ValidRows int                 `json:"valid_rows"`
	ErrorRows int                 `json:"error_rows"`
}

// ValidationSummary is the bounded view stored in the post-validation
// snapshot: full counts, first maxFindings errors and warnings.
type ValidationSummary struct {
	Valid     bool                `json:"valid"`
	TotalRows int                 `json:"total_rows"`
	ValidRows int                 `json:"valid_rows"`
	ErrorRows int                 `json:"error_rows"`
	Errors    []ValidationFinding `json:"errors"`
	Warnings  []ValidationFinding `json:"warnings"`
}

// Summarize bounds the finding lists for persistence.
func (r *ValidationResult) Summarize(maxFindings int) ValidationSummary {
	summary := ValidationSummary{
		Valid:     r.Valid,
		TotalRows: r.TotalRows,
		ValidRows: r.ValidRows,
		ErrorRows: r.ErrorRows,
	}
	summary.Errors = boundFindings(r.Errors, maxFindings)
	summary.Warnings = boundFindings(r.Warnings, maxFindings)
	return summary
}

func boundFindings(findings []ValidationFinding, max int) []ValidationFinding {
	if max <= 0 || len(findings) <= max {
		return findings
	}
	return findings[:max]
}
