package dataprocessing

import (
	"strconv"
	"strings"

	"qcpulse/pkg/contracts/domain"
)

// FindColumnValue locates the first column, in left-to-right sheet
// order, whose normalized name contains any of the patterns. Lookup is
// deliberately an ordered substring scan, not exact-name matching: the
// reports spell the same semantic field a dozen different ways.
func FindColumnValue(headers []string, row domain.ExtractedRow, patterns []string) (string, any) {
	for _, header := range headers {
		headerUpper := strings.ToUpper(header)
		for _, pattern := range patterns {
			if strings.Contains(headerUpper, strings.ToUpper(pattern)) {
				if value, ok := row.Cells[header]; ok {
					return header, value
				}
				return header, nil
			}
		}
	}
	return "", nil
}

// NumericValue converts a cell value to a number. Strings are parsed
// after stripping commas and whitespace. The second return is false
// when the value holds no number at all.
func NumericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		cleaned := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		if cleaned == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// safeNumeric is the aggregation-side coercion: absolute value of the
// number, or 0 for anything unparseable. Sign anomalies have already
// been flagged as warnings by validation.
func safeNumeric(value any) float64 {
	n, ok := NumericValue(value)
	if !ok {
		return 0
	}
	if n < 0 {
		return -n
	}
	return n
}
