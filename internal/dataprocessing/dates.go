package dataprocessing

import (
	"regexp"
	"strings"
	"time"

	"qcpulse/pkg/contracts/domain"
)

// excelEpoch is the zero point of the 1900 date system as Excel
// actually stores it (day 1 is 1900-01-01, with the leap-year bug
// folded in).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// dateLayouts are tried in order when a cell holds a formatted date
// string rather than a serial.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"January 2006",
	"Jan 2006",
}

// monthKeyLayouts are tried when deriving a month key from a string
// cell. A bare "2006-01" already is a month key.
var monthKeyLayouts = []string{
	"January 2006",
	"Jan 2006",
	"2006-01",
	"01/2006",
}

// sheetMonthPattern recognizes month tokens embedded in sheet names,
// e.g. "APRIL 25" or "Sep 2025".
var sheetMonthPattern = regexp.MustCompile(`(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)[A-Z]*\s*(\d{2,4})`)

var monthNumbers = map[string]string{
	"JAN": "01", "FEB": "02", "MAR": "03", "APR": "04",
	"MAY": "05", "JUN": "06", "JUL": "07", "AUG": "08",
	"SEP": "09", "OCT": "10", "NOV": "11", "DEC": "12",
}

// NormalizeDate converts a raw cell value to a calendar date. Native
// dates pass through, numbers are day offsets from the Excel epoch
// (rejected below 1), and strings are tried against the known layouts.
// A value yielding no date is not an error; ok is simply false.
func NormalizeDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case float64:
		return serialToDate(v)
	case int:
		return serialToDate(float64(v))
	case int64:
		return serialToDate(float64(v))
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, trimmed); err == nil {
				return d, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func serialToDate(serial float64) (time.Time, bool) {
	if serial < 1 {
		return time.Time{}, false
	}
	return excelEpoch.Add(time.Duration(serial * 24 * float64(time.Hour))), true
}

// MonthKey renders a date as the canonical "YYYY-MM" time axis value.
func MonthKey(d time.Time) string {
	return d.Format("2006-01")
}

// MonthKeyFromValue derives a month key from a raw cell value, or ""
// when the value holds no recognizable date or month.
func MonthKeyFromValue(value any) string {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		for _, layout := range monthKeyLayouts {
			if d, err := time.Parse(layout, trimmed); err == nil {
				return MonthKey(d)
			}
		}
		if d, ok := NormalizeDate(trimmed); ok {
			return MonthKey(d)
		}
		return ""
	default:
		if d, ok := NormalizeDate(value); ok {
			return MonthKey(d)
		}
		return ""
	}
}

// monthColumnPatterns locate the date-like column in a row.
var monthColumnPatterns = []string{"MONTH", "DATE", "PERIOD"}

// MonthKeyFromRow derives a month key from a row's date-like column,
// or "" when no such column resolves to a date.
func MonthKeyFromRow(headers []string, row domain.ExtractedRow) string {
	_, value := FindColumnValue(headers, row, monthColumnPatterns)
	if value == nil {
		return ""
	}
	return MonthKeyFromValue(value)
}

// MonthKeyFromSheetName recognizes a month token embedded in a sheet
// name ("APRIL 25" style), or "" when none is present.
func MonthKeyFromSheetName(name string) string {
	match := sheetMonthPattern.FindStringSubmatch(strings.ToUpper(name))
	if match == nil {
		return ""
	}

	monthNum, ok := monthNumbers[match[1][:3]]
	if !ok {
		return ""
	}

	year := match[2]
	if len(year) == 2 {
		year = "20" + year
	}
	return year + "-" + monthNum
}
