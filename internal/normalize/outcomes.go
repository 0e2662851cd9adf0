package normalize

import (
	"strconv"
	"strings"
	"time"

	"grantlens/domain/core"
	"grantlens/domain/outcomes"
)

// RawOutcome is one unparsed observation from the metrics service or a
// local extract. Value stays textual so source sentinels survive until
// normalization; Suppressed mirrors the source's explicit flag when the
// transport carries one.
type RawOutcome struct {
	Row        int
	Geography  string
	Year       int
	Metric     string
	Value      string
	Suppressed bool
	ReportedAt time.Time
}

// suppressionSentinels are the placeholder strings sources use for
// withheld small-sample values. Matched case-insensitively after trimming.
var suppressionSentinels = map[string]bool{
	"":           true,
	"*":          true,
	"**":         true,
	"-":          true,
	"--":         true,
	"s":          true,
	"suppressed": true,
	"nr":         true,
	"n/a":        true,
	"na":         true,
}

// IsSuppressedSentinel reports whether a raw value is a suppression marker
func IsSuppressedSentinel(raw string) bool {
	return suppressionSentinels[strings.ToLower(strings.TrimSpace(raw))]
}

// OutcomeResult carries the batch output of outcome normalization
type OutcomeResult struct {
	Records    []outcomes.OutcomeRecord
	Errors     []RecordError
	Suppressed int
}

// NormalizeOutcomes parses raw observations into canonical records.
// Suppressed values become explicit missing markers, never zeros.
// Malformed rows are collected, never aborting the batch.
func NormalizeOutcomes(raws []RawOutcome) OutcomeResult {
	result := OutcomeResult{
		Records: make([]outcomes.OutcomeRecord, 0, len(raws)),
	}

	for _, raw := range raws {
		metric, err := outcomes.ParseMetric(raw.Metric)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Row: raw.Row, Field: "metric", Err: err})
			continue
		}

		reported := core.NewTimestamp(raw.ReportedAt)

		var value outcomes.MetricValue
		if raw.Suppressed || IsSuppressedSentinel(raw.Value) {
			value = outcomes.NewSuppressedValue(reported)
			result.Suppressed++
		} else {
			parsed, perr := strconv.ParseFloat(strings.TrimSpace(raw.Value), 64)
			if perr != nil {
				result.Errors = append(result.Errors, RecordError{Row: raw.Row, Field: "value", Err: perr})
				continue
			}
			value, err = outcomes.NewMetricValue(parsed, reported)
			if err != nil {
				result.Errors = append(result.Errors, RecordError{Row: raw.Row, Field: "value", Err: err})
				continue
			}
		}

		record, err := outcomes.NewOutcomeRecord(raw.Geography, core.FiscalYear(raw.Year), metric, value)
		if err != nil {
			result.Errors = append(result.Errors, RecordError{Row: raw.Row, Field: "record", Err: err})
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result
}
