package outcomes

import (
	"fmt"
	"math"
	"strings"

	"grantlens/domain/core"
)

// Metric names one public-health outcome measure
type Metric string

const (
	MetricInfantMortality   Metric = "infant_mortality_rate"
	MetricPrenatalCare      Metric = "prenatal_care_pct"
	MetricLowBirthweight    Metric = "low_birthweight_pct"
	MetricPretermBirth      Metric = "preterm_birth_pct"
	MetricMaternalMortality Metric = "maternal_mortality_rate"
)

// AllMetrics lists the supported outcome metrics in stable order
func AllMetrics() []Metric {
	return []Metric{
		MetricInfantMortality,
		MetricPrenatalCare,
		MetricLowBirthweight,
		MetricPretermBirth,
		MetricMaternalMortality,
	}
}

// IsValid reports whether the metric belongs to the supported set
func (m Metric) IsValid() bool {
	for _, known := range AllMetrics() {
		if m == known {
			return true
		}
	}
	return false
}

func (m Metric) String() string {
	return string(m)
}

// Unit returns the measurement unit for the metric
func (m Metric) Unit() string {
	switch m {
	case MetricInfantMortality:
		return "deaths per 1,000 live births"
	case MetricMaternalMortality:
		return "deaths per 100,000 live births"
	case MetricPrenatalCare, MetricLowBirthweight, MetricPretermBirth:
		return "percent"
	}
	return ""
}

// ParseMetric maps a raw metric name onto the supported set
func ParseMetric(raw string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(raw)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: unknown metric %q", core.ErrMalformedRecord, raw)
	}
	return m, nil
}

// MetricValue carries one observation. Suppressed observations hold no
// numeric meaning: sources withhold small-sample values, and those must
// flow through as explicit missing, never as zero.
type MetricValue struct {
	Value      float64        `json:"value"`
	Suppressed bool           `json:"suppressed"`
	Reported   core.Timestamp `json:"reported_at"`
}

// Float returns the numeric value and whether it is usable
func (v MetricValue) Float() (float64, bool) {
	if v.Suppressed {
		return 0, false
	}
	return v.Value, true
}

// NewMetricValue constructs an observed (non-suppressed) value
func NewMetricValue(value float64, reported core.Timestamp) (MetricValue, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MetricValue{}, fmt.Errorf("%w: metric value is not finite", core.ErrMalformedRecord)
	}
	return MetricValue{Value: value, Reported: reported}, nil
}

// NewSuppressedValue constructs an explicit missing marker
func NewSuppressedValue(reported core.Timestamp) MetricValue {
	return MetricValue{Suppressed: true, Reported: reported}
}

// OutcomeRecord is one normalized health-metric observation
type OutcomeRecord struct {
	RawGeography string          `json:"raw_geography"`
	Year         core.FiscalYear `json:"year"`
	Metric       Metric          `json:"metric"`
	Value        MetricValue     `json:"value"`
}

// NewOutcomeRecord validates fields and constructs an immutable record
func NewOutcomeRecord(rawGeo string, year core.FiscalYear, metric Metric, value MetricValue) (OutcomeRecord, error) {
	if strings.TrimSpace(rawGeo) == "" {
		return OutcomeRecord{}, fmt.Errorf("%w: geography", core.ErrMissingField)
	}
	if !year.IsValid() {
		return OutcomeRecord{}, fmt.Errorf("%w: year %d out of range", core.ErrMalformedRecord, year)
	}
	if !metric.IsValid() {
		return OutcomeRecord{}, fmt.Errorf("%w: unknown metric %q", core.ErrMalformedRecord, metric)
	}
	return OutcomeRecord{
		RawGeography: strings.TrimSpace(rawGeo),
		Year:         year,
		Metric:       metric,
		Value:        value,
	}, nil
}
