package csvsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"grantlens/internal/normalize"
	"grantlens/ports"
)

// outcomePayload is the wire shape shared with the metrics service
type outcomePayload struct {
	State      string  `json:"state"`
	Year       int     `json:"year"`
	Metric     string  `json:"metric"`
	Value      *string `json:"value"`
	Suppressed bool    `json:"suppressed"`
	ReportedAt string  `json:"reported_at"`
}

// OutcomeFileSource reads outcome observations from a local JSON extract
// in the same shape the metrics service returns, for offline runs.
type OutcomeFileSource struct {
	path string
}

// NewOutcomeFileSource creates a file-backed outcome source
func NewOutcomeFileSource(path string) *OutcomeFileSource {
	return &OutcomeFileSource{path: path}
}

// FetchOutcomes reads every observation in the extract. The query is
// ignored for file sources: the extract already scopes the pull.
func (s *OutcomeFileSource) FetchOutcomes(ctx context.Context, _ ports.OutcomeQuery) ([]normalize.RawOutcome, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read outcome file: %w", err)
	}

	var payloads []outcomePayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("parse outcome file %s: %w", s.path, err)
	}

	raws := decodeOutcomePayloads(payloads)
	log.Printf("[OutcomeFile] read %d observations from %s", len(raws), s.path)
	return raws, nil
}

// EncodeOutcomes serializes raw observations into the same JSON shape the
// metrics service returns, so a standalone fetch can feed a later offline
// run through --outcomes.
func EncodeOutcomes(raws []normalize.RawOutcome) ([]byte, error) {
	payloads := make([]outcomePayload, len(raws))
	for i, raw := range raws {
		value := raw.Value
		payloads[i] = outcomePayload{
			State:      raw.Geography,
			Year:       raw.Year,
			Metric:     raw.Metric,
			Value:      &value,
			Suppressed: raw.Suppressed,
			ReportedAt: raw.ReportedAt.Format(time.RFC3339),
		}
	}
	return json.MarshalIndent(payloads, "", "  ")
}

// decodeOutcomePayloads converts wire payloads into raw observations,
// preserving suppression flags and reported-at ordering information
func decodeOutcomePayloads(payloads []outcomePayload) []normalize.RawOutcome {
	raws := make([]normalize.RawOutcome, 0, len(payloads))
	for i, p := range payloads {
		value := ""
		if p.Value != nil {
			value = *p.Value
		}
		reported, err := time.Parse(time.RFC3339, p.ReportedAt)
		if err != nil {
			reported = time.Time{}
		}
		raws = append(raws, normalize.RawOutcome{
			Row:        i + 1,
			Geography:  p.State,
			Year:       p.Year,
			Metric:     p.Metric,
			Value:      value,
			Suppressed: p.Suppressed,
			ReportedAt: reported,
		})
	}
	return raws
}
