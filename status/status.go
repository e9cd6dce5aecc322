package status

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidepool-org/hydration/thresholds"
)

// Status is the urgency of a patient or cohort. Values are ordered so that
// a larger value is more urgent.
type Status int

const (
	Normal Status = iota
	Risk
	Emergency
)

var ErrNegativeCount = errors.New("cohort counts must not be negative")

var names = map[Status]string{
	Normal:    "normal",
	Risk:      "risk",
	Emergency: "emergency",
}

func (s Status) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func Parse(value string) (Status, error) {
	for status, name := range names {
		if name == value {
			return status, nil
		}
	}
	return Normal, fmt.Errorf("unknown status %q", value)
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	return s.UnmarshalText([]byte(value))
}

func Max(a, b Status) Status {
	if a > b {
		return a
	}
	return b
}

// Readings holds the indicator values currently known for a patient. An absent
// key means the indicator was not measured.
type Readings map[thresholds.Indicator]float64

// Verdict is the classification of a single reading.
type Verdict struct {
	Indicator thresholds.Indicator `json:"indicator"`
	Value     float64              `json:"value"`
	Status    Status               `json:"status"`
}

// ClassifyValue places a value in the bands of a range. Emergency is checked
// first, then risk, then normal. Values outside every band are normal.
func ClassifyValue(rng thresholds.Range, value float64) Status {
	switch {
	case rng.Emergency.Contains(value):
		return Emergency
	case rng.Risk.Contains(value):
		return Risk
	default:
		return Normal
	}
}

// Classify reduces the available readings to the most urgent status.
func Classify(table *thresholds.Table, group thresholds.Group, readings Readings) (Status, error) {
	result, _, err := ClassifyDetailed(table, group, readings)
	return result, err
}

// ClassifyDetailed is Classify that also returns the verdict of each reading,
// ordered by the canonical indicator order.
func ClassifyDetailed(table *thresholds.Table, group thresholds.Group, readings Readings) (Status, []Verdict, error) {
	if !group.Valid() {
		return Normal, nil, &thresholds.ConfigurationError{Group: group, Reason: "unknown group"}
	}

	result := Normal
	verdicts := make([]Verdict, 0, len(readings))
	for _, indicator := range thresholds.Indicators {
		value, ok := readings[indicator]
		if !ok {
			continue
		}

		rng, err := table.Lookup(group, indicator)
		if err != nil {
			return Normal, nil, err
		}

		verdict := Verdict{Indicator: indicator, Value: value, Status: ClassifyValue(rng, value)}
		verdicts = append(verdicts, verdict)
		result = Max(result, verdict.Status)
	}

	return result, verdicts, nil
}

// AggregateCohort derives a caregiver's overall urgency from the number of
// patients individually in emergency and at risk.
func AggregateCohort(emergencyCount, riskCount int) (Status, error) {
	if emergencyCount < 0 || riskCount < 0 {
		return Normal, fmt.Errorf("%w: emergency=%d risk=%d", ErrNegativeCount, emergencyCount, riskCount)
	}

	switch {
	case emergencyCount >= 2 || riskCount >= 5:
		return Emergency, nil
	case emergencyCount == 1 || riskCount >= 3:
		return Risk, nil
	default:
		return Normal, nil
	}
}
