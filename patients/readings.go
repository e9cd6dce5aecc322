package patients

import (
	"time"

	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/status"
	"github.com/tidepool-org/hydration/thresholds"
	"github.com/tidepool-org/hydration/timeline"
)

const readingsWindow = 24 * time.Hour

// Readings derives the indicator values of a patient at the given instant.
// Indicators without supporting data are absent and are not classified.
func Readings(patient Patient, now time.Time) status.Readings {
	readings := status.Readings{}
	from := now.Add(-readingsWindow)

	var intake, output float64
	var intakeSeen, outputSeen bool
	var latest, latestOutput *timeline.Entry
	for i := range patient.Entries {
		entry := &patient.Entries[i]
		if entry.HasTimestamp() && (entry.Timestamp.Before(from) || entry.Timestamp.After(now)) {
			continue
		}
		switch entry.Kind {
		case timeline.KindIntake:
			intake += entry.ValueMl
			intakeSeen = true
		case timeline.KindOutput:
			output += entry.ValueMl
			outputSeen = true
			if entry.HasTimestamp() && (latestOutput == nil || entry.Timestamp.After(*latestOutput.Timestamp)) {
				latestOutput = entry
			}
		}
		if entry.HasTimestamp() && (latest == nil || entry.Timestamp.After(*latest.Timestamp)) {
			latest = entry
		}
	}

	if intakeSeen {
		readings[thresholds.IndicatorDailyIntake] = intake
	}
	if outputSeen {
		readings[thresholds.IndicatorUrine24h] = output
	}
	if intakeSeen || outputSeen {
		readings[thresholds.IndicatorNetIntake] = intake - output
	}
	if output > 0 && intakeSeen {
		readings[thresholds.IndicatorInOutRatio] = intake / output
	}
	if latestOutput != nil {
		readings[thresholds.IndicatorSingleUrine] = latestOutput.ValueMl
	}
	if latest != nil {
		readings[thresholds.IndicatorNoDrinkNoUrineHours] = now.Sub(*latest.Timestamp).Hours()
	}

	if value, ok := latestUrineValue(patient, now, func(gravity, _ *float64) *float64 { return gravity }); ok {
		readings[thresholds.IndicatorUrineSpecificGravity] = value
	}
	if value, ok := latestUrineValue(patient, now, func(_, osmolality *float64) *float64 { return osmolality }); ok {
		readings[thresholds.IndicatorUrineOsmolality] = value
	}
	if value, ok := weightChange(patient.Measurements, now); ok {
		readings[thresholds.IndicatorWeightChange24h] = value
	}

	return readings
}

// latestUrineValue returns the most recent urine property reported either on an
// output entry or as a standalone measurement.
func latestUrineValue(patient Patient, now time.Time, pick func(gravity, osmolality *float64) *float64) (float64, bool) {
	var value *float64
	var at time.Time
	consider := func(candidate *float64, timestamp *time.Time) {
		if candidate == nil || timestamp == nil || timestamp.After(now) {
			return
		}
		if value == nil || timestamp.After(at) {
			value = candidate
			at = *timestamp
		}
	}

	for _, entry := range patient.Entries {
		if entry.Kind == timeline.KindOutput {
			consider(pick(entry.UrineSpecificGravity, entry.UrineOsmolality), entry.Timestamp)
		}
	}
	for _, m := range patient.Measurements {
		consider(pick(m.UrineSpecificGravity, m.UrineOsmolality), m.Timestamp)
	}

	if value == nil {
		return 0, false
	}
	return *value, true
}

// weightChange is a percentage of body weight. It prefers a change reported by
// a device. Otherwise it is the change from the earliest to the latest weight of
// the trailing day, which needs at least two samples.
func weightChange(measurements []normalize.Measurements, now time.Time) (float64, bool) {
	from := now.Add(-readingsWindow)

	var reported *normalize.Measurements
	var first, last *normalize.Measurements
	for i := range measurements {
		m := &measurements[i]
		if m.Timestamp == nil || m.Timestamp.After(now) || m.Timestamp.Before(from) {
			continue
		}
		if m.WeightChange24h != nil && (reported == nil || m.Timestamp.After(*reported.Timestamp)) {
			reported = m
		}
		if m.Weight == nil {
			continue
		}
		if first == nil || m.Timestamp.Before(*first.Timestamp) {
			first = m
		}
		if last == nil || !m.Timestamp.Before(*last.Timestamp) {
			last = m
		}
	}

	if reported != nil {
		return *reported.WeightChange24h, true
	}
	if first == nil || last == nil || first == last || *first.Weight <= 0 {
		return 0, false
	}
	return (*last.Weight - *first.Weight) / *first.Weight * 100, true
}
