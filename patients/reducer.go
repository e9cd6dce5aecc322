package patients

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/timeline"
)

// measurementsRetention bounds the measurement history kept on a patient. Weight
// changes are computed over the trailing day so two days are enough.
const measurementsRetention = 48 * time.Hour

// Batch is one delivery of events for a single patient.
type Batch struct {
	Entries      []timeline.Entry
	Measurements []normalize.Measurements
}

// NewBatch normalizes records into a batch and reports how many records had no
// usable entry.
func NewBatch(normalizer *normalize.Normalizer, records []normalize.Record) (Batch, int) {
	batch := Batch{}
	malformed := 0
	for _, record := range records {
		entry, measurements := normalizer.Normalize(record)
		if entry != nil {
			batch.Entries = append(batch.Entries, *entry)
		} else {
			malformed++
		}
		if !measurements.Empty() {
			batch.Measurements = append(batch.Measurements, measurements)
		}
	}
	return batch, malformed
}

func (b Batch) Empty() bool {
	return len(b.Entries) == 0 && len(b.Measurements) == 0
}

// Environment carries everything Reduce needs besides the state itself.
type Environment struct {
	Merger *timeline.Merger
	Seed   []timeline.Entry
	Now    time.Time
}

// Reduce applies a batch to the patient state and returns the next state with
// the merge result. The given patient is not modified.
func Reduce(patient Patient, batch Batch, env Environment) (Patient, timeline.Result) {
	next := deepcopy.Copy(patient).(Patient)

	merger := env.Merger
	if merger == nil {
		merger = timeline.NewMerger(timeline.DefaultOptions())
	}

	faulty := map[string]bool{}
	incoming := make([]timeline.Entry, 0, len(batch.Entries))
	for _, entry := range batch.Entries {
		entry.PatientId = patient.Id
		entry.TimeAgo = ""
		if merger.Faulty(entry) {
			faulty[entry.Id] = true
		}
		incoming = append(incoming, entry)
	}

	measurements := next.Measurements
	for _, m := range batch.Measurements {
		if m.EntryId != "" && faulty[m.EntryId] {
			continue
		}
		m.EntryId = ""
		measurements = append(measurements, m)
	}

	result := merger.Merge(next.Entries, incoming, env.Seed)
	next.Entries = result.Entries
	next.Measurements = retainMeasurements(measurements, env.Now)
	next.UpdatedTime = env.Now

	return next, result
}

// retainMeasurements drops expired and redelivered measurements and sorts the
// rest by time.
func retainMeasurements(measurements []normalize.Measurements, now time.Time) []normalize.Measurements {
	cutoff := now.Add(-measurementsRetention)
	seen := map[string]bool{}
	retained := make([]normalize.Measurements, 0, len(measurements))
	for _, m := range measurements {
		if m.Empty() || m.Timestamp == nil || m.Timestamp.Before(cutoff) {
			continue
		}
		key := measurementKey(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		retained = append(retained, m)
	}
	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].Timestamp.Before(*retained[j].Timestamp)
	})
	return retained
}

func measurementKey(m normalize.Measurements) string {
	value := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return strconv.FormatFloat(*v, 'g', -1, 64)
	}
	return fmt.Sprintf("%d|%s|%s|%s|%s", m.Timestamp.UnixMilli(),
		value(m.UrineSpecificGravity), value(m.UrineOsmolality), value(m.Weight), value(m.WeightChange24h))
}
