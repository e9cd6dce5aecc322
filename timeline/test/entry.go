package test

import (
	"time"

	"github.com/tidepool-org/hydration/test"
	"github.com/tidepool-org/hydration/timeline"
)

var (
	kinds   = []string{string(timeline.KindIntake), string(timeline.KindOutput)}
	sources = []string{
		string(timeline.SourceWaterDispenser),
		string(timeline.SourceCamera),
		string(timeline.SourceUrinal),
		string(timeline.SourceManual),
	}
)

func RandomEntry(patientId string, day time.Time) timeline.Entry {
	timestamp := test.RandomTimeOfDay(day, 6*time.Hour, 22*time.Hour)
	return timeline.Entry{
		Id:        test.Faker.UUID().V4(),
		PatientId: patientId,
		Kind:      timeline.Kind(test.Faker.RandomStringElement(kinds)),
		Source:    timeline.Source(test.Faker.RandomStringElement(sources)),
		ValueMl:   float64(test.Faker.IntBetween(1, 60) * 10),
		Timestamp: &timestamp,
		Time:      timestamp.Format("15:04"),
		Title:     test.Faker.Lorem().Word(),
	}
}

func RandomEntries(patientId string, day time.Time, count int) []timeline.Entry {
	entries := make([]timeline.Entry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, RandomEntry(patientId, day))
	}
	return entries
}

func Entry(id string, kind timeline.Kind, source timeline.Source, valueMl float64, timestamp time.Time) timeline.Entry {
	return timeline.Entry{
		Id:        id,
		PatientId: "patient",
		Kind:      kind,
		Source:    source,
		ValueMl:   valueMl,
		Timestamp: &timestamp,
		Time:      timestamp.Format("15:04"),
		Title:     string(source),
	}
}
