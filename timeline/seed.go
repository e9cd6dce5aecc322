package timeline

import (
	"fmt"
	"time"
)

type seedEntry struct {
	hour, minute int
	kind         Kind
	source       Source
	valueMl      float64
	title        string
}

var demoDay = []seedEntry{
	{7, 30, KindIntake, SourceWaterDispenser, 200, "Warm water"},
	{8, 15, KindIntake, SourceCamera, 150, "Rice porridge"},
	{9, 10, KindOutput, SourceUrinal, 210, "Urination"},
	{11, 40, KindIntake, SourceWaterDispenser, 180, "Warm water"},
	{12, 20, KindIntake, SourceCamera, 120, "Vegetable soup"},
	{13, 5, KindOutput, SourceUrinal, 230, "Urination"},
}

// DemoSeed returns a fixed demo day for a patient. It is a fixture for
// demonstrations and tests and is never merged unless explicitly enabled.
func DemoSeed(patientId string, day time.Time) []Entry {
	year, month, date := day.Date()
	entries := make([]Entry, 0, len(demoDay))
	for i, s := range demoDay {
		timestamp := time.Date(year, month, date, s.hour, s.minute, 0, 0, day.Location())
		entries = append(entries, Entry{
			Id:        fmt.Sprintf("demo-%s-%d", patientId, i+1),
			PatientId: patientId,
			Kind:      s.kind,
			Source:    s.source,
			ValueMl:   s.valueMl,
			Timestamp: &timestamp,
			Time:      timestamp.Format("15:04"),
			Title:     s.title,
		})
	}
	return entries
}
