package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tidepool-org/hydration/timeline"
)

// entryNamespace scopes the ids generated for records delivered without one.
var entryNamespace = uuid.MustParse("2f7b4f8e-6c1d-4c55-9a51-0c5b3f4ad2e1")

var sourceAliases = map[string]timeline.Source{
	"output":          timeline.SourceUrinal,
	"intake":          timeline.SourceWaterDispenser,
	"water":           timeline.SourceWaterDispenser,
	"waterdispenser":  timeline.SourceWaterDispenser,
	"water_dispenser": timeline.SourceWaterDispenser,
	"dispenser":       timeline.SourceWaterDispenser,
	"camera":          timeline.SourceCamera,
	"urinal":          timeline.SourceUrinal,
	"manual":          timeline.SourceManual,
	"device":          timeline.SourceDevice,
	"parse_error":     timeline.SourceParseError,
	"parseerror":      timeline.SourceParseError,
}

var defaultTitles = map[timeline.Source]string{
	timeline.SourceWaterDispenser: "Water",
	timeline.SourceCamera:         "Meal",
	timeline.SourceUrinal:         "Urination",
	timeline.SourceManual:         "Manual entry",
	timeline.SourceDevice:         "Device reading",
}

type rawEntry struct {
	Id                   string                  `mapstructure:"id"`
	PatientId            string                  `mapstructure:"patientId"`
	Kind                 string                  `mapstructure:"kind"`
	Type                 string                  `mapstructure:"type"`
	Source               string                  `mapstructure:"source"`
	ValueMl              *float64                `mapstructure:"valueMl"`
	Timestamp            interface{}             `mapstructure:"timestamp"`
	Time                 string                  `mapstructure:"time"`
	TimeAgo              string                  `mapstructure:"timeAgo"`
	Title                string                  `mapstructure:"title"`
	ValueText            string                  `mapstructure:"valueText"`
	ImageUrl             string                  `mapstructure:"imageUrl"`
	AIRecognition        *timeline.AIRecognition `mapstructure:"aiRecognition"`
	UrineColor           string                  `mapstructure:"urineColor"`
	UrineSpecificGravity *float64                `mapstructure:"urineSpecificGravity"`
	UrineOsmolality      *float64                `mapstructure:"urineOsmolality"`
	Note                 string                  `mapstructure:"note"`
}

// Normalizer turns legacy records into canonical timeline entries.
type Normalizer struct {
	Location *time.Location
	Now      func() time.Time
}

func New(location *time.Location, now func() time.Time) *Normalizer {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Normalizer{Location: location, Now: now}
}

// Entry normalizes one record. Records that cannot be normalized are discarded
// by returning false, they never produce an error.
func (n *Normalizer) Entry(record Record) (*timeline.Entry, bool) {
	raw := rawEntry{}
	if err := Decode(Canonicalize(record), &raw); err != nil {
		return nil, false
	}

	source := resolveSource(raw.Source)
	kind, ok := resolveKind(raw, source)
	if !ok {
		return nil, false
	}

	entry := &timeline.Entry{
		Id:                   strings.TrimSpace(raw.Id),
		PatientId:            strings.TrimSpace(raw.PatientId),
		Kind:                 kind,
		Source:               source,
		Time:                 strings.TrimSpace(raw.Time),
		TimeAgo:              raw.TimeAgo,
		Title:                strings.TrimSpace(raw.Title),
		ValueText:            raw.ValueText,
		ImageUrl:             raw.ImageUrl,
		AIRecognition:        raw.AIRecognition,
		UrineColor:           raw.UrineColor,
		UrineSpecificGravity: raw.UrineSpecificGravity,
		UrineOsmolality:      raw.UrineOsmolality,
		Note:                 raw.Note,
	}

	hasValue := raw.ValueMl != nil && *raw.ValueMl != 0
	if raw.ValueMl != nil {
		entry.ValueMl = *raw.ValueMl
	}
	if !hasValue && entry.Title == "" {
		return nil, false
	}
	if entry.Title == "" {
		entry.Title = defaultTitles[source]
	}

	now := n.now()
	clock := entry.Time
	if s, ok := raw.Timestamp.(string); ok && clock == "" {
		clock = s
	}
	if timestamp, ok := ParseTimestamp(raw.Timestamp, n.Location); ok {
		entry.Timestamp = timestamp
	} else if timestamp, ok := ParseClock(clock, now); ok {
		entry.Timestamp = timestamp
	}

	if entry.Timestamp != nil {
		if entry.Time == "" {
			entry.Time = entry.Timestamp.In(n.Location).Format("15:04")
		}
		if entry.TimeAgo == "" {
			entry.TimeAgo = TimeAgo(*entry.Timestamp, now)
		}
	}
	if entry.ValueText == "" && hasValue {
		entry.ValueText = ValueText(kind == timeline.KindOutput, entry.ValueMl)
	}
	if entry.Id == "" {
		entry.Id = contentId(entry)
	}

	return entry, true
}

// Batch normalizes every record independently and reports how many were discarded.
func (n *Normalizer) Batch(records []Record) ([]timeline.Entry, int) {
	entries := make([]timeline.Entry, 0, len(records))
	discarded := 0
	for _, record := range records {
		entry, ok := n.Entry(record)
		if !ok {
			discarded++
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, discarded
}

func (n *Normalizer) now() time.Time {
	return n.Now().In(n.Location)
}

func resolveSource(value string) timeline.Source {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return timeline.SourceManual
	}
	if source, ok := sourceAliases[value]; ok {
		return source
	}
	return timeline.Source(value)
}

func resolveKind(raw rawEntry, source timeline.Source) (timeline.Kind, bool) {
	for _, value := range []string{raw.Kind, raw.Type} {
		kind := timeline.Kind(strings.ToLower(strings.TrimSpace(value)))
		if kind.Valid() {
			return kind, true
		}
	}

	switch source {
	case timeline.SourceUrinal:
		return timeline.KindOutput, true
	case timeline.SourceWaterDispenser, timeline.SourceCamera:
		return timeline.KindIntake, true
	}

	// Legacy records name the direction in the source field
	switch strings.ToLower(strings.TrimSpace(raw.Source)) {
	case "output":
		return timeline.KindOutput, true
	case "intake":
		return timeline.KindIntake, true
	}
	return "", false
}

// contentId derives a stable id so a record delivered twice without an id is
// recognized as the same entry.
func contentId(entry *timeline.Entry) string {
	timestamp := entry.Time
	if entry.Timestamp != nil {
		timestamp = entry.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%g|%s", entry.PatientId, entry.Kind, entry.Source, timestamp, entry.ValueMl, entry.Title)
	return uuid.NewSHA1(entryNamespace, []byte(key)).String()
}
