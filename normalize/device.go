package normalize

import (
	"strings"
	"time"

	"github.com/tidepool-org/hydration/timeline"
)

// Measurements are patient level readings carried by device payloads and
// urinal records.
type Measurements struct {
	UrineSpecificGravity *float64   `mapstructure:"urineSpecificGravity" json:"urineSpecificGravity,omitempty" bson:"urineSpecificGravity,omitempty"`
	UrineOsmolality      *float64   `mapstructure:"urineOsmolality" json:"urineOsmolality,omitempty" bson:"urineOsmolality,omitempty"`
	Weight               *float64   `mapstructure:"weight" json:"weight,omitempty" bson:"weight,omitempty"`
	WeightChange24h      *float64   `mapstructure:"weightChange24h" json:"weightChange24h,omitempty" bson:"weightChange24h,omitempty"`
	Timestamp            *time.Time `mapstructure:"-" json:"timestamp,omitempty" bson:"timestamp,omitempty"`

	// EntryId links the measurements to the entry normalized from the same record.
	EntryId string `mapstructure:"-" json:"-" bson:"-"`
}

func (m Measurements) Empty() bool {
	return m.UrineSpecificGravity == nil && m.UrineOsmolality == nil && m.Weight == nil && m.WeightChange24h == nil
}

// Measurements extracts the patient level readings of a record. Unusable values
// are absent.
func (n *Normalizer) Measurements(record Record) Measurements {
	return n.measurements(Canonicalize(record), nil)
}

// Normalize turns a record into its entry, if any, and the measurements it
// carries. Measurements without their own timestamp take the entry's. Records
// of the parse error channel carry no measurements.
func (n *Normalizer) Normalize(record Record) (*timeline.Entry, Measurements) {
	canonical := Canonicalize(record)
	entry, ok := n.Entry(record)
	if !ok {
		entry = nil
	}

	source, _ := canonical["source"].(string)
	if resolveSource(source) == timeline.SourceParseError {
		return entry, Measurements{}
	}

	var fallback *time.Time
	if entry != nil {
		fallback = entry.Timestamp
	}
	measurements := n.measurements(canonical, fallback)
	if entry != nil && !measurements.Empty() {
		measurements.EntryId = entry.Id
	}
	return entry, measurements
}

func (n *Normalizer) measurements(canonical Record, fallback *time.Time) Measurements {
	measurements := Measurements{}
	if err := Decode(canonical, &measurements); err != nil {
		return Measurements{}
	}
	if measurements.Empty() {
		return measurements
	}
	if timestamp, ok := ParseTimestamp(canonical["timestamp"], n.Location); ok {
		measurements.Timestamp = timestamp
	} else if fallback != nil {
		timestamp := *fallback
		measurements.Timestamp = &timestamp
	} else {
		now := n.now()
		measurements.Timestamp = &now
	}
	return measurements
}

// DevicePayload flattens a device update of the form {patientId, kind, data, time}
// into one raw record. Fields of data take precedence over the envelope.
func DevicePayload(payload Record) Record {
	envelope := Canonicalize(payload)
	record := Record{}
	if data, ok := envelope["data"].(map[string]interface{}); ok {
		for key, value := range data {
			record[key] = value
		}
	}

	if value, ok := present(envelope, "patientId"); ok {
		if _, exists := present(record, "patientId"); !exists {
			record["patientId"] = value
		}
	}

	if kind, ok := envelope["kind"].(string); ok {
		kind = strings.ToLower(strings.TrimSpace(kind))
		switch kind {
		case "intake", "output":
			if _, exists := present(record, "kind"); !exists {
				record["kind"] = kind
			}
		default:
			if _, exists := present(record, "source"); !exists && kind != "" {
				record["source"] = kind
			}
		}
	}

	for _, key := range []string{"timestamp", "time"} {
		if value, ok := present(envelope, key); ok {
			if _, exists := present(record, "timestamp"); !exists {
				record["timestamp"] = value
			}
			break
		}
	}

	return record
}
