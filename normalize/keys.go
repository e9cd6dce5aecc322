package normalize

import (
	"strings"
	"unicode"
)

// Record is a raw event or registration record of unknown shape.
type Record = map[string]interface{}

// aliases translates legacy key spellings to canonical field names. Keys not
// listed here that contain underscores are converted to camelCase.
var aliases = map[string]string{
	"user_type":              "userType",
	"patient_name":           "patientName",
	"gfr_stage":              "gfrStage",
	"is_ckd_patient":         "isCKD",
	"is_ckd":                 "isCKD",
	"isCkd":                  "isCKD",
	"in_ml":                  "inMl",
	"out_ml":                 "outMl",
	"value_ml":               "valueMl",
	"in_ml_max":              "inMlMax",
	"out_ml_max":             "outMlMax",
	"urine_specific_gravity": "urineSpecificGravity",
	"urine_osmolality":       "urineOsmolality",
	"time_stamp":             "timestamp",
	"patient_id":             "patientId",
	"patientid":              "patientId",
	"time_ago":               "timeAgo",
	"image_url":              "imageUrl",
	"ai_recognition":         "aiRecognition",
	"caregiver_id":           "caregiverId",
	"bed_number":             "bedNumber",
	"weight_change_24h":      "weightChange24h",
}

// aliasPairs hold equivalent fields that must agree. The first spelling wins
// when both are present.
var aliasPairs = [][2]string{
	{"name", "patientName"},
	{"totalIntake", "inMl"},
	{"totalOutput", "outMl"},
	{"intakeLimit", "inMlMax"},
	{"outputLimit", "outMlMax"},
}

// CanonicalKey returns the canonical spelling of a key.
func CanonicalKey(key string) string {
	if canonical, ok := aliases[key]; ok {
		return canonical
	}
	if strings.Contains(key, "_") {
		return snakeToCamel(key)
	}
	return key
}

func snakeToCamel(key string) string {
	var b strings.Builder
	upper := false
	for i, r := range strings.TrimLeft(key, "_") {
		switch {
		case r == '_':
			upper = true
		case upper && i > 0:
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Canonicalize returns a copy of the record with canonical keys, nested maps and
// lists included, and with alias pairs reconciled. Canonical keys take precedence
// over legacy spellings of the same field.
func Canonicalize(record Record) Record {
	if record == nil {
		return nil
	}

	result := make(Record, len(record))
	for key, value := range record {
		canonical := CanonicalKey(key)
		if _, exists := result[canonical]; exists && canonical != key {
			continue
		}
		result[canonical] = canonicalizeValue(value)
	}

	for _, pair := range aliasPairs {
		first, firstOk := present(result, pair[0])
		_, secondOk := present(result, pair[1])
		switch {
		case firstOk:
			result[pair[1]] = first
		case secondOk:
			result[pair[0]] = result[pair[1]]
		}
	}

	if _, ok := present(result, "valueMl"); !ok {
		if value, ok := present(result, "value"); ok {
			result["valueMl"] = value
		}
	}

	return result
}

func canonicalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return Canonicalize(v)
	case []interface{}:
		list := make([]interface{}, 0, len(v))
		for _, item := range v {
			list = append(list, canonicalizeValue(item))
		}
		return list
	case []map[string]interface{}:
		list := make([]interface{}, 0, len(v))
		for _, item := range v {
			list = append(list, Canonicalize(item))
		}
		return list
	default:
		return value
	}
}

func present(record Record, key string) (interface{}, bool) {
	value, ok := record[key]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}
