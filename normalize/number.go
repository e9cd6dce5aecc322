package normalize

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

var numberRegexp = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d+)?|\.\d+)(?:[eE][-+]?\d+)?`)

// ExtractNumber returns the numeric value of a field. Strings yield their first
// floating point token, so "1.015 (normal)" is 1.015. Anything else is absent.
func ExtractNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case *float64:
		if v == nil {
			return 0, false
		}
		return *v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		token := numberRegexp.FindString(v)
		if token == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(token, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var float64PtrType = reflect.TypeOf((*float64)(nil))

// numericStringHook decodes descriptive strings into optional numbers. A string
// without a numeric token decodes to an absent value rather than zero.
func numericStringHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != float64PtrType {
		return data, nil
	}
	if f, ok := ExtractNumber(data); ok {
		return f, nil
	}
	return nil, nil
}

// Decode decodes a canonical record into a struct tagged with mapstructure names.
func Decode(record Record, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       numericStringHook,
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(record)
}
