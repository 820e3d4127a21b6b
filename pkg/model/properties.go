package model

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// propertyString renders a scalar property as text for search and labels.
func propertyString(props map[string]any, key string) (string, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	default:
		return fmt.Sprint(x), true
	}
}

// checkScalars rejects nested objects and arrays in a property map.
func checkScalars(props map[string]any) error {
	for k, v := range props {
		switch v.(type) {
		case nil, string, bool, json.Number, float64, float32, int, int64, uint64:
		default:
			return fmt.Errorf("property %q is not a scalar (%T)", k, v)
		}
	}
	return nil
}
