package services

import (
	"libreria/infrastructure/persistence/store"
)

// Attribute readers tolerant of the numeric widening that happens on the
// snapshot-file and DynamoDB round-trips (ints come back as float64).

func stringAttr(item store.Item, name string) string {
	s, _ := item[name].(string)
	return s
}

func intAttr(item store.Item, name string) int {
	switch v := item[name].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func floatAttr(item store.Item, name string) float64 {
	switch v := item[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
