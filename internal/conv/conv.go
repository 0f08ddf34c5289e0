package conv

import "strconv"

// AsInt coerces the supplied value into a plain int; unsupported types yield 0.
func AsInt(value interface{}) int {
	switch actual := value.(type) {
	case int:
		return actual
	case int32:
		return int(actual)
	case int64:
		return int(actual)
	case uint64:
		return int(actual)
	case float64:
		return int(actual)
	case string:
		ret, _ := strconv.Atoi(actual)
		return ret
	}
	return 0
}
