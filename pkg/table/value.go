package table

import (
	"fmt"
	"strconv"

	"github.com/ajitpratap0/forcebridge/pkg/json"
)

// FormatValue renders a cell for text formats. Maps and slices become JSON.
func FormatValue(value interface{}) string {
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	case map[string]interface{}, []interface{}, []map[string]interface{}:
		s, err := json.MarshalString(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return s
	default:
		return fmt.Sprintf("%v", value)
	}
}
