package llm

import (
	"fmt"
	"strconv"
)

// RenderValue turns a decoded JSON value into the string that lands in a
// template cell. Integral floats drop the trailing ".0" that encoding/json
// would otherwise leave behind.
func RenderValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
