package props

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a replacement value for a field. Build fields carry strings, the
// version marker carries an integer.
type Value struct {
	str   string
	num   int
	isInt bool
}

// String returns a string value.
func String(s string) Value {
	return Value{str: s}
}

// Int returns an integer value.
func Int(i int) Value {
	return Value{num: i, isInt: true}
}

// IsInt reports whether the value holds an integer.
func (v Value) IsInt() bool {
	return v.isInt
}

// Str returns the string payload; empty for integer values.
func (v Value) Str() string {
	return v.str
}

// Int returns the integer payload; zero for string values.
func (v Value) Int() int {
	return v.num
}

// String renders the value for logs and tables.
func (v Value) String() string {
	if v.isInt {
		return strconv.Itoa(v.num)
	}
	return v.str
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	return v.isInt == o.isInt && v.num == o.num && v.str == o.str
}

// Any returns the payload as a plain string or int.
func (v Value) Any() any {
	if v.isInt {
		return v.num
	}
	return v.str
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v Value) MarshalYAML() (interface{}, error) {
	return v.Any(), nil
}

// UnmarshalJSON accepts a JSON string or integer.
func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = String(s)
		return nil
	}
	var i int
	if err := json.Unmarshal(b, &i); err != nil {
		return fmt.Errorf("identity value must be a string or integer: %s", b)
	}
	*v = Int(i)
	return nil
}
