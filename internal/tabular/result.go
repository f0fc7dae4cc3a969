// Package tabular defines the immutable column/row payload produced by query
// execution and the column classification used to drive chart inference.
package tabular

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies the scalar kind held by a Value.
type ValueKind int

const (
	// KindNull is the zero kind; a Value with KindNull holds nothing.
	KindNull ValueKind = iota
	// KindNumber holds a float64.
	KindNumber
	// KindString holds a string.
	KindString
	// KindBool holds a boolean.
	KindBool
)

// Value is a closed scalar variant for a single cell: number, string,
// boolean, or null. Using a closed variant keeps the classifier's type tests
// exhaustive instead of relying on runtime reflection over any.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
}

// Null returns the null Value.
func Null() Value { return Value{} }

// Num returns a numeric Value.
func Num(f float64) Value { return Value{kind: KindNumber, num: f} }

// Str returns a string Value.
func Str(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind returns the scalar kind of the value.
func (v Value) Kind() ValueKind { return v.kind }

// IsEmpty reports whether the value is null or an empty string.
func (v Value) IsEmpty() bool {
	return v.kind == KindNull || (v.kind == KindString && v.str == "")
}

// Float returns the value coerced to a float64. Numbers return themselves;
// strings return their parsed value when they fully parse as a number.
// Everything else reports ok=false.
func (v Value) Float() (f float64, ok bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String returns the display form of the value. Null renders as the empty
// string so callers can apply their own placeholder.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON emits the underlying scalar (or null).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.num)
	case KindString:
		return json.Marshal(v.str)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts any JSON scalar. Objects and arrays are rejected:
// row cells are scalars by contract.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Null()
		return nil
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch x := raw.(type) {
	case float64:
		*v = Num(x)
	case string:
		*v = Str(x)
	case bool:
		*v = Bool(x)
	default:
		return fmt.Errorf("unsupported cell value of type %T", raw)
	}
	return nil
}

// FromAny converts a value scanned from database/sql into a Value.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case float64:
		return Num(x)
	case float32:
		return Num(float64(x))
	case int64:
		return Num(float64(x))
	case int:
		return Num(float64(x))
	case bool:
		return Bool(x)
	case []byte:
		return Str(string(x))
	case string:
		return Str(x)
	default:
		return Str(fmt.Sprintf("%v", x))
	}
}

// Row maps column names to cell values. Every row in a Result carries exactly
// the keys listed in Result.Columns; absent cells are null, never omitted.
type Row map[string]Value

// Result is the immutable column+row payload returned by query execution.
// Row order is significant and is preserved through all transformations.
type Result struct {
	Columns []string
	Rows    []Row
}

// NewResult builds a Result from columns and rows, normalizing each row so it
// contains exactly the listed columns (missing cells become null, extras are
// dropped).
func NewResult(columns []string, rows []Row) Result {
	normalized := make([]Row, len(rows))
	for i, row := range rows {
		n := make(Row, len(columns))
		for _, col := range columns {
			if v, ok := row[col]; ok {
				n[col] = v
			} else {
				n[col] = Null()
			}
		}
		normalized[i] = n
	}
	return Result{Columns: columns, Rows: normalized}
}

// Empty reports whether the result has no rows.
func (r Result) Empty() bool { return len(r.Rows) == 0 }
