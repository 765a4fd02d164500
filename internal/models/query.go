package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueKind tags the scalar type of a sandbox cell. Sandbox schemas are
// arbitrary and user-defined, so values are carried as a tagged variant
// instead of a concrete type.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// Value is one loosely-typed scalar cell of a query result.
type Value struct {
	kind  ValueKind
	num   int64
	float float64
	text  string
	blob  []byte
}

// Row is one ordered row of scalar values.
type Row []Value

// NullValue returns the SQL NULL cell.
func NullValue() Value {
	return Value{kind: KindNull}
}

// IntValue wraps an integer cell.
func IntValue(v int64) Value {
	return Value{kind: KindInt, num: v}
}

// FloatValue wraps a floating-point cell.
func FloatValue(v float64) Value {
	return Value{kind: KindFloat, float: v}
}

// TextValue wraps a text cell.
func TextValue(v string) Value {
	return Value{kind: KindText, text: v}
}

// BlobValue wraps a binary cell. The slice is copied.
func BlobValue(v []byte) Value {
	b := make([]byte, len(v))
	copy(b, v)
	return Value{kind: KindBlob, blob: b}
}

// ValueOf converts a database/sql scan result into a tagged Value.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case nil:
		return NullValue()
	case int64:
		return IntValue(v)
	case int:
		return IntValue(int64(v))
	case float64:
		return FloatValue(v)
	case bool:
		if v {
			return IntValue(1)
		}
		return IntValue(0)
	case string:
		return TextValue(v)
	case []byte:
		return BlobValue(v)
	case time.Time:
		return TextValue(v.Format(time.RFC3339))
	default:
		return TextValue(fmt.Sprint(v))
	}
}

// Kind returns the scalar tag of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Int returns the integer payload; zero unless Kind is KindInt.
func (v Value) Int() int64 {
	return v.num
}

// Float returns the float payload; zero unless Kind is KindFloat.
func (v Value) Float() float64 {
	return v.float
}

// Text returns the text payload; empty unless Kind is KindText.
func (v Value) Text() string {
	return v.text
}

// Blob returns the binary payload; nil unless Kind is KindBlob.
func (v Value) Blob() []byte {
	return v.blob
}

// String renders the value for display and for answer-style comparison.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.float, 'g', -1, 64)
	case KindBlob:
		return base64.StdEncoding.EncodeToString(v.blob)
	default:
		return v.text
	}
}

// MarshalJSON renders the value as a plain JSON scalar: null, number,
// string, or base64 string for blobs.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindInt:
		return []byte(strconv.FormatInt(v.num, 10)), nil
	case KindFloat:
		// NaN and infinities are not representable in JSON
		if math.IsNaN(v.float) || math.IsInf(v.float, 0) {
			return json.Marshal(strconv.FormatFloat(v.float, 'g', -1, 64))
		}
		return []byte(strconv.FormatFloat(v.float, 'g', -1, 64)), nil
	case KindBlob:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.blob))
	default:
		return json.Marshal(v.text)
	}
}

// UnmarshalJSON parses a plain JSON scalar back into a tagged value.
// Blobs come back as text; the base64 encoding is not reversible without
// out-of-band type information.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case nil:
		*v = NullValue()
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = IntValue(i)
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return err
		}
		*v = FloatValue(f)
	case string:
		*v = TextValue(t)
	case bool:
		if t {
			*v = IntValue(1)
		} else {
			*v = IntValue(0)
		}
	default:
		return fmt.Errorf("cannot decode %v into a scalar value", tok)
	}
	return nil
}

// QueryResult is the complete, ordered result set of one statement.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// ColumnInfo describes one column of a sandbox table, as reported by the
// database's own catalog.
type ColumnInfo struct {
	CID        int     `json:"cid"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	NotNull    bool    `json:"notnull"`
	Default    *string `json:"default"`
	PrimaryKey bool    `json:"pk"`
}

// TableSchema is one sandbox table with its columns and a bounded sample
// of its rows, for visualization.
type TableSchema struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
	Sample  []Row        `json:"sample"`
}
