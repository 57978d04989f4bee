package lumen

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ValueKind identifies the type of a cell value.
type ValueKind int

const (
	// KindMissing marks an absent or null cell.
	KindMissing ValueKind = iota
	// KindNumber is a numeric cell.
	KindNumber
	// KindText is a string cell.
	KindText
	// KindTime is a date-like cell.
	KindTime
	// KindBool is a boolean cell.
	KindBool
)

// Value is a single cell in a tabular dataset. Cells arrive from upstream
// query results as untyped JSON; Value pins each one to an explicit kind so
// that numeric coercion happens in exactly one place (AsNumber) instead of
// being scattered through the algorithms.
type Value struct {
	kind ValueKind
	num  float64
	text string
	t    time.Time
	b    bool
}

// Number returns a numeric Value.
func Number(v float64) Value { return Value{kind: KindNumber, num: v} }

// Text returns a string Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// TimeValue returns a date-like Value.
func TimeValue(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Missing returns the absent Value.
func Missing() Value { return Value{kind: KindMissing} }

// Kind returns the value's kind.
func (v Value) Kind() ValueKind { return v.kind }

// AsNumber attempts a total numeric coercion. Numbers convert directly,
// numeric strings are parsed, everything else reports false. Callers that
// need the pipeline to stay total map the failure to 0 via NumOrZero.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NumOrZero coerces to a number, substituting 0 when coercion fails.
func (v Value) NumOrZero() float64 {
	f, ok := v.AsNumber()
	if !ok {
		return 0
	}
	return f
}

// timeLayouts are tried in order when parsing a text cell as a date.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006-01",
	"01/02/2006",
}

// AsTime attempts to interpret the value as a point in time. Time cells
// convert directly; numeric cells are treated as a Unix epoch (milliseconds
// when the magnitude clearly exceeds the seconds range); text cells are
// parsed against common layouts.
func (v Value) AsTime() (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindNumber:
		if v.num == 0 {
			return time.Time{}, false
		}
		if math.Abs(v.num) >= 1e12 {
			return time.UnixMilli(int64(v.num)).UTC(), true
		}
		return time.Unix(int64(v.num), 0).UTC(), true
	case KindText:
		s := strings.TrimSpace(v.text)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindText:
		return v.text
	case KindTime:
		return v.t.Format(time.RFC3339)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// MarshalJSON encodes the value as the plain JSON form of its kind.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return json.Marshal(nil)
		}
		return json.Marshal(v.num)
	case KindText:
		return json.Marshal(v.text)
	case KindTime:
		return json.Marshal(v.t.Format(time.RFC3339))
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(nil)
	}
}

// UnmarshalJSON decodes a plain JSON value into the matching kind.
// Strings stay text; date interpretation is deferred to AsTime.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = valueOf(raw)
	return nil
}

// valueOf converts an untyped cell (as produced by encoding/json or a SQL
// driver) into a Value.
func valueOf(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Missing()
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Text(x.String())
		}
		return Number(f)
	case string:
		return Text(x)
	case bool:
		return Bool(x)
	case time.Time:
		return TimeValue(x)
	case []byte:
		return Text(string(x))
	default:
		return Text(fmt.Sprintf("%v", x))
	}
}

// Record is one row of a dataset, keyed by column name. A column absent from
// the map reads as Missing, which coerces to 0.
type Record map[string]Value

// Num returns the numeric coercion of a column, 0 when absent or non-numeric.
func (r Record) Num(column string) float64 {
	return r[column].NumOrZero()
}

// Time returns the date interpretation of a column.
func (r Record) Time(column string) (time.Time, bool) {
	return r[column].AsTime()
}

// Dataset is an ordered sequence of records. For forecasting the row order is
// the time/sequence order of the series.
type Dataset []Record

// Column extracts the numeric coercion of one column across all rows,
// preserving row order. Non-numeric cells read as 0.
func (d Dataset) Column(column string) []float64 {
	out := make([]float64, len(d))
	for i, rec := range d {
		out[i] = rec.Num(column)
	}
	return out
}

// DatasetFromMaps converts rows of untyped cells (the decoded JSON request
// body) into a Dataset.
func DatasetFromMaps(rows []map[string]any) Dataset {
	ds := make(Dataset, len(rows))
	for i, row := range rows {
		rec := make(Record, len(row))
		for col, cell := range row {
			rec[col] = valueOf(cell)
		}
		ds[i] = rec
	}
	return ds
}
