package reddit

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
)

// Doc is a read-only view over decoded JSON. Every accessor is total:
// looking up a missing key or reading the wrong type yields a zero value.
type Doc struct {
	v any
}

// NewDoc wraps an already decoded value (map[string]any, []any, string, float64, bool, nil).
func NewDoc(v any) Doc { return Doc{v: v} }

// ParseDoc decodes one JSON document.
func ParseDoc(r io.Reader) (Doc, error) {
	var v any
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return Doc{}, err
	}
	return Doc{v: v}, nil
}

// ParseDocBytes decodes one JSON document from b.
func ParseDocBytes(b []byte) (Doc, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return Doc{}, err
	}
	return Doc{v: v}, nil
}

// Get walks object keys.
func (d Doc) Get(keys ...string) Doc {
	cur := d.v
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return Doc{}
		}
		cur = m[k]
	}
	return Doc{v: cur}
}

// Index returns the i-th array element.
func (d Doc) Index(i int) Doc {
	a, ok := d.v.([]any)
	if !ok || i < 0 || i >= len(a) {
		return Doc{}
	}
	return Doc{v: a[i]}
}

// Items returns array elements; nil for anything but an array.
func (d Doc) Items() []Doc {
	a, ok := d.v.([]any)
	if !ok {
		return nil
	}
	out := make([]Doc, len(a))
	for i, v := range a {
		out[i] = Doc{v: v}
	}
	return out
}

func (d Doc) Exists() bool { return d.v != nil }

func (d Doc) IsObject() bool {
	_, ok := d.v.(map[string]any)
	return ok
}

func (d Doc) IsArray() bool {
	_, ok := d.v.([]any)
	return ok
}

// Len is the number of array elements or object keys.
func (d Doc) Len() int {
	switch x := d.v.(type) {
	case []any:
		return len(x)
	case map[string]any:
		return len(x)
	}
	return 0
}

// String returns string values as is and formats numbers; other types give "".
func (d Doc) String() string {
	switch x := d.v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return ""
}

// Float accepts numbers and numeric strings.
func (d Doc) Float() float64 {
	switch x := d.v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return x
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// Int truncates Float, saturating at the int64 range.
func (d Doc) Int() int64 {
	f := d.Float()
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// Bool is true only for a JSON true.
func (d Doc) Bool() bool {
	b, _ := d.v.(bool)
	return b
}

// Strings collects the string elements of an array, skipping anything else.
func (d Doc) Strings() []string {
	items := d.Items()
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
