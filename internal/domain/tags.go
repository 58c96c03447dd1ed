package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Known tag attributes. Anything else in Tags is carried through untouched.
const (
	TagPrice       = "price"
	TagArea        = "area"
	TagFloor       = "floor"
	TagRooms       = "rooms"
	TagCity        = "city"
	TagType        = "type"
	TagView        = "view"
	TagFinishing   = "finishing"
	TagPayment     = "payment"
	TagSeaDistance = "sea-distance"
	TagDelivery    = "delivery"
	TagTitle       = "title"
)

// RangedAttributes hold numbers and support min/max bounds.
var RangedAttributes = []string{TagPrice, TagArea, TagFloor}

// CategoricalAttributes hold strings and support set-membership filters.
var CategoricalAttributes = []string{TagRooms, TagCity, TagType, TagView, TagFinishing, TagPayment, TagSeaDistance}

func IsRanged(attr string) bool      { return contains(RangedAttributes, attr) }
func IsCategorical(attr string) bool { return contains(CategoricalAttributes, attr) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type TagKind uint8

const (
	TagNull TagKind = iota
	TagNumber
	TagString
	TagBool
)

// TagValue is one schemaless attribute value: a number, a string or a bool.
type TagValue struct {
	kind TagKind
	num  float64
	str  string
	b    bool
}

func Number(f float64) TagValue { return TagValue{kind: TagNumber, num: f} }
func Text(s string) TagValue    { return TagValue{kind: TagString, str: s} }
func Flag(b bool) TagValue      { return TagValue{kind: TagBool, b: b} }

func (v TagValue) Kind() TagKind { return v.kind }
func (v TagValue) IsNull() bool  { return v.kind == TagNull }

func (v TagValue) Float() (float64, bool) {
	if v.kind != TagNumber {
		return 0, false
	}
	return v.num, true
}

func (v TagValue) Str() (string, bool) {
	if v.kind != TagString {
		return "", false
	}
	return v.str, true
}

// String renders the value the way it would appear in a query string.
func (v TagValue) String() string {
	switch v.kind {
	case TagNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case TagString:
		return v.str
	case TagBool:
		return strconv.FormatBool(v.b)
	}
	return ""
}

// Any returns the native Go value (float64, string, bool or nil).
func (v TagValue) Any() any {
	switch v.kind {
	case TagNumber:
		return v.num
	case TagString:
		return v.str
	case TagBool:
		return v.b
	}
	return nil
}

// TagFromAny converts decoded JSON/BSON scalars. Unsupported types become null.
func TagFromAny(x any) TagValue {
	switch t := x.(type) {
	case TagValue:
		return t
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Number(f)
		}
		return Text(t.String())
	case string:
		return Text(t)
	case bool:
		return Flag(t)
	}
	return TagValue{}
}

func (v TagValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *TagValue) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}
	switch x.(type) {
	case nil, json.Number, string, bool:
		*v = TagFromAny(x)
		return nil
	}
	return fmt.Errorf("tag value must be a scalar, got %s", string(b))
}

// CompareTags orders null < bool < number < string.
func CompareTags(a, b TagValue) int {
	if a.kind != b.kind {
		return kindRank(a.kind) - kindRank(b.kind)
	}
	switch a.kind {
	case TagNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case TagString:
		return strings.Compare(a.str, b.str)
	case TagBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		}
		return 1
	}
	return 0
}

func kindRank(k TagKind) int {
	switch k {
	case TagBool:
		return 1
	case TagNumber:
		return 2
	case TagString:
		return 3
	}
	return 0
}

// Tags is the open attribute bag of a property.
type Tags map[string]TagValue

func (t Tags) Number(attr string) (float64, bool) {
	return t[attr].Float()
}

// Label returns the value as filter text; false when absent or null.
func (t Tags) Label(attr string) (string, bool) {
	v, ok := t[attr]
	if !ok || v.IsNull() {
		return "", false
	}
	return v.String(), true
}

// Normalize coerces known ranged attributes to numbers and categorical ones
// to strings. Ranged values that do not parse and empty categorical values
// are dropped.
func (t Tags) Normalize() Tags {
	out := make(Tags, len(t))
	for k, v := range t {
		switch {
		case v.IsNull():
			continue
		case IsRanged(k):
			if f, ok := ParseNumber(v); ok {
				out[k] = Number(f)
			}
		case IsCategorical(k):
			if s := strings.TrimSpace(v.String()); s != "" {
				out[k] = Text(s)
			}
		default:
			out[k] = v
		}
	}
	return out
}

// ParseNumber accepts finite numbers and numeric strings such as "45,5".
// NaN and infinities never parse.
func ParseNumber(v TagValue) (float64, bool) {
	switch v.kind {
	case TagNumber:
		return v.num, IsFinite(v.num)
	case TagString:
		s := strings.TrimSpace(strings.ReplaceAll(v.str, ",", "."))
		s = strings.ReplaceAll(s, " ", "")
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && IsFinite(f)
	}
	return 0, false
}

func IsFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func (t Tags) ToMap() map[string]any {
	out := make(map[string]any, len(t))
	for k, v := range t {
		out[k] = v.Any()
	}
	return out
}

func TagsFromMap(m map[string]any) Tags {
	out := make(Tags, len(m))
	for k, v := range m {
		out[k] = TagFromAny(v)
	}
	return out
}

// DistinctTags collapses duplicates, drops null and empty values, and sorts.
func DistinctTags(vals []TagValue) []TagValue {
	seen := make(map[string]struct{}, len(vals))
	out := make([]TagValue, 0, len(vals))
	for _, v := range vals {
		if v.IsNull() || (v.kind == TagString && v.str == "") {
			continue
		}
		key := strconv.Itoa(int(v.kind)) + ":" + v.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return CompareTags(out[i], out[j]) < 0 })
	return out
}
