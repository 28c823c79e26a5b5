// Package value implements the dynamically typed values exchanged between
// workloads and the execution context.
//
// A Value is a tagged variant over null, bool, int, float, string, bytes,
// list and map. Lists and maps are reference types: copying a Value copies
// the reference, and [Value.Clone] produces an independent deep copy.
// Opaque values wrap foreign Go objects (driver handles, closures) and are
// the only kind that cannot be cloned.
package value

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind is the tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a dynamically typed value. The zero Value is null.
type Value struct {
	kind Kind
	num  uint64 // bool, int and float payloads
	str  string
	raw  []byte
	list *[]Value
	m    map[string]Value
	obj  any
}

// Null is the null value.
var Null = Value{}

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.num = 1
	}
	return v
}

func Int(i int64) Value { return Value{kind: KindInt, num: uint64(i)} }

func Float(f float64) Value { return Value{kind: KindFloat, num: math.Float64bits(f)} }

func String(s string) Value { return Value{kind: KindString, str: s} }

// Bytes wraps b without copying.
func Bytes(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// List builds a list holding items. The slice is used without copying.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: &items}
}

// Map builds a map value. A nil map yields an empty map.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// Opaque wraps a foreign object. Opaque values cannot be cloned.
func Opaque(obj any) Value { return Value{kind: KindOpaque, obj: obj} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.num == 1, true
}

// AsInt returns the integer payload. Floats with an integral value convert.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return int64(v.num), true
	case KindFloat:
		f := math.Float64frombits(v.num)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

// AsFloat returns the numeric payload as float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return math.Float64frombits(v.num), true
	case KindInt:
		return float64(int64(v.num)), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBytes {
		return nil, false
	}
	return v.raw, true
}

// AsList returns the list items. The slice aliases the list.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return *v.list, true
}

// AsMap returns the underlying map. Mutations are visible through v.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

func (v Value) AsOpaque() (any, bool) {
	if v.kind != KindOpaque {
		return nil, false
	}
	return v.obj, true
}

// Len returns the number of items of a list, map, string or bytes value.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(*v.list)
	case KindMap:
		return len(v.m)
	case KindString:
		return len(v.str)
	case KindBytes:
		return len(v.raw)
	}
	return 0
}

// Get looks up key in a map value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Null, false
	}
	item, ok := v.m[key]
	return item, ok
}

// Set stores item under key in a map value. It reports false for non-maps.
func (v Value) Set(key string, item Value) bool {
	if v.kind != KindMap {
		return false
	}
	v.m[key] = item
	return true
}

// Append adds items to a list value in place.
func (v Value) Append(items ...Value) bool {
	if v.kind != KindList {
		return false
	}
	*v.list = append(*v.list, items...)
	return true
}

// Keys returns the sorted keys of a map value.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports structural equality. Opaque values compare by identity.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool, KindInt, KindFloat:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	case KindList:
		a, b := *v.list, *o.list
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	case KindOpaque:
		if v.obj == nil || o.obj == nil {
			return v.obj == o.obj
		}
		if !reflect.TypeOf(v.obj).Comparable() || !reflect.TypeOf(o.obj).Comparable() {
			return false
		}
		return v.obj == o.obj
	}
	return false
}

// String renders v for display.
func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.num == 1))
	case KindInt:
		sb.WriteString(strconv.FormatInt(int64(v.num), 10))
	case KindFloat:
		sb.WriteString(strconv.FormatFloat(math.Float64frombits(v.num), 'g', -1, 64))
	case KindString:
		sb.WriteString(strconv.Quote(v.str))
	case KindBytes:
		fmt.Fprintf(sb, "0x%x", v.raw)
	case KindList:
		sb.WriteByte('[')
		for i, item := range *v.list {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.write(sb)
		}
		sb.WriteByte(']')
	case KindMap:
		sb.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Quote(k))
			sb.WriteString(": ")
			v.m[k].write(sb)
		}
		sb.WriteByte('}')
	case KindOpaque:
		fmt.Fprintf(sb, "<opaque %T>", v.obj)
	}
}
