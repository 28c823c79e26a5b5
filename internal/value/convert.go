package value

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// UncloneableError is returned by Clone when the tree holds an opaque value.
type UncloneableError struct {
	Path string
	Type string
}

func (e *UncloneableError) Error() string {
	return fmt.Sprintf("value at %s holds %s and cannot be copied", e.Path, e.Type)
}

// Clone returns a deep copy of v sharing no mutable state with it.
func (v Value) Clone() (Value, error) {
	return v.clone("$")
}

func (v Value) clone(path string) (Value, error) {
	switch v.kind {
	case KindBytes:
		return Bytes(append([]byte(nil), v.raw...)), nil
	case KindList:
		src := *v.list
		items := make([]Value, len(src))
		for i, item := range src {
			c, err := item.clone(fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Null, err
			}
			items[i] = c
		}
		return List(items...), nil
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			c, err := item.clone(path + "." + k)
			if err != nil {
				return Null, err
			}
			m[k] = c
		}
		return Map(m), nil
	case KindOpaque:
		return Null, &UncloneableError{Path: path, Type: fmt.Sprintf("%T", v.obj)}
	default:
		return v, nil
	}
}

// FromGo converts a native Go value. Unknown types become opaque values.
func FromGo(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint:
		return Int(int64(t))
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t))
		}
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case time.Time:
		return Int(t.UnixMilli())
	case time.Duration:
		return Int(t.Milliseconds())
	case []Value:
		return List(t...)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromGo(item)
		}
		return List(items...)
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return List(items...)
	case map[string]Value:
		return Map(t)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromGo(item)
		}
		return Map(m)
	case map[string]string:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = String(item)
		}
		return Map(m)
	case fmt.Stringer:
		return String(t.String())
	default:
		return Opaque(x)
	}
}

// ToGo converts v to plain Go values: nil, bool, int64, float64, string,
// []byte, []any and map[string]any. Opaque values yield the wrapped object.
func (v Value) ToGo() any {
	switch v.kind {
	case KindBool:
		return v.num == 1
	case KindInt:
		return int64(v.num)
	case KindFloat:
		return math.Float64frombits(v.num)
	case KindString:
		return v.str
	case KindBytes:
		return v.raw
	case KindList:
		out := make([]any, len(*v.list))
		for i, item := range *v.list {
			out[i] = item.ToGo()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.ToGo()
		}
		return out
	case KindOpaque:
		return v.obj
	default:
		return nil
	}
}

// FromJSON parses a JSON document. Integral numbers become ints.
func FromJSON(doc string) (Value, error) {
	if !gjson.Valid(doc) {
		return Null, fmt.Errorf("invalid JSON document")
	}
	return fromResult(gjson.Parse(doc)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null
	case gjson.False:
		return Bool(false)
	case gjson.True:
		return Bool(true)
	case gjson.Number:
		if i := r.Int(); float64(i) == r.Float() {
			return Int(i)
		}
		return Float(r.Float())
	case gjson.String:
		return String(r.Str)
	}
	if r.IsArray() {
		var items []Value
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, fromResult(item))
			return true
		})
		return List(items...)
	}
	m := map[string]Value{}
	r.ForEach(func(key, item gjson.Result) bool {
		m[key.String()] = fromResult(item)
		return true
	})
	return Map(m)
}

// MarshalJSON encodes v. Bytes encode as base64 strings and opaque values fail.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindOpaque {
		return nil, fmt.Errorf("cannot encode opaque value %T", v.obj)
	}
	if v.kind == KindFloat {
		f := math.Float64frombits(v.num)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return json.Marshal(v.String())
		}
	}
	return json.Marshal(v.ToGo())
}
