package cql

import (
	"fmt"
	"reflect"

	"github.com/gocql/gocql"

	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
)

// BindParams converts workload parameters into gocql bind values. Lists bind
// positionally, maps bind by name.
func BindParams(params value.Value) ([]any, error) {
	switch params.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindList:
		items, _ := params.AsList()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = ToDriver(item)
		}
		return out, nil
	case value.KindMap:
		keys := params.Keys()
		out := make([]any, len(keys))
		for i, k := range keys {
			item, _ := params.Get(k)
			out[i] = gocql.NamedValue(k, ToDriver(item))
		}
		return out, nil
	}
	return nil, dberr.Argument("query parameters must be a list or a map, got %s", params.Kind())
}

// ToDriver converts a single value to the Go type gocql marshals from.
func ToDriver(v value.Value) any {
	switch v.Kind() {
	case value.KindList:
		items, _ := v.AsList()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = ToDriver(item)
		}
		return out
	case value.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[k] = ToDriver(item)
		}
		return out
	}
	return v.ToGo()
}

// FromDriver converts a column value scanned by gocql. Collections of any
// element type become lists and maps.
func FromDriver(x any) value.Value {
	switch t := x.(type) {
	case nil:
		return value.Null
	case gocql.UUID:
		return value.String(t.String())
	case []byte:
		return value.Bytes(t)
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return value.Null
		}
		if _, ok := x.(fmt.Stringer); ok {
			return value.FromGo(x)
		}
		return FromDriver(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return value.Null
		}
		items := make([]value.Value, rv.Len())
		for i := range items {
			items[i] = FromDriver(rv.Index(i).Interface())
		}
		return value.List(items...)
	case reflect.Map:
		if rv.IsNil() {
			return value.Null
		}
		m := make(map[string]value.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[mapKey(iter.Key().Interface())] = FromDriver(iter.Value().Interface())
		}
		return value.Map(m)
	}
	return value.FromGo(x)
}

func mapKey(k any) string {
	v := FromDriver(k)
	if s, ok := v.AsString(); ok {
		return s
	}
	return v.String()
}

// RowValue converts a row scanned with MapScan.
func RowValue(row map[string]any) value.Value {
	m := make(map[string]value.Value, len(row))
	for col, x := range row {
		m[col] = FromDriver(x)
	}
	return value.Map(m)
}
