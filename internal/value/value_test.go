package value_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/torosent/crankdb/internal/value"
)

func TestCloneIsIndependent(t *testing.T) {
	orig := value.Map(map[string]value.Value{
		"ids":   value.List(value.Int(1), value.Int(2)),
		"blob":  value.Bytes([]byte{1, 2, 3}),
		"inner": value.Map(map[string]value.Value{"name": value.String("a")}),
	})

	clone, err := orig.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if !clone.Equal(orig) {
		t.Fatalf("clone %s differs from original %s", clone, orig)
	}

	ids, _ := clone.Get("ids")
	ids.Append(value.Int(3))
	blob, _ := clone.Get("blob")
	raw, _ := blob.AsBytes()
	raw[0] = 9
	inner, _ := clone.Get("inner")
	inner.Set("name", value.String("b"))

	origIDs, _ := orig.Get("ids")
	if origIDs.Len() != 2 {
		t.Fatalf("original list mutated: %s", origIDs)
	}
	origBlob, _ := orig.Get("blob")
	if b, _ := origBlob.AsBytes(); b[0] != 1 {
		t.Fatalf("original bytes mutated")
	}
	origInner, _ := orig.Get("inner")
	if name, _ := origInner.Get("name"); !name.Equal(value.String("a")) {
		t.Fatalf("original map mutated: %s", name)
	}
}

func TestCloneRejectsOpaque(t *testing.T) {
	bag := value.Map(map[string]value.Value{
		"conn": value.List(value.Opaque(make(chan int))),
	})
	for i := 0; i < 3; i++ {
		_, err := bag.Clone()
		var uerr *value.UncloneableError
		if !errors.As(err, &uerr) {
			t.Fatalf("attempt %d: expected UncloneableError, got %v", i, err)
		}
		if uerr.Path != "$.conn[0]" {
			t.Fatalf("unexpected path %q", uerr.Path)
		}
	}
}

func TestAccessors(t *testing.T) {
	if i, ok := value.Float(4).AsInt(); !ok || i != 4 {
		t.Fatalf("integral float should convert to int, got %d %v", i, ok)
	}
	if _, ok := value.Float(4.5).AsInt(); ok {
		t.Fatalf("fractional float must not convert to int")
	}
	if f, ok := value.Int(3).AsFloat(); !ok || f != 3 {
		t.Fatalf("int should widen to float")
	}
	if _, ok := value.String("x").AsInt(); ok {
		t.Fatalf("string must not convert to int")
	}
	if !value.Null.IsNull() {
		t.Fatalf("zero value must be null")
	}
}

func TestFromGoAndBack(t *testing.T) {
	in := map[string]any{
		"n":    7,
		"f":    1.5,
		"s":    "x",
		"list": []any{true, nil, "y"},
	}
	v := value.FromGo(in)
	if v.Kind() != value.KindMap {
		t.Fatalf("expected map, got %s", v.Kind())
	}
	out, ok := v.ToGo().(map[string]any)
	if !ok {
		t.Fatalf("ToGo returned %T", v.ToGo())
	}
	if out["n"] != int64(7) || out["f"] != 1.5 || out["s"] != "x" {
		t.Fatalf("unexpected round trip: %#v", out)
	}
	if value.FromGo(struct{}{}).Kind() != value.KindOpaque {
		t.Fatalf("unknown types should become opaque")
	}
}

func TestFromJSON(t *testing.T) {
	v, err := value.FromJSON(`{"a": 1, "b": [1.5, "x", null], "c": {"d": true}}`)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	want := value.Map(map[string]value.Value{
		"a": value.Int(1),
		"b": value.List(value.Float(1.5), value.String("x"), value.Null),
		"c": value.Map(map[string]value.Value{"d": value.Bool(true)}),
	})
	if !v.Equal(want) {
		t.Fatalf("got %s, want %s", v, want)
	}
	if _, err := value.FromJSON(`{"a":`); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestMarshalJSON(t *testing.T) {
	v := value.List(value.Int(1), value.String("a"))
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `[1,"a"]` {
		t.Fatalf("unexpected JSON %s", data)
	}
	if _, err := json.Marshal(value.Opaque(1)); err == nil {
		t.Fatalf("expected error encoding opaque value")
	}
}

func TestString(t *testing.T) {
	v := value.Map(map[string]value.Value{
		"b": value.List(value.Int(1), value.Null),
		"a": value.String("x"),
	})
	if got := v.String(); got != `{"a": "x", "b": [1, null]}` {
		t.Fatalf("String() = %s", got)
	}
}
