package workload_test

import (
	"errors"
	"testing"

	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
	"github.com/torosent/crankdb/internal/workload"
)

func TestParseBoundsShapes(t *testing.T) {
	tests := []struct {
		name string
		args []value.Value
		want workload.Bounds
	}{
		{"exact", []value.Value{value.Int(5)}, workload.Bounds{Min: 5, Max: 5}},
		{"range", []value.Value{value.Int(1), value.Int(10)}, workload.Bounds{Min: 1, Max: 10}},
		{"exact with message", []value.Value{value.Int(3), value.String("custom")}, workload.Bounds{Min: 3, Max: 3, Message: "custom"}},
		{"range with message", []value.Value{value.Int(0), value.Int(2), value.String("m")}, workload.Bounds{Min: 0, Max: 2, Message: "m"}},
		{"explicit empty message", []value.Value{value.Int(5), value.Int(5), value.String("")}, workload.Bounds{Min: 5, Max: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := workload.ParseBounds(tt.args)
			if err != nil {
				t.Fatalf("ParseBounds() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseBounds() = %+v, want %+v", got, tt.want)
			}
			again, _ := workload.ParseBounds(tt.args)
			if again != got {
				t.Fatalf("ParseBounds() is not deterministic: %+v vs %+v", again, got)
			}
		})
	}
}

func TestParseBoundsRejectsShapes(t *testing.T) {
	tests := []struct {
		name string
		args []value.Value
	}{
		{"no args", nil},
		{"string then int", []value.Value{value.String("x"), value.Int(1)}},
		{"float", []value.Value{value.Float(1.5)}},
		{"too many", []value.Value{value.Int(1), value.Int(2), value.String("m"), value.Int(4)}},
		{"negative", []value.Value{value.Int(-1)}},
		{"min above max", []value.Value{value.Int(5), value.Int(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := workload.ParseBounds(tt.args)
			if !errors.Is(err, dberr.ErrArgument) {
				t.Fatalf("ParseBounds() error = %v, want ArgumentError", err)
			}
		})
	}
}

func TestBoundsCheck(t *testing.T) {
	b := workload.Bounds{Min: 1, Max: 3}
	for _, rows := range []int{1, 2, 3} {
		if err := b.Check(rows); err != nil {
			t.Errorf("Check(%d) error = %v", rows, err)
		}
	}
	err := b.Check(4)
	if !errors.Is(err, dberr.ErrValidation) {
		t.Fatalf("Check(4) error = %v, want ValidationError", err)
	}
	if err.Error() != "ValidationError: expected between 1 and 3 rows, got 4" {
		t.Errorf("Check(4) message = %q", err.Error())
	}

	custom := workload.Bounds{Min: 1, Max: 1, Message: "missing row"}
	if err := custom.Check(0); err == nil || err.Error() != "ValidationError: missing row" {
		t.Errorf("custom message not used: %v", err)
	}
}
