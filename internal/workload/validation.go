package workload

import (
	"fmt"
	"strings"

	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
)

// ValidationStrategy decides what a row-count mismatch does to the call.
type ValidationStrategy int

const (
	// ValidationFail returns a ValidationError.
	ValidationFail ValidationStrategy = iota
	// ValidationIgnore counts the mismatch and lets the call succeed.
	ValidationIgnore
)

func (s ValidationStrategy) String() string {
	if s == ValidationIgnore {
		return "ignore"
	}
	return "fail"
}

// ParseValidationStrategy accepts "fail" or "ignore". Empty means fail.
func ParseValidationStrategy(s string) (ValidationStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail", "fail-fast", "fail_fast":
		return ValidationFail, nil
	case "ignore":
		return ValidationIgnore, nil
	}
	return ValidationFail, dberr.Argument("invalid validation strategy %q: use fail or ignore", s)
}

// Bounds is the inclusive row-count range an operation must return.
type Bounds struct {
	Min     uint64
	Max     uint64
	Message string
}

// ParseBounds normalizes validation arguments. Accepted shapes are
// (n), (min, max), (n, message) and (min, max, message).
func ParseBounds(args []value.Value) (Bounds, error) {
	kinds := make([]value.Kind, len(args))
	for i, a := range args {
		kinds[i] = a.Kind()
	}

	var b Bounds
	var err error
	switch {
	case shape(kinds, value.KindInt):
		b.Min, err = rowCount(args[0])
		b.Max = b.Min
	case shape(kinds, value.KindInt, value.KindInt):
		b.Min, err = rowCount(args[0])
		if err == nil {
			b.Max, err = rowCount(args[1])
		}
	case shape(kinds, value.KindInt, value.KindString):
		b.Min, err = rowCount(args[0])
		b.Max = b.Min
		b.Message, _ = args[1].AsString()
	case shape(kinds, value.KindInt, value.KindInt, value.KindString):
		b.Min, err = rowCount(args[0])
		if err == nil {
			b.Max, err = rowCount(args[1])
		}
		b.Message, _ = args[2].AsString()
	default:
		return Bounds{}, dberr.Argument("invalid validation arguments %v: expected (n), (min, max), (n, message) or (min, max, message)", kinds)
	}
	if err != nil {
		return Bounds{}, err
	}
	if b.Min > b.Max {
		return Bounds{}, dberr.Argument("invalid validation arguments: min %d is greater than max %d", b.Min, b.Max)
	}
	return b, nil
}

func shape(kinds []value.Kind, want ...value.Kind) bool {
	if len(kinds) != len(want) {
		return false
	}
	for i := range want {
		if kinds[i] != want[i] {
			return false
		}
	}
	return true
}

func rowCount(v value.Value) (uint64, error) {
	n, _ := v.AsInt()
	if n < 0 {
		return 0, dberr.Argument("expected row count must not be negative, got %d", n)
	}
	return uint64(n), nil
}

// Check returns a ValidationError when rows is outside the bounds.
func (b Bounds) Check(rows int) error {
	n := uint64(rows)
	if n >= b.Min && n <= b.Max {
		return nil
	}
	if b.Message != "" {
		return dberr.New(dberr.KindValidation, "%s", b.Message)
	}
	return dberr.New(dberr.KindValidation, "%s", b.describe(rows))
}

func (b Bounds) describe(rows int) string {
	if b.Min == b.Max {
		return fmt.Sprintf("expected %d rows, got %d", b.Min, rows)
	}
	return fmt.Sprintf("expected between %d and %d rows, got %d", b.Min, b.Max, rows)
}
