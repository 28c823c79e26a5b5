package cql_test

import (
	"errors"
	"testing"

	"github.com/gocql/gocql"

	"github.com/torosent/crankdb/internal/backend/cql"
	"github.com/torosent/crankdb/internal/dberr"
)

func TestParseConsistency(t *testing.T) {
	tests := []struct {
		in   string
		want gocql.Consistency
	}{
		{"", gocql.LocalQuorum},
		{"any", gocql.Any},
		{"ONE", gocql.One},
		{"1", gocql.One},
		{"two", gocql.Two},
		{"3", gocql.Three},
		{"q", gocql.Quorum},
		{"all", gocql.All},
		{"l1", gocql.LocalOne},
		{"LocalOne", gocql.LocalOne},
		{"lq", gocql.LocalQuorum},
		{"local_quorum", gocql.LocalQuorum},
		{"eq", gocql.EachQuorum},
		{"serial", gocql.Consistency(gocql.Serial)},
		{"ls", gocql.Consistency(gocql.LocalSerial)},
	}
	for _, tt := range tests {
		got, err := cql.ParseConsistency(tt.in)
		if err != nil {
			t.Errorf("ParseConsistency(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseConsistency(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := cql.ParseConsistency("most"); !errors.Is(err, dberr.ErrArgument) {
		t.Errorf("expected ArgumentError, got %v", err)
	}
}

func TestParseSerialConsistency(t *testing.T) {
	if got, _ := cql.ParseSerialConsistency(""); got != gocql.LocalSerial {
		t.Errorf("default serial consistency = %v", got)
	}
	if got, _ := cql.ParseSerialConsistency("S"); got != gocql.Serial {
		t.Errorf("serial alias = %v", got)
	}
	if _, err := cql.ParseSerialConsistency("quorum"); !errors.Is(err, dberr.ErrArgument) {
		t.Errorf("expected ArgumentError, got %v", err)
	}
}

func TestConsistencyName(t *testing.T) {
	if got := cql.ConsistencyName(gocql.Consistency(gocql.LocalSerial)); got != "LOCAL_SERIAL" {
		t.Errorf("got %q", got)
	}
	if got := cql.ConsistencyName(gocql.LocalQuorum); got != "LOCAL_QUORUM" {
		t.Errorf("got %q", got)
	}
}
