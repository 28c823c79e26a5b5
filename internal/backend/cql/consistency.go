package cql

import (
	"strings"

	"github.com/gocql/gocql"

	"github.com/torosent/crankdb/internal/dberr"
)

// DefaultConsistency is used when none is configured.
const DefaultConsistency = gocql.LocalQuorum

var consistencyAliases = map[string]gocql.Consistency{
	"any":          gocql.Any,
	"one":          gocql.One,
	"1":            gocql.One,
	"two":          gocql.Two,
	"2":            gocql.Two,
	"three":        gocql.Three,
	"3":            gocql.Three,
	"quorum":       gocql.Quorum,
	"q":            gocql.Quorum,
	"all":          gocql.All,
	"local_one":    gocql.LocalOne,
	"localone":     gocql.LocalOne,
	"l1":           gocql.LocalOne,
	"local_quorum": gocql.LocalQuorum,
	"localquorum":  gocql.LocalQuorum,
	"lq":           gocql.LocalQuorum,
	"each_quorum":  gocql.EachQuorum,
	"eachquorum":   gocql.EachQuorum,
	"eq":           gocql.EachQuorum,
	// Serial levels are valid read consistencies for conditional reads.
	"serial":       gocql.Consistency(gocql.Serial),
	"s":            gocql.Consistency(gocql.Serial),
	"local_serial": gocql.Consistency(gocql.LocalSerial),
	"localserial":  gocql.Consistency(gocql.LocalSerial),
	"ls":           gocql.Consistency(gocql.LocalSerial),
}

// ParseConsistency accepts a consistency name or alias, case-insensitively.
// An empty string selects DefaultConsistency.
func ParseConsistency(s string) (gocql.Consistency, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return DefaultConsistency, nil
	}
	c, ok := consistencyAliases[key]
	if !ok {
		return 0, dberr.Argument("invalid consistency level %q", s)
	}
	return c, nil
}

// ParseSerialConsistency accepts serial/s or local_serial/localserial/ls.
// An empty string selects LOCAL_SERIAL.
func ParseSerialConsistency(s string) (gocql.SerialConsistency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local_serial", "localserial", "ls":
		return gocql.LocalSerial, nil
	case "serial", "s":
		return gocql.Serial, nil
	}
	return 0, dberr.Argument("invalid serial consistency level %q", s)
}

// ConsistencyName renders c in CQL notation.
func ConsistencyName(c gocql.Consistency) string {
	switch c {
	case gocql.Consistency(gocql.Serial):
		return "SERIAL"
	case gocql.Consistency(gocql.LocalSerial):
		return "LOCAL_SERIAL"
	}
	return c.String()
}
