package dynamo

import (
	"strings"

	"github.com/torosent/crankdb/internal/dberr"
)

// Consistency is the read consistency of PartiQL statements.
type Consistency int

const (
	Eventual Consistency = iota
	Strong
)

func (c Consistency) String() string {
	if c == Strong {
		return "STRONG"
	}
	return "EVENTUAL"
}

// ParseConsistency accepts EVENTUAL or STRONG, case-insensitively. An empty
// string selects Eventual.
func ParseConsistency(s string) (Consistency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "EVENTUAL":
		return Eventual, nil
	case "STRONG":
		return Strong, nil
	}
	return Eventual, dberr.Argument("invalid DynamoDB consistency %q: expected EVENTUAL or STRONG", s)
}
