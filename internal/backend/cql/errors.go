package cql

import (
	"context"
	"errors"

	"github.com/gocql/gocql"

	"github.com/torosent/crankdb/internal/dberr"
)

// classify maps a driver error onto the error taxonomy. Overload and the
// various timeout conditions are transient; anything else fails the query.
func classify(err error, query string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return dberr.Wrap(kindOf(err), err, "%s", query)
}

func kindOf(err error) dberr.Kind {
	var reqErr gocql.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Code() {
		case gocql.ErrCodeOverloaded:
			return dberr.KindOverloaded
		case gocql.ErrCodeUnavailable, gocql.ErrCodeWriteTimeout, gocql.ErrCodeReadTimeout, gocql.ErrCodeBootstrapping:
			return dberr.KindTimeout
		case gocql.ErrCodeCredentials, gocql.ErrCodeUnauthorized:
			return dberr.KindConnection
		}
		return dberr.KindQuery
	}
	switch {
	case errors.Is(err, gocql.ErrTimeoutNoResponse), errors.Is(err, gocql.ErrNoConnections), errors.Is(err, gocql.ErrConnectionClosed):
		return dberr.KindTimeout
	}
	return dberr.KindQuery
}
