package dynamo

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/torosent/crankdb/internal/dberr"
)

var overloadCodes = map[string]bool{
	"ProvisionedThroughputExceededException": true,
	"ProvisionedThroughputExceeded":          true,
	"ThrottlingException":                    true,
	"ThrottlingError":                        true,
	"RequestLimitExceeded":                   true,
}

var timeoutCodes = map[string]bool{
	"InternalServerError":     true,
	"ServiceUnavailable":      true,
	"RequestTimeout":          true,
	"RequestTimeoutException": true,
}

func classify(err error, stmt string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return dberr.Wrap(kindOf(err), err, "%s", stmt)
}

func kindOf(err error) dberr.Kind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case overloadCodes[code]:
			return dberr.KindOverloaded
		case timeoutCodes[code], apiErr.ErrorFault() == smithy.FaultServer:
			return dberr.KindTimeout
		case strings.HasPrefix(code, "UnrecognizedClient"), code == "AccessDeniedException", code == "InvalidSignatureException":
			return dberr.KindConnection
		}
		return dberr.KindQuery
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return dberr.KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return dberr.KindConnection
	}
	return dberr.KindQuery
}

// batchError classifies a per-statement failure of BatchExecuteStatement.
func batchError(idx int, e *types.BatchStatementError) error {
	code := string(e.Code)
	msg := code
	if e.Message != nil {
		msg = code + ": " + *e.Message
	}
	kind := dberr.KindQuery
	switch {
	case overloadCodes[code]:
		kind = dberr.KindOverloaded
	case timeoutCodes[code]:
		kind = dberr.KindTimeout
	}
	return dberr.New(kind, "batch statement %d failed: %s", idx, msg)
}
