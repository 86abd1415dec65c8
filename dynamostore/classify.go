package dynamostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
)

var transientCodes = map[string]bool{
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"InternalServerError":                    true,
	"ServiceUnavailable":                     true,
}

// classify tags SDK errors with a fault kind so callers can decide on retries.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fault.Wrap(fault.KindUnavailable, op, err)
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		if transientCodes[ae.ErrorCode()] || ae.ErrorFault() == smithy.FaultServer {
			return fault.Wrap(fault.KindUnavailable, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var oe *smithy.OperationError
	if errors.As(err, &oe) {
		// Transport failures surface as an OperationError without an API error.
		return fault.Wrap(fault.KindUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
