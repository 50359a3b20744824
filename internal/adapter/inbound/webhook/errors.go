package webhook

import "fmt"

// DecodeError reports a request body that is not a well-formed interaction.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "bad body: " + e.Reason
}

// DispatchErrorKind classifies failures after a request was authenticated
// and decoded.
type DispatchErrorKind int

const (
	NoHandlerFound DispatchErrorKind = iota + 1
	HandlerFailed
	HandlerTimeout
	ContractViolation
)

func (k DispatchErrorKind) String() string {
	switch k {
	case NoHandlerFound:
		return "no_handler_found"
	case HandlerFailed:
		return "handler_failed"
	case HandlerTimeout:
		return "handler_timeout"
	case ContractViolation:
		return "contract_violation"
	default:
		return fmt.Sprintf("dispatch_error(%d)", int(k))
	}
}

// DispatchError is a routing or handler failure for one interaction.
type DispatchError struct {
	Kind     DispatchErrorKind
	RouteKey string
	Err      error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s for %s: %v", e.Kind, e.RouteKey, e.Err)
	}
	return fmt.Sprintf("%s for %s", e.Kind, e.RouteKey)
}

func (e *DispatchError) Unwrap() error { return e.Err }
