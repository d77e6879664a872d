package functionRuntimeInterface

import "fmt"

type UnauthorizedError struct{}

func (e *UnauthorizedError) Error() string {
	return "missing or invalid x-internal-challenge secret"
}

type HandlerPanicError struct {
	ExecutionID string
	Value       any
}

func (e *HandlerPanicError) Error() string {
	return fmt.Sprintf("function panicked during execution %s: %v", e.ExecutionID, e.Value)
}

// ExecutionFailedError is what clients see when the function returned an error.
type ExecutionFailedError struct {
	ExecutionID string
	Stderr      string
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("execution %s failed: %s", e.ExecutionID, e.Stderr)
}

// UnexpectedStatusError is returned by Client for statuses outside the protocol.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("runtime answered with status code %d: %s", e.StatusCode, e.Body)
}
