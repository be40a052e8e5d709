package forecast

import "fmt"

// InsufficientDataError reports a series too short for the requested model.
// Callers that can degrade (skip a model, skip an account) match it with
// errors.As and carry on.
type InsufficientDataError struct {
	Op   string
	Need int
	Have int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need at least %d points, have %d", e.Op, e.Need, e.Have)
}

// InvalidParameterError is a contract violation by the caller.
type InvalidParameterError struct {
	Op     string
	Param  string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("%s: invalid %s %v: %s", e.Op, e.Param, e.Value, e.Reason)
}

func insufficient(op string, need, have int) error {
	return &InsufficientDataError{Op: op, Need: need, Have: have}
}

func invalid(op, param string, value any, reason string) error {
	return &InvalidParameterError{Op: op, Param: param, Value: value, Reason: reason}
}
