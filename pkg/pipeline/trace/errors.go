package trace

import "errors"

var (
	// A query named a cycle that is not part of the trace
	ErrOutOfRange = errors.New("cycle out of range")
	// A register update or dump entry named a register outside x0-x31
	ErrRegisterIndexOutOfRange = errors.New("register index out of range")
)
