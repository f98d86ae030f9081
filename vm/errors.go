package vm

import (
	"errors"
	"fmt"
)

var (
	ErrNoSuchClass        = errors.New("no such class")
	ErrNoSuchMethod       = errors.New("no such method")
	ErrDuplicateClass     = errors.New("class already defined")
	ErrNullReference      = errors.New("null reference")
	ErrStackOverflow      = errors.New("call depth exceeded")
	ErrBadOperand         = errors.New("bad operand")
	ErrUnwovenPlaceholder = errors.New("placeholder executed without weaving")
)

// NullInjectionError is raised when a must-not-be-null slot resolved to nothing.
type NullInjectionError struct {
	Slot string
}

func (e *NullInjectionError) Error() string {
	return fmt.Sprintf("required injection resolved to nothing: %s", e.Slot)
}

// ExecError locates a runtime failure.
type ExecError struct {
	Class  string
	Method string
	PC     int
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s.%s at %d: %v", e.Class, e.Method, e.PC, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }
