package bytecode

import "errors"

var (
	ErrUnknownOpcode    = errors.New("unknown opcode")
	ErrPositionRange    = errors.New("instruction position out of range")
	ErrConflictingEdit  = errors.New("conflicting edit at instruction position")
	ErrVerify           = errors.New("verification failed")
	ErrMalformedOperand = errors.New("malformed instruction operand")
)
