package bytecode

import "fmt"

// Opcode identifies an instruction.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpLabel
	OpConst
	OpLoad
	OpStore
	OpDup
	OpPop
	OpNew
	OpGetField
	OpPutField
	OpGetStatic
	OpPutStatic
	OpInvokeSpecial
	OpInvokeVirtual
	OpInvokeStatic
	OpGoto
	OpIfNil
	OpIfNotNil
	OpReturn
	OpReturnValue
	opCount
)

var mnemonics = [opCount]string{
	OpNop:           "nop",
	OpLabel:         "label",
	OpConst:         "const",
	OpLoad:          "load",
	OpStore:         "store",
	OpDup:           "dup",
	OpPop:           "pop",
	OpNew:           "new",
	OpGetField:      "getfield",
	OpPutField:      "putfield",
	OpGetStatic:     "getstatic",
	OpPutStatic:     "putstatic",
	OpInvokeSpecial: "invokespecial",
	OpInvokeVirtual: "invokevirtual",
	OpInvokeStatic:  "invokestatic",
	OpGoto:          "goto",
	OpIfNil:         "ifnil",
	OpIfNotNil:      "ifnotnil",
	OpReturn:        "return",
	OpReturnValue:   "returnvalue",
}

var opcodesByMnemonic = func() map[string]Opcode {
	out := make(map[string]Opcode, len(mnemonics))
	for op, name := range mnemonics {
		out[name] = Opcode(op)
	}
	return out
}()

func (op Opcode) String() string {
	if op < opCount {
		return mnemonics[op]
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// ParseOpcode returns the opcode for a mnemonic.
func ParseOpcode(s string) (Opcode, error) {
	op, ok := opcodesByMnemonic[s]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOpcode, s)
	}
	return op, nil
}

func (op Opcode) MarshalText() ([]byte, error) {
	if op >= opCount {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, uint8(op))
	}
	return []byte(mnemonics[op]), nil
}

func (op *Opcode) UnmarshalText(text []byte) error {
	parsed, err := ParseOpcode(string(text))
	if err != nil {
		return err
	}
	*op = parsed
	return nil
}

// IsInvoke reports whether op calls a method.
func (op Opcode) IsInvoke() bool {
	return op == OpInvokeSpecial || op == OpInvokeVirtual || op == OpInvokeStatic
}

// IsBranch reports whether op may transfer control to a label.
func (op Opcode) IsBranch() bool {
	return op == OpGoto || op == OpIfNil || op == OpIfNotNil
}

// IsReturn reports whether op leaves the method.
func (op Opcode) IsReturn() bool {
	return op == OpReturn || op == OpReturnValue
}

// Terminates reports whether execution never falls through to the next instruction.
func (op Opcode) Terminates() bool {
	return op == OpGoto || op.IsReturn()
}
