package bytecode

import (
	"fmt"

	"go.uber.org/multierr"
)

// VerifyError describes one rejected method body.
type VerifyError struct {
	Class  string
	Method string
	PC     int
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("%s.%s at %d: %s", e.Class, e.Method, e.PC, e.Reason)
}

func (e *VerifyError) Unwrap() error { return ErrVerify }

// Verify checks every method body of c: branch targets exist and are unique,
// the operand stack never underflows, merge points agree on stack depth,
// returns match the signature and execution cannot run past the last
// instruction.
func Verify(c *Class) error {
	var err error
	for _, m := range c.Methods {
		err = multierr.Append(err, verifyMethod(c.Name, m))
	}
	return err
}

func verifyMethod(class string, m *Method) error {
	fail := func(pc int, format string, args ...any) error {
		return &VerifyError{Class: class, Method: m.Name, PC: pc, Reason: fmt.Sprintf(format, args...)}
	}
	if len(m.Code) == 0 {
		return fail(0, "empty body")
	}

	labels := map[LabelID]int{}
	var err error
	for pc, ins := range m.Code {
		switch ins.Op {
		case OpLabel:
			if prev, ok := labels[ins.Label]; ok {
				err = multierr.Append(err, fail(pc, "label L%d already defined at %d", ins.Label, prev))
				continue
			}
			labels[ins.Label] = pc
		case OpLoad, OpStore:
			if ins.Index < 0 {
				err = multierr.Append(err, fail(pc, "negative local %d", ins.Index))
			}
		case OpGetField, OpPutField, OpGetStatic, OpPutStatic:
			if ins.Field == nil {
				err = multierr.Append(err, fail(pc, "%s without field", ins.Op))
			}
		case OpNew:
			if ins.Type == "" {
				err = multierr.Append(err, fail(pc, "new without type"))
			}
		}
	}
	for pc, ins := range m.Code {
		if ins.Op.IsBranch() {
			if _, ok := labels[ins.Label]; !ok {
				err = multierr.Append(err, fail(pc, "branch to undefined label L%d", ins.Label))
			}
		}
	}
	if err != nil {
		return err
	}

	depth := make([]int, len(m.Code))
	for i := range depth {
		depth[i] = -1
	}
	depth[0] = 0
	work := []int{0}
	for len(work) > 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]
		ins := m.Code[pc]

		pops, pushes, effErr := StackEffect(ins)
		if effErr != nil {
			return fail(pc, "%v", effErr)
		}
		d := depth[pc]
		if d < pops {
			return fail(pc, "stack underflow: %s needs %d, have %d", ins, pops, d)
		}
		d = d - pops + pushes

		switch {
		case ins.Op == OpReturn && m.Desc.Returns():
			return fail(pc, "return without value in method returning %s", m.Desc.Result)
		case ins.Op == OpReturnValue && !m.Desc.Returns():
			return fail(pc, "returnvalue in void method")
		}

		var next []int
		if ins.Op.IsBranch() {
			next = append(next, labels[ins.Label])
		}
		if !ins.Op.Terminates() {
			if pc+1 >= len(m.Code) {
				return fail(pc, "execution falls off the end of the body")
			}
			next = append(next, pc+1)
		}
		for _, succ := range next {
			switch depth[succ] {
			case -1:
				depth[succ] = d
				work = append(work, succ)
			case d:
			default:
				return fail(succ, "inconsistent stack depth %d vs %d", depth[succ], d)
			}
		}
	}
	return nil
}
