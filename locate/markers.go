package locate

import (
	"github.com/bronystylecrazy/ultraweave/abi"
	"github.com/bronystylecrazy/ultraweave/bytecode"
)

// Marker is a placeholder call found in a body.
type Marker struct {
	PC       int
	Required bool
	// Store is the position of the field write fed by the marker's value, or
	// -1 when the value is consumed by anything else.
	Store int
	Field *bytecode.FieldRef
}

// Markers returns every placeholder marker in m in body order.
func Markers(m *bytecode.Method) []Marker {
	var out []Marker
	for pc, ins := range m.Code {
		if ins.Op != bytecode.OpInvokeStatic {
			continue
		}
		ok, required := abi.IsMarker(ins.Method)
		if !ok {
			continue
		}
		store, field := traceValue(m.Code, pc)
		out = append(out, Marker{PC: pc, Required: required, Store: store, Field: field})
	}
	return out
}

// traceValue follows the value pushed at pc through the straight-line code
// after it, including store/load pairs through locals, and returns the field
// write that consumes it.
func traceValue(code []bytecode.Instruction, pc int) (int, *bytecode.FieldRef) {
	stack := []bool{true}
	locals := map[int]bool{}
	push := func(v bool) { stack = append(stack, v) }
	pop := func() bool {
		if len(stack) == 0 {
			return false
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	live := func() bool {
		for _, v := range stack {
			if v {
				return true
			}
		}
		for _, v := range locals {
			if v {
				return true
			}
		}
		return false
	}

	for i := pc + 1; i < len(code); i++ {
		ins := code[i]
		switch ins.Op {
		case bytecode.OpNop, bytecode.OpLabel:
		case bytecode.OpConst, bytecode.OpNew, bytecode.OpGetStatic:
			push(false)
		case bytecode.OpLoad:
			push(locals[ins.Index])
		case bytecode.OpStore:
			locals[ins.Index] = pop()
		case bytecode.OpDup:
			v := pop()
			push(v)
			push(v)
		case bytecode.OpPop:
			pop()
		case bytecode.OpGetField:
			pop()
			push(false)
		case bytecode.OpPutField:
			v := pop()
			pop()
			if v {
				return i, ins.Field
			}
		case bytecode.OpPutStatic:
			if pop() {
				return i, ins.Field
			}
		case bytecode.OpInvokeSpecial, bytecode.OpInvokeVirtual, bytecode.OpInvokeStatic:
			pops, pushes, err := bytecode.StackEffect(ins)
			if err != nil {
				return -1, nil
			}
			for n := 0; n < pops; n++ {
				if pop() {
					return -1, nil
				}
			}
			for n := 0; n < pushes; n++ {
				push(false)
			}
		default:
			// Branches and returns end the straight-line region.
			return -1, nil
		}
		if !live() {
			return -1, nil
		}
	}
	return -1, nil
}
