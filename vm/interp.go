package vm

import (
	"fmt"

	"github.com/bronystylecrazy/ultraweave/bytecode"
)

type frame struct {
	class  *class
	method *bytecode.Method
	locals []any
	stack  []any
	pc     int
}

func (f *frame) push(v any) { f.stack = append(f.stack, v) }

func (f *frame) pop() any {
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

// popN removes n values and returns them in push order.
func (f *frame) popN(n int) []any {
	args := make([]any, n)
	copy(args, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return args
}

func (f *frame) fail(err error) error {
	return &ExecError{Class: f.class.Name, Method: f.method.Name, PC: f.pc, Err: err}
}

func (m *Machine) call(c *class, method *bytecode.Method, args []any, depth int) (any, error) {
	if depth >= m.maxDepth {
		return nil, fmt.Errorf("%s.%s: %w", c.Name, method.Name, ErrStackOverflow)
	}
	f := &frame{class: c, method: method, locals: make([]any, method.Locals())}
	copy(f.locals, args)
	labels := c.labels[method]
	if labels == nil {
		labels = method.Labels()
	}

	for f.pc = 0; f.pc < len(method.Code); f.pc++ {
		ins := method.Code[f.pc]
		pops, _, err := bytecode.StackEffect(ins)
		if err != nil {
			return nil, f.fail(err)
		}
		if pops > len(f.stack) {
			return nil, f.fail(fmt.Errorf("%w: stack underflow at %s", ErrBadOperand, ins))
		}

		switch ins.Op {
		case bytecode.OpNop, bytecode.OpLabel:
		case bytecode.OpConst:
			f.push(ins.Value)
		case bytecode.OpLoad:
			f.push(f.locals[ins.Index])
		case bytecode.OpStore:
			f.locals[ins.Index] = f.pop()
		case bytecode.OpDup:
			f.push(f.stack[len(f.stack)-1])
		case bytecode.OpPop:
			f.pop()
		case bytecode.OpNew:
			target, err := m.lookup(ins.Type)
			if err != nil {
				return nil, f.fail(err)
			}
			f.push(newObject(target))
		case bytecode.OpGetField:
			obj, err := receiver(f.pop())
			if err != nil {
				return nil, f.fail(err)
			}
			f.push(obj.Get(ins.Field.Name))
		case bytecode.OpPutField:
			v := f.pop()
			obj, err := receiver(f.pop())
			if err != nil {
				return nil, f.fail(err)
			}
			obj.Set(ins.Field.Name, v)
		case bytecode.OpGetStatic:
			v, _ := m.Static(ins.Field.Owner, ins.Field.Name)
			f.push(v)
		case bytecode.OpPutStatic:
			m.setStatic(ins.Field.Owner, ins.Field.Name, f.pop())
		case bytecode.OpInvokeStatic, bytecode.OpInvokeSpecial, bytecode.OpInvokeVirtual:
			ref := ins.Method
			n := ref.Desc.Arity()
			if ins.Op != bytecode.OpInvokeStatic {
				n++
			}
			result, err := m.invoke(ins.Op, ref, f.popN(n), depth+1)
			if err != nil {
				return nil, f.fail(err)
			}
			if ref.Desc.Returns() {
				f.push(result)
			}
		case bytecode.OpGoto:
			f.pc = labels[ins.Label]
		case bytecode.OpIfNil:
			if isNil(f.pop()) {
				f.pc = labels[ins.Label]
			}
		case bytecode.OpIfNotNil:
			if !isNil(f.pop()) {
				f.pc = labels[ins.Label]
			}
		case bytecode.OpReturn:
			return nil, nil
		case bytecode.OpReturnValue:
			return f.pop(), nil
		default:
			return nil, f.fail(fmt.Errorf("%w: %s", bytecode.ErrUnknownOpcode, ins.Op))
		}
	}
	return nil, f.fail(fmt.Errorf("%w: fell off the end of the body", ErrBadOperand))
}

func (m *Machine) invoke(op bytecode.Opcode, ref *bytecode.MethodRef, args []any, depth int) (any, error) {
	arity := ref.Desc.Arity()
	switch op {
	case bytecode.OpInvokeStatic:
		return m.invokeStatic(ref.Owner, ref.Name, args, depth)
	case bytecode.OpInvokeSpecial:
		if _, err := receiver(args[0]); err != nil {
			return nil, err
		}
		if ref.Owner == bytecode.RootType && ref.Name == bytecode.Constructor && arity == 0 {
			return nil, nil
		}
		c, err := m.lookup(ref.Owner)
		if err != nil {
			return nil, err
		}
		method := c.Method(ref.Name, arity)
		if method == nil || method.Static {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchMethod, ref)
		}
		return m.call(c, method, args, depth)
	default:
		obj, err := receiver(args[0])
		if err != nil {
			return nil, err
		}
		owner, method := obj.class.method(ref.Name, arity)
		if method == nil || method.Static {
			return nil, fmt.Errorf("%w: %s on %s", ErrNoSuchMethod, ref, obj.class.Name)
		}
		return m.call(owner, method, args, depth)
	}
}

func receiver(v any) (*Object, error) {
	obj, ok := v.(*Object)
	if !ok || obj == nil {
		return nil, ErrNullReference
	}
	return obj, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	obj, ok := v.(*Object)
	return ok && obj == nil
}
