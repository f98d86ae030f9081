package locate

import (
	"github.com/bronystylecrazy/ultraweave/bytecode"
)

// ConstructionPath is a constructor that delegates to the base type.
type ConstructionPath struct {
	Method   *bytecode.Method
	BaseCall int
	Returns  []int
}

// ConstructionPaths returns every constructor of c that delegates to the base
// type. Constructors that delegate to another constructor of c are not paths
// of their own: the delegate already runs the base call and hooks. Type-level
// after hooks therefore run when the delegate returns, before the rest of the
// delegating constructor's body.
func ConstructionPaths(c *bytecode.Class) ([]ConstructionPath, error) {
	var out []ConstructionPath
	for _, m := range c.Constructors() {
		pc, self, err := BaseInit(c, m)
		if err != nil {
			return nil, err
		}
		if self {
			continue
		}
		out = append(out, ConstructionPath{Method: m, BaseCall: pc, Returns: Returns(m)})
	}
	return out, nil
}

// BaseInit finds the call in constructor m that runs the base type's own
// construction. Allocations of new objects are tracked as pending until their
// constructor call; a constructor call with no pending allocation targets the
// instance under construction. Exactly one such call must target the base
// type. When the only such call targets c itself, self is true.
func BaseInit(c *bytecode.Class, m *bytecode.Method) (pc int, self bool, err error) {
	base := c.SuperName()
	var pending []string
	var baseCalls, selfCalls, foreign []int

	for i, ins := range m.Code {
		switch ins.Op {
		case bytecode.OpNew:
			pending = append(pending, ins.Type)
		case bytecode.OpInvokeSpecial:
			if ins.Method == nil || ins.Method.Name != bytecode.Constructor {
				continue
			}
			if len(pending) > 0 {
				pending = pending[:len(pending)-1]
				continue
			}
			switch ins.Method.Owner {
			case base:
				baseCalls = append(baseCalls, i)
			case c.Name:
				selfCalls = append(selfCalls, i)
			default:
				foreign = append(foreign, i)
			}
		}
	}

	fail := func(reason string, candidates []int) (int, bool, error) {
		return -1, false, &UnresolvableBaseInitError{
			Type:       c.Name,
			Method:     Position{Method: m.Name, Arity: m.Desc.Arity(), PC: -1},
			Base:       base,
			Candidates: candidates,
			Reason:     reason,
		}
	}
	switch {
	case len(foreign) > 0:
		return fail("constructor call on the instance targets an unrelated type", foreign)
	case len(baseCalls) == 1 && len(selfCalls) == 0:
		return baseCalls[0], false, nil
	case len(baseCalls) == 0 && len(selfCalls) == 1:
		return selfCalls[0], true, nil
	case len(baseCalls) == 0 && len(selfCalls) == 0:
		return fail("no base-type construction call", nil)
	default:
		return fail("more than one delegation call", append(baseCalls, selfCalls...))
	}
}

// Returns lists every return point of m.
func Returns(m *bytecode.Method) []int {
	var out []int
	for pc, ins := range m.Code {
		if ins.Op.IsReturn() {
			out = append(out, pc)
		}
	}
	return out
}
