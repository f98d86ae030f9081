package locate

import (
	"fmt"

	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/bronystylecrazy/ultraweave/inject"
)

// MethodSite pairs a method member with the body it dispatches to.
type MethodSite struct {
	Member *inject.MethodMember
	Method *bytecode.Method
}

// MethodSites finds the body of every method member of t.
func MethodSites(c *bytecode.Class, t *inject.TypeDescriptor) ([]MethodSite, error) {
	var out []MethodSite
	for _, mm := range t.Methods() {
		fail := func(reason string, err error) error {
			return &MemberError{Type: c.Name, Member: mm.Name, Reason: reason, Err: err}
		}
		if mm.Ref.Name == bytecode.Constructor || mm.Ref.Name == bytecode.StaticInit {
			return nil, fail("construction bodies cannot be dispatched", ErrUnsupportedMember)
		}
		arity := mm.Ref.Desc.Arity()
		m := c.Method(mm.Ref.Name, arity)
		if m == nil || mm.Ref.Owner != c.Name {
			return nil, fail(fmt.Sprintf("no method with %d parameters in body", arity), ErrMemberNotFound)
		}
		if m.Static != mm.Static {
			return nil, fail("static modifier differs from body", ErrMemberNotFound)
		}
		if m.Desc.Returns() != mm.Ref.Desc.Returns() {
			return nil, fail("result differs from body", ErrMemberNotFound)
		}
		for _, s := range mm.Slots {
			if s.Index < 0 || s.Index >= arity {
				return nil, fail(fmt.Sprintf("slot %s has parameter index %d", s.Name, s.Index), ErrMemberNotFound)
			}
		}
		out = append(out, MethodSite{Member: mm, Method: m})
	}
	return out, nil
}
