package weave

import (
	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/bronystylecrazy/ultraweave/inject"
	"go.uber.org/multierr"
)

// hookCall is a resolved hook method.
type hookCall struct {
	name   string
	method *bytecode.Method
}

func (h hookCall) static() bool { return h.method.Static }

// emit returns the call sequence for h. Instance hooks load the current
// instance from local 0.
func (h hookCall) emit(owner string) []bytecode.Instruction {
	ref := h.method.Ref(owner)
	var out []bytecode.Instruction
	if h.method.Static {
		out = append(out, bytecode.InvokeStatic(ref))
	} else {
		out = append(out, bytecode.Load(0), bytecode.InvokeVirtual(ref))
	}
	if h.method.Desc.Returns() {
		out = append(out, bytecode.Pop())
	}
	return out
}

func emitHooks(owner string, hooks []hookCall) []bytecode.Instruction {
	var out []bytecode.Instruction
	for _, h := range hooks {
		out = append(out, h.emit(owner)...)
	}
	return out
}

// resolveHooks maps hook names to zero-argument methods of c. In a static
// context only static hooks are usable.
func resolveHooks(c *bytecode.Class, member string, names []string, staticCtx bool) ([]hookCall, error) {
	var out []hookCall
	var err error
	for _, name := range names {
		m := c.Method(name, 0)
		switch {
		case m == nil:
			err = multierr.Append(err, &MissingHookTargetError{Type: c.Name, Member: member, Hook: name, Reason: "no zero-argument method with that name"})
		case m.Name == bytecode.Constructor || m.Name == bytecode.StaticInit:
			err = multierr.Append(err, &MissingHookTargetError{Type: c.Name, Member: member, Hook: name, Reason: "construction bodies cannot be hooks"})
		case staticCtx && !m.Static:
			err = multierr.Append(err, &MissingHookTargetError{Type: c.Name, Member: member, Hook: name, Reason: "instance hook on a static member"})
		default:
			out = append(out, hookCall{name: name, method: m})
		}
	}
	return out, err
}

type memberHooks struct {
	before []hookCall
	after  []hookCall
}

type typeHooks struct {
	instanceBefore []hookCall
	instanceAfter  []hookCall
	staticBefore   []hookCall
	staticAfter    []hookCall
}

func (h typeHooks) hasInstance() bool { return len(h.instanceBefore)+len(h.instanceAfter) > 0 }
func (h typeHooks) hasStatic() bool   { return len(h.staticBefore)+len(h.staticAfter) > 0 }

// resolveAllHooks validates every hook of t before any body is touched.
func resolveAllHooks(c *bytecode.Class, t *inject.TypeDescriptor) (map[int]memberHooks, typeHooks, error) {
	members := map[int]memberHooks{}
	var err error
	for _, m := range t.Members() {
		before, after := m.Hooks()
		b, bErr := resolveHooks(c, m.MemberName(), before, m.IsStatic())
		a, aErr := resolveHooks(c, m.MemberName(), after, m.IsStatic())
		err = multierr.Append(err, multierr.Combine(bErr, aErr))
		members[m.MemberIndex()] = memberHooks{before: b, after: a}
	}

	var th typeHooks
	before, bErr := resolveHooks(c, "", t.Before(), false)
	after, aErr := resolveHooks(c, "", t.After(), false)
	err = multierr.Append(err, multierr.Combine(bErr, aErr))
	for _, h := range before {
		if h.static() {
			th.staticBefore = append(th.staticBefore, h)
		} else {
			th.instanceBefore = append(th.instanceBefore, h)
		}
	}
	for _, h := range after {
		if h.static() {
			th.staticAfter = append(th.staticAfter, h)
		} else {
			th.instanceAfter = append(th.instanceAfter, h)
		}
	}
	return members, th, err
}
