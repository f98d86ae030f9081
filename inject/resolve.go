package inject

import (
	"go.uber.org/zap"
)

// ResolveField resolves the slot of field member fieldIndex of the type at
// typeIndex for instance. A missing provider yields (nil, false) and a
// diagnostic, never an error.
func (r *Registry) ResolveField(instance any, typeIndex, fieldIndex int) (any, bool) {
	t, ok := r.lookup(typeIndex)
	if !ok {
		return nil, false
	}
	m, ok := t.Member(fieldIndex)
	f, isField := m.(*FieldMember)
	if !ok || !isField {
		r.invalid(t, fieldIndex, -1)
		return nil, false
	}
	return r.resolveSlot(instance, f.Slot)
}

// ResolveMethodArg resolves parameter argIndex of method member methodIndex.
func (r *Registry) ResolveMethodArg(instance any, typeIndex, methodIndex, argIndex int) (any, bool) {
	t, ok := r.lookup(typeIndex)
	if !ok {
		return nil, false
	}
	m, ok := t.Member(methodIndex)
	mm, isMethod := m.(*MethodMember)
	if !ok || !isMethod {
		r.invalid(t, methodIndex, argIndex)
		return nil, false
	}
	s, ok := mm.Arg(argIndex)
	if !ok {
		r.invalid(t, methodIndex, argIndex)
		return nil, false
	}
	return r.resolveSlot(instance, s)
}

// lookup holds the read lock only for the index access.
func (r *Registry) lookup(typeIndex int) (*TypeDescriptor, bool) {
	r.mu.RLock()
	if typeIndex < 0 || typeIndex >= len(r.types) {
		r.mu.RUnlock()
		r.invalid(nil, -1, -1)
		r.logger.Warn("resolver called with unknown type index", zap.Int("type_index", typeIndex))
		return nil, false
	}
	t := r.types[typeIndex]
	r.mu.RUnlock()
	return t, true
}

func (r *Registry) invalid(t *TypeDescriptor, member, arg int) {
	r.metrics.resolved(r.metrics.badIndex)
	d := Diagnostic{Kind: InvalidIndex, TypeIndex: -1, Member: member, Err: ErrInvalidIndex}
	if t != nil {
		d.Type = t.Name()
		d.TypeIndex = t.Index()
		r.logger.Warn("resolver called with unknown member index",
			zap.String("type", t.Name()),
			zap.Int("member", member),
			zap.Int("arg", arg),
		)
	}
	r.record(d)
}

func (r *Registry) resolveSlot(instance any, s *Slot) (any, bool) {
	if s.Provider {
		r.metrics.resolved(r.metrics.bound)
		return r.supplier(instance, s), true
	}
	v, err := r.invoke(instance, s)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *Registry) supplier(instance any, s *Slot) Supplier {
	return func() (any, error) {
		return r.invoke(instance, s)
	}
}

// invoke runs the slot's provider outside any registry lock.
func (r *Registry) invoke(instance any, s *Slot) (any, error) {
	b := s.Current()
	if b == Unbound {
		r.metrics.resolved(r.metrics.unbound)
		r.record(r.slotDiagnostic(NoMatchingProvider, s, ErrNoMatchingProvider))
		r.logger.Warn("no provider bound", zap.String("slot", s.String()))
		return nil, r.resolveErr(s, ErrNoMatchingProvider)
	}
	v, err := b.Provide(instance, s)
	if err != nil {
		r.metrics.resolved(r.metrics.failed)
		d := r.slotDiagnostic(ProviderFailed, s, err)
		d.Rules = []uint64{b.RuleID}
		r.record(d)
		r.logger.Warn("provider failed",
			zap.String("slot", s.String()),
			zap.String("rule", b.Rule),
			zap.Error(err),
		)
		return nil, r.resolveErr(s, err)
	}
	r.metrics.resolved(r.metrics.bound)
	return v, nil
}

func (r *Registry) slotDiagnostic(kind DiagnosticKind, s *Slot, err error) Diagnostic {
	d := Diagnostic{Kind: kind, TypeIndex: -1, Member: s.member, Slot: s.Name, Err: err}
	if s.owner != nil {
		d.Type = s.owner.Name()
		d.TypeIndex = s.owner.Index()
	}
	return d
}

func (r *Registry) resolveErr(s *Slot, err error) error {
	e := &ResolveError{Slot: s.Name, Err: err}
	if s.owner != nil {
		e.Type = s.owner.Name()
		if m, ok := s.owner.Member(s.member); ok {
			e.Member = m.MemberName()
		}
	}
	return e
}
