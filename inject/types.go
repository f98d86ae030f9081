package inject

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bronystylecrazy/ultraweave/bytecode"
)

// Member is either a *FieldMember or a *MethodMember.
type Member interface {
	MemberIndex() int
	MemberName() string
	IsStatic() bool
	InjectSlots() []*Slot
	Hooks() (before, after []string)
	member()
}

// FieldMember is an injectable field. It owns exactly one slot.
type FieldMember struct {
	Index  int
	Name   string
	Ref    bytecode.FieldRef
	Static bool
	Slot   *Slot
	Before []string
	After  []string
}

func (f *FieldMember) MemberIndex() int       { return f.Index }
func (f *FieldMember) MemberName() string     { return f.Name }
func (f *FieldMember) IsStatic() bool         { return f.Static }
func (f *FieldMember) InjectSlots() []*Slot   { return []*Slot{f.Slot} }
func (f *FieldMember) Hooks() (b, a []string) { return f.Before, f.After }
func (f *FieldMember) member()                {}

// MethodMember is a method whose parameters are injected. Slots are ordered by
// parameter position; parameters without a slot are forwarded unchanged.
type MethodMember struct {
	Index  int
	Name   string
	Ref    bytecode.MethodRef
	Static bool
	Slots  []*Slot
	Before []string
	After  []string
}

func (m *MethodMember) MemberIndex() int       { return m.Index }
func (m *MethodMember) MemberName() string     { return m.Name }
func (m *MethodMember) IsStatic() bool         { return m.Static }
func (m *MethodMember) InjectSlots() []*Slot   { return m.Slots }
func (m *MethodMember) Hooks() (b, a []string) { return m.Before, m.After }
func (m *MethodMember) member()                {}

// Arg returns the slot injected at parameter position i.
func (m *MethodMember) Arg(i int) (*Slot, bool) {
	for _, s := range m.Slots {
		if s.Index == i {
			return s, true
		}
	}
	return nil, false
}

// Field builds a field member with a single slot of the field's declared type.
func Field(owner, name, typ string, opts ...SlotOption) *FieldMember {
	slot := &Slot{Name: name, Type: typ}
	for _, opt := range opts {
		opt(slot)
	}
	return &FieldMember{
		Name: name,
		Ref:  bytecode.FieldRef{Owner: owner, Name: name},
		Slot: slot,
	}
}

// Method builds a method member over ref with the given parameter slots.
func Method(ref bytecode.MethodRef, slots ...*Slot) *MethodMember {
	return &MethodMember{Name: ref.Name, Ref: ref, Slots: slots}
}

// Arg builds a parameter slot.
func Arg(index int, name, typ string, opts ...SlotOption) *Slot {
	slot := &Slot{Index: index, Name: name, Type: typ}
	for _, opt := range opts {
		opt(slot)
	}
	return slot
}

// SlotOption configures a slot built by Field or Arg.
type SlotOption func(*Slot)

func Qualified(key, value string) SlotOption {
	return func(s *Slot) { s.Qualifiers = append(s.Qualifiers, Q(key, value)) }
}

func Scoped(scopes ...string) SlotOption {
	return func(s *Slot) { s.Scopes = append(s.Scopes, scopes...) }
}

func AsProvider() SlotOption {
	return func(s *Slot) { s.Provider = true }
}

func Required() SlotOption {
	return func(s *Slot) { s.Required = true }
}

type weaveState int32

const (
	statePending weaveState = iota
	stateWeaving
	stateWoven
)

// TypeDescriptor describes one rewritten type. Index is assigned once by
// Registry.RegisterType. The member list is fixed at construction; hook lists
// may grow until the type is woven.
type TypeDescriptor struct {
	name    string
	index   atomic.Int64
	members []Member
	state   atomic.Int32

	mu     sync.Mutex
	before []string
	after  []string
}

// NewType builds a descriptor. Member indices follow declaration order, nil
// members are skipped without taking an index, and field slots are
// normalised to index 0.
func NewType(name string, members ...Member) *TypeDescriptor {
	t := &TypeDescriptor{name: name, members: make([]Member, 0, len(members))}
	t.index.Store(-1)
	for _, m := range members {
		if m == nil {
			continue
		}
		idx := len(t.members)
		switch v := m.(type) {
		case *FieldMember:
			v.Index = idx
			if v.Slot == nil {
				v.Slot = &Slot{Name: v.Name}
			}
			v.Slot.Index = 0
		case *MethodMember:
			v.Index = idx
		}
		for _, s := range m.InjectSlots() {
			s.owner = t
			s.member = m.MemberIndex()
		}
		t.members = append(t.members, m)
	}
	return t
}

func (t *TypeDescriptor) Name() string { return t.name }

// Index returns the registry index, or -1 before registration.
func (t *TypeDescriptor) Index() int { return int(t.index.Load()) }

// Registered reports whether the descriptor has an index.
func (t *TypeDescriptor) Registered() bool { return t.Index() >= 0 }

// Members returns the members in declaration order.
func (t *TypeDescriptor) Members() []Member { return t.members }

// Member returns the member at index.
func (t *TypeDescriptor) Member(index int) (Member, bool) {
	if index < 0 || index >= len(t.members) {
		return nil, false
	}
	return t.members[index], true
}

// Fields returns the field members in declaration order.
func (t *TypeDescriptor) Fields() []*FieldMember {
	var out []*FieldMember
	for _, m := range t.members {
		if f, ok := m.(*FieldMember); ok {
			out = append(out, f)
		}
	}
	return out
}

// Methods returns the method members in declaration order.
func (t *TypeDescriptor) Methods() []*MethodMember {
	var out []*MethodMember
	for _, m := range t.members {
		if mm, ok := m.(*MethodMember); ok {
			out = append(out, mm)
		}
	}
	return out
}

// SlotCount returns the number of injectable slots across all members.
func (t *TypeDescriptor) SlotCount() int {
	n := 0
	for _, m := range t.members {
		n += len(m.InjectSlots())
	}
	return n
}

// Before returns the type-level before hooks.
func (t *TypeDescriptor) Before() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.before...)
}

// After returns the type-level after hooks.
func (t *TypeDescriptor) After() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.after...)
}

// AddBefore appends type-level before hooks. Names already present are kept
// in their first position.
func (t *TypeDescriptor) AddBefore(hooks ...string) error {
	return t.addHooks(&t.before, hooks)
}

// AddAfter appends type-level after hooks.
func (t *TypeDescriptor) AddAfter(hooks ...string) error {
	return t.addHooks(&t.after, hooks)
}

func (t *TypeDescriptor) addHooks(dst *[]string, hooks []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if weaveState(t.state.Load()) != statePending {
		return fmt.Errorf("%w: %s", ErrFrozen, t.name)
	}
	*dst = appendUnique(*dst, hooks...)
	return nil
}

// Woven reports whether a weave of this type completed.
func (t *TypeDescriptor) Woven() bool {
	return weaveState(t.state.Load()) == stateWoven
}

// BeginWeave freezes the hook lists and claims the type for weaving.
func (t *TypeDescriptor) BeginWeave() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.CompareAndSwap(int32(statePending), int32(stateWeaving)) {
		return fmt.Errorf("%w: %s", ErrAlreadyWoven, t.name)
	}
	return nil
}

// FinishWeave records the outcome of a weave started by BeginWeave. A failed
// weave leaves the type pending.
func (t *TypeDescriptor) FinishWeave(ok bool) {
	next := statePending
	if ok {
		next = stateWoven
	}
	t.state.CompareAndSwap(int32(stateWeaving), int32(next))
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		if item == "" {
			continue
		}
		dup := false
		for _, have := range dst {
			if have == item {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, item)
		}
	}
	return dst
}

// StaticField builds a static field member.
func StaticField(owner, name, typ string, opts ...SlotOption) *FieldMember {
	f := Field(owner, name, typ, opts...)
	f.Static = true
	return f
}
