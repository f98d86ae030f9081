package inject

import (
	"errors"
	"testing"

	"github.com/bronystylecrazy/ultraweave/bytecode"
)

func newServiceType() *TypeDescriptor {
	return NewType("app/Service",
		Field("app/Service", "primary", "Database"),
		Field("app/Service", "named", "Database", Qualified("name", "db")),
		Method(bytecode.Call("app/Service", "handle", "", "Database", "any"),
			Arg(0, "conn", "Database", Qualified("name", "db")),
		),
	)
}

func mustRegister(t *testing.T, r *Registry, rule BindingRule) *BindingRule {
	t.Helper()
	out, err := r.Register(rule)
	if err != nil {
		t.Fatalf("register rule: %v", err)
	}
	return out
}

func TestRegisterTypeAssignsIndices(t *testing.T) {
	r := NewRegistry()
	a := NewType("app/A")
	b := NewType("app/B")
	if a.Index() != -1 {
		t.Fatalf("unregistered index = %d", a.Index())
	}
	if i, err := r.RegisterType(a); err != nil || i != 0 {
		t.Fatalf("register a: %d %v", i, err)
	}
	if i, err := r.RegisterType(b); err != nil || i != 1 {
		t.Fatalf("register b: %d %v", i, err)
	}
	if _, err := r.RegisterType(NewType("app/A")); !errors.Is(err, ErrDuplicateType) {
		t.Fatalf("expected ErrDuplicateType, got %v", err)
	}
	if got, ok := r.Type(1); !ok || got != b {
		t.Fatalf("Type(1) = %v %v", got, ok)
	}
	if got, ok := r.TypeByName("app/A"); !ok || got != a {
		t.Fatalf("TypeByName = %v %v", got, ok)
	}
}

func TestRegisterRejectsIncompleteRule(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register(NewRule(nil, Value(1))); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
	if _, err := r.Register(NewRule(AnyType(), nil)); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestMoreSpecificRuleWins(t *testing.T) {
	r := NewRegistry()
	st := newServiceType()
	if _, err := r.RegisterType(st); err != nil {
		t.Fatalf("register type: %v", err)
	}
	mustRegister(t, r, NewRule(Exactly("Database"), Value("A")))
	mustRegister(t, r, NewRule(Exactly("Database"), Value("B"), WithQualifier("name", "db")))
	r.Rebind()

	if v, ok := r.ResolveField(nil, 0, 0); !ok || v != "A" {
		t.Fatalf("unqualified slot = %v %v, want A", v, ok)
	}
	if v, ok := r.ResolveField(nil, 0, 1); !ok || v != "B" {
		t.Fatalf("qualified slot = %v %v, want B", v, ok)
	}
	if v, ok := r.ResolveMethodArg(nil, 0, 2, 0); !ok || v != "B" {
		t.Fatalf("qualified arg = %v %v, want B", v, ok)
	}
}

func TestTieBreaksOnRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	st := newServiceType()
	if _, err := r.RegisterType(st); err != nil {
		t.Fatalf("register type: %v", err)
	}
	first := mustRegister(t, r, NewRule(Exactly("Database"), Value("first"), Named("first")))
	second := mustRegister(t, r, NewRule(OneOf("Database", "Cache"), Value("second"), Named("second")))

	for i := 0; i < 20; i++ {
		report := r.Rebind()
		if report.Ties == 0 {
			t.Fatal("expected ties to be reported")
		}
		if v, _ := r.ResolveField(nil, 0, 0); v != "first" {
			t.Fatalf("rebind %d selected %v", i, v)
		}
	}

	var tie *Diagnostic
	for _, d := range r.Diagnostics() {
		if d.Kind == DuplicateBindingTie && d.Slot == "primary" {
			tie = &d
			break
		}
	}
	if tie == nil {
		t.Fatal("expected a tie diagnostic for primary")
	}
	if len(tie.Rules) != 2 || tie.Rules[0] != first.ID() || tie.Rules[1] != second.ID() {
		t.Fatalf("tie rules = %v", tie.Rules)
	}
}

func TestScopesFilterRules(t *testing.T) {
	r := NewRegistry()
	st := NewType("app/Job",
		Field("app/Job", "clock", "Clock", Scoped("batch")),
		Field("app/Job", "other", "Clock"),
	)
	if _, err := r.RegisterType(st); err != nil {
		t.Fatalf("register type: %v", err)
	}
	mustRegister(t, r, NewRule(Exactly("Clock"), Value("batch-clock"), InScope("batch")))
	report := r.Rebind()
	if report.Bound != 1 || report.Unbound != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if v, ok := r.ResolveField(nil, 0, 0); !ok || v != "batch-clock" {
		t.Fatalf("scoped slot = %v %v", v, ok)
	}
	if _, ok := r.ResolveField(nil, 0, 1); ok {
		t.Fatal("unscoped slot should not match a scoped rule")
	}
}

func TestWildcardQualifier(t *testing.T) {
	r := NewRegistry()
	st := newServiceType()
	if _, err := r.RegisterType(st); err != nil {
		t.Fatalf("register type: %v", err)
	}
	mustRegister(t, r, NewRule(AnyType(), Value("any-named"), WithQualifier("name", Wildcard)))
	r.Rebind()
	if v, _ := r.ResolveField(nil, 0, 1); v != "any-named" {
		t.Fatalf("wildcard did not match: %v", v)
	}
	if _, ok := r.ResolveField(nil, 0, 0); ok {
		t.Fatal("wildcard must still require the key")
	}
}

func TestBindingsChangeOnlyOnRebind(t *testing.T) {
	r := NewRegistry()
	st := newServiceType()
	if _, err := r.RegisterType(st); err != nil {
		t.Fatalf("register type: %v", err)
	}
	old := mustRegister(t, r, NewRule(Exactly("Database"), Value("old")))
	r.Rebind()

	mustRegister(t, r, NewRule(Exactly("Database"), Value("new"), WithQualifier("name", "db")))
	if v, _ := r.ResolveField(nil, 0, 1); v != "old" {
		t.Fatalf("registration changed a binding before rebind: %v", v)
	}
	r.Rebind()
	if v, _ := r.ResolveField(nil, 0, 1); v != "new" {
		t.Fatalf("rebind did not pick the new rule: %v", v)
	}

	if !r.Unregister(old.ID()) {
		t.Fatal("unregister failed")
	}
	if r.Unregister(old.ID()) {
		t.Fatal("second unregister should report false")
	}
	r.Rebind()
	if _, ok := r.ResolveField(nil, 0, 0); ok {
		t.Fatal("slot should be unbound after its rule is removed")
	}
}

func TestNewTypeStaysUnboundUntilRebind(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, NewRule(AnyType(), Value(1)))
	r.Rebind()

	st := newServiceType()
	if _, err := r.RegisterType(st); err != nil {
		t.Fatalf("register type: %v", err)
	}
	if st.Fields()[0].Slot.Bound() {
		t.Fatal("slot of a new type should start unbound")
	}
	r.Rebind()
	if !st.Fields()[0].Slot.Bound() {
		t.Fatal("slot should be bound after rebind")
	}
}
