package inject

import (
	"strings"
	"sync/atomic"
)

// Qualifier is a key/value tag narrowing which binding a slot accepts, for
// example name=db.
type Qualifier struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Value string `yaml:"value" mapstructure:"value"`
}

// Q builds a qualifier.
func Q(key, value string) Qualifier { return Qualifier{Key: key, Value: value} }

func (q Qualifier) String() string { return q.Key + "=" + q.Value }

// ProviderFunc produces the value for a slot. instance is the object being
// constructed, or nil for static slots.
type ProviderFunc func(instance any, slot *Slot) (any, error)

// Supplier is handed to provider-indirection slots. Each call consults the
// slot's binding at that moment.
type Supplier func() (any, error)

// Binding is the provider currently assigned to a slot.
type Binding struct {
	RuleID  uint64
	Rule    string
	Provide ProviderFunc
}

// Unbound is the binding of a slot no rule matches.
var Unbound = &Binding{}

// Slot is one injectable position: a field, or one method parameter.
type Slot struct {
	Index      int
	Name       string
	Type       string
	Qualifiers []Qualifier
	Scopes     []string
	// Provider marks a slot that wants a Supplier of Type rather than a Type.
	Provider bool
	// Required rejects a missing value at the injection site.
	Required bool

	owner   *TypeDescriptor
	member  int
	binding atomic.Pointer[Binding]
}

// Current returns the live binding, or Unbound.
func (s *Slot) Current() *Binding {
	if b := s.binding.Load(); b != nil {
		return b
	}
	return Unbound
}

// Bound reports whether a provider is live.
func (s *Slot) Bound() bool { return s.Current() != Unbound }

func (s *Slot) bind(b *Binding) {
	if b == nil {
		b = Unbound
	}
	s.binding.Store(b)
}

// Qualifier returns the value of the qualifier with the given key.
func (s *Slot) Qualifier(key string) (string, bool) {
	for _, q := range s.Qualifiers {
		if q.Key == key {
			return q.Value, true
		}
	}
	return "", false
}

// HasScope reports whether the slot carries scope.
func (s *Slot) HasScope(scope string) bool {
	for _, have := range s.Scopes {
		if have == scope {
			return true
		}
	}
	return false
}

// Owner returns the descriptor declaring the slot.
func (s *Slot) Owner() *TypeDescriptor { return s.owner }

// MemberIndex returns the index of the member declaring the slot.
func (s *Slot) MemberIndex() int { return s.member }

func (s *Slot) String() string {
	var b strings.Builder
	if s.owner != nil {
		b.WriteString(s.owner.Name())
		b.WriteString(".")
	}
	b.WriteString(s.Name)
	b.WriteString(" ")
	if s.Provider {
		b.WriteString("provider of ")
	}
	b.WriteString(s.Type)
	if len(s.Qualifiers) > 0 {
		parts := make([]string, len(s.Qualifiers))
		for i, q := range s.Qualifiers {
			parts[i] = q.String()
		}
		b.WriteString(" {" + strings.Join(parts, ",") + "}")
	}
	return b.String()
}
