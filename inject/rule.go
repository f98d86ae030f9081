package inject

import "strings"

// Wildcard as a qualifier pattern value accepts any value for the key.
const Wildcard = "*"

// TypeMatcher decides whether a rule serves a slot's declared type.
type TypeMatcher func(slotType string) bool

// Exactly matches one type name.
func Exactly(typ string) TypeMatcher {
	return func(slotType string) bool { return slotType == typ }
}

// OneOf matches any of the given type names.
func OneOf(types ...string) TypeMatcher {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return func(slotType string) bool {
		_, ok := set[slotType]
		return ok
	}
}

// AnyType matches every slot.
func AnyType() TypeMatcher {
	return func(string) bool { return true }
}

// QualifierPattern requires the slot to carry a qualifier with Key whose
// value equals Value, or any value when Value is Wildcard.
type QualifierPattern struct {
	Key   string
	Value string
}

func (p QualifierPattern) matches(s *Slot) bool {
	v, ok := s.Qualifier(p.Key)
	if !ok {
		return false
	}
	return p.Value == Wildcard || p.Value == v
}

func (p QualifierPattern) String() string { return p.Key + "=" + p.Value }

// BindingRule assigns a provider to every slot it matches. Rules are
// immutable once registered; Registry.Register stamps the registration id.
type BindingRule struct {
	name       string
	id         uint64
	match      TypeMatcher
	qualifiers []QualifierPattern
	scopes     []string
	provide    ProviderFunc
	binding    *Binding
}

// RuleOption configures a rule built by NewRule.
type RuleOption func(*BindingRule)

// WithQualifier adds a qualifier pattern, raising the rule's specificity.
func WithQualifier(key, value string) RuleOption {
	return func(r *BindingRule) {
		r.qualifiers = append(r.qualifiers, QualifierPattern{Key: key, Value: value})
	}
}

// InScope restricts the rule to slots carrying one of scopes.
func InScope(scopes ...string) RuleOption {
	return func(r *BindingRule) { r.scopes = append(r.scopes, scopes...) }
}

// Named labels the rule in diagnostics and logs.
func Named(name string) RuleOption {
	return func(r *BindingRule) { r.name = name }
}

// NewRule builds an unregistered rule.
func NewRule(match TypeMatcher, provide ProviderFunc, opts ...RuleOption) BindingRule {
	r := BindingRule{match: match, provide: provide}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Value returns a provider that always yields v.
func Value(v any) ProviderFunc {
	return func(any, *Slot) (any, error) { return v, nil }
}

func (r *BindingRule) ID() uint64       { return r.id }
func (r *BindingRule) Specificity() int { return len(r.qualifiers) }

// Name returns the rule label, defaulting to its qualifier patterns.
func (r *BindingRule) Name() string {
	if r.name != "" {
		return r.name
	}
	parts := make([]string, len(r.qualifiers))
	for i, q := range r.qualifiers {
		parts[i] = q.String()
	}
	return "rule{" + strings.Join(parts, ",") + "}"
}

// Qualifiers returns the rule's qualifier patterns.
func (r *BindingRule) Qualifiers() []QualifierPattern {
	return append([]QualifierPattern(nil), r.qualifiers...)
}

// Matches reports whether the rule applies to slot.
func (r *BindingRule) Matches(s *Slot) bool {
	if !r.match(s.Type) {
		return false
	}
	for _, q := range r.qualifiers {
		if !q.matches(s) {
			return false
		}
	}
	if len(r.scopes) == 0 {
		return true
	}
	for _, scope := range r.scopes {
		if s.HasScope(scope) {
			return true
		}
	}
	return false
}

func (r BindingRule) sealed(id uint64) *BindingRule {
	out := &BindingRule{
		name:       r.name,
		id:         id,
		match:      r.match,
		qualifiers: append([]QualifierPattern(nil), r.qualifiers...),
		scopes:     append([]string(nil), r.scopes...),
		provide:    r.provide,
	}
	out.binding = &Binding{RuleID: id, Rule: out.Name(), Provide: out.provide}
	return out
}

// selectRule picks the matching rule with the highest specificity. rules are
// in registration order, so keeping the first of equal scores makes the lower
// id win. tied lists the ids that shared the winning score.
func selectRule(rules []*BindingRule, s *Slot) (best *BindingRule, tied []uint64) {
	for _, r := range rules {
		if !r.Matches(s) {
			continue
		}
		switch {
		case best == nil || r.Specificity() > best.Specificity():
			best = r
			tied = tied[:0]
		case r.Specificity() == best.Specificity():
			if len(tied) == 0 {
				tied = append(tied, best.id)
			}
			tied = append(tied, r.id)
		}
	}
	return best, tied
}
