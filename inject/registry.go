package inject

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Registry owns type descriptors and binding rules and resolves slots.
type Registry struct {
	mu     sync.RWMutex
	types  []*TypeDescriptor
	byName map[string]*TypeDescriptor
	rules  []*BindingRule
	nextID uint64

	logger  *zap.Logger
	diag    *diagnosticLog
	metrics *registryMetrics
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := registryConfig{logger: zap.NewNop(), diagnostic: DefaultDiagnosticsLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{
		byName:  map[string]*TypeDescriptor{},
		logger:  cfg.logger.Named("registry"),
		diag:    newDiagnosticLog(cfg.diagnostic),
		metrics: newRegistryMetrics(cfg.meter),
	}
}

// RegisterType assigns t the next index. Slots of a newly registered type stay
// unbound until the next Rebind.
func (r *Registry) RegisterType(t *TypeDescriptor) (int, error) {
	if t == nil {
		return -1, fmt.Errorf("register type: nil descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[t.Name()]; ok {
		return -1, fmt.Errorf("%w: %s", ErrDuplicateType, t.Name())
	}
	if t.Registered() {
		return -1, fmt.Errorf("%w: %s already has index %d", ErrDuplicateType, t.Name(), t.Index())
	}
	index := len(r.types)
	t.index.Store(int64(index))
	r.types = append(r.types, t)
	r.byName[t.Name()] = t
	r.logger.Debug("registered type",
		zap.String("type", t.Name()),
		zap.Int("index", index),
		zap.Int("slots", t.SlotCount()),
	)
	return index, nil
}

// Type returns the descriptor at index.
func (r *Registry) Type(index int) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.types) {
		return nil, false
	}
	return r.types[index], true
}

// TypeByName returns the descriptor registered under name.
func (r *Registry) TypeByName(name string) (*TypeDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Types returns every registered descriptor in index order.
func (r *Registry) Types() []*TypeDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*TypeDescriptor(nil), r.types...)
}

// Register adds rule and returns the registered copy. Existing slots keep
// their bindings until Rebind.
func (r *Registry) Register(rule BindingRule) (*BindingRule, error) {
	if rule.match == nil {
		return nil, fmt.Errorf("%w: missing type matcher", ErrInvalidRule)
	}
	if rule.provide == nil {
		return nil, fmt.Errorf("%w: missing provider", ErrInvalidRule)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sealed := rule.sealed(r.nextID)
	r.rules = append(r.rules, sealed)
	r.logger.Debug("registered rule",
		zap.Uint64("rule", sealed.id),
		zap.String("name", sealed.Name()),
		zap.Int("specificity", sealed.Specificity()),
	)
	return sealed, nil
}

// Unregister removes the rule with id. Slots keep their bindings until Rebind.
func (r *Registry) Unregister(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, rule := range r.rules {
		if rule.id == id {
			r.rules = append(r.rules[:i:i], r.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns the registered rules in registration order.
func (r *Registry) Rules() []*BindingRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*BindingRule(nil), r.rules...)
}

// RebindReport summarises one rebind pass.
type RebindReport struct {
	Types   int
	Slots   int
	Bound   int
	Unbound int
	Ties    int
	Elapsed time.Duration
}

// Rebind recomputes the provider of every slot of every registered type.
// The whole pass runs under the write lock, so concurrent resolvers observe
// either the previous or the new binding of each slot.
func (r *Registry) Rebind() RebindReport {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	report := RebindReport{Types: len(r.types)}
	for _, t := range r.types {
		for _, m := range t.members {
			for _, s := range m.InjectSlots() {
				report.Slots++
				best, tied := selectRule(r.rules, s)
				if best == nil {
					s.bind(Unbound)
					report.Unbound++
					continue
				}
				if len(tied) > 0 {
					report.Ties++
					r.record(Diagnostic{
						Kind:      DuplicateBindingTie,
						Type:      t.Name(),
						TypeIndex: t.Index(),
						Member:    m.MemberIndex(),
						Slot:      s.Name,
						Rules:     append([]uint64(nil), tied...),
					})
					r.logger.Warn("binding tie resolved by registration order",
						zap.String("slot", s.String()),
						zap.Uint64s("rules", tied),
						zap.Uint64("selected", best.id),
					)
				}
				s.bind(best.binding)
				report.Bound++
			}
		}
	}
	report.Elapsed = time.Since(start)
	r.metrics.rebound(report.Elapsed)
	r.logger.Debug("rebind complete",
		zap.Int("types", report.Types),
		zap.Int("slots", report.Slots),
		zap.Int("bound", report.Bound),
		zap.Int("unbound", report.Unbound),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report
}

// Diagnostics returns the retained diagnostics, oldest first.
func (r *Registry) Diagnostics() []Diagnostic { return r.diag.snapshot() }

// DiagnosticCount returns how many diagnostics were ever recorded.
func (r *Registry) DiagnosticCount() uint64 { return r.diag.count() }

// ResetDiagnostics drops the retained diagnostics.
func (r *Registry) ResetDiagnostics() { r.diag.reset() }

func (r *Registry) record(d Diagnostic) {
	if d.At.IsZero() {
		d.At = time.Now()
	}
	r.diag.add(d)
}
