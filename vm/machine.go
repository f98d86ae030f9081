package vm

import (
	"fmt"
	"sync"

	"github.com/bronystylecrazy/ultraweave/abi"
	"github.com/bronystylecrazy/ultraweave/bytecode"
	"go.uber.org/zap"
)

// DefaultMaxDepth bounds nested calls.
const DefaultMaxDepth = 512

// Native implements a static call in Go.
type Native func(args []any) (any, error)

// Transformer rewrites a raw class before it is defined.
type Transformer func(raw *bytecode.Class) (*bytecode.Class, error)

type class struct {
	*bytecode.Class
	super  *class
	labels map[*bytecode.Method]map[bytecode.LabelID]int
}

// method finds name/arity on c or its supers.
func (c *class) method(name string, arity int) (*class, *bytecode.Method) {
	for k := c; k != nil; k = k.super {
		if m := k.Method(name, arity); m != nil {
			return k, m
		}
	}
	return nil, nil
}

// Machine holds defined classes, static state and natives.
type Machine struct {
	mu        sync.RWMutex
	classes   map[string]*class
	natives   map[string]Native
	transform Transformer
	verify    bool
	maxDepth  int
	logger    *zap.Logger

	staticMu sync.RWMutex
	statics  map[string]map[string]any
}

// Option configures a Machine.
type Option func(*Machine)

func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTransformer installs the class-loading hook.
func WithTransformer(t Transformer) Option {
	return func(m *Machine) { m.transform = t }
}

// WithVerify verifies every class before it is defined.
func WithVerify(enabled bool) Option {
	return func(m *Machine) { m.verify = enabled }
}

func WithMaxDepth(depth int) Option {
	return func(m *Machine) {
		if depth > 0 {
			m.maxDepth = depth
		}
	}
}

// New builds a machine. Placeholder markers are bound to natives that fail,
// so a class defined without weaving cannot silently skip injection.
func New(opts ...Option) *Machine {
	m := &Machine{
		classes:  map[string]*class{},
		natives:  map[string]Native{},
		statics:  map[string]map[string]any{},
		maxDepth: DefaultMaxDepth,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("vm")
	unwoven := func([]any) (any, error) { return nil, ErrUnwovenPlaceholder }
	m.RegisterNative(abi.MarkerOwner, abi.MarkerNullable, unwoven)
	m.RegisterNative(abi.MarkerOwner, abi.MarkerRequired, unwoven)
	return m
}

// SetTransformer replaces the class-loading hook.
func (m *Machine) SetTransformer(t Transformer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transform = t
}

// RegisterNative binds owner.name to fn for invokestatic.
func (m *Machine) RegisterNative(owner, name string, fn Native) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.natives[owner+"."+name] = fn
}

func (m *Machine) native(owner, name string) (Native, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.natives[owner+"."+name]
	return fn, ok
}

// Define passes raw through the transformer, stores the result and runs its
// static initialization. A failure at any step leaves the class undefined.
func (m *Machine) Define(raw *bytecode.Class) error {
	m.mu.RLock()
	transform := m.transform
	m.mu.RUnlock()

	c := raw
	if transform != nil {
		out, err := transform(raw)
		if err != nil {
			return fmt.Errorf("define %s: %w", raw.Name, err)
		}
		c = out
	}
	if m.verify {
		if err := bytecode.Verify(c); err != nil {
			return fmt.Errorf("define %s: %w", c.Name, err)
		}
	}

	loaded := &class{Class: c, labels: map[*bytecode.Method]map[bytecode.LabelID]int{}}
	for _, method := range c.Methods {
		loaded.labels[method] = method.Labels()
	}

	m.mu.Lock()
	if _, ok := m.classes[c.Name]; ok {
		m.mu.Unlock()
		return fmt.Errorf("define %s: %w", c.Name, ErrDuplicateClass)
	}
	if super := c.SuperName(); super != bytecode.RootType {
		parent, ok := m.classes[super]
		if !ok {
			m.mu.Unlock()
			return fmt.Errorf("define %s: super %s: %w", c.Name, super, ErrNoSuchClass)
		}
		loaded.super = parent
	}
	m.classes[c.Name] = loaded
	m.mu.Unlock()

	if clinit := c.StaticInitializer(); clinit != nil {
		if _, err := m.call(loaded, clinit, nil, 0); err != nil {
			m.mu.Lock()
			delete(m.classes, c.Name)
			m.mu.Unlock()
			return fmt.Errorf("define %s: static initialization: %w", c.Name, err)
		}
	}
	m.logger.Debug("defined class", zap.String("class", c.Name), zap.Int("methods", len(c.Methods)))
	return nil
}

// Class returns the defined body of name.
func (m *Machine) Class(name string) (*bytecode.Class, bool) {
	c, err := m.lookup(name)
	if err != nil {
		return nil, false
	}
	return c.Class, true
}

func (m *Machine) lookup(name string) (*class, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchClass, name)
	}
	return c, nil
}

// New allocates an instance of name and runs the constructor taking args.
func (m *Machine) New(name string, args ...any) (*Object, error) {
	c, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	ctor := c.Method(bytecode.Constructor, len(args))
	if ctor == nil {
		return nil, fmt.Errorf("%w: %s.%s/%d", ErrNoSuchMethod, name, bytecode.Constructor, len(args))
	}
	obj := newObject(c)
	if _, err := m.call(c, ctor, append([]any{obj}, args...), 0); err != nil {
		return nil, err
	}
	return obj, nil
}

// Invoke calls an instance method on obj with virtual dispatch.
func (m *Machine) Invoke(obj *Object, name string, args ...any) (any, error) {
	if obj == nil {
		return nil, ErrNullReference
	}
	owner, method := obj.class.method(name, len(args))
	if method == nil || method.Static {
		return nil, fmt.Errorf("%w: %s.%s/%d", ErrNoSuchMethod, obj.class.Name, name, len(args))
	}
	return m.call(owner, method, append([]any{obj}, args...), 0)
}

// InvokeStatic calls a static method of a defined class, or a native.
func (m *Machine) InvokeStatic(className, name string, args ...any) (any, error) {
	return m.invokeStatic(className, name, args, 0)
}

func (m *Machine) invokeStatic(className, name string, args []any, depth int) (any, error) {
	if fn, ok := m.native(className, name); ok {
		return fn(args)
	}
	c, err := m.lookup(className)
	if err != nil {
		return nil, err
	}
	owner, method := c.method(name, len(args))
	if method == nil || !method.Static {
		return nil, fmt.Errorf("%w: %s.%s/%d", ErrNoSuchMethod, className, name, len(args))
	}
	return m.call(owner, method, args, depth)
}

// Static returns a static field value.
func (m *Machine) Static(className, field string) (any, bool) {
	m.staticMu.RLock()
	defer m.staticMu.RUnlock()
	v, ok := m.statics[className][field]
	return v, ok
}

func (m *Machine) setStatic(className, field string, v any) {
	m.staticMu.Lock()
	defer m.staticMu.Unlock()
	fields, ok := m.statics[className]
	if !ok {
		fields = map[string]any{}
		m.statics[className] = fields
	}
	fields[field] = v
}

// Field returns an instance field value, nil when unset.
func (m *Machine) Field(obj *Object, name string) (any, error) {
	if obj == nil {
		return nil, ErrNullReference
	}
	return obj.Get(name), nil
}
