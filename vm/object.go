package vm

import (
	"sync"

	"github.com/bronystylecrazy/ultraweave/bytecode"
)

// Object is an instance of a defined class.
type Object struct {
	class *class

	mu     sync.RWMutex
	fields map[string]any
}

func newObject(c *class) *Object {
	return &Object{class: c, fields: map[string]any{}}
}

// Class returns the class the object was allocated from.
func (o *Object) Class() *bytecode.Class { return o.class.Class }

// Get returns a field value, nil when unset.
func (o *Object) Get(name string) any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fields[name]
}

// Set writes a field value.
func (o *Object) Set(name string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields[name] = v
}

// InstanceOf reports whether the object's class is name or extends it.
func (o *Object) InstanceOf(name string) bool {
	for c := o.class; c != nil; c = c.super {
		if c.Name == name {
			return true
		}
	}
	return name == bytecode.RootType
}
