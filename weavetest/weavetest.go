// Package weavetest builds small class bodies and records what woven code
// does when it runs.
package weavetest

import (
	"github.com/bronystylecrazy/ultraweave/abi"
	"github.com/bronystylecrazy/ultraweave/bytecode"
)

const (
	// RecorderOwner and RecorderHit name the native that Hit calls.
	RecorderOwner = "test/Recorder"
	RecorderHit   = "hit"
)

// Class builds a class with untyped fields.
func Class(name, super string, fields []string, methods ...*bytecode.Method) *bytecode.Class {
	c := &bytecode.Class{Name: name, Super: super, Methods: methods}
	for _, f := range fields {
		c.Fields = append(c.Fields, &bytecode.Field{Name: f, Type: abi.AnyType})
	}
	return c
}

// StaticFields appends static fields to c.
func StaticFields(c *bytecode.Class, names ...string) *bytecode.Class {
	for _, n := range names {
		c.Fields = append(c.Fields, &bytecode.Field{Name: n, Type: abi.AnyType, Static: true})
	}
	return c
}

// Ctor builds a zero-argument constructor that runs body after delegating
// to super, then returns.
func Ctor(super string, body ...bytecode.Instruction) *bytecode.Method {
	if super == "" {
		super = bytecode.RootType
	}
	code := []bytecode.Instruction{
		bytecode.Load(0),
		bytecode.InvokeSpecial(bytecode.Call(super, bytecode.Constructor, "")),
	}
	code = append(code, body...)
	code = append(code, bytecode.Return())
	return &bytecode.Method{Name: bytecode.Constructor, Code: code}
}

// RawCtor builds a zero-argument constructor from code as given.
func RawCtor(code ...bytecode.Instruction) *bytecode.Method {
	return &bytecode.Method{Name: bytecode.Constructor, Code: code}
}

// Clinit builds a static initializer running body.
func Clinit(body ...bytecode.Instruction) *bytecode.Method {
	code := append(append([]bytecode.Instruction{}, body...), bytecode.Return())
	return &bytecode.Method{Name: bytecode.StaticInit, Static: true, Code: code}
}

// Hook builds a zero-argument instance method that records event.
func Hook(name, event string) *bytecode.Method {
	return &bytecode.Method{Name: name, Code: append(Hit(event), bytecode.Return())}
}

// StaticHook builds a zero-argument static method that records event.
func StaticHook(name, event string) *bytecode.Method {
	m := Hook(name, event)
	m.Static = true
	return m
}

// Hit records event through the recorder native.
func Hit(event string) []bytecode.Instruction {
	return []bytecode.Instruction{
		bytecode.Push(event),
		bytecode.InvokeStatic(bytecode.Call(RecorderOwner, RecorderHit, "", abi.AnyType)),
	}
}

// InjectInto writes a placeholder marker into an instance field of owner.
func InjectInto(owner, field string, required bool) []bytecode.Instruction {
	return []bytecode.Instruction{
		bytecode.Load(0),
		bytecode.InvokeStatic(abi.Marker(required)),
		bytecode.PutField(owner, field),
	}
}

// InjectStatic writes a placeholder marker into a static field of owner.
func InjectStatic(owner, field string) []bytecode.Instruction {
	return []bytecode.Instruction{
		bytecode.InvokeStatic(abi.Marker(false)),
		bytecode.PutStatic(owner, field),
	}
}

// Assign writes the constant v into an instance field of owner.
func Assign(owner, field string, v any) []bytecode.Instruction {
	return []bytecode.Instruction{
		bytecode.Load(0),
		bytecode.Push(v),
		bytecode.PutField(owner, field),
	}
}

// Decoy allocates and constructs an unrelated object, then drops it.
func Decoy(typ string) []bytecode.Instruction {
	return []bytecode.Instruction{
		bytecode.New(typ),
		bytecode.Dup(),
		bytecode.InvokeSpecial(bytecode.Call(typ, bytecode.Constructor, "")),
		bytecode.Pop(),
	}
}

// Echo builds an instance method returning its parameter at index.
func Echo(name string, arity, index int) *bytecode.Method {
	params := make([]string, arity)
	for i := range params {
		params[i] = abi.AnyType
	}
	m := &bytecode.Method{Name: name, Desc: bytecode.Desc{Params: params, Result: abi.AnyType}}
	m.Code = []bytecode.Instruction{bytecode.Load(m.ParamLocal(index)), bytecode.ReturnValue()}
	return m
}
