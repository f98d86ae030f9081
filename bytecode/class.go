package bytecode

import "strings"

const (
	// Constructor is the name of construction paths.
	Constructor = "<init>"
	// StaticInit is the name of the static initialization body.
	StaticInit = "<clinit>"
	// RootType is the implicit base of every class without a declared super.
	RootType = "Object"
)

// Class is one compiled type.
type Class struct {
	Name       string            `yaml:"name" msgpack:"name"`
	Super      string            `yaml:"super,omitempty" msgpack:"super,omitempty"`
	Fields     []*Field          `yaml:"fields,omitempty" msgpack:"fields,omitempty"`
	Methods    []*Method         `yaml:"methods,omitempty" msgpack:"methods,omitempty"`
	Attributes map[string]string `yaml:"attributes,omitempty" msgpack:"attributes,omitempty"`
}

// Field is a declared field.
type Field struct {
	Name   string `yaml:"name" msgpack:"name"`
	Type   string `yaml:"type" msgpack:"type"`
	Static bool   `yaml:"static,omitempty" msgpack:"static,omitempty"`
}

// Method is a declared method with its body.
type Method struct {
	Name      string        `yaml:"name" msgpack:"name"`
	Desc      Desc          `yaml:"desc" msgpack:"desc"`
	Static    bool          `yaml:"static,omitempty" msgpack:"static,omitempty"`
	Synthetic bool          `yaml:"synthetic,omitempty" msgpack:"synthetic,omitempty"`
	MaxLocals int           `yaml:"max_locals,omitempty" msgpack:"max_locals,omitempty"`
	Code      []Instruction `yaml:"code" msgpack:"code"`
}

// Desc is a method signature.
type Desc struct {
	Params []string `yaml:"params,omitempty" msgpack:"params,omitempty"`
	Result string   `yaml:"result,omitempty" msgpack:"result,omitempty"`
}

// Arity returns the number of declared parameters.
func (d Desc) Arity() int { return len(d.Params) }

// Returns reports whether the signature produces a value.
func (d Desc) Returns() bool { return d.Result != "" }

func (d Desc) String() string {
	result := d.Result
	if result == "" {
		result = "void"
	}
	return "(" + strings.Join(d.Params, ", ") + ") " + result
}

// SuperName returns the declared super type, defaulting to RootType.
func (c *Class) SuperName() string {
	if c.Super == "" {
		return RootType
	}
	return c.Super
}

// Method returns the method with the given name and arity, or nil.
func (c *Class) Method(name string, arity int) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc.Arity() == arity {
			return m
		}
	}
	return nil
}

// MethodsNamed returns every method with the given name in declaration order.
func (c *Class) MethodsNamed(name string) []*Method {
	var out []*Method
	for _, m := range c.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Field returns the field with the given name, or nil.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Constructors returns every construction body.
func (c *Class) Constructors() []*Method {
	return c.MethodsNamed(Constructor)
}

// StaticInitializer returns the static initialization body, or nil.
func (c *Class) StaticInitializer() *Method {
	return c.Method(StaticInit, 0)
}

// EnsureStaticInitializer returns the static initialization body, adding an
// empty one when the class has none.
func (c *Class) EnsureStaticInitializer() *Method {
	if m := c.StaticInitializer(); m != nil {
		return m
	}
	m := &Method{Name: StaticInit, Static: true, Synthetic: true, Code: []Instruction{Return()}}
	c.Methods = append(c.Methods, m)
	return m
}

// Attribute returns a class attribute.
func (c *Class) Attribute(key string) (string, bool) {
	v, ok := c.Attributes[key]
	return v, ok
}

// SetAttribute sets a class attribute.
func (c *Class) SetAttribute(key, value string) {
	if c.Attributes == nil {
		c.Attributes = map[string]string{}
	}
	c.Attributes[key] = value
}

// Clone returns a deep copy of the class.
func (c *Class) Clone() *Class {
	if c == nil {
		return nil
	}
	out := &Class{Name: c.Name, Super: c.Super}
	for _, f := range c.Fields {
		cp := *f
		out.Fields = append(out.Fields, &cp)
	}
	for _, m := range c.Methods {
		out.Methods = append(out.Methods, m.Clone())
	}
	if c.Attributes != nil {
		out.Attributes = make(map[string]string, len(c.Attributes))
		for k, v := range c.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// Clone returns a deep copy of the method.
func (m *Method) Clone() *Method {
	out := *m
	out.Desc.Params = append([]string(nil), m.Desc.Params...)
	out.Code = make([]Instruction, len(m.Code))
	for i, ins := range m.Code {
		out.Code[i] = ins.clone()
	}
	return &out
}

// ParamLocal returns the local slot holding parameter i.
func (m *Method) ParamLocal(i int) int {
	if m.Static {
		return i
	}
	return i + 1
}

// Locals returns the number of local slots the body needs: the declared
// MaxLocals, the receiver and parameters, and every slot the code touches.
func (m *Method) Locals() int {
	n := m.ParamLocal(m.Desc.Arity())
	if m.MaxLocals > n {
		n = m.MaxLocals
	}
	for _, ins := range m.Code {
		if (ins.Op == OpLoad || ins.Op == OpStore) && ins.Index >= n {
			n = ins.Index + 1
		}
	}
	return n
}

// Labels maps each label id to its position.
func (m *Method) Labels() map[LabelID]int {
	out := map[LabelID]int{}
	for pc, ins := range m.Code {
		if ins.Op == OpLabel {
			out[ins.Label] = pc
		}
	}
	return out
}

// NextLabel returns a label id not used by the body.
func (m *Method) NextLabel() LabelID {
	var next LabelID
	for _, ins := range m.Code {
		if (ins.Op == OpLabel || ins.Op.IsBranch()) && ins.Label >= next {
			next = ins.Label + 1
		}
	}
	return next
}

// Ref returns a reference to the method as declared on owner.
func (m *Method) Ref(owner string) MethodRef {
	return MethodRef{Owner: owner, Name: m.Name, Desc: m.Desc}
}
