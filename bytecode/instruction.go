package bytecode

import "fmt"

// LabelID names a branch target inside one method.
type LabelID int

// FieldRef references a field by owner and name.
type FieldRef struct {
	Owner string `yaml:"owner" msgpack:"owner"`
	Name  string `yaml:"name" msgpack:"name"`
}

func (r FieldRef) String() string { return r.Owner + "." + r.Name }

// MethodRef references a method by owner, name and signature.
type MethodRef struct {
	Owner string `yaml:"owner" msgpack:"owner"`
	Name  string `yaml:"name" msgpack:"name"`
	Desc  Desc   `yaml:"desc,omitempty" msgpack:"desc,omitempty"`
}

func (r MethodRef) String() string { return r.Owner + "." + r.Name + r.Desc.String() }

// Matches reports whether r refers to the same owner, name and arity as other.
func (r MethodRef) Matches(other MethodRef) bool {
	return r.Owner == other.Owner && r.Name == other.Name && r.Desc.Arity() == other.Desc.Arity()
}

// Instruction is one stack machine instruction. Only the operand relevant to
// Op is set.
type Instruction struct {
	Op     Opcode     `yaml:"op" msgpack:"op"`
	Index  int        `yaml:"index,omitempty" msgpack:"index,omitempty"`
	Value  any        `yaml:"value,omitempty" msgpack:"value"`
	Type   string     `yaml:"type,omitempty" msgpack:"type,omitempty"`
	Field  *FieldRef  `yaml:"field,omitempty" msgpack:"field,omitempty"`
	Method *MethodRef `yaml:"method,omitempty" msgpack:"method,omitempty"`
	Label  LabelID    `yaml:"label,omitempty" msgpack:"label,omitempty"`
}

func (ins Instruction) clone() Instruction {
	if ins.Field != nil {
		f := *ins.Field
		ins.Field = &f
	}
	if ins.Method != nil {
		m := *ins.Method
		m.Desc.Params = append([]string(nil), m.Desc.Params...)
		ins.Method = &m
	}
	return ins
}

func (ins Instruction) String() string {
	switch ins.Op {
	case OpLabel:
		return fmt.Sprintf("L%d:", ins.Label)
	case OpConst:
		if s, ok := ins.Value.(string); ok {
			return fmt.Sprintf("const %q", s)
		}
		return fmt.Sprintf("const %v", ins.Value)
	case OpLoad, OpStore:
		return fmt.Sprintf("%s %d", ins.Op, ins.Index)
	case OpNew:
		return "new " + ins.Type
	case OpGetField, OpPutField, OpGetStatic, OpPutStatic:
		if ins.Field == nil {
			return ins.Op.String() + " <nil>"
		}
		return ins.Op.String() + " " + ins.Field.String()
	case OpInvokeSpecial, OpInvokeVirtual, OpInvokeStatic:
		if ins.Method == nil {
			return ins.Op.String() + " <nil>"
		}
		return ins.Op.String() + " " + ins.Method.String()
	case OpGoto, OpIfNil, OpIfNotNil:
		return fmt.Sprintf("%s L%d", ins.Op, ins.Label)
	default:
		return ins.Op.String()
	}
}

// StackEffect returns how many values ins pops and pushes.
func StackEffect(ins Instruction) (pops, pushes int, err error) {
	switch ins.Op {
	case OpNop, OpLabel, OpGoto, OpReturn:
		return 0, 0, nil
	case OpConst, OpLoad, OpNew, OpGetStatic:
		return 0, 1, nil
	case OpStore, OpPop, OpPutStatic, OpIfNil, OpIfNotNil, OpReturnValue:
		return 1, 0, nil
	case OpDup:
		return 1, 2, nil
	case OpGetField:
		return 1, 1, nil
	case OpPutField:
		return 2, 0, nil
	case OpInvokeStatic, OpInvokeSpecial, OpInvokeVirtual:
		if ins.Method == nil {
			return 0, 0, fmt.Errorf("%w: %s without method", ErrMalformedOperand, ins.Op)
		}
		pops = ins.Method.Desc.Arity()
		if ins.Op != OpInvokeStatic {
			pops++
		}
		if ins.Method.Desc.Returns() {
			pushes = 1
		}
		return pops, pushes, nil
	}
	return 0, 0, fmt.Errorf("%w: %d", ErrUnknownOpcode, uint8(ins.Op))
}

func Nop() Instruction {
	return Instruction{Op: OpNop}
}

func Mark(id LabelID) Instruction {
	return Instruction{Op: OpLabel, Label: id}
}

func Push(v any) Instruction {
	return Instruction{Op: OpConst, Value: v}
}

func Load(local int) Instruction {
	return Instruction{Op: OpLoad, Index: local}
}

func Store(local int) Instruction {
	return Instruction{Op: OpStore, Index: local}
}

func Dup() Instruction {
	return Instruction{Op: OpDup}
}

func Pop() Instruction {
	return Instruction{Op: OpPop}
}

func New(typ string) Instruction {
	return Instruction{Op: OpNew, Type: typ}
}

func Goto(target LabelID) Instruction {
	return Instruction{Op: OpGoto, Label: target}
}

func IfNil(target LabelID) Instruction {
	return Instruction{Op: OpIfNil, Label: target}
}

func IfNotNil(target LabelID) Instruction {
	return Instruction{Op: OpIfNotNil, Label: target}
}

func Return() Instruction {
	return Instruction{Op: OpReturn}
}

func ReturnValue() Instruction {
	return Instruction{Op: OpReturnValue}
}

func GetField(owner, name string) Instruction {
	return Instruction{Op: OpGetField, Field: &FieldRef{Owner: owner, Name: name}}
}

func PutField(owner, name string) Instruction {
	return Instruction{Op: OpPutField, Field: &FieldRef{Owner: owner, Name: name}}
}

func GetStatic(owner, name string) Instruction {
	return Instruction{Op: OpGetStatic, Field: &FieldRef{Owner: owner, Name: name}}
}

func PutStatic(owner, name string) Instruction {
	return Instruction{Op: OpPutStatic, Field: &FieldRef{Owner: owner, Name: name}}
}

func InvokeSpecial(ref MethodRef) Instruction {
	return Instruction{Op: OpInvokeSpecial, Method: &ref}
}

func InvokeVirtual(ref MethodRef) Instruction {
	return Instruction{Op: OpInvokeVirtual, Method: &ref}
}

func InvokeStatic(ref MethodRef) Instruction {
	return Instruction{Op: OpInvokeStatic, Method: &ref}
}

// Call builds a method reference for an instruction helper.
func Call(owner, name string, result string, params ...string) MethodRef {
	return MethodRef{Owner: owner, Name: name, Desc: Desc{Params: params, Result: result}}
}
