package vm

import (
	"errors"
	"testing"

	"github.com/bronystylecrazy/ultraweave/abi"
	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/bronystylecrazy/ultraweave/weavetest"
	"github.com/stretchr/testify/require"
)

func animal() *bytecode.Class {
	return weavetest.Class("zoo/Animal", "", []string{"name"},
		weavetest.Ctor(""),
		&bytecode.Method{Name: "sound", Desc: bytecode.Desc{Result: abi.AnyType}, Code: []bytecode.Instruction{
			bytecode.Push("..."), bytecode.ReturnValue(),
		}},
		&bytecode.Method{Name: "describe", Desc: bytecode.Desc{Result: abi.AnyType}, Code: []bytecode.Instruction{
			bytecode.Load(0),
			bytecode.InvokeVirtual(bytecode.Call("zoo/Animal", "sound", abi.AnyType)),
			bytecode.ReturnValue(),
		}},
	)
}

func dog() *bytecode.Class {
	return weavetest.Class("zoo/Dog", "zoo/Animal", nil,
		&bytecode.Method{
			Name: bytecode.Constructor,
			Desc: bytecode.Desc{Params: []string{abi.AnyType}},
			Code: []bytecode.Instruction{
				bytecode.Load(0),
				bytecode.InvokeSpecial(bytecode.Call("zoo/Animal", bytecode.Constructor, "")),
				bytecode.Load(0),
				bytecode.Load(1),
				bytecode.PutField("zoo/Dog", "name"),
				bytecode.Return(),
			},
		},
		&bytecode.Method{Name: "sound", Desc: bytecode.Desc{Result: abi.AnyType}, Code: []bytecode.Instruction{
			bytecode.Push("woof"), bytecode.ReturnValue(),
		}},
	)
}

func TestVirtualDispatch(t *testing.T) {
	m := New(WithVerify(true))
	require.NoError(t, m.Define(animal()))
	require.NoError(t, m.Define(dog()))

	d, err := m.New("zoo/Dog", "rex")
	require.NoError(t, err)
	name, err := m.Field(d, "name")
	require.NoError(t, err)
	require.Equal(t, "rex", name)
	require.True(t, d.InstanceOf("zoo/Animal"))
	require.True(t, d.InstanceOf(bytecode.RootType))

	got, err := m.Invoke(d, "describe")
	require.NoError(t, err)
	require.Equal(t, "woof", got)

	a, err := m.New("zoo/Animal")
	require.NoError(t, err)
	got, err = m.Invoke(a, "describe")
	require.NoError(t, err)
	require.Equal(t, "...", got)
}

func TestDefineOrder(t *testing.T) {
	m := New()
	require.ErrorIs(t, m.Define(dog()), ErrNoSuchClass)
	require.NoError(t, m.Define(animal()))
	require.ErrorIs(t, m.Define(animal()), ErrDuplicateClass)
	_, err := m.New("zoo/Animal", 1, 2)
	require.ErrorIs(t, err, ErrNoSuchMethod)
}

func TestUnwovenPlaceholderFails(t *testing.T) {
	m := New()
	c := weavetest.Class("app/Raw", "", []string{"repo"},
		weavetest.Ctor("", weavetest.InjectInto("app/Raw", "repo", false)...),
	)
	require.NoError(t, m.Define(c))
	_, err := m.New("app/Raw")
	require.ErrorIs(t, err, ErrUnwovenPlaceholder)

	var exec *ExecError
	require.ErrorAs(t, err, &exec)
	require.Equal(t, "app/Raw", exec.Class)
	require.Equal(t, 3, exec.PC)
}

func TestStaticInitializerFailureUndefines(t *testing.T) {
	m := New()
	boom := errors.New("boom")
	m.RegisterNative("app/Env", "fail", func([]any) (any, error) { return nil, boom })
	c := weavetest.Class("app/Bad", "", nil,
		weavetest.Clinit(bytecode.InvokeStatic(bytecode.Call("app/Env", "fail", ""))),
	)
	require.ErrorIs(t, m.Define(c), boom)
	_, ok := m.Class("app/Bad")
	require.False(t, ok)
}

func TestStaticsAndNatives(t *testing.T) {
	m := New()
	m.RegisterNative("app/Env", "get", func(args []any) (any, error) {
		return "env:" + args[0].(string), nil
	})
	c := weavetest.StaticFields(weavetest.Class("app/Config", "", nil,
		weavetest.Clinit(
			bytecode.Push("home"),
			bytecode.InvokeStatic(bytecode.Call("app/Env", "get", abi.AnyType, abi.AnyType)),
			bytecode.PutStatic("app/Config", "home"),
		),
		&bytecode.Method{Name: "home", Static: true, Desc: bytecode.Desc{Result: abi.AnyType}, Code: []bytecode.Instruction{
			bytecode.GetStatic("app/Config", "home"),
			bytecode.ReturnValue(),
		}},
	), "home")
	require.NoError(t, m.Define(c))

	v, ok := m.Static("app/Config", "home")
	require.True(t, ok)
	require.Equal(t, "env:home", v)
	got, err := m.InvokeStatic("app/Config", "home")
	require.NoError(t, err)
	require.Equal(t, "env:home", got)
}

func TestNullReceiver(t *testing.T) {
	m := New()
	c := weavetest.Class("app/Null", "", nil, &bytecode.Method{
		Name:   "run",
		Static: true,
		Code: []bytecode.Instruction{
			bytecode.Push(nil),
			bytecode.GetField("app/Null", "x"),
			bytecode.Pop(),
			bytecode.Return(),
		},
	})
	require.NoError(t, m.Define(c))
	_, err := m.InvokeStatic("app/Null", "run")
	require.ErrorIs(t, err, ErrNullReference)

	_, err = m.Field(nil, "x")
	require.ErrorIs(t, err, ErrNullReference)
}

func TestRecursionIsBounded(t *testing.T) {
	m := New(WithMaxDepth(16))
	c := weavetest.Class("app/Loop", "", nil, &bytecode.Method{
		Name:   "spin",
		Static: true,
		Code: []bytecode.Instruction{
			bytecode.InvokeStatic(bytecode.Call("app/Loop", "spin", "")),
			bytecode.Return(),
		},
	})
	require.NoError(t, m.Define(c))
	_, err := m.InvokeStatic("app/Loop", "spin")
	require.ErrorIs(t, err, ErrStackOverflow)
}

type fixedResolver struct {
	calls [][]int
	value any
}

func (r *fixedResolver) ResolveField(_ any, typeIndex, fieldIndex int) (any, bool) {
	r.calls = append(r.calls, []int{typeIndex, fieldIndex})
	return r.value, r.value != nil
}

func (r *fixedResolver) ResolveMethodArg(_ any, typeIndex, methodIndex, argIndex int) (any, bool) {
	r.calls = append(r.calls, []int{typeIndex, methodIndex, argIndex})
	return r.value, r.value != nil
}

func TestResolverNativesAcceptDecodedIntegers(t *testing.T) {
	m := New()
	r := &fixedResolver{value: "v"}
	m.UseResolver(r)

	got, err := m.InvokeStatic(abi.ResolverOwner, abi.ResolveField, nil, int8(2), uint16(3))
	require.NoError(t, err)
	require.Equal(t, "v", got)
	_, err = m.InvokeStatic(abi.ResolverOwner, abi.ResolveArg, nil, int64(1), float64(0), uint8(4))
	require.NoError(t, err)
	require.Equal(t, [][]int{{2, 3}, {1, 0, 4}}, r.calls)

	_, err = m.InvokeStatic(abi.ResolverOwner, abi.ResolveField, nil, "x", 0)
	require.ErrorIs(t, err, ErrBadOperand)

	_, err = m.InvokeStatic(abi.ResolverOwner, abi.RequireNonNull, nil, "app/A.repo")
	var nie *NullInjectionError
	require.ErrorAs(t, err, &nie)
	require.Equal(t, "app/A.repo", nie.Slot)
}
