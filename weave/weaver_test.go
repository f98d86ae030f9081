package weave

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bronystylecrazy/ultraweave/abi"
	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/bronystylecrazy/ultraweave/inject"
	"github.com/bronystylecrazy/ultraweave/locate"
	"github.com/bronystylecrazy/ultraweave/vm"
	"github.com/bronystylecrazy/ultraweave/weavetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const (
	svc  = "app/Service"
	base = "app/Base"
)

type fixture struct {
	registry *inject.Registry
	tracker  *weavetest.Tracker
	machine  *vm.Machine
}

func newFixture(t *testing.T, rules ...inject.BindingRule) *fixture {
	t.Helper()
	f := &fixture{registry: inject.NewRegistry()}
	for _, r := range rules {
		_, err := f.registry.Register(r)
		require.NoError(t, err)
	}
	f.tracker = weavetest.NewTracker(f.registry)
	f.machine = vm.New()
	f.machine.UseResolver(f.tracker)
	f.machine.RegisterNative(weavetest.RecorderOwner, weavetest.RecorderHit, f.tracker.Native())
	require.NoError(t, f.machine.Define(weavetest.Class(base, "", nil, weavetest.Ctor(""))))
	return f
}

// weave registers st, rebinds and weaves a clone of c.
func (f *fixture) weave(t *testing.T, c *bytecode.Class, st *inject.TypeDescriptor) *bytecode.Class {
	t.Helper()
	_, err := f.registry.RegisterType(st)
	require.NoError(t, err)
	f.registry.Rebind()

	out := c.Clone()
	sites, err := locate.Locate(out, st)
	require.NoError(t, err)
	require.NoError(t, New().Weave(out, st, sites))
	require.NoError(t, bytecode.Verify(out), bytecode.Disassembly(out))
	return out
}

func serviceRules() []inject.BindingRule {
	return []inject.BindingRule{
		inject.NewRule(inject.Exactly("Repository"), inject.Value("repo")),
		inject.NewRule(inject.Exactly("string"), inject.Value("resolved-name")),
		inject.NewRule(inject.Exactly("Clock"), inject.Value("clock")),
		inject.NewRule(inject.Exactly("Counter"), inject.Value("counter")),
	}
}

func TestEverySlotResolvedExactlyOnce(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	c := weavetest.StaticFields(weavetest.Class(svc, base, []string{"repo", "name", "clock"},
		weavetest.Ctor(base, append(
			weavetest.InjectInto(svc, "repo", false),
			weavetest.Assign(svc, "name", "literal")...,
		)...),
		weavetest.Echo("handle", 2, 1),
	), "counter")
	st := inject.NewType(svc,
		inject.Field(svc, "repo", "Repository"),
		inject.Field(svc, "name", "string"),
		inject.Field(svc, "clock", "Clock"),
		inject.StaticField(svc, "counter", "Counter"),
		inject.Method(bytecode.Call(svc, "handle", abi.AnyType, abi.AnyType, abi.AnyType), inject.Arg(1, "clock", "Clock")),
	)
	woven := f.weave(t, c, st)
	require.True(t, IsWoven(woven))
	require.False(t, IsWoven(c))

	require.NoError(t, f.machine.Define(woven))
	require.Equal(t, 1, f.tracker.FieldCalls(0, 3))
	counter, _ := f.machine.Static(svc, "counter")
	require.Equal(t, "counter", counter)

	obj, err := f.machine.New(svc)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.Equal(t, 1, f.tracker.FieldCalls(0, i), "field %d", i)
	}
	require.Equal(t, "repo", obj.Get("repo"))
	require.Equal(t, "resolved-name", obj.Get("name"))
	require.Equal(t, "clock", obj.Get("clock"))

	got, err := f.machine.Invoke(obj, "handle", "request", "ignored")
	require.NoError(t, err)
	require.Equal(t, "clock", got)
	require.Equal(t, 1, f.tracker.ArgCalls(0, 4, 1))
	require.Zero(t, f.tracker.ArgCalls(0, 4, 0))

	preserved := woven.Method("handle"+abi.OriginalSuffix, 2)
	require.NotNil(t, preserved)
	require.True(t, preserved.Synthetic)
}

func TestMemberHooksSurroundResolution(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	c := weavetest.Class(svc, base, []string{"repo"},
		weavetest.Ctor(base, weavetest.InjectInto(svc, "repo", false)...),
		weavetest.Hook("logStart", "log"),
		weavetest.Hook("audit", "audit"),
	)
	repo := inject.Field(svc, "repo", "Repository")
	repo.Before = []string{"logStart"}
	repo.After = []string{"audit"}
	woven := f.weave(t, c, inject.NewType(svc, repo))
	require.NoError(t, f.machine.Define(woven))

	_, err := f.machine.New(svc)
	require.NoError(t, err)
	require.Equal(t, []string{"log", "resolve 0.0", "audit"}, f.tracker.Events())
}

func TestTypeHooksFollowTheRealBaseCall(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.machine.Define(weavetest.Class("app/Decoy", "", nil, weavetest.Ctor("", weavetest.Hit("decoy")...))))

	code := weavetest.Decoy("app/Decoy")
	code = append(code, bytecode.Load(0), bytecode.InvokeSpecial(bytecode.Call(base, bytecode.Constructor, "")))
	code = append(code, weavetest.Hit("body")...)
	code = append(code, bytecode.Return())
	c := weavetest.Class(svc, base, nil,
		weavetest.RawCtor(code...),
		weavetest.Hook("init", "init"),
		weavetest.Hook("done", "done"),
	)
	st := inject.NewType(svc)
	require.NoError(t, st.AddBefore("init"))
	require.NoError(t, st.AddAfter("done"))
	woven := f.weave(t, c, st)
	require.NoError(t, f.machine.Define(woven))

	_, err := f.machine.New(svc)
	require.NoError(t, err)
	require.Equal(t, []string{"decoy", "init", "body", "done"}, f.tracker.Events())
}

func TestTypeHooksRunOnEveryReturn(t *testing.T) {
	f := newFixture(t)
	ctor := &bytecode.Method{
		Name: bytecode.Constructor,
		Desc: bytecode.Desc{Params: []string{abi.AnyType}},
		Code: []bytecode.Instruction{
			bytecode.Load(0),
			bytecode.InvokeSpecial(bytecode.Call(base, bytecode.Constructor, "")),
			bytecode.Load(1),
			bytecode.IfNil(1),
			bytecode.Return(),
			bytecode.Mark(1),
			bytecode.Return(),
		},
	}
	c := weavetest.Class(svc, base, nil, ctor, weavetest.Hook("done", "done"))
	st := inject.NewType(svc)
	require.NoError(t, st.AddAfter("done"))
	woven := f.weave(t, c, st)
	require.NoError(t, f.machine.Define(woven))

	_, err := f.machine.New(svc, "x")
	require.NoError(t, err)
	_, err = f.machine.New(svc, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"done", "done"}, f.tracker.Events())
}

func TestStaticTypeHookPrecedesStaticFields(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	c := weavetest.StaticFields(weavetest.Class(svc, base, nil,
		weavetest.Ctor(base),
		weavetest.StaticHook("boot", "boot"),
	), "counter")
	st := inject.NewType(svc, inject.StaticField(svc, "counter", "Counter"))
	require.NoError(t, st.AddBefore("boot"))
	woven := f.weave(t, c, st)
	require.NotNil(t, woven.StaticInitializer())

	require.NoError(t, f.machine.Define(woven))
	require.Equal(t, []string{"boot", "resolve 0.0"}, f.tracker.Events())
}

func TestStaticMarker(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	c := weavetest.StaticFields(weavetest.Class(svc, base, nil,
		weavetest.Ctor(base),
		weavetest.Clinit(weavetest.InjectStatic(svc, "counter")...),
	), "counter")
	woven := f.weave(t, c, inject.NewType(svc, inject.StaticField(svc, "counter", "Counter")))
	require.NoError(t, f.machine.Define(woven))
	v, ok := f.machine.Static(svc, "counter")
	require.True(t, ok)
	require.Equal(t, "counter", v)
	require.Equal(t, 1, f.tracker.FieldCalls(0, 0))
}

func TestDispatcherHooks(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	c := weavetest.Class(svc, base, nil,
		weavetest.Ctor(base),
		weavetest.Echo("handle", 1, 0),
		weavetest.Hook("before", "before"),
		weavetest.Hook("after", "after"),
	)
	mm := inject.Method(bytecode.Call(svc, "handle", abi.AnyType, abi.AnyType), inject.Arg(0, "clock", "Clock"))
	mm.Before = []string{"before"}
	mm.After = []string{"after"}
	woven := f.weave(t, c, inject.NewType(svc, mm))
	require.NoError(t, f.machine.Define(woven))

	obj, err := f.machine.New(svc)
	require.NoError(t, err)
	got, err := f.machine.Invoke(obj, "handle", "caller")
	require.NoError(t, err)
	require.Equal(t, "clock", got)
	require.Equal(t, []string{"before", "resolve 0.0(0)", "after"}, f.tracker.Events())
}

func TestRequiredSlotRejectsNothing(t *testing.T) {
	f := newFixture(t)
	c := weavetest.Class(svc, base, []string{"repo"},
		weavetest.Ctor(base, weavetest.InjectInto(svc, "repo", true)...),
	)
	woven := f.weave(t, c, inject.NewType(svc, inject.Field(svc, "repo", "Repository")))
	require.NoError(t, f.machine.Define(woven))

	_, err := f.machine.New(svc)
	var nie *vm.NullInjectionError
	require.ErrorAs(t, err, &nie)
	require.Contains(t, nie.Slot, "repo")
}

func TestMissingHookTarget(t *testing.T) {
	f := newFixture(t)
	c := weavetest.Class(svc, base, []string{"repo"},
		weavetest.Ctor(base, weavetest.InjectInto(svc, "repo", false)...),
		&bytecode.Method{Name: "withArg", Desc: bytecode.Desc{Params: []string{abi.AnyType}}, Code: []bytecode.Instruction{bytecode.Return()}},
	)
	repo := inject.Field(svc, "repo", "Repository")
	repo.Before = []string{"nowhere", "withArg"}
	st := inject.NewType(svc, repo)
	_, err := f.registry.RegisterType(st)
	require.NoError(t, err)

	out := c.Clone()
	sites, err := locate.Locate(out, st)
	require.NoError(t, err)
	err = New().Weave(out, st, sites)
	require.ErrorIs(t, err, ErrMissingHookTarget)

	var hooks []string
	for _, e := range multierr.Errors(err) {
		var mht *MissingHookTargetError
		if errors.As(e, &mht) {
			hooks = append(hooks, mht.Hook)
		}
	}
	require.Equal(t, []string{"nowhere", "withArg"}, hooks)
	require.Equal(t, bytecode.Disassembly(c), bytecode.Disassembly(out))
}

func TestInstanceHookOnStaticMember(t *testing.T) {
	f := newFixture(t)
	c := weavetest.StaticFields(weavetest.Class(svc, base, nil, weavetest.Ctor(base), weavetest.Hook("log", "log")), "counter")
	counter := inject.StaticField(svc, "counter", "Counter")
	counter.Before = []string{"log"}
	st := inject.NewType(svc, counter)
	_, err := f.registry.RegisterType(st)
	require.NoError(t, err)
	sites, err := locate.Locate(c, st)
	require.NoError(t, err)
	require.ErrorIs(t, New().Weave(c, st, sites), ErrMissingHookTarget)
}

func TestWeaveTwice(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	c := weavetest.Class(svc, base, []string{"repo"}, weavetest.Ctor(base, weavetest.InjectInto(svc, "repo", false)...))
	st := inject.NewType(svc, inject.Field(svc, "repo", "Repository"))
	woven := f.weave(t, c, st)
	listing := bytecode.Disassembly(woven)

	sites, err := locate.Locate(woven, st)
	if err == nil {
		err = New().Weave(woven, st, sites)
	}
	require.ErrorIs(t, err, ErrAlreadyWoven)
	require.Equal(t, listing, bytecode.Disassembly(woven))
}

func TestWeaveRequiresRegisteredType(t *testing.T) {
	c := weavetest.Class(svc, base, nil, weavetest.Ctor(base))
	st := inject.NewType(svc)
	sites, err := locate.Locate(c, st)
	require.NoError(t, err)
	require.ErrorIs(t, New().Weave(c, st, sites), inject.ErrNotRegistered)
}

func TestMissingInstanceFieldNeedsConstructor(t *testing.T) {
	f := newFixture(t)
	c := weavetest.Class(svc, base, []string{"repo"})
	st := inject.NewType(svc, inject.Field(svc, "repo", "Repository"))
	_, err := f.registry.RegisterType(st)
	require.NoError(t, err)
	sites, err := locate.Locate(c, st)
	require.NoError(t, err)
	require.ErrorIs(t, New().Weave(c, st, sites), locate.ErrUnresolvableBaseInit)
}

func setRepo() *bytecode.Method {
	return &bytecode.Method{
		Name: "setRepo",
		Desc: bytecode.Desc{Params: []string{abi.AnyType}},
		Code: []bytecode.Instruction{
			bytecode.Load(0),
			bytecode.Load(1),
			bytecode.PutField(svc, "repo"),
			bytecode.Return(),
		},
	}
}

func TestSetterKeepsItsWrite(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	c := weavetest.Class(svc, base, []string{"repo"}, weavetest.Ctor(base), setRepo())
	woven := f.weave(t, c, inject.NewType(svc, inject.Field(svc, "repo", "Repository")))
	require.Equal(t, c.Method("setRepo", 1).Code, woven.Method("setRepo", 1).Code)
	require.NoError(t, f.machine.Define(woven))

	obj, err := f.machine.New(svc)
	require.NoError(t, err)
	require.Equal(t, "repo", obj.Get("repo"))
	require.Equal(t, 1, f.tracker.FieldCalls(0, 0))

	_, err = f.machine.Invoke(obj, "setRepo", "mine")
	require.NoError(t, err)
	require.Equal(t, "mine", obj.Get("repo"))
	require.Equal(t, 1, f.tracker.FieldCalls(0, 0))
}

func TestEveryConstructorResolvesOnce(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	withArg := &bytecode.Method{
		Name: bytecode.Constructor,
		Desc: bytecode.Desc{Params: []string{abi.AnyType}},
		Code: []bytecode.Instruction{
			bytecode.Load(0),
			bytecode.InvokeSpecial(bytecode.Call(base, bytecode.Constructor, "")),
			bytecode.Return(),
		},
	}
	c := weavetest.Class(svc, base, []string{"repo"},
		weavetest.Ctor(base, weavetest.InjectInto(svc, "repo", false)...),
		withArg,
	)
	woven := f.weave(t, c, inject.NewType(svc, inject.Field(svc, "repo", "Repository")))
	require.NoError(t, f.machine.Define(woven))

	obj, err := f.machine.New(svc)
	require.NoError(t, err)
	require.Equal(t, "repo", obj.Get("repo"))
	require.Equal(t, 1, f.tracker.FieldCalls(0, 0))

	obj, err = f.machine.New(svc, "x")
	require.NoError(t, err)
	require.Equal(t, "repo", obj.Get("repo"))
	require.Equal(t, 2, f.tracker.FieldCalls(0, 0))
}

func TestInitializerMemberResolvesOnce(t *testing.T) {
	f := newFixture(t, serviceRules()...)
	c := weavetest.Class(svc, base, []string{"repo"},
		weavetest.Ctor(base,
			bytecode.Load(0),
			bytecode.Push("manual"),
			bytecode.InvokeSpecial(bytecode.Call(svc, "setRepo", "", abi.AnyType)),
		),
		setRepo(),
	)
	woven := f.weave(t, c, inject.NewType(svc, inject.Field(svc, "repo", "Repository")))
	require.NoError(t, f.machine.Define(woven))

	obj, err := f.machine.New(svc)
	require.NoError(t, err)
	require.Equal(t, "repo", obj.Get("repo"))
	require.Equal(t, 1, f.tracker.FieldCalls(0, 0))
}

func TestTypeAfterHooksRunInsideTheDelegate(t *testing.T) {
	f := newFixture(t)
	code := []bytecode.Instruction{
		bytecode.Load(0),
		bytecode.InvokeSpecial(bytecode.Call(svc, bytecode.Constructor, "")),
	}
	code = append(code, weavetest.Hit("delegating body")...)
	code = append(code, bytecode.Return())
	delegating := &bytecode.Method{
		Name: bytecode.Constructor,
		Desc: bytecode.Desc{Params: []string{abi.AnyType}},
		Code: code,
	}
	c := weavetest.Class(svc, base, nil,
		weavetest.Ctor(base, weavetest.Hit("body")...),
		delegating,
		weavetest.Hook("done", "done"),
	)
	st := inject.NewType(svc)
	require.NoError(t, st.AddAfter("done"))
	woven := f.weave(t, c, st)
	require.NoError(t, f.machine.Define(woven))

	_, err := f.machine.New(svc, "x")
	require.NoError(t, err)
	require.Equal(t, []string{"body", "done", "delegating body"}, f.tracker.Events())
}

func TestEmitHooksPopsResults(t *testing.T) {
	c := weavetest.Class(svc, base, nil, &bytecode.Method{
		Name: "value",
		Desc: bytecode.Desc{Result: abi.AnyType},
		Code: []bytecode.Instruction{bytecode.Push(1), bytecode.ReturnValue()},
	})
	hooks, err := resolveHooks(c, "", []string{"value"}, false)
	require.NoError(t, err)
	got := emitHooks(svc, hooks)
	want := []bytecode.Opcode{bytecode.OpLoad, bytecode.OpInvokeVirtual, bytecode.OpPop}
	var ops []bytecode.Opcode
	for _, ins := range got {
		ops = append(ops, ins.Op)
	}
	if !reflect.DeepEqual(ops, want) {
		t.Fatalf("hook call = %v, want %v", ops, want)
	}
}
