package weave

import (
	"fmt"
	"strconv"

	"github.com/bronystylecrazy/ultraweave/abi"
	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/bronystylecrazy/ultraweave/inject"
	"github.com/bronystylecrazy/ultraweave/locate"
	"go.uber.org/zap"
)

// Weaver rewrites class bodies in place. Callers that need the raw body
// afterwards pass a clone.
type Weaver struct {
	logger *zap.Logger
}

// Option configures a Weaver.
type Option func(*Weaver)

func WithLogger(logger *zap.Logger) Option {
	return func(w *Weaver) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New builds a Weaver.
func New(opts ...Option) *Weaver {
	w := &Weaver{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("weaver")
	return w
}

// IsWoven reports whether c already carries the woven attribute.
func IsWoven(c *bytecode.Class) bool {
	_, ok := c.Attribute(abi.WovenAttribute)
	return ok
}

// Weave rewrites c for t using sites located on c itself. Fields are woven
// first, then method dispatchers, then type-level hooks, whose positions are
// located again on the rewritten constructors.
func (w *Weaver) Weave(c *bytecode.Class, t *inject.TypeDescriptor, sites *locate.Sites) error {
	if IsWoven(c) {
		return fmt.Errorf("%w: class %s", ErrAlreadyWoven, c.Name)
	}
	if !t.Registered() {
		return fmt.Errorf("%w: %s", inject.ErrNotRegistered, t.Name())
	}
	members, types, err := resolveAllHooks(c, t)
	if err != nil {
		return err
	}
	if err := w.weaveFields(c, t, sites, members); err != nil {
		return err
	}
	for _, site := range sites.Methods {
		if err := w.weaveMethod(c, t, site, members[site.Member.Index]); err != nil {
			return err
		}
	}
	if err := w.weaveTypeHooks(c, types); err != nil {
		return err
	}
	c.SetAttribute(abi.WovenAttribute, strconv.Itoa(t.Index()))
	return nil
}

type editors map[*bytecode.Method]*bytecode.Editor

func (e editors) of(m *bytecode.Method) *bytecode.Editor {
	ed, ok := e[m]
	if !ok {
		ed = bytecode.NewEditor(m.Code)
		e[m] = ed
	}
	return ed
}

func (e editors) apply() error {
	for m, ed := range e {
		code, err := ed.Apply()
		if err != nil {
			return fmt.Errorf("apply edits to %s: %w", m.Name, err)
		}
		m.Code = code
	}
	return nil
}

// resolveFieldCall leaves the resolved value of f on the stack.
func resolveFieldCall(t *inject.TypeDescriptor, f *inject.FieldMember, required bool) []bytecode.Instruction {
	out := []bytecode.Instruction{
		instance(f.Static),
		bytecode.Push(t.Index()),
		bytecode.Push(f.Index),
		bytecode.InvokeStatic(abi.ResolveFieldRef()),
	}
	if required {
		out = append(out, requireNonNull(f.Slot)...)
	}
	return out
}

func requireNonNull(s *inject.Slot) []bytecode.Instruction {
	return []bytecode.Instruction{
		bytecode.Push(s.String()),
		bytecode.InvokeStatic(abi.RequireNonNullRef()),
	}
}

func instance(static bool) bytecode.Instruction {
	if static {
		return bytecode.Push(nil)
	}
	return bytecode.Load(0)
}

// assignField resolves f and writes it, leaving the stack unchanged.
func assignField(owner string, t *inject.TypeDescriptor, f *inject.FieldMember, required bool) []bytecode.Instruction {
	var out []bytecode.Instruction
	if f.Static {
		out = append(out, resolveFieldCall(t, f, required)...)
		return append(out, bytecode.PutStatic(owner, f.Ref.Name))
	}
	out = append(out, bytecode.Load(0))
	out = append(out, resolveFieldCall(t, f, required)...)
	return append(out, bytecode.PutField(owner, f.Ref.Name))
}

func (w *Weaver) weaveFields(c *bytecode.Class, t *inject.TypeDescriptor, sites *locate.Sites, hooks map[int]memberHooks) error {
	eds := editors{}
	for _, site := range sites.Fields {
		f := site.Member
		h := hooks[f.Index]
		before := emitHooks(c.Name, h.before)
		after := emitHooks(c.Name, h.after)

		switch site.Kind {
		case locate.SiteMarker:
			ed := eds.of(site.Method)
			ed.Replace(site.Marker, append(before, resolveFieldCall(t, f, site.Required)...)...)
			if len(after) > 0 {
				ed.InsertAfter(site.Store, after...)
			}
		case locate.SiteAssignment:
			seq := append(before, assignField(c.Name, t, f, site.Required)...)
			eds.of(site.Method).InsertAfter(site.Store, append(seq, after...)...)
		case locate.SiteMissing:
			seq := append(before, assignField(c.Name, t, f, site.Required)...)
			seq = append(seq, after...)
			if f.Static {
				clinit := c.EnsureStaticInitializer()
				eds.of(clinit).InsertBefore(0, seq...)
				break
			}
			if len(site.Paths) == 0 {
				return &locate.UnresolvableBaseInitError{
					Type:   c.Name,
					Method: locate.Position{Method: bytecode.Constructor, PC: -1},
					Base:   c.SuperName(),
					Reason: "no construction path to initialize field " + f.Name,
				}
			}
			for _, p := range site.Paths {
				eds.of(p.Method).InsertAfter(p.BaseCall, seq...)
			}
		}
		w.logger.Debug("woven field",
			zap.String("type", c.Name),
			zap.String("field", f.Name),
			zap.Stringer("site", site.Kind),
		)
	}
	return eds.apply()
}

// weaveMethod preserves the original body under a synthetic name and installs
// a dispatcher under the original signature that resolves every parameter
// slot in order and forwards to it.
func (w *Weaver) weaveMethod(c *bytecode.Class, t *inject.TypeDescriptor, site locate.MethodSite, hooks memberHooks) error {
	orig := site.Method
	mm := site.Member
	arity := orig.Desc.Arity()
	preserved := orig.Name + abi.OriginalSuffix
	if c.Method(preserved, arity) != nil {
		return fmt.Errorf("%w: %s.%s already dispatched", ErrAlreadyWoven, c.Name, orig.Name)
	}

	dispatcher := &bytecode.Method{
		Name:   orig.Name,
		Desc:   bytecode.Desc{Params: append([]string(nil), orig.Desc.Params...), Result: orig.Desc.Result},
		Static: orig.Static,
	}
	orig.Name = preserved
	orig.Synthetic = true

	code := emitHooks(c.Name, hooks.before)
	for i := 0; i < arity; i++ {
		s, ok := mm.Arg(i)
		if !ok {
			continue
		}
		code = append(code,
			instance(mm.Static),
			bytecode.Push(t.Index()),
			bytecode.Push(mm.Index),
			bytecode.Push(i),
			bytecode.InvokeStatic(abi.ResolveArgRef()),
		)
		if s.Required {
			code = append(code, requireNonNull(s)...)
		}
		code = append(code, bytecode.Store(dispatcher.ParamLocal(i)))
	}
	if !mm.Static {
		code = append(code, bytecode.Load(0))
	}
	for i := 0; i < arity; i++ {
		code = append(code, bytecode.Load(dispatcher.ParamLocal(i)))
	}
	if mm.Static {
		code = append(code, bytecode.InvokeStatic(orig.Ref(c.Name)))
	} else {
		code = append(code, bytecode.InvokeSpecial(orig.Ref(c.Name)))
	}
	result := dispatcher.ParamLocal(arity)
	if dispatcher.Desc.Returns() {
		code = append(code, bytecode.Store(result))
	}
	code = append(code, emitHooks(c.Name, hooks.after)...)
	if dispatcher.Desc.Returns() {
		code = append(code, bytecode.Load(result), bytecode.ReturnValue())
		dispatcher.MaxLocals = result + 1
	} else {
		code = append(code, bytecode.Return())
		dispatcher.MaxLocals = result
	}
	dispatcher.Code = code
	c.Methods = append(c.Methods, dispatcher)

	w.logger.Debug("woven method dispatcher",
		zap.String("type", c.Name),
		zap.String("method", mm.Name),
		zap.Int("slots", len(mm.Slots)),
	)
	return nil
}

// weaveTypeHooks places instance type hooks right after the base call and
// before every return of each construction path, and static type hooks at the
// start and before every return of static initialization.
func (w *Weaver) weaveTypeHooks(c *bytecode.Class, hooks typeHooks) error {
	eds := editors{}
	if hooks.hasInstance() {
		paths, err := locate.ConstructionPaths(c)
		if err != nil {
			return err
		}
		before := emitHooks(c.Name, hooks.instanceBefore)
		after := emitHooks(c.Name, hooks.instanceAfter)
		for _, p := range paths {
			ed := eds.of(p.Method)
			if len(before) > 0 {
				ed.InsertAfter(p.BaseCall, before...)
			}
			if len(after) > 0 {
				for _, pc := range p.Returns {
					ed.InsertBefore(pc, after...)
				}
			}
		}
	}
	if hooks.hasStatic() {
		clinit := c.EnsureStaticInitializer()
		ed := eds.of(clinit)
		if before := emitHooks(c.Name, hooks.staticBefore); len(before) > 0 {
			ed.InsertBefore(0, before...)
		}
		if after := emitHooks(c.Name, hooks.staticAfter); len(after) > 0 {
			for _, pc := range locate.Returns(clinit) {
				ed.InsertBefore(pc, after...)
			}
		}
	}
	return eds.apply()
}
