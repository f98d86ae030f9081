package locate

import (
	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/bronystylecrazy/ultraweave/inject"
)

// SiteKind tells the weaver how a field slot gets its value.
type SiteKind int

const (
	// SiteMarker: a placeholder marker feeds the field's single write.
	SiteMarker SiteKind = iota
	// SiteAssignment: the single write stores some other value; the resolved
	// value overwrites it right after.
	SiteAssignment
	// SiteMissing: nothing writes the field; the weaver adds the write to every
	// construction path, or to static initialization for static fields.
	SiteMissing
)

func (k SiteKind) String() string {
	switch k {
	case SiteMarker:
		return "marker"
	case SiteAssignment:
		return "assignment"
	case SiteMissing:
		return "missing"
	}
	return "unknown"
}

// FieldSite is where one field slot is resolved. A field has one site per
// initializing write reached from construction, and at most one SiteMissing
// site covering the construction paths that reach no write.
type FieldSite struct {
	Member   *inject.FieldMember
	Kind     SiteKind
	Method   *bytecode.Method
	Marker   int
	Store    int
	Required bool
	// Paths are the construction paths a SiteMissing instance site adds the
	// write to. Static fields use static initialization instead.
	Paths []ConstructionPath
}

type writeSite struct {
	method *bytecode.Method
	pc     int
}

// FieldSites locates the resolution sites of every field member of t.
func FieldSites(c *bytecode.Class, t *inject.TypeDescriptor) ([]FieldSite, error) {
	paths, err := ConstructionPaths(c)
	if err != nil {
		return nil, err
	}
	var out []FieldSite
	for _, f := range t.Fields() {
		sites, err := fieldSites(c, f, paths)
		if err != nil {
			return nil, err
		}
		out = append(out, sites...)
	}
	return out, nil
}

// fieldSites only counts writes that run while an instance is constructed
// (or the class is initialized, for static fields): writes in construction
// paths, and writes in a member of the class those bodies call. Any other
// write, such as a setter nothing calls during construction, is left alone.
// More than one counted write on one path is ambiguous, as is any counted
// write in a constructor delegating to this(...), since its delegate already
// resolves the field.
func fieldSites(c *bytecode.Class, f *inject.FieldMember, paths []ConstructionPath) ([]FieldSite, error) {
	decl := c.Field(f.Ref.Name)
	if decl == nil || f.Ref.Owner != c.Name {
		return nil, &MemberError{Type: c.Name, Member: f.Name, Reason: "no such field in body", Err: ErrMemberNotFound}
	}
	if decl.Static != f.Static {
		return nil, &MemberError{Type: c.Name, Member: f.Name, Reason: "static modifier differs from body", Err: ErrMemberNotFound}
	}

	var roots []*bytecode.Method
	if f.Static {
		if clinit := c.StaticInitializer(); clinit != nil {
			roots = append(roots, clinit)
		}
	} else {
		for _, p := range paths {
			roots = append(roots, p.Method)
		}
	}
	writers := writerMembers(c, f)

	var (
		out     []FieldSite
		missing []ConstructionPath
		seen    = map[*bytecode.Method]bool{}
	)
	for i, root := range roots {
		reached := reachedWrites(c, f, root, writers)
		switch len(reached) {
		case 0:
			if !f.Static {
				missing = append(missing, paths[i])
			}
			continue
		case 1:
		default:
			return nil, ambiguous(c, f, reached)
		}
		w := reached[0]
		if seen[w.method] {
			continue
		}
		seen[w.method] = true
		out = append(out, writeFieldSite(f, w))
	}

	if !f.Static {
		for _, m := range delegatingConstructors(c, paths) {
			if reached := reachedWrites(c, f, m, writers); len(reached) > 0 {
				return nil, ambiguous(c, f, reached)
			}
		}
	}

	if len(missing) > 0 || len(out) == 0 {
		out = append(out, FieldSite{
			Member:   f,
			Kind:     SiteMissing,
			Marker:   -1,
			Store:    -1,
			Required: f.Slot.Required,
			Paths:    missing,
		})
	}
	return out, nil
}

func ambiguous(c *bytecode.Class, f *inject.FieldMember, writes []writeSite) error {
	err := &AmbiguousFieldInitializerError{Type: c.Name, Field: f.Name}
	for _, w := range writes {
		err.Sites = append(err.Sites, Position{Method: w.method.Name, Arity: w.method.Desc.Arity(), PC: w.pc})
	}
	return err
}

func writeFieldSite(f *inject.FieldMember, w writeSite) FieldSite {
	site := FieldSite{
		Member:   f,
		Kind:     SiteAssignment,
		Method:   w.method,
		Marker:   -1,
		Store:    w.pc,
		Required: f.Slot.Required,
	}
	for _, mk := range Markers(w.method) {
		if mk.Store == w.pc {
			site.Kind = SiteMarker
			site.Marker = mk.PC
			site.Required = site.Required || mk.Required
			break
		}
	}
	return site
}

// reachedWrites lists the writes of f in root itself and in every writer
// member root calls, once per call.
func reachedWrites(c *bytecode.Class, f *inject.FieldMember, root *bytecode.Method, writers map[*bytecode.Method][]int) []writeSite {
	var out []writeSite
	for _, pc := range fieldWrites(c, f, root) {
		out = append(out, writeSite{method: root, pc: pc})
	}
	for _, ins := range root.Code {
		if !isCall(ins.Op) || ins.Method == nil || ins.Method.Owner != c.Name {
			continue
		}
		callee := c.Method(ins.Method.Name, ins.Method.Desc.Arity())
		if callee == nil || callee.Static != (ins.Op == bytecode.OpInvokeStatic) {
			continue
		}
		for _, pc := range writers[callee] {
			out = append(out, writeSite{method: callee, pc: pc})
		}
	}
	return out
}

// writerMembers maps each non-constructor member of the same static kind as f
// to its writes of f.
func writerMembers(c *bytecode.Class, f *inject.FieldMember) map[*bytecode.Method][]int {
	out := map[*bytecode.Method][]int{}
	for _, m := range c.Methods {
		if m.Name == bytecode.Constructor || m.Name == bytecode.StaticInit || m.Static != f.Static {
			continue
		}
		if pcs := fieldWrites(c, f, m); len(pcs) > 0 {
			out[m] = pcs
		}
	}
	return out
}

func fieldWrites(c *bytecode.Class, f *inject.FieldMember, m *bytecode.Method) []int {
	op := bytecode.OpPutField
	if f.Static {
		op = bytecode.OpPutStatic
	}
	var out []int
	for pc, ins := range m.Code {
		if ins.Op != op || ins.Field == nil {
			continue
		}
		if ins.Field.Owner == c.Name && ins.Field.Name == f.Ref.Name {
			out = append(out, pc)
		}
	}
	return out
}

func isCall(op bytecode.Opcode) bool {
	return op == bytecode.OpInvokeSpecial || op == bytecode.OpInvokeVirtual || op == bytecode.OpInvokeStatic
}

// delegatingConstructors returns the constructors of c that are not paths.
func delegatingConstructors(c *bytecode.Class, paths []ConstructionPath) []*bytecode.Method {
	isPath := map[*bytecode.Method]bool{}
	for _, p := range paths {
		isPath[p.Method] = true
	}
	var out []*bytecode.Method
	for _, m := range c.Constructors() {
		if !isPath[m] {
			out = append(out, m)
		}
	}
	return out
}
