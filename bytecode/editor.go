package bytecode

import "fmt"

// Editor collects splices against the original positions of a body and
// applies them in a single pass. Edits at the same position keep the order in
// which they were recorded; unedited instructions keep their relative order.
type Editor struct {
	code    []Instruction
	before  map[int][]Instruction
	after   map[int][]Instruction
	replace map[int][]Instruction
	err     error
}

// NewEditor starts an edit session over code. code itself is never mutated.
func NewEditor(code []Instruction) *Editor {
	return &Editor{
		code:    code,
		before:  map[int][]Instruction{},
		after:   map[int][]Instruction{},
		replace: map[int][]Instruction{},
	}
}

func (e *Editor) check(pc int, allowEnd bool) bool {
	limit := len(e.code)
	if allowEnd {
		limit++
	}
	if pc < 0 || pc >= limit {
		if e.err == nil {
			e.err = fmt.Errorf("%w: %d not in [0,%d)", ErrPositionRange, pc, limit)
		}
		return false
	}
	return true
}

// InsertBefore splices ins ahead of the instruction at pc. pc may equal the
// body length to append at the end.
func (e *Editor) InsertBefore(pc int, ins ...Instruction) {
	if !e.check(pc, true) {
		return
	}
	e.before[pc] = append(e.before[pc], ins...)
}

// InsertAfter splices ins behind the instruction at pc.
func (e *Editor) InsertAfter(pc int, ins ...Instruction) {
	if !e.check(pc, false) {
		return
	}
	e.after[pc] = append(e.after[pc], ins...)
}

// Replace substitutes the instruction at pc with ins. A position can be
// replaced once.
func (e *Editor) Replace(pc int, ins ...Instruction) {
	if !e.check(pc, false) {
		return
	}
	if _, ok := e.replace[pc]; ok {
		if e.err == nil {
			e.err = fmt.Errorf("%w: %d replaced twice", ErrConflictingEdit, pc)
		}
		return
	}
	e.replace[pc] = append([]Instruction{}, ins...)
}

// Empty reports whether no edit was recorded.
func (e *Editor) Empty() bool {
	return len(e.before) == 0 && len(e.after) == 0 && len(e.replace) == 0
}

// Apply returns the rewritten body.
func (e *Editor) Apply() ([]Instruction, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([]Instruction, 0, len(e.code)+len(e.before)+len(e.after))
	for pc, ins := range e.code {
		out = append(out, e.before[pc]...)
		if repl, ok := e.replace[pc]; ok {
			out = append(out, repl...)
		} else {
			out = append(out, ins)
		}
		out = append(out, e.after[pc]...)
	}
	out = append(out, e.before[len(e.code)]...)
	return out, nil
}
