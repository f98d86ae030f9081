package weavetest

import (
	"fmt"
	"sync"
)

// Resolver mirrors the resolution calls woven code makes.
type Resolver interface {
	ResolveField(instance any, typeIndex, fieldIndex int) (any, bool)
	ResolveMethodArg(instance any, typeIndex, methodIndex, argIndex int) (any, bool)
}

// Tracker wraps a Resolver and keeps an ordered event log of resolutions and
// recorder hits, with per-position call counts.
type Tracker struct {
	inner Resolver

	mu     sync.Mutex
	events []string
	fields map[[2]int]int
	args   map[[3]int]int
}

// NewTracker wraps inner. A nil inner resolves nothing.
func NewTracker(inner Resolver) *Tracker {
	return &Tracker{inner: inner, fields: map[[2]int]int{}, args: map[[3]int]int{}}
}

func (t *Tracker) ResolveField(instance any, typeIndex, fieldIndex int) (any, bool) {
	t.mu.Lock()
	t.fields[[2]int{typeIndex, fieldIndex}]++
	t.events = append(t.events, fmt.Sprintf("resolve %d.%d", typeIndex, fieldIndex))
	t.mu.Unlock()
	if t.inner == nil {
		return nil, false
	}
	return t.inner.ResolveField(instance, typeIndex, fieldIndex)
}

func (t *Tracker) ResolveMethodArg(instance any, typeIndex, methodIndex, argIndex int) (any, bool) {
	t.mu.Lock()
	t.args[[3]int{typeIndex, methodIndex, argIndex}]++
	t.events = append(t.events, fmt.Sprintf("resolve %d.%d(%d)", typeIndex, methodIndex, argIndex))
	t.mu.Unlock()
	if t.inner == nil {
		return nil, false
	}
	return t.inner.ResolveMethodArg(instance, typeIndex, methodIndex, argIndex)
}

// Native returns the recorder native for RecorderOwner.RecorderHit.
func (t *Tracker) Native() func(args []any) (any, error) {
	return func(args []any) (any, error) {
		t.Record(fmt.Sprint(args[0]))
		return nil, nil
	}
}

// Record appends event to the log.
func (t *Tracker) Record(event string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Events returns the log in call order.
func (t *Tracker) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// FieldCalls counts resolutions of one field.
func (t *Tracker) FieldCalls(typeIndex, fieldIndex int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fields[[2]int{typeIndex, fieldIndex}]
}

// ArgCalls counts resolutions of one method parameter.
func (t *Tracker) ArgCalls(typeIndex, methodIndex, argIndex int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.args[[3]int{typeIndex, methodIndex, argIndex}]
}

// Reset drops the log and counts.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
	clear(t.fields)
	clear(t.args)
}
