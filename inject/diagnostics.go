package inject

import (
	"sync"
	"time"
)

// DiagnosticKind classifies a non-fatal registry event.
type DiagnosticKind int

const (
	NoMatchingProvider DiagnosticKind = iota
	ProviderFailed
	DuplicateBindingTie
	InvalidIndex
)

func (k DiagnosticKind) String() string {
	switch k {
	case NoMatchingProvider:
		return "no_matching_provider"
	case ProviderFailed:
		return "provider_failed"
	case DuplicateBindingTie:
		return "duplicate_binding_tie"
	case InvalidIndex:
		return "invalid_index"
	}
	return "unknown"
}

// Diagnostic records one event. Slot is empty for InvalidIndex.
type Diagnostic struct {
	Kind      DiagnosticKind
	Type      string
	TypeIndex int
	Member    int
	Slot      string
	Rules     []uint64
	Err       error
	At        time.Time
}

// diagnosticLog is a ring of the most recent diagnostics.
type diagnosticLog struct {
	mu      sync.Mutex
	entries []Diagnostic
	next    int
	full    bool
	total   uint64
}

func newDiagnosticLog(limit int) *diagnosticLog {
	return &diagnosticLog{entries: make([]Diagnostic, limit)}
}

func (l *diagnosticLog) add(d Diagnostic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = d
	l.next++
	l.total++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

func (l *diagnosticLog) snapshot() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.full {
		return append([]Diagnostic(nil), l.entries[:l.next]...)
	}
	out := make([]Diagnostic, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

func (l *diagnosticLog) count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *diagnosticLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	l.next = 0
	l.full = false
}
