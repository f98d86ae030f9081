package locate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAmbiguousFieldInitializer = errors.New("ambiguous field initializer")
	ErrUnresolvableBaseInit      = errors.New("unresolvable base initializer")
	ErrMemberNotFound            = errors.New("member not found")
	ErrUnsupportedMember         = errors.New("unsupported member")
)

// Position is an instruction inside a named method.
type Position struct {
	Method string
	Arity  int
	PC     int
}

func (p Position) String() string {
	return fmt.Sprintf("%s/%d@%d", p.Method, p.Arity, p.PC)
}

// AmbiguousFieldInitializerError reports a field written at more than one site.
type AmbiguousFieldInitializerError struct {
	Type  string
	Field string
	Sites []Position
}

func (e *AmbiguousFieldInitializerError) Error() string {
	sites := make([]string, len(e.Sites))
	for i, s := range e.Sites {
		sites[i] = s.String()
	}
	return fmt.Sprintf("%s.%s is written at %d sites (%s)", e.Type, e.Field, len(e.Sites), strings.Join(sites, ", "))
}

func (e *AmbiguousFieldInitializerError) Unwrap() error { return ErrAmbiguousFieldInitializer }

// UnresolvableBaseInitError reports a construction path without exactly one
// base-type construction call.
type UnresolvableBaseInitError struct {
	Type       string
	Method     Position
	Base       string
	Candidates []int
	Reason     string
}

func (e *UnresolvableBaseInitError) Error() string {
	return fmt.Sprintf("%s %s: %s (base %s, candidates %v)", e.Type, e.Method, e.Reason, e.Base, e.Candidates)
}

func (e *UnresolvableBaseInitError) Unwrap() error { return ErrUnresolvableBaseInit }

// MemberError reports a descriptor member the body cannot serve.
type MemberError struct {
	Type   string
	Member string
	Reason string
	Err    error
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Type, e.Member, e.Reason)
}

func (e *MemberError) Unwrap() error { return e.Err }
