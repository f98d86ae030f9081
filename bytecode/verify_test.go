package bytecode

import (
	"errors"
	"strings"
	"testing"
)

func class(methods ...*Method) *Class {
	return &Class{Name: "app/Sample", Methods: methods}
}

func TestVerifyAcceptsBranches(t *testing.T) {
	m := &Method{
		Name: "pick",
		Desc: Desc{Params: []string{"any"}, Result: "any"},
		Code: []Instruction{
			Load(1),
			IfNil(1),
			Load(1),
			ReturnValue(),
			Mark(1),
			Push("fallback"),
			ReturnValue(),
		},
	}
	if err := Verify(class(m)); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyRejections(t *testing.T) {
	tests := []struct {
		name   string
		method *Method
		reason string
	}{
		{
			name:   "underflow",
			method: &Method{Name: "m", Code: []Instruction{Pop(), Return()}},
			reason: "stack underflow",
		},
		{
			name:   "falls off the end",
			method: &Method{Name: "m", Code: []Instruction{Nop()}},
			reason: "falls off the end",
		},
		{
			name:   "undefined label",
			method: &Method{Name: "m", Code: []Instruction{Goto(7)}},
			reason: "undefined label",
		},
		{
			name:   "void return in value method",
			method: &Method{Name: "m", Desc: Desc{Result: "any"}, Code: []Instruction{Return()}},
			reason: "return without value",
		},
		{
			name: "inconsistent merge",
			method: &Method{Name: "m", Code: []Instruction{
				Push(nil),
				IfNil(1),
				Push(1),
				Mark(1),
				Return(),
			}},
			reason: "inconsistent stack depth",
		},
		{
			name:   "empty",
			method: &Method{Name: "m"},
			reason: "empty body",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(class(tt.method))
			if !errors.Is(err, ErrVerify) {
				t.Fatalf("expected ErrVerify, got %v", err)
			}
			var ve *VerifyError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *VerifyError, got %T", err)
			}
			if !strings.Contains(ve.Reason, tt.reason) {
				t.Fatalf("reason %q does not mention %q", ve.Reason, tt.reason)
			}
		})
	}
}

func TestVerifyReportsEveryMethod(t *testing.T) {
	bad := func(name string) *Method { return &Method{Name: name, Code: []Instruction{Pop(), Return()}} }
	err := Verify(class(bad("a"), bad("b")))
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "app/Sample.a") || !strings.Contains(err.Error(), "app/Sample.b") {
		t.Fatalf("expected both methods reported: %v", err)
	}
}
