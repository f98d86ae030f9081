// Package abi names the calls shared by woven bodies and the runtime that
// executes them.
package abi

import "github.com/bronystylecrazy/ultraweave/bytecode"

const (
	// MarkerOwner owns the placeholder marker calls left in source bodies.
	MarkerOwner = "ultraweave/Inject"
	// MarkerNullable stands for a value that may resolve to nothing.
	MarkerNullable = "value"
	// MarkerRequired stands for a value that must not resolve to nothing.
	MarkerRequired = "require"

	// ResolverOwner owns the calls spliced in by the weaver.
	ResolverOwner  = "ultraweave/Resolver"
	ResolveField   = "resolveField"
	ResolveArg     = "resolveArg"
	RequireNonNull = "requireNonNull"

	// WovenAttribute is set on every class produced by the weaver.
	WovenAttribute = "ultraweave.woven"
	// OriginalSuffix is appended to the preserved body of a dispatched method.
	OriginalSuffix = "$original"

	// AnyType is the declared type of values crossing the resolver boundary.
	AnyType = "any"
	IntType = "int"
)

// IsMarker reports whether ref is a placeholder marker and whether it is the
// must-not-be-null variant.
func IsMarker(ref *bytecode.MethodRef) (marker, required bool) {
	if ref == nil || ref.Owner != MarkerOwner || ref.Desc.Arity() != 0 {
		return false, false
	}
	switch ref.Name {
	case MarkerNullable:
		return true, false
	case MarkerRequired:
		return true, true
	}
	return false, false
}

// Marker returns the placeholder call for the given variant.
func Marker(required bool) bytecode.MethodRef {
	name := MarkerNullable
	if required {
		name = MarkerRequired
	}
	return bytecode.Call(MarkerOwner, name, AnyType)
}

// ResolveFieldRef is resolveField(instance, typeIndex, fieldIndex) any.
func ResolveFieldRef() bytecode.MethodRef {
	return bytecode.Call(ResolverOwner, ResolveField, AnyType, AnyType, IntType, IntType)
}

// ResolveArgRef is resolveArg(instance, typeIndex, methodIndex, argIndex) any.
func ResolveArgRef() bytecode.MethodRef {
	return bytecode.Call(ResolverOwner, ResolveArg, AnyType, AnyType, IntType, IntType, IntType)
}

// RequireNonNullRef is requireNonNull(value, slot) any.
func RequireNonNullRef() bytecode.MethodRef {
	return bytecode.Call(ResolverOwner, RequireNonNull, AnyType, AnyType, "string")
}
