package vm

import (
	"fmt"

	"github.com/bronystylecrazy/ultraweave/abi"
)

// Resolver answers the resolution calls woven code makes at runtime.
// *inject.Registry satisfies it.
type Resolver interface {
	ResolveField(instance any, typeIndex, fieldIndex int) (any, bool)
	ResolveMethodArg(instance any, typeIndex, methodIndex, argIndex int) (any, bool)
}

// UseResolver binds the resolver ABI to r. The instance handed to r is the
// *Object under construction or invocation, nil in static contexts.
func (m *Machine) UseResolver(r Resolver) {
	m.RegisterNative(abi.ResolverOwner, abi.ResolveField, func(args []any) (any, error) {
		idx, err := intArgs(args[1:])
		if err != nil {
			return nil, err
		}
		v, _ := r.ResolveField(instance(args[0]), idx[0], idx[1])
		return v, nil
	})
	m.RegisterNative(abi.ResolverOwner, abi.ResolveArg, func(args []any) (any, error) {
		idx, err := intArgs(args[1:])
		if err != nil {
			return nil, err
		}
		v, _ := r.ResolveMethodArg(instance(args[0]), idx[0], idx[1], idx[2])
		return v, nil
	})
	m.RegisterNative(abi.ResolverOwner, abi.RequireNonNull, func(args []any) (any, error) {
		if isNil(args[0]) {
			return nil, &NullInjectionError{Slot: fmt.Sprint(args[1])}
		}
		return args[0], nil
	})
}

// instance keeps a nil receiver an untyped nil.
func instance(v any) any {
	if isNil(v) {
		return nil
	}
	return v
}

func intArgs(args []any) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, ok := toInt(a)
		if !ok {
			return nil, fmt.Errorf("%w: index operand %v (%T)", ErrBadOperand, a, a)
		}
		out[i] = n
	}
	return out, nil
}

// toInt accepts the integer kinds decoders produce for constants.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
