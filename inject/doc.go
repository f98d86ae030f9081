// Package inject holds the descriptor model of woven types and the binding
// registry that resolves their slots at runtime.
//
// A TypeDescriptor is handed over fully populated by a front-end: its members
// are already flagged injectable and carry qualifiers, scopes and hook names.
// Registering it with a Registry assigns its process-lifetime index, which
// woven bodies embed when calling back into the resolver.
//
// Binding rules are registered separately and only take effect on Rebind,
// which recomputes every slot's provider under the registry write lock. The
// resolver entry points hold the read lock just long enough to fetch the
// descriptor and then read the slot's provider with a single atomic load.
package inject
