// Package vm is a small interpreter for bytecode classes. It plays the host
// environment of the weaving engine: Define is the class-loading hook that
// hands each raw class to the installed Transformer before storing it, and
// woven bodies call back into a Resolver through natives registered under the
// resolver ABI.
package vm
