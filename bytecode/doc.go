// Package bytecode models the compiled instruction bodies rewritten by the weaver.
//
// A Class holds fields and methods; each Method carries a linear instruction
// stream for a small stack machine. Branch targets are label pseudo-instructions
// referenced by id, so inserting instructions never invalidates a jump.
//
// The package also provides:
//   - an Editor that splices instructions at original positions in one pass
//   - a Verify pass checking labels and stack discipline
//   - a text disassembler
//   - msgpack and YAML codecs for raw bodies
package bytecode
