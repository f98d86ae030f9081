// Package weave splices resolver and hook calls into class bodies at the
// sites found by package locate.
//
// Weaving is order preserving: original instructions keep their relative
// order and labels, and every splice is a self-contained sequence leaving the
// operand stack as it found it, apart from the value that replaces a marker.
package weave
