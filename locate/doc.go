// Package locate finds the positions in a class body where injection must
// happen: the single write of each injectable field, placeholder markers and
// the stores they feed, the base-type construction call of every
// construction path, and every return point.
//
// The locator never mutates the class it inspects.
package locate
