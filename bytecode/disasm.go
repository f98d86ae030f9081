package bytecode

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Disassemble writes a text listing of c to w.
func Disassemble(w io.Writer, c *Class) error {
	if _, err := fmt.Fprintf(w, "class %s extends %s\n", c.Name, c.SuperName()); err != nil {
		return err
	}
	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "  attribute %s = %q\n", k, c.Attributes[k]); err != nil {
			return err
		}
	}
	for _, f := range c.Fields {
		mod := ""
		if f.Static {
			mod = "static "
		}
		if _, err := fmt.Fprintf(w, "  field %s%s %s\n", mod, f.Name, f.Type); err != nil {
			return err
		}
	}
	for _, m := range c.Methods {
		var mods []string
		if m.Static {
			mods = append(mods, "static")
		}
		if m.Synthetic {
			mods = append(mods, "synthetic")
		}
		prefix := ""
		if len(mods) > 0 {
			prefix = strings.Join(mods, " ") + " "
		}
		if _, err := fmt.Fprintf(w, "  method %s%s%s\n", prefix, m.Name, m.Desc); err != nil {
			return err
		}
		for pc, ins := range m.Code {
			indent := "    "
			if ins.Op == OpLabel {
				indent = "  "
			}
			if _, err := fmt.Fprintf(w, "    %04d%s%s\n", pc, indent, ins); err != nil {
				return err
			}
		}
	}
	return nil
}

// Disassembly returns the text listing of c.
func Disassembly(c *Class) string {
	var b strings.Builder
	_ = Disassemble(&b, c)
	return b.String()
}
