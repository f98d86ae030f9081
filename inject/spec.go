package inject

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var specValidator = validator.New()

// TypeSpec is the serialised form of a TypeDescriptor as emitted by a
// marker-scanning front-end.
type TypeSpec struct {
	Name    string       `yaml:"name" validate:"required"`
	Before  []string     `yaml:"before,omitempty" validate:"dive,required"`
	After   []string     `yaml:"after,omitempty" validate:"dive,required"`
	Fields  []FieldSpec  `yaml:"fields,omitempty" validate:"dive"`
	Methods []MethodSpec `yaml:"methods,omitempty" validate:"dive"`
}

type FieldSpec struct {
	Name       string            `yaml:"name" validate:"required"`
	Type       string            `yaml:"type" validate:"required"`
	Static     bool              `yaml:"static,omitempty"`
	Qualifiers map[string]string `yaml:"qualifiers,omitempty"`
	Scopes     []string          `yaml:"scopes,omitempty"`
	Provider   bool              `yaml:"provider,omitempty"`
	Required   bool              `yaml:"required,omitempty"`
	Before     []string          `yaml:"before,omitempty"`
	After      []string          `yaml:"after,omitempty"`
}

type MethodSpec struct {
	Name   string     `yaml:"name" validate:"required"`
	Params []string   `yaml:"params,omitempty"`
	Result string     `yaml:"result,omitempty"`
	Static bool       `yaml:"static,omitempty"`
	Slots  []SlotSpec `yaml:"slots" validate:"dive"`
	Before []string   `yaml:"before,omitempty"`
	After  []string   `yaml:"after,omitempty"`
}

type SlotSpec struct {
	Index      int               `yaml:"index" validate:"min=0"`
	Name       string            `yaml:"name" validate:"required"`
	Type       string            `yaml:"type,omitempty"`
	Qualifiers map[string]string `yaml:"qualifiers,omitempty"`
	Scopes     []string          `yaml:"scopes,omitempty"`
	Provider   bool              `yaml:"provider,omitempty"`
	Required   bool              `yaml:"required,omitempty"`
}

// Build turns the spec into a descriptor. A slot without a type takes the
// declared parameter type.
func (s TypeSpec) Build() (*TypeDescriptor, error) {
	if err := specValidator.Struct(s); err != nil {
		return nil, fmt.Errorf("type spec %q: %w", s.Name, err)
	}
	var members []Member
	for _, f := range s.Fields {
		fm := &FieldMember{
			Name:   f.Name,
			Ref:    bytecode.FieldRef{Owner: s.Name, Name: f.Name},
			Static: f.Static,
			Slot: &Slot{
				Name:       f.Name,
				Type:       f.Type,
				Qualifiers: qualifiersFromMap(f.Qualifiers),
				Scopes:     f.Scopes,
				Provider:   f.Provider,
				Required:   f.Required,
			},
			Before: f.Before,
			After:  f.After,
		}
		members = append(members, fm)
	}
	for _, m := range s.Methods {
		ref := bytecode.Call(s.Name, m.Name, m.Result, m.Params...)
		mm := &MethodMember{Name: m.Name, Ref: ref, Static: m.Static, Before: m.Before, After: m.After}
		for _, sl := range m.Slots {
			if sl.Index >= len(m.Params) {
				return nil, fmt.Errorf("type spec %s.%s: slot index %d out of range", s.Name, m.Name, sl.Index)
			}
			typ := sl.Type
			if typ == "" {
				typ = m.Params[sl.Index]
			}
			mm.Slots = append(mm.Slots, &Slot{
				Index:      sl.Index,
				Name:       sl.Name,
				Type:       typ,
				Qualifiers: qualifiersFromMap(sl.Qualifiers),
				Scopes:     sl.Scopes,
				Provider:   sl.Provider,
				Required:   sl.Required,
			})
		}
		sort.SliceStable(mm.Slots, func(i, j int) bool { return mm.Slots[i].Index < mm.Slots[j].Index })
		members = append(members, mm)
	}
	t := NewType(s.Name, members...)
	if err := t.AddBefore(s.Before...); err != nil {
		return nil, err
	}
	if err := t.AddAfter(s.After...); err != nil {
		return nil, err
	}
	return t, nil
}

// DecodeTypeSpecs reads one or more YAML documents, each a TypeSpec.
func DecodeTypeSpecs(r io.Reader) ([]TypeSpec, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var out []TypeSpec
	for {
		var spec TypeSpec
		err := dec.Decode(&spec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode type spec: %w", err)
		}
		out = append(out, spec)
	}
	return out, nil
}

func qualifiersFromMap(m map[string]string) []Qualifier {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Qualifier, len(keys))
	for i, k := range keys {
		out[i] = Q(k, m[k])
	}
	return out
}
