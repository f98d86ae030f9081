package bytecode

import (
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Marshal encodes c as a raw body.
func Marshal(c *Class) ([]byte, error) {
	data, err := msgpack.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode class %s: %w", c.Name, err)
	}
	return data, nil
}

// Unmarshal decodes a raw body produced by Marshal.
func Unmarshal(data []byte) (*Class, error) {
	var c Class
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode class: %w", err)
	}
	return &c, nil
}

// DecodeYAML reads a class written as YAML.
func DecodeYAML(r io.Reader) (*Class, error) {
	var c Class
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode class yaml: %w", err)
	}
	if c.Name == "" {
		return nil, fmt.Errorf("decode class yaml: missing name")
	}
	return &c, nil
}

// EncodeYAML writes c as YAML.
func EncodeYAML(w io.Writer, c *Class) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode class yaml: %w", err)
	}
	return enc.Close()
}
