package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/spf13/cobra"
)

const (
	formatAuto = "auto"
	formatYAML = "yaml"
	formatRaw  = "raw"
)

type DisasmCommand struct{}

func NewDisasmCommand() *DisasmCommand {
	return &DisasmCommand{}
}

func (s *DisasmCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "disasm <file>",
		Short:         "Print the listing of a raw body or a YAML class",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE:          s.Run,
	}
	cmd.Flags().StringP("format", "f", formatAuto, "input format: auto, yaml or raw")
	return cmd
}

func (s *DisasmCommand) Run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	c, err := readClass(args[0], format)
	if err != nil {
		return err
	}
	return bytecode.Disassemble(cmd.OutOrStdout(), c)
}

// readClass loads path as YAML or as a raw body. auto picks YAML by extension.
func readClass(path, format string) (*bytecode.Class, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if format == formatAuto {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = formatYAML
		default:
			format = formatRaw
		}
	}
	var c *bytecode.Class
	switch format {
	case formatYAML:
		c, err = bytecode.DecodeYAML(bytes.NewReader(data))
	case formatRaw:
		c, err = bytecode.Unmarshal(data)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
