package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/bronystylecrazy/ultraweave/build"
	"github.com/spf13/cobra"
)

type Root struct {
	*cobra.Command
}

func New(cmd *cobra.Command) *Root {
	defaultCmd := &cobra.Command{
		Use:          build.Name,
		Short:        "Weave dependency injection into compiled classes",
		Version:      build.String(),
		SilenceUsage: true,
	}

	if cmd != nil {
		defaultCmd = cmd
	}

	return &Root{
		Command: defaultCmd,
	}
}

func (r *Root) Start(ctx context.Context) error {
	return r.ExecuteContext(ctx)
}

func (r *Root) Register(commands ...Commander) error {
	for _, command := range commands {
		if err := r.RegisterOne(command); err != nil {
			return err
		}
	}
	return nil
}

// RegisterOne attaches c under the path spelled by its Use, creating
// intermediate commands as needed.
func (r *Root) RegisterOne(c Commander) error {
	if r == nil || r.Command == nil {
		return fmt.Errorf("root command is nil")
	}
	cmd, path, err := commandPath(c)
	if err != nil {
		return err
	}
	parts := strings.Fields(path)
	cmd.Use = leafUse(cmd.Use, len(parts))
	parent := r.Command
	for _, part := range parts[:len(parts)-1] {
		parent = ensureSubCommand(parent, part)
	}
	parent.AddCommand(cmd)
	return nil
}

func ensureSubCommand(parent *cobra.Command, use string) *cobra.Command {
	name := strings.TrimSpace(use)
	if name == "" {
		return parent
	}
	for _, child := range parent.Commands() {
		if child.Name() == name {
			return child
		}
	}
	child := &cobra.Command{Use: name}
	parent.AddCommand(child)
	return child
}

func commandPath(c Commander) (*cobra.Command, string, error) {
	if c == nil {
		return nil, "", fmt.Errorf("commander is nil")
	}
	cmd := c.Command()
	if cmd == nil {
		return nil, "", fmt.Errorf("command is nil")
	}
	path := pathFromUse(cmd.Use)
	if path == "" {
		return nil, "", fmt.Errorf("command path is empty")
	}
	return cmd, path, nil
}

// pathFromUse keeps the words of use up to the first argument placeholder.
func pathFromUse(use string) string {
	fields := strings.Fields(use)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.HasPrefix(f, "[") || strings.HasPrefix(f, "<") {
			break
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

func leafUse(use string, pathParts int) string {
	fields := strings.Fields(use)
	if pathParts <= 1 {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[pathParts-1:], " ")
}
