package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/bronystylecrazy/ultraweave"
	"github.com/bronystylecrazy/ultraweave/bytecode"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ErrNoDescriptor = errors.New("no descriptor for class")

// TransformCommand weaves one YAML class source against YAML type specs.
type TransformCommand struct {
	engine *ultraweave.Engine
	log    *zap.Logger
}

func NewTransformCommand(engine *ultraweave.Engine, log *zap.Logger) *TransformCommand {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransformCommand{engine: engine, log: log.Named("cmd")}
}

func (s *TransformCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "transform <class.yaml>",
		Short:         "Weave a class and print the result",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE:          s.Run,
	}
	cmd.Flags().StringP("types", "t", "", "YAML type specs to register")
	cmd.Flags().StringP("out", "o", "", "write the woven raw body here instead of printing a listing")
	cmd.Flags().Bool("yaml", false, "print the woven class as YAML instead of a listing")
	_ = cmd.MarkFlagRequired("types")
	return cmd
}

func (s *TransformCommand) Run(cmd *cobra.Command, args []string) error {
	typesPath, err := cmd.Flags().GetString("types")
	if err != nil {
		return err
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	asYAML, err := cmd.Flags().GetBool("yaml")
	if err != nil {
		return err
	}

	raw, err := readClass(args[0], formatYAML)
	if err != nil {
		return err
	}
	specs, err := os.Open(typesPath)
	if err != nil {
		return err
	}
	defer specs.Close()
	if _, err := s.engine.RegisterTypeSpecs(specs); err != nil {
		return fmt.Errorf("type specs %s: %w", typesPath, err)
	}
	t, ok := s.engine.Registry.TypeByName(raw.Name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoDescriptor, raw.Name)
	}

	woven, err := s.engine.Driver.TransformContext(cmd.Context(), raw, t)
	if err != nil {
		return err
	}

	switch {
	case outPath != "":
		data, err := bytecode.Marshal(woven)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return err
		}
		s.log.Info("wrote woven class", zap.String("class", woven.Name), zap.String("path", outPath), zap.String("size", humanize.Bytes(uint64(len(data)))))
		return nil
	case asYAML:
		return bytecode.EncodeYAML(cmd.OutOrStdout(), woven)
	default:
		return bytecode.Disassemble(cmd.OutOrStdout(), woven)
	}
}
