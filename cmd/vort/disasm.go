package main

import (
	"bufio"

	"github.com/spf13/cobra"

	"github.com/vo-lang/vort/internal/bytecode"
)

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <module.vob>",
		Short: "print the text form of a compiled module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := loadModuleFile(args[0])
			if err != nil {
				return &loadError{err}
			}
			out := bufio.NewWriter(cmd.OutOrStdout())
			if err := bytecode.WriteText(out, module); err != nil {
				return err
			}
			return out.Flush()
		},
	}
}
