package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vo-lang/vort/internal/bytecode"
)

func newBuildInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build-info",
		Short: "print runtime version and build metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vort %s (%s, %s)\n", version, commit, date)
			fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "module binary format: %s v%d\n", bytecode.Magic, bytecode.BinaryVersion)
			return nil
		},
	}
}
