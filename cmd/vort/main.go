// Command vort is the reference driver for the vo runtime: it loads a
// compiled module, runs it to completion, and exposes the disassembler
// and build metadata as auxiliary subcommands. Kept deliberately thin —
// every behavior of substance lives in internal/vm and internal/bytecode,
// this package only wires flags to Config fields.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// version/commit/date are meant to be overwritten at link time with
// -ldflags "-X main.version=... -X main.commit=... -X main.date=...";
// left at their zero values for a plain `go build`.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// flags holds the global options every subcommand reads from, populated
// by cobra's persistent flag parsing before RunE fires.
type flags struct {
	timeSlice   int
	gcThreshold int
	logLevel    logLevelValue
	metricsAddr string
	extDir      string
}

// logLevelValue is a pflag.Value so a bad --log-level is rejected at
// flag-parse time with logrus's own error message, rather than
// surfacing later as a generic loadError.
type logLevelValue struct {
	level logrus.Level
	set   bool
}

func (v *logLevelValue) String() string {
	if !v.set {
		return logrus.InfoLevel.String()
	}
	return v.level.String()
}

func (v *logLevelValue) Set(s string) error {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return err
	}
	v.level = lvl
	v.set = true
	return nil
}

func (v *logLevelValue) Type() string { return "level" }

func (v *logLevelValue) Level() logrus.Level {
	if !v.set {
		return logrus.InfoLevel
	}
	return v.level
}

var _ pflag.Value = (*logLevelValue)(nil)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "vort",
		Short:         "vo bytecode runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&f.timeSlice, "time-slice", 0, "instructions run per fiber turn before yielding (0 = runtime default)")
	root.PersistentFlags().IntVar(&f.gcThreshold, "gc-heap-threshold", 0, "bytes of live heap before the first collection (0 = runtime default)")
	root.PersistentFlags().Var(&f.logLevel, "log-level", "panic|fatal|error|warn|info|debug|trace")
	root.PersistentFlags().StringVar(&f.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	root.PersistentFlags().StringVar(&f.extDir, "ext-dir", "", "directory to scan for *.ext.toml extension manifests (default: the module's own directory)")

	root.AddCommand(newRunCmd(f))
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newBuildInfoCmd())
	return root
}

func newLogger(level logLevelValue) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(level.Level())
	return log
}

// exitCode classifies a cobra RunE error into spec.md §6/§7's three exit
// codes. loadError marks anything that went wrong before the program
// ever started executing; everything else surfaced by `run` is treated
// as a runtime fault.
type exitCode int

const (
	exitRuntimePanic exitCode = 1
	exitLoadError    exitCode = 2
)

type loadError struct{ err error }

func (e *loadError) Error() string { return e.err.Error() }
func (e *loadError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var le *loadError
	if errors.As(err, &le) {
		fmt.Fprintln(os.Stderr, "vort:", le.err)
		return int(exitLoadError)
	}
	fmt.Fprintln(os.Stderr, "vort:", err)
	return int(exitRuntimePanic)
}
