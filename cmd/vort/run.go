package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/extern"
	"github.com/vo-lang/vort/internal/metrics"
	"github.com/vo-lang/vort/internal/vm"
)

func newRunCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <module.vob> [args...]",
		Short: "load and execute a compiled module",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(f, args[0])
		},
	}
}

func runModule(f *flags, path string) error {
	log := newLogger(f.logLevel)

	module, err := loadModuleFile(path)
	if err != nil {
		return &loadError{err}
	}

	cfg := vm.DefaultConfig()
	cfg.Log = log
	if f.timeSlice > 0 {
		cfg.TimeSlice = f.timeSlice
	}
	if f.gcThreshold > 0 {
		cfg.GcMinThreshold = f.gcThreshold
	}
	cfg.Metrics = metrics.New()

	machine := vm.New(cfg)

	extDir := f.extDir
	if extDir == "" {
		extDir = filepath.Dir(path)
	}
	if err := loadExtensions(machine.State.Externs, extDir); err != nil {
		return &loadError{err}
	}

	if err := machine.Load(module); err != nil {
		return &loadError{err}
	}

	var server *http.Server
	if f.metricsAddr != "" {
		server = &http.Server{Addr: f.metricsAddr, Handler: cfg.Metrics.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		defer server.Close()
	}

	if runErr := machine.Run(); runErr != nil {
		return runErr
	}
	return nil
}

// loadModuleFile opens and decodes a .vob file, wrapping any error with
// the file path so a loadError surfaces something actionable.
func loadModuleFile(path string) (*bytecode.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	m, err := bytecode.ReadBinary(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return m, nil
}

// loadExtensions discovers *.ext.toml manifests in dir and loads every
// shared object they reference for the running platform. A directory
// that doesn't exist or holds no manifests is not an error: most modules
// declare no externs backed by dynamic extensions at all.
func loadExtensions(reg *extern.Registry, dir string) error {
	manifestPaths, err := extern.DiscoverManifests(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("discovering extensions in %s: %w", dir, err)
	}
	for _, path := range manifestPaths {
		manifest, err := extern.ParseManifestFile(path)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := extern.LoadManifest(reg, manifest, filepath.Dir(path), runtime.GOOS); err != nil {
			return fmt.Errorf("loading extensions from %s: %w", path, err)
		}
	}
	return nil
}
