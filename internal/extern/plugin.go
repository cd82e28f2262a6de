package extern

import (
	"fmt"
	"path/filepath"
	"plugin"
)

// ABIVersion is bumped whenever the Fn calling convention changes in a
// way an older compiled extension can't satisfy. Mirrors the constant an
// extension SDK embeds at build time and the loader checks at dlopen
// time.
const ABIVersion = 1

// EntryPointSymbol is the exported symbol every extension shared object
// must provide: a function of EntryPointFunc's shape the loader calls to
// collect the extension's ABI version and the functions it contributes.
const EntryPointSymbol = "VoExtGetEntries"

// Entry is one function an extension contributes, named the way its
// extern declaration in vo source names it.
type Entry struct {
	Name string
	Fn   Fn
}

// EntryPointFunc is the signature EntryPointSymbol must satisfy.
type EntryPointFunc func() (abiVersion uint32, entries []Entry)

// LoadPlugin dlopens a compiled extension and registers every entry it
// exports, after checking its ABI version matches this runtime's.
func LoadPlugin(r *Registry, path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("extern: opening plugin %s: %w", path, err)
	}
	sym, err := p.Lookup(EntryPointSymbol)
	if err != nil {
		return fmt.Errorf("extern: plugin %s missing %s: %w", path, EntryPointSymbol, err)
	}
	entry, ok := sym.(func() (uint32, []Entry))
	if !ok {
		return fmt.Errorf("extern: plugin %s has %s with the wrong signature", path, EntryPointSymbol)
	}

	abi, entries := entry()
	if abi != ABIVersion {
		return fmt.Errorf("extern: plugin %s ABI version %d does not match runtime ABI %d", path, abi, ABIVersion)
	}
	for _, e := range entries {
		r.Register(e.Name, e.Fn)
	}
	return nil
}

// LoadManifest loads every library a manifest declares for the current
// platform (platform == "" entries apply to every platform), binding
// duplicate extension loads is the caller's responsibility to avoid by
// not loading the same manifest twice.
func LoadManifest(r *Registry, m *Manifest, dir string, platform string) error {
	if m.AbiVer != ABIVersion {
		return fmt.Errorf("extern: manifest %s declares abi_version %d, runtime is %d", m.Name, m.AbiVer, ABIVersion)
	}
	for _, lib := range m.Libs {
		if lib.Platform != "" && lib.Platform != platform {
			continue
		}
		path := lib.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := LoadPlugin(r, path); err != nil {
			return err
		}
	}
	return nil
}
