package extern

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Manifest is a parsed *.ext.toml extension descriptor: enough of TOML
// to express a flat key/value header plus a [[library]] array of tables
// naming the shared objects to dlopen, one per supported platform.
type Manifest struct {
	Name    string
	Version string
	AbiVer  uint32
	Libs    []LibraryEntry
}

// LibraryEntry is one [[library]] table: the platform it applies to and
// the shared-object path to load, relative to the manifest's directory.
type LibraryEntry struct {
	Platform string
	Path     string
}

// ParseManifestFile reads and parses a manifest at path.
func ParseManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseManifest(f)
}

// ParseManifest parses the small TOML subset extension manifests use:
// bare `key = value` lines at the top level, and `[[library]]` array-of-
// table sections underneath. Good enough for the shape vo.ext.toml files
// actually take; a full TOML parser would be overkill for five fields.
func ParseManifest(r io.Reader) (*Manifest, error) {
	m := &Manifest{AbiVer: ABIVersion}
	sc := bufio.NewScanner(r)

	var cur *LibraryEntry
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "[[library]]" {
			m.Libs = append(m.Libs, LibraryEntry{})
			cur = &m.Libs[len(m.Libs)-1]
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"`)

		if cur != nil {
			switch key {
			case "platform":
				cur.Platform = val
			case "path":
				cur.Path = val
			}
			continue
		}

		switch key {
		case "name":
			m.Name = val
		case "version":
			m.Version = val
		case "abi_version":
			v, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("extern: bad abi_version %q: %w", val, err)
			}
			m.AbiVer = uint32(v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, fmt.Errorf("extern: manifest missing name")
	}
	return m, nil
}

// DiscoverManifests walks dir looking for *.ext.toml files, non-recursively
// (one extension per directory is the convention these packages follow).
func DiscoverManifests(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".ext.toml") {
			found = append(found, filepath.Join(dir, e.Name()))
		}
	}
	return found, nil
}
