package bytecode

import (
	"fmt"
	"sort"
)

// DebugLoc maps one program counter to a source position. Entries within
// a function are kept sorted by PC so Lookup can binary-search them.
type DebugLoc struct {
	PC   uint32
	File uint16
	Line uint32
	Col  uint16
	Len  uint16
}

// FuncDebugInfo holds one function's PC-to-source mapping.
type FuncDebugInfo struct {
	Entries []DebugLoc
	sorted  bool
}

// Add appends a location record. Entries are typically appended in PC
// order already (the compiler emits them that way); Finalize sorts
// defensively in case they weren't.
func (f *FuncDebugInfo) Add(loc DebugLoc) {
	f.Entries = append(f.Entries, loc)
	f.sorted = false
}

func (f *FuncDebugInfo) finalize() {
	if f.sorted {
		return
	}
	sort.Slice(f.Entries, func(i, j int) bool { return f.Entries[i].PC < f.Entries[j].PC })
	f.sorted = true
}

// lookup finds the entry with the largest PC <= target, mirroring the
// original's partition_point-based search: the first index whose PC is
// greater than target marks the boundary, and the answer sits one
// before it.
func (f *FuncDebugInfo) lookup(pc uint32) (DebugLoc, bool) {
	f.finalize()
	if len(f.Entries) == 0 {
		return DebugLoc{}, false
	}
	idx := sort.Search(len(f.Entries), func(i int) bool { return f.Entries[i].PC > pc })
	if idx == 0 {
		return DebugLoc{}, false
	}
	return f.Entries[idx-1], true
}

// SourceLoc is a resolved, human-readable source position.
type SourceLoc struct {
	File string
	Line uint32
	Col  uint16
	Len  uint16
}

func (s SourceLoc) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Col)
}

// DebugInfo is the whole module's debug table: an interned file name
// list plus one FuncDebugInfo per function, indexed by function id.
type DebugInfo struct {
	Files []string
	Funcs []FuncDebugInfo

	fileIndex map[string]uint16
}

func NewDebugInfo() *DebugInfo {
	return &DebugInfo{fileIndex: make(map[string]uint16)}
}

// GetOrAddFile interns a file name, returning its stable file id.
func (d *DebugInfo) GetOrAddFile(name string) uint16 {
	if d.fileIndex == nil {
		d.fileIndex = make(map[string]uint16)
		for i, f := range d.Files {
			d.fileIndex[f] = uint16(i)
		}
	}
	if id, ok := d.fileIndex[name]; ok {
		return id
	}
	id := uint16(len(d.Files))
	d.Files = append(d.Files, name)
	d.fileIndex[name] = id
	return id
}

// EnsureFunc grows Funcs so funcID has a slot, returning it.
func (d *DebugInfo) EnsureFunc(funcID uint32) *FuncDebugInfo {
	for uint32(len(d.Funcs)) <= funcID {
		d.Funcs = append(d.Funcs, FuncDebugInfo{})
	}
	return &d.Funcs[funcID]
}

// AddLoc records one PC's source position for a function.
func (d *DebugInfo) AddLoc(funcID uint32, loc DebugLoc) {
	d.EnsureFunc(funcID).Add(loc)
}

// Finalize sorts every function's entries once, after loading finishes,
// so later Lookup calls are pure binary search with no resort checks.
func (d *DebugInfo) Finalize() {
	for i := range d.Funcs {
		d.Funcs[i].finalize()
	}
}

// Lookup resolves a (funcID, pc) pair to a source location, if the
// function carries debug info at all and a PC at or before the target
// has a recorded entry.
func (d *DebugInfo) Lookup(funcID uint32, pc uint32) (SourceLoc, bool) {
	if int(funcID) >= len(d.Funcs) {
		return SourceLoc{}, false
	}
	loc, ok := d.Funcs[funcID].lookup(pc)
	if !ok {
		return SourceLoc{}, false
	}
	file := "<unknown>"
	if int(loc.File) < len(d.Files) {
		file = d.Files[loc.File]
	}
	return SourceLoc{File: file, Line: loc.Line, Col: loc.Col, Len: loc.Len}, true
}
