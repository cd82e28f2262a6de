// Package itab caches interface method tables: the mapping from an
// interface's method order to a concrete named type's function ids.
// Compile-time itabs come straight from the loaded module; runtime itabs
// (needed for interface-to-interface assignment) are built lazily and
// cached forever, keyed the same way the original's ItabCache is.
package itab

import "github.com/vo-lang/vort/internal/bytecode"

type cacheKey struct {
	namedTypeID  uint32
	ifaceMetaID  uint32
	srcIsPointer bool
}

// Cache is the unified itab table: compile-time itabs copied in at
// module load, runtime itabs appended and cached by
// (named_type_id, iface_meta_id, src_is_pointer).
type Cache struct {
	cache map[cacheKey]uint32
	itabs []bytecode.Itab
}

// FromModuleItabs seeds a Cache from a module's compile-time itab table.
func FromModuleItabs(itabs []bytecode.Itab) *Cache {
	cp := make([]bytecode.Itab, len(itabs))
	copy(cp, itabs)
	return &Cache{cache: make(map[cacheKey]uint32), itabs: cp}
}

// GetItab returns the itab at id, if any.
func (c *Cache) GetItab(id uint32) (bytecode.Itab, bool) {
	if int(id) >= len(c.itabs) {
		return bytecode.Itab{}, false
	}
	return c.itabs[id], true
}

// GetOrCreate returns the itab id for a named type implementing an
// interface, building and caching one if this is the first time this
// (type, interface, pointer-ness) combination has been seen. It panics
// if the named type does not implement the interface — by this point
// the compiler has already checked that it does, so reaching here with
// a mismatch means a bug in the loader, not in user code.
func (c *Cache) GetOrCreate(namedTypeID, ifaceMetaID uint32, srcIsPointer bool, namedTypes []bytecode.NamedTypeMeta, ifaces []bytecode.InterfaceMeta) uint32 {
	id, ok := c.TryGetOrCreate(namedTypeID, ifaceMetaID, srcIsPointer, namedTypes, ifaces)
	if !ok {
		panic("itab: method not found in named type")
	}
	return id
}

// TryGetOrCreate is GetOrCreate without the panic: it reports false if
// the named type doesn't implement the interface (a value type missing
// a pointer-receiver method it would need, for instance).
func (c *Cache) TryGetOrCreate(namedTypeID, ifaceMetaID uint32, srcIsPointer bool, namedTypes []bytecode.NamedTypeMeta, ifaces []bytecode.InterfaceMeta) (uint32, bool) {
	key := cacheKey{namedTypeID, ifaceMetaID, srcIsPointer}
	if id, ok := c.cache[key]; ok {
		return id, true
	}

	it, ok := tryBuildItab(namedTypeID, ifaceMetaID, srcIsPointer, namedTypes, ifaces)
	if !ok {
		return 0, false
	}
	id := uint32(len(c.itabs))
	c.itabs = append(c.itabs, it)
	c.cache[key] = id
	return id, true
}

func tryBuildItab(namedTypeID, ifaceMetaID uint32, srcIsPointer bool, namedTypes []bytecode.NamedTypeMeta, ifaces []bytecode.InterfaceMeta) (bytecode.Itab, bool) {
	if int(namedTypeID) >= len(namedTypes) || int(ifaceMetaID) >= len(ifaces) {
		return bytecode.Itab{}, false
	}
	namedType := namedTypes[namedTypeID]
	iface := ifaces[ifaceMetaID]

	methods := make([]uint32, 0, len(iface.MethodNames))
	for _, name := range iface.MethodNames {
		m, ok := namedType.Methods[name]
		if !ok {
			return bytecode.Itab{}, false
		}
		if !srcIsPointer && m.IsPointerReceiver {
			return bytecode.Itab{}, false
		}
		methods = append(methods, m.FuncID)
	}
	return bytecode.Itab{Methods: methods}, true
}

// LookupMethod resolves a method slot on an already-built itab to a
// concrete function id.
func (c *Cache) LookupMethod(itabID uint32, methodIdx int) uint32 {
	return c.itabs[itabID].Methods[methodIdx]
}

// Len reports the current size of the unified itab table (compile-time
// plus every runtime-built entry so far), for module-reload diagnostics.
func (c *Cache) Len() int { return len(c.itabs) }
