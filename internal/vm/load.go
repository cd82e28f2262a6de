package vm

import (
	"github.com/hashicorp/go-multierror"

	"github.com/vo-lang/vort/internal/bytecode"
	"github.com/vo-lang/vort/internal/itab"
)

// Load installs a compiled module: it sizes the global slot table,
// seeds the itab cache from the module's compile-time itabs, and binds
// every extern declaration against whatever host functions the caller
// registered beforehand with State.Externs.Register. Returns an
// aggregated error (one entry per problem found) so a loader can report
// every missing extern at once instead of failing on the first.
func (vm *VM) Load(m *bytecode.Module) error {
	var errs *multierror.Error

	globalSlots := 0
	for _, g := range m.Globals {
		globalSlots += len(g.SlotTypes)
	}
	vm.State.Globals = make([]uint64, globalSlots)
	vm.State.Itabs = itab.FromModuleItabs(m.Itabs)

	names := make([]string, len(m.Externs))
	for i, e := range m.Externs {
		names[i] = e.Name
	}
	for _, missing := range vm.State.Externs.Bind(names) {
		errs = multierror.Append(errs, &Error{Kind: ErrInvalidFunctionID, Message: "unresolved extern: " + missing})
	}

	if _, ok := m.GetFunction(m.EntryFunc); !ok && len(m.Functions) > 0 {
		errs = multierror.Append(errs, &Error{Kind: ErrNoEntryFunction, Message: "entry function id out of range"})
	}

	vm.Module = m
	vm.Log.WithField("module", m.Name).WithField("functions", len(m.Functions)).Info("module loaded")
	return errs.ErrorOrNil()
}

// GlobalOffset returns the absolute slot offset of global index idx,
// accounting for multi-slot globals (interfaces take two).
func (vm *VM) GlobalOffset(idx int) int {
	off := 0
	for i := 0; i < idx; i++ {
		off += len(vm.Module.Globals[i].SlotTypes)
	}
	return off
}

// structMetas exposes the loaded module's struct metadata to heap.ScanObject.
func (vm *VM) structMetas() structMetaAdapter { return structMetaAdapter{m: vm.Module} }
