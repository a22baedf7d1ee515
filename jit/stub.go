package jit

import (
	"github.com/rs/zerolog/log"

	"claw/runtime"
)

// StubCompiler is the TieredCompiler the VM is wired with when no real
// backend is configured (always, in this repository — the design scopes
// LLVM code generation out, §1). It satisfies runtime.TieredCompiler by
// always declining, so the VM's hotness/tiering machinery (§4.5.4) has a
// real collaborator to call on every crossed threshold without this
// package needing to emit a single instruction of machine code. A
// production JIT would replace StubCompiler with something that returns
// compiled=true and an OSR entry point once it has actually produced
// code for fn.
type StubCompiler struct {
	// Offered counts how many times MaybeCompile has been asked about a
	// function, purely for diagnostics/tests — the decision itself never
	// depends on it.
	Offered int
}

var _ runtime.TieredCompiler = (*StubCompiler)(nil)

func (s *StubCompiler) MaybeCompile(fn *runtime.VMFunction, callCount int) (bool, int) {
	s.Offered++
	log.Debug().Str("fn", fn.Name).Int("calls", callCount).Msg("jit: stub compiler declined")
	return false, 0
}
