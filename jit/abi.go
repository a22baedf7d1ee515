// Package jit is the VM's JIT interface boundary (design §6.2): the ABI
// surface a compiled-code backend would call into, and a trivial OSR
// collaborator that lets the VM's tiering logic (§4.5.4) exercise that
// surface without requiring a real native-code compiler. Code
// generation itself — what LLVM or any other backend would do with
// this surface — is out of scope; only the contract is implemented
// here.
package jit

import "claw/runtime"

// ABI is a 1:1 restatement of §6.2's flat function list, each one
// delegating to runtime.ABI so a backend compiled against this package
// never imports runtime directly or touches a VM's unexported state.
type ABI struct {
	inner *runtime.ABI
}

// NewABI wraps vm's primitive surface for a JIT backend.
func NewABI(vm *runtime.VM) *ABI { return &ABI{inner: runtime.NewABI(vm)} }

func (a *ABI) ReadByte() byte                { return a.inner.ReadByte() }
func (a *ABI) ReadConstant(idx int) runtime.Value { return a.inner.ReadConstant(idx) }
func (a *ABI) ReadStringPtr(idx int) string  { return a.inner.ReadStringPtr(idx) }
func (a *ABI) GetIP() int                    { return a.inner.GetIP() }
func (a *ABI) SetIP(ip int)                  { a.inner.SetIP(ip) }

func (a *ABI) Push(v runtime.Value)            { a.inner.Push(v) }
func (a *ABI) Pop() runtime.Value              { return a.inner.Pop() }
func (a *ABI) Peek(distance int) runtime.Value { return a.inner.Peek(distance) }
func (a *ABI) SetLocal(slot int, v runtime.Value) { a.inner.SetLocal(slot, v) }
func (a *ABI) GetLocal(slot int) runtime.Value    { return a.inner.GetLocal(slot) }

func (a *ABI) Jump(off int)          { a.inner.Jump(off) }
func (a *ABI) JumpIfFalse(off int) bool { return a.inner.JumpIfFalse(off) }
func (a *ABI) Loop(off int)          { a.inner.Loop(off) }

func (a *ABI) Print()                         { a.inner.Print() }
func (a *ABI) DefineGlobal(name string) error { return errOrNil(a.inner.DefineGlobal(name)) }
func (a *ABI) SetGlobal(name string) error    { return errOrNil(a.inner.SetGlobal(name)) }

// TryGetGlobalCached matches the C-ABI's `-> 0/1` convention: ok reports
// whether the cache served the value.
func (a *ABI) TryGetGlobalCached(name string, site int) (out runtime.Value, ok bool) {
	return a.inner.TryGetGlobalCached(name, site)
}

func (a *ABI) Call(argc, site int) error {
	return errOrNil(a.inner.Call(argc, site, 0))
}
func (a *ABI) Closure(fn *runtime.VMFunction, upvalues []*runtime.Upvalue) runtime.Value {
	return a.inner.Closure(fn, upvalues)
}
func (a *ABI) GetUpvalue(idx int) runtime.Value    { return a.inner.GetUpvalue(idx) }
func (a *ABI) SetUpvalue(idx int, v runtime.Value) { a.inner.SetUpvalue(idx, v) }
func (a *ABI) CloseUpvalue()                       { a.inner.CloseUpvalue() }

// Return reports whether more frames remain, matching `return -> bool`.
func (a *ABI) Return() bool { return a.inner.Return() }

func (a *ABI) SetProperty(obj runtime.Value, name string, v runtime.Value) {
	a.inner.SetProperty(obj, name, v)
}
func (a *ABI) GetProperty(obj runtime.Value, name string, site int) runtime.Value {
	return a.inner.GetProperty(obj, name, site)
}
func (a *ABI) TryGetPropertyCached(inst *runtime.Instance, name string, site int) (runtime.Value, bool) {
	return a.inner.TryGetPropertyCached(inst, name, site)
}

// TryCallCached reports only whether the site had a cached classification
// for callee, matching the boolean `-> 0/1` of the C-ABI surface; the
// classification itself stays internal to runtime, since a real backend
// branches on it without needing to name the enum.
func (a *ABI) TryCallCached(site int, callee runtime.Value) bool {
	_, ok := a.inner.TryCallCached(site, callee)
	return ok
}

// OSREnter re-enters the interpreter at ip, returning to native code
// once the interpreter either returns a value or hits a RuntimeError.
// It reports 0/1 success per the §6.2 convention.
func (a *ABI) OSREnter(ip int) (runtime.Value, bool) {
	v, err := a.inner.OSREnter(ip)
	return v, err == nil
}

func errOrNil(e *runtime.Error) error {
	if e == nil {
		return nil
	}
	return e
}
