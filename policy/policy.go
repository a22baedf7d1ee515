// Package policy loads the embedding host's two configuration surfaces
// into the core's runtime-flags struct (design §6.4/§6.5): the
// `.clawsec` security policy file and the process-wide flags a CLI
// front end sets before calling Interpret. Parsing `.clawsec` is
// genuinely bespoke key=value text, not TOML/YAML/JSON — no library in
// the retrieval pack reads an un-schema'd key=value file without also
// requiring a section header or quoting convention `.clawsec` doesn't
// have, so this is one of the few places in the module that reaches for
// the standard library instead of a pack dependency (recorded in
// DESIGN.md).
package policy

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Sandbox is the `.clawsec` sandbox= value, bounding what native
// built-ins the embedding host permits — the core VM only threads this
// through to natives that check it; it never interprets the value
// itself (§6.4: "parsing is external").
type Sandbox string

const (
	SandboxStrict  Sandbox = "strict"
	SandboxNetwork Sandbox = "network"
	SandboxFull    Sandbox = "full"
)

// Flags is the §6.5 runtime-flags struct: process-wide settings read by
// the VM before `interpret` and never mutated mid-run.
type Flags struct {
	DisableCallIC bool
	ICDiagnostics bool

	IDSEnabled      bool
	IDSStackMax     int
	IDSAllocRateMax uint64

	JITAggressive        bool
	JITLoopThreshold     uint32
	JITFunctionThreshold uint32

	BenchmarkMode bool

	Sandbox Sandbox
}

// Default returns the flag set a bare `clawc` invocation runs with:
// caches on, IDs off, conservative thresholds, sandbox full (no
// restriction) until a `.clawsec` file says otherwise.
func Default() Flags {
	return Flags{
		JITFunctionThreshold: 1000,
		JITLoopThreshold:     1000,
		Sandbox:              SandboxFull,
	}
}

// LoadFile parses a `.clawsec` file's key=value lines into base,
// returning the merged Flags. Unknown keys are ignored rather than
// rejected — a newer host's policy file run against an older core
// should degrade gracefully, not fail closed on an unfamiliar key.
func LoadFile(path string, base Flags) (Flags, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("policy: %w", err)
	}
	defer f.Close()
	return parse(f, base)
}

func parse(r *os.File, base Flags) (Flags, error) {
	out := base
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return out, fmt.Errorf("policy: line %d: expected key=value, got %q", line, text)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if err := applyKey(&out, key, value); err != nil {
			return out, fmt.Errorf("policy: line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func applyKey(f *Flags, key, value string) error {
	switch key {
	case "sandbox":
		switch Sandbox(value) {
		case SandboxStrict, SandboxNetwork, SandboxFull:
			f.Sandbox = Sandbox(value)
		default:
			return fmt.Errorf("unrecognized sandbox value %q", value)
		}
	case "ids.stack.max":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("ids.stack.max: %w", err)
		}
		f.IDSEnabled = true
		f.IDSStackMax = n
	case "ids.alloc.rate.max":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("ids.alloc.rate.max: %w", err)
		}
		f.IDSEnabled = true
		f.IDSAllocRateMax = n
	default:
		// Unrecognized key: ignored, per LoadFile's doc comment.
	}
	return nil
}
