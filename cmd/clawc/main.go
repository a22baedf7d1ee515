// Command clawc is the claw language's CLI front end: the "external
// collaborator" the design scopes out of the core (§1), wired here on
// top of the core packages the way a real embedding host would be.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"claw/jit"
	"claw/parser"
	"claw/policy"
	"claw/runtime"
)

func main() {
	app := &cli.App{
		Name:  "clawc",
		Usage: "compile and run claw scripts",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "vm", Value: true, Usage: "execute via the bytecode VM (default)"},
			&cli.BoolFlag{Name: "interpret", Usage: "force the tree-walking interpreter instead of the VM"},
			&cli.BoolFlag{Name: "dump", Usage: "disassemble the compiled chunk instead of running it"},
			&cli.BoolFlag{Name: "jit-aggressive", Usage: "lower tiering thresholds to a quarter of their configured value"},
			&cli.BoolFlag{Name: "ic-diagnostics", Usage: "log inline-cache misses and megamorphic transitions"},
			&cli.BoolFlag{Name: "benchmark-mode", Usage: "disable minor GC so runs aren't skewed by collection pauses"},
			&cli.StringFlag{Name: "policy", Usage: "path to a .clawsec security policy file"},
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "zerolog level: debug, info, warn, error"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		return fmt.Errorf("clawc: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if c.NArg() < 1 {
		return cli.Exit("usage: clawc [flags] <script.claw>", 1)
	}
	path := c.Args().First()
	source, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("clawc: %v", err), 1)
	}

	flags := policy.Default()
	if p := c.String("policy"); p != "" {
		flags, err = policy.LoadFile(p, flags)
		if err != nil {
			return cli.Exit(fmt.Sprintf("clawc: %v", err), 1)
		}
	}
	if c.Bool("jit-aggressive") {
		flags.JITAggressive = true
	}
	if c.Bool("ic-diagnostics") {
		flags.ICDiagnostics = true
	}
	if c.Bool("benchmark-mode") {
		flags.BenchmarkMode = true
	}

	prog, perr := parser.Parse(string(source))
	if perr != nil {
		log.Error().Str("code", string(perr.Code)).Msg(perr.Error())
		return cli.Exit("", 1)
	}

	globals := runtime.NewEnvironment(nil)
	interp := runtime.NewInterpreter(globals)

	if c.Bool("interpret") {
		if _, rerr := interp.Eval(prog); rerr != nil {
			reportError(rerr)
			return cli.Exit("", 1)
		}
		return nil
	}

	compiler := runtime.NewCompiler()
	compiler.AttachInterpreter(interp)
	fn, cerr := compiler.Compile(prog)
	if cerr != nil {
		reportError(cerr)
		return cli.Exit("", 1)
	}

	if c.Bool("dump") {
		fmt.Print(fn.Chunk.Disassemble(fn.Name))
		return nil
	}

	runtime.SetBenchmarkMode(flags.BenchmarkMode)

	vm := runtime.NewVM(globals)
	interp.AttachVM(vm)
	vm.SetBridge(interp.Bridge)
	vm.SetICDiagnostics(flags.ICDiagnostics)
	// Wire the JIT interface in for real runs, not just tests: every
	// crossed hotness threshold (§4.5.4) now actually offers the hot
	// function/loop to a TieredCompiler, even though StubCompiler always
	// declines (no LLVM backend in this build, §1).
	vm.SetTieredCompiler(&jit.StubCompiler{})
	if flags.JITAggressive {
		vm.SetAggressiveTiering(true)
	}

	if _, rerr := vm.Run(fn); rerr != nil {
		reportError(rerr)
		return cli.Exit("", 1)
	}
	return nil
}

// reportError writes the one diagnostic line §7 specifies — error code,
// source position, and message — to the error channel, then (if the
// error carries a captured call-frame trace) the trace beneath it.
func reportError(err *runtime.Error) {
	log.Error().
		Str("code", string(err.Code)).
		Int("line", err.Line).
		Int("column", err.Column).
		Msg(err.Message)
	for _, frame := range err.Trace {
		fmt.Fprintf(os.Stderr, "  at %s (line %d)\n", frame.Function, frame.Line)
	}
}
