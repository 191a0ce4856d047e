package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	positron "github.com/positron-lang/positron"
	"github.com/positron-lang/positron/internal/config"
)

// sysexits-style statuses: compile failures are data errors, runtime
// failures are software errors.
const (
	exitCompileError = 65
	exitRuntimeError = 70
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("positron", flag.ContinueOnError)
	fs.Usage = func() { usage(fs) }
	debug := fs.Bool("d", false, "debug: disassemble scripts and trace execution")
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	verbosity := 0
	if *debug {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		cfg = loaded
	}
	if *debug {
		cfg.Trace = true
		cfg.Disassemble = true
	}

	rest := fs.Args()
	if len(rest) == 0 {
		if err := runREPL(cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	if len(rest) > 1 {
		usage(fs)
		return 2
	}
	return runFile(rest[0], cfg)
}

func runFile(path string, cfg config.Config) int {
	engine := positron.NewEngine(positron.OptionsFromConfig(cfg))

	script, err := engine.CompileFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCompileError
	}

	if cfg.Disassemble {
		if err := engine.Disassemble(script, os.Stderr); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	if cfg.Trace {
		engine.SetTraceHook(func(info positron.TraceInfo) {
			fmt.Fprintf(os.Stderr, "trace %s ip=%04d depth=%d %s line %d\n",
				info.Function, info.IP, info.Depth, info.Op, info.Line)
		})
	}

	result, err := engine.Run(script)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if re, ok := err.(*positron.RuntimeError); ok && len(re.Stack) > 0 {
			fmt.Fprint(os.Stderr, re.Trace())
		}
		if cfg.Trace {
			engine.DumpState(os.Stderr)
		}
		return exitRuntimeError
	}
	if result.Exited {
		return result.ExitCode
	}
	return 0
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: positron [-d] [-config file] [script]")
	fmt.Fprintln(os.Stderr, "With no script, starts an interactive session.")
	fs.PrintDefaults()
}
