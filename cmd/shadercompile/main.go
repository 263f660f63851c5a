// Command shadercompile drives one shader description file through
// combo enumeration, parallel compilation and archive packaging.
//
// Usage:
//
//	shadercompile -ver ps_3_0 -shaderpath /path/to/shaders myshader.fxc
//
// Examples:
//
//	shadercompile -ver ps_3_0 -shaderpath . shader.fxc         # full run
//	shadercompile -ver ps_3_0 -shaderpath . -crc shader.fxc    # print CRC, exit
//	shadercompile -ver ps_3_0 -shaderpath . -dynamic shader.fxc # include file only
//	shadercompile -ver ps_3_0 -shaderpath . -fastfail -threads 4 shader.fxc
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	shadercompile "github.com/Alivebyte/ShaderCompile"
	"github.com/Alivebyte/ShaderCompile/combo"
	"github.com/Alivebyte/ShaderCompile/crashdump"
	"github.com/Alivebyte/ShaderCompile/exec"
	"github.com/Alivebyte/ShaderCompile/internal/obs"
	"github.com/Alivebyte/ShaderCompile/parser"
)

var (
	ver        = flag.String("ver", "", "shader version tag, e.g. ps_3_0 (required)")
	shaderPath = flag.String("shaderpath", "", "base directory for shader sources and outputs (required)")
	force      = flag.Bool("force", false, "skip the CRC-based skip-if-unchanged check")
	crcOnly    = flag.Bool("crc", false, "print the source file's CRC32 and exit")
	dynamic    = flag.Bool("dynamic", false, "write only the companion include file and exit")
	fastFail   = flag.Bool("fastfail", false, "stop dispatching further commands after the first failure")
	threads    = flag.Int("threads", 0, "worker goroutines (0 = auto)")
	verbose    = flag.Bool("verbose", false, "info-level logging")
	verbose2   = flag.Bool("verbose2", false, "debug-level logging (per-command detail)")
	verbosePreprocessor = flag.Bool("verbose_preprocessor", false, "log parser/include expansion")

	partialPrecision  = flag.Bool("Gpp", false, "partial precision arithmetic")
	skipValidation    = flag.Bool("Vd", false, "skip bytecode validation")
	noPreshader       = flag.Bool("Op", false, "disable preshader generation")
	avoidFlowControl  = flag.Bool("Gfa", false, "avoid flow control")
	preferFlowControl = flag.Bool("Gfp", false, "prefer flow control")
	skipOptimization  = flag.Bool("Od", false, "disable optimization")
	debugInfo         = flag.Bool("Zi", false, "embed debug info")
	optLevel          = flag.Int("O", 1, "optimization level 0-3")

	compilerBinary = flag.String("compiler", "fxc", "path to the external compiler binary")
)

func main() {
	os.Exit(run())
}

func run() int {
	defer crashdump.Recover(".")

	flag.Usage = usage
	flag.Parse()

	configureLogging()

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "shadercompile: exactly one shader description file is required")
		usage()
		return 1
	}
	file := args[0]

	if *shaderPath == "" {
		fmt.Fprintln(os.Stderr, "shadercompile: -shaderpath is required")
		return 1
	}
	if *ver == "" {
		fmt.Fprintln(os.Stderr, "shadercompile: -ver is required")
		return 1
	}
	if !parser.SupportedVersions[*ver] {
		fmt.Fprintf(os.Stderr, "shadercompile: unsupported -ver %q\n", *ver)
		return 1
	}

	fullPath := filepath.Join(*shaderPath, file)

	if *crcOnly {
		crc, err := parser.FileCRC32(fullPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "shadercompile: %v\n", err)
			return 1
		}
		fmt.Printf("%08x\n", crc)
		return 0
	}

	if *dynamic {
		return runDynamicOnly(*shaderPath, file)
	}

	if !*force {
		if skip, err := shadercompile.UpToDate(*shaderPath, file); err != nil {
			fmt.Fprintf(os.Stderr, "shadercompile: %v\n", err)
			return 1
		} else if skip {
			fmt.Println("shadercompile: source unchanged, skipping (use -force to override)")
			return 0
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := shadercompile.Options{
		ShaderPath:     *shaderPath,
		File:           file,
		Version:        *ver,
		Force:          *force,
		FastFail:       *fastFail,
		Threads:        *threads,
		CompileFlags:   resolveFlags(),
		CompilerBinary: *compilerBinary,
	}

	var runOpts []shadercompile.RunOption
	if *verbose2 || *verbosePreprocessor {
		runOpts = append(runOpts, shadercompile.WithProgress(func(completed, total uint64) {
			fmt.Fprintf(os.Stderr, "shadercompile: %d/%d combos\n", completed, total)
		}))
	}

	result, err := shadercompile.Run(ctx, opts, runOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadercompile: %v\n", err)
		return 1
	}

	return len(result.FailedShaders)
}

// runDynamicOnly parses just enough of file to know each entry's combo
// counts and writes the companion include file next to it, without
// enumerating or compiling a single combo.
func runDynamicOnly(shaderPath, file string) int {
	descs, err := parser.Parse(shaderPath, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadercompile: %v\n", err)
		return 1
	}
	entries, err := combo.Describe(descs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadercompile: %v\n", err)
		return 1
	}

	incPath := filepath.Join(shaderPath, includeNameFor(file))
	f, err := os.Create(incPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shadercompile: %v\n", err)
		return 1
	}
	defer f.Close()

	if err := parser.WriteInclude(f, entries); err != nil {
		fmt.Fprintf(os.Stderr, "shadercompile: %v\n", err)
		return 1
	}
	return 0
}

func includeNameFor(file string) string {
	ext := filepath.Ext(file)
	return file[:len(file)-len(ext)] + ".inc"
}

func resolveFlags() exec.Flags {
	var f exec.Flags
	if *partialPrecision {
		f |= exec.FlagPartialPrecision
	}
	if *skipValidation {
		f |= exec.FlagSkipValidation
	}
	if *noPreshader {
		f |= exec.FlagNoPreshader
	}
	if *avoidFlowControl {
		f |= exec.FlagAvoidFlowControl
	}
	if *preferFlowControl {
		f |= exec.FlagPreferFlowControl
	}
	if *skipOptimization {
		f |= exec.FlagSkipOptimization
	}
	if *debugInfo {
		f |= exec.FlagDebugInfo
	}
	switch *optLevel {
	case 0:
		f |= exec.FlagOpt0
	case 2:
		f |= exec.FlagOpt2
	case 3:
		f |= exec.FlagOpt3
	default:
		f |= exec.FlagOpt1
	}
	return f
}

func configureLogging() {
	switch {
	case *verbosePreprocessor:
		shadercompile.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: obs.LevelTrace})))
	case *verbose2:
		shadercompile.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	case *verbose:
		shadercompile.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: shadercompile [options] <shader.fxc>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  shadercompile -ver ps_3_0 -shaderpath . shader.fxc\n")
	fmt.Fprintf(os.Stderr, "  shadercompile -ver ps_3_0 -shaderpath . -crc shader.fxc\n")
	fmt.Fprintf(os.Stderr, "  shadercompile -ver ps_3_0 -shaderpath . -dynamic shader.fxc\n")
}
