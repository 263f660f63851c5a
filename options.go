package shadercompile

import (
	"io"

	"github.com/Alivebyte/ShaderCompile/exec"
)

// Options configures a single invocation of Run. It mirrors the CLI
// surface of the shadercompile command (see cmd/shadercompile) so the
// library and the binary share one source of truth for behavior.
type Options struct {
	// ShaderPath is the base directory for shader sources and outputs.
	ShaderPath string

	// File is the shader description (.fxc) file to compile, relative
	// to ShaderPath.
	File string

	// Version is the shader version tag (e.g. "ps_3_0"), validated
	// against parser.SupportedVersions.
	Version string

	// Force skips the CRC-based skip-if-unchanged short-circuit: by
	// default Run calls UpToDate itself and returns an empty Result
	// immediately if every declared shader's archive already matches
	// file's current CRC32. Force bypasses that check unconditionally.
	Force bool

	// FastFail stops dispatching further commands after the first
	// compile failure.
	FastFail bool

	// Threads is the number of worker goroutines. 0 selects
	// runtime.NumCPU(), and larger values are capped at it. 1 runs the
	// single-threaded fast path.
	Threads int

	// CompileFlags are passed through unchanged to the executor for
	// every command (see exec.Flags).
	CompileFlags exec.Flags

	// CompilerBinary is the path to the external compiler executable,
	// used to construct the default exec.ShellExecutor when no
	// WithExecutor option overrides it. Ignored if WithExecutor is
	// given.
	CompilerBinary string
}

// RunOption configures optional, injectable behavior of Run. Use these
// for dependency injection (a fake executor in tests, a custom
// diagnostics sink) rather than Options, which holds plain CLI-mapped
// settings.
//
// Example:
//
//	result, err := shadercompile.Run(ctx, opts,
//		shadercompile.WithExecutor(myExecutor),
//		shadercompile.WithDiagWriter(os.Stderr),
//	)
type RunOption func(*runConfig)

// runConfig holds the resolved, injectable configuration for one Run call.
type runConfig struct {
	executor   exec.Executor
	diagWriter io.Writer
	progress   func(completed, total uint64)
}

func defaultRunConfig() runConfig {
	return runConfig{
		executor:   nil, // resolved to exec.NewShellExecutor in Run if nil
		diagWriter: nil, // resolved to os.Stdout in Run if nil
		progress:   nil, // no progress reporting by default
	}
}

// WithExecutor overrides the command executor used to compile each
// combo. Use this to inject a fake executor in tests instead of
// shelling out to a real compiler.
func WithExecutor(e exec.Executor) RunOption {
	return func(c *runConfig) {
		c.executor = e
	}
}

// WithDiagWriter overrides where the diagnostics summary (warnings and
// errors per shader) is printed. Defaults to os.Stdout. Failed shaders
// are reported in Result.FailedShaders, not in this output.
func WithDiagWriter(w io.Writer) RunOption {
	return func(c *runConfig) {
		c.diagWriter = w
	}
}

// WithProgress registers fn to be called periodically as commands
// complete, with the number completed so far and the total for the
// whole run. fn may be called from any goroutine and must not block.
func WithProgress(fn func(completed, total uint64)) RunOption {
	return func(c *runConfig) {
		c.progress = fn
	}
}
