package exec

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/Alivebyte/ShaderCompile/internal/obs"
)

// ShellExecutor runs a real external compiler binary as a subprocess per
// combo, grounded on the original InterceptFxc::ExecuteCommand collaborator:
// it is synchronous, safe to call from many goroutines at once (each call
// starts its own process), and turns a non-zero exit or launch failure
// into a !Succeeded Response carrying a listing instead of a Go error, so
// the dispatcher's diagnostics path handles both uniformly.
//
// The compiler binary is expected to write compiled bytecode to stdout
// and any warnings/errors, one per line, to stderr. cmdLine (produced by
// combo.FormatCommand) is split on whitespace and passed as arguments.
type ShellExecutor struct {
	// Binary is the path to the compiler executable.
	Binary string

	// Timeout bounds a single compile; zero means no timeout.
	Timeout time.Duration

	// ExtraArgs are appended before the flag passthroughs, ahead of the
	// per-combo arguments from cmdLine (e.g. a fixed "-O matrix" the
	// project always wants).
	ExtraArgs []string
}

// NewShellExecutor returns a ShellExecutor invoking binary with no
// timeout and no extra arguments.
func NewShellExecutor(binary string) *ShellExecutor {
	return &ShellExecutor{Binary: binary}
}

// Execute implements Executor.
func (e *ShellExecutor) Execute(cmdLine string, flags Flags) Response {
	args := make([]string, 0, len(e.ExtraArgs)+8)
	args = append(args, e.ExtraArgs...)
	args = append(args, flagArgs(flags)...)
	args = append(args, strings.Fields(cmdLine)...)

	cmd := exec.Command(e.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if e.Timeout > 0 {
		done := make(chan error, 1)
		if err := cmd.Start(); err != nil {
			return fabricateFailure(cmdLine, fmt.Sprintf("error 0000: failed to start compiler: %v", err))
		}
		go func() { done <- cmd.Wait() }()

		select {
		case err := <-done:
			return responseFromRun(stdout.Bytes(), stderr.String(), err)
		case <-time.After(e.Timeout):
			_ = cmd.Process.Kill()
			<-done
			return fabricateFailure(cmdLine, "error 0000: compiler timed out")
		}
	}

	err := cmd.Run()
	return responseFromRun(stdout.Bytes(), stderr.String(), err)
}

func responseFromRun(stdout []byte, stderr string, runErr error) Response {
	if runErr != nil {
		obs.Get().Debug("compile command failed", "error", runErr)
		listing := stderr
		if listing == "" {
			listing = fmt.Sprintf("error 0000: %v", runErr)
		}
		return Response{Succeeded: false, Listing: listing}
	}
	return Response{Succeeded: true, Bytecode: stdout, Listing: stderr}
}

func fabricateFailure(cmdLine, msg string) Response {
	obs.Get().Debug("compile command could not run", "cmdLine", cmdLine)
	return Response{Succeeded: false, Listing: msg}
}

// flagArgs translates a Flags bitmask into the corresponding compiler
// command-line switches, in a fixed, deterministic order.
func flagArgs(flags Flags) []string {
	var args []string
	if flags&FlagPartialPrecision != 0 {
		args = append(args, "-partial-precision")
	}
	if flags&FlagSkipValidation != 0 {
		args = append(args, "-no-validation")
	}
	if flags&FlagNoPreshader != 0 {
		args = append(args, "-disable-preshader")
	}
	if flags&FlagAvoidFlowControl != 0 {
		args = append(args, "-no-flow-control")
	} else if flags&FlagPreferFlowControl != 0 {
		args = append(args, "-prefer-flow-control")
	}
	if flags&FlagSkipOptimization != 0 {
		args = append(args, "-disable-optimization")
	}
	if flags&FlagDebugInfo != 0 {
		args = append(args, "-debug-info")
	}
	args = append(args, "-optimize", strconv.Itoa(optimizationLevel(flags)))
	return args
}

func optimizationLevel(flags Flags) int {
	switch {
	case flags&FlagOpt3 != 0:
		return 3
	case flags&FlagOpt2 != 0:
		return 2
	case flags&FlagOpt0 != 0:
		return 0
	default:
		return 1
	}
}
