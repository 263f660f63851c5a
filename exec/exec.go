// Package exec defines the contract between the combo dispatcher and the
// external shader compiler, plus a default implementation that shells
// out to a real compiler binary and a fake used by tests.
package exec

// Flags is the bitmask of compiler options threaded through unchanged
// from the CLI to the executor (spec.md §6.1's compiler flag
// passthroughs). Each option is one bit, assigned in declaration order;
// the values are not those of the D3DCOMPILE_* constants the options
// correspond to, and this module never links against a real D3D
// compiler, so the names are generic.
type Flags uint32

const (
	// FlagPartialPrecision requests partial-precision arithmetic
	// (-partial-precision / "/Gpp").
	FlagPartialPrecision Flags = 1 << iota

	// FlagSkipValidation skips shader bytecode validation
	// (-no-validation / "/Vd").
	FlagSkipValidation

	// FlagNoPreshader disables preshader generation (-disable-preshader / "/Op").
	FlagNoPreshader

	// FlagAvoidFlowControl directs the compiler away from flow-control
	// constructs where possible (-no-flow-control / "/Gfa").
	FlagAvoidFlowControl

	// FlagPreferFlowControl directs the compiler toward flow-control
	// constructs where possible (-prefer-flow-control / "/Gfp").
	// The CLI accepts it together with FlagAvoidFlowControl; when both
	// are set, ShellExecutor passes only -no-flow-control.
	FlagPreferFlowControl

	// FlagSkipOptimization disables shader optimization
	// (-disable-optimization / "/Od").
	FlagSkipOptimization

	// FlagDebugInfo embeds debugging information (-debug-info / "/Zi").
	FlagDebugInfo

	// FlagOpt0, FlagOpt1, FlagOpt2, FlagOpt3 select an optimization
	// level (-optimize / "/O<N>"). Exactly one should be set; the CLI
	// defaults to FlagOpt1 when none is given.
	FlagOpt0
	FlagOpt1
	FlagOpt2
	FlagOpt3
)

// Response is the result of compiling a single combo.
type Response struct {
	// Succeeded is true iff compilation produced usable bytecode.
	Succeeded bool

	// Bytecode holds the compiled shader. Non-empty iff Succeeded.
	Bytecode []byte

	// Listing holds compiler output (warnings and/or errors), one
	// message per line. May be non-empty even when Succeeded, to carry
	// warnings. May be empty when !Succeeded, in which case the
	// dispatcher fabricates a listing (see spec.md §4.D).
	Listing string
}

// Executor runs one compile command and returns its result.
//
// Implementations must be safe for concurrent use: the dispatcher calls
// Execute from multiple worker goroutines with no synchronization of
// its own, and must be able to rely on Execute returning within a
// bounded (if unspecified) wall time.
type Executor interface {
	Execute(cmdLine string, flags Flags) Response
}
