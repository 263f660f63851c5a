// Package shadercompile compiles a shader's static/dynamic combo matrix
// into a single deduplicated, block-compressed binary archive.
//
// # Overview
//
// A shader description declares a set of static axes and dynamic axes
// (each an inclusive integer range), plus skip expressions that prune
// combinations that are never legal together. The cartesian product of
// all axes, minus the skipped combinations, is the set of compile
// commands for that shader. Each command is handed to an external
// compiler (see package exec); the resulting bytecode is grouped by
// static combo, sorted by dynamic combo id, packed into compressed
// blocks, deduplicated against identical static combos, and written to
// a single archive file per shader.
//
// # Quick Start
//
//	import "github.com/Alivebyte/ShaderCompile"
//
//	result, err := shadercompile.Run(ctx, shadercompile.Options{
//		ShaderPath: "/path/to/shaders",
//		File:       "example_ps20.fxc",
//		Version:    "ps_2_0",
//	})
//
// # Architecture
//
// The module is organized into:
//   - combo: enumerates compile commands over the axis cartesian product
//   - exec: pluggable external compiler invocation
//   - store: thread-safe accumulation of compiled bytecode
//   - dispatch: worker pool driving ordered, watermark-gated packaging
//   - pack: block packing and LZMA compression
//   - archive: the binary archive writer/reader
//   - diag: warning/error aggregation and progress reporting
//   - parser: shader description (.fxc) parsing
//
// # Concurrency
//
// Run distributes compile commands across a worker pool sized by
// Options.Threads (0 selects runtime.NumCPU, and larger values are
// capped at it). When the resolved thread count is 1, the dispatch loop
// runs inline on the calling goroutine without spawning any goroutine;
// it still takes the range's mutex around each command, uncontended.
package shadercompile

// Version identifies this build of the compiler.
const Version = "1.0.0"
