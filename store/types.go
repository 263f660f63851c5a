// Package store holds in-flight and packaged compile results across all
// shaders being compiled in one run, guarded by a single mutex (the
// "global data lock" in spec terms: every critical section here is an
// O(1) map operation, so there is no benefit to sharding it the way the
// parser's include-file cache, a cache.ShardedCache, is sharded).
package store

// DynamicBlock is one dynamic combo's compiled bytecode, pending
// packing into its static combo's packed buffer.
type DynamicBlock struct {
	DynamicID uint64
	Bytecode  []byte
}

// ShaderInfo is the subset of a shader's combo-space description the
// archive writer needs once compilation has finished: everything
// required to build the archive header without holding a reference to
// the live combo.EntryInfo.
type ShaderInfo struct {
	Name             string
	SourceFile       string
	ShaderVersion    string
	NumStaticCombos  uint64
	NumDynamicCombos uint64
	CentroidMask     uint32
}

// StaticComboAccumulator tracks one static combo's dynamic blocks until
// they are packed, after which Dynamics is discarded and Packed holds
// the packer's output.
type StaticComboAccumulator struct {
	Dynamics []DynamicBlock
	Packed   []byte
	packed   bool
}

// HasPacked reports whether this accumulator has been packed already.
func (a *StaticComboAccumulator) HasPacked() bool { return a.packed }

type shaderState struct {
	statics  map[uint64]*StaticComboAccumulator
	info     ShaderInfo
	infoSet  bool
	hadError bool
	written  bool
}
