package store

import "sync"

// Store is the result store described by the combo-compile design: a
// per-shader map of static-combo accumulators, plus the bookkeeping
// the archive writer needs (error state, ShaderInfo, written-to-disk).
// All methods are safe for concurrent use; every critical section is a
// small map operation, and no method performs I/O while holding the
// lock.
type Store struct {
	mu      sync.Mutex
	shaders map[string]*shaderState
}

// New returns an empty Store.
func New() *Store {
	return &Store{shaders: make(map[string]*shaderState)}
}

func (s *Store) state(shader string) *shaderState {
	st, ok := s.shaders[shader]
	if !ok {
		st = &shaderState{statics: make(map[uint64]*StaticComboAccumulator)}
		s.shaders[shader] = st
	}
	return st
}

// AddDynamic appends one compiled dynamic combo's bytecode to its
// static combo's accumulator, creating both the shader's state and the
// static accumulator on first use.
func (s *Store) AddDynamic(shader string, staticID, dynamicID uint64, bytecode []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(shader)
	acc, ok := st.statics[staticID]
	if !ok {
		acc = &StaticComboAccumulator{}
		st.statics[staticID] = acc
	}
	acc.Dynamics = append(acc.Dynamics, DynamicBlock{DynamicID: dynamicID, Bytecode: bytecode})
}

// StaticIDs returns the static combo ids currently accumulated for
// shader, in no particular order.
func (s *Store) StaticIDs(shader string) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.shaders[shader]
	if !ok {
		return nil
	}
	ids := make([]uint64, 0, len(st.statics))
	for id := range st.statics {
		ids = append(ids, id)
	}
	return ids
}

// TakeDynamics removes and returns the unpacked dynamic blocks for one
// static combo, for the caller to sort and pack. A static combo with no
// unpacked blocks left (either never populated or already packed)
// reports ok=false.
func (s *Store) TakeDynamics(shader string, staticID uint64) ([]DynamicBlock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.shaders[shader]
	if !ok {
		return nil, false
	}
	acc, ok := st.statics[staticID]
	if !ok || len(acc.Dynamics) == 0 {
		return nil, false
	}
	blocks := acc.Dynamics
	acc.Dynamics = nil
	return blocks, true
}

// AllocPacked installs the packed buffer for a static combo, produced
// by the block packer from the blocks TakeDynamics returned. Named
// after the original's alloc_packed: there the packer wrote directly
// into a buffer the store allocated, but pack.Pack already returns a
// finished []byte here, so this is a plain setter.
func (s *Store) AllocPacked(shader string, staticID uint64, packed []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state(shader)
	acc, ok := st.statics[staticID]
	if !ok {
		acc = &StaticComboAccumulator{}
		st.statics[staticID] = acc
	}
	acc.Packed = packed
	acc.packed = true
}

// TakePacked removes and returns the packed buffer for a static combo.
func (s *Store) TakePacked(shader string, staticID uint64) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.shaders[shader]
	if !ok {
		return nil, false
	}
	acc, ok := st.statics[staticID]
	if !ok || !acc.packed {
		return nil, false
	}
	packed := acc.Packed
	acc.Packed = nil
	acc.packed = false
	return packed, true
}

// RemoveStatic deletes a static combo's accumulator entirely.
func (s *Store) RemoveStatic(shader string, staticID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.shaders[shader]; ok {
		delete(st.statics, staticID)
	}
}

// MarkFailed records that shader had at least one failed compile. Once
// marked, the archive writer deletes any existing output file and
// writes nothing for this shader.
func (s *Store) MarkFailed(shader string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(shader).hadError = true
}

// HadError reports whether MarkFailed was ever called for shader.
func (s *Store) HadError(shader string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.shaders[shader]
	return ok && st.hadError
}

// SetShaderInfo caches a shader's ShaderInfo, computed once its combo
// entry is known (normally right after combo.Describe).
func (s *Store) SetShaderInfo(shader string, info ShaderInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(shader)
	st.info = info
	st.infoSet = true
}

// ShaderInfo returns the cached ShaderInfo for shader, or, if it was
// never cached (e.g. a resumed run that skipped straight to archiving),
// calls fallback to derive it and caches the result. fallback is called
// with the lock released, since it may re-parse a shader description.
func (s *Store) ShaderInfo(shader string, fallback func() (ShaderInfo, bool)) (ShaderInfo, bool) {
	s.mu.Lock()
	st, ok := s.shaders[shader]
	if ok && st.infoSet {
		info := st.info
		s.mu.Unlock()
		return info, true
	}
	s.mu.Unlock()

	info, ok := fallback()
	if !ok {
		return ShaderInfo{}, false
	}
	s.SetShaderInfo(shader, info)
	return info, true
}

// TakeShader atomically removes and returns shader's static-combo
// accumulator map and whether it had an error, for the archive writer's
// first step. Returns ok=false if the shader has no recorded state at
// all (nothing was ever added and MarkFailed/SetShaderInfo were never
// called).
func (s *Store) TakeShader(shader string) (statics map[uint64]*StaticComboAccumulator, hadError bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.shaders[shader]
	if !exists {
		return nil, false, false
	}
	statics = st.statics
	st.statics = make(map[uint64]*StaticComboAccumulator)
	return statics, st.hadError, true
}

// MarkWrittenToDisk records that shader's archive (or its deletion, in
// the error case) has been handled.
func (s *Store) MarkWrittenToDisk(shader string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(shader).written = true
}

// WasWrittenToDisk reports whether MarkWrittenToDisk was called for shader.
func (s *Store) WasWrittenToDisk(shader string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.shaders[shader]
	return ok && st.written
}
