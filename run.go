package shadercompile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Alivebyte/ShaderCompile/archive"
	"github.com/Alivebyte/ShaderCompile/combo"
	"github.com/Alivebyte/ShaderCompile/diag"
	"github.com/Alivebyte/ShaderCompile/dispatch"
	"github.com/Alivebyte/ShaderCompile/exec"
	"github.com/Alivebyte/ShaderCompile/internal/obs"
	"github.com/Alivebyte/ShaderCompile/parser"
	"github.com/Alivebyte/ShaderCompile/store"
)

// Result is the outcome of one Run call.
type Result struct {
	// ArchivePaths holds the path written for every shader entry that
	// compiled without error, in the order the shader description
	// declared them.
	ArchivePaths []string

	// FailedShaders names every shader entry that had at least one
	// failed compile. Its archive, if one existed from a previous run,
	// is deleted rather than left stale.
	FailedShaders []string

	// Diagnostics is the run's warning/error summary.
	Diagnostics diag.Summary
}

// Run parses opts.File, enumerates and compiles every declared shader
// entry's combo space, and writes one archive per entry under
// opts.ShaderPath/shaders/fxc. It blocks until every command has
// either completed or ctx was cancelled.
func Run(ctx context.Context, opts Options, runOpts ...RunOption) (Result, error) {
	cfg := defaultRunConfig()
	for _, o := range runOpts {
		o(&cfg)
	}

	ex := cfg.executor
	if ex == nil {
		ex = exec.NewShellExecutor(opts.CompilerBinary)
	}
	diagWriter := cfg.diagWriter
	if diagWriter == nil {
		diagWriter = os.Stdout
	}

	if !parser.SupportedVersions[opts.Version] {
		return Result{}, fmt.Errorf("shadercompile: unsupported shader version %q", opts.Version)
	}

	sourceCRC, err := parser.FileCRC32(filepath.Join(opts.ShaderPath, opts.File))
	if err != nil {
		return Result{}, fmt.Errorf("shadercompile: %w", err)
	}

	if !opts.Force {
		if skip, err := UpToDate(opts.ShaderPath, opts.File); err != nil {
			return Result{}, fmt.Errorf("shadercompile: %w", err)
		} else if skip {
			return Result{}, nil
		}
	}

	descs, err := parser.Parse(opts.ShaderPath, opts.File)
	if err != nil {
		return Result{}, fmt.Errorf("shadercompile: %w", err)
	}
	if err := resolveVersions(descs, opts.Version); err != nil {
		return Result{}, fmt.Errorf("shadercompile: %w", err)
	}

	entries, err := combo.Describe(descs)
	if err != nil {
		return Result{}, fmt.Errorf("shadercompile: %w", err)
	}

	enum := combo.NewEnumerator(entries)
	st := store.New()
	agg := diag.New()

	for _, e := range entries {
		st.SetShaderInfo(e.Name, shaderInfoFromEntry(e))
	}

	workers := dispatch.ResolveThreads(opts.Threads)
	r := dispatch.NewRange(enum, st, 0, enum.Total())

	progressDone := make(chan struct{})
	progressStopped := make(chan struct{})
	if cfg.progress != nil {
		go func() {
			reportProgress(ctx, progressDone, r, enum.Total(), cfg.progress)
			close(progressStopped)
		}()
	} else {
		close(progressStopped)
	}
	r.Run(ctx, workers, ex, opts.CompileFlags, agg, opts.FastFail)
	close(progressDone)
	<-progressStopped
	r.RangeFinished()

	var result Result
	var writeErrs []error
	for _, e := range entries {
		path, wrote, werr := writeShaderArchive(opts.ShaderPath, st, e, sourceCRC)
		if werr != nil {
			writeErrs = append(writeErrs, fmt.Errorf("shadercompile: writing archive for %q: %w", e.Name, werr))
		}
		if wrote {
			result.ArchivePaths = append(result.ArchivePaths, path)
		}
		if st.HadError(e.Name) {
			result.FailedShaders = append(result.FailedShaders, e.Name)
		}
	}

	cwd, werr := os.Getwd()
	if werr != nil {
		cwd = ""
	}
	result.Diagnostics = agg.Snapshot(cwd, opts.File)
	result.Diagnostics.Print(diagWriter)

	return result, errors.Join(writeErrs...)
}

// resolveVersions fills in each entry's ShaderVersion from fallback
// (the -ver flag) where the description left it unset, and rejects any
// explicit #version that disagrees with it: this module compiles one
// version per invocation, the same way the CLI it mirrors does.
func resolveVersions(descs []combo.EntryDescription, fallback string) error {
	for i := range descs {
		if descs[i].ShaderVersion == "" {
			descs[i].ShaderVersion = fallback
			continue
		}
		if descs[i].ShaderVersion != fallback {
			return fmt.Errorf("shader %q declares version %q, which does not match -ver %q",
				descs[i].Name, descs[i].ShaderVersion, fallback)
		}
	}
	return nil
}

func shaderInfoFromEntry(e combo.EntryInfo) store.ShaderInfo {
	return store.ShaderInfo{
		Name:             e.Name,
		SourceFile:       e.SourceFile,
		ShaderVersion:    e.ShaderVersion,
		NumStaticCombos:  e.NumStaticCombos,
		NumDynamicCombos: e.NumDynamicCombos,
		CentroidMask:     e.CentroidMask,
	}
}

// reportProgress polls r.Completed() against total and invokes fn until
// progressDone closes or ctx is cancelled, giving the CLI a live combos-
// completed counter without coupling dispatch to any particular output.
// It also feeds each tick's delta into a moving average, logged at debug
// level, the same smoothing the original gave its own progress line.
func reportProgress(ctx context.Context, done <-chan struct{}, r *dispatch.Range, total uint64, fn func(completed, total uint64)) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	rate := diag.NewThroughput(0)
	last := uint64(0)
	tick := func() uint64 {
		completed := r.Completed()
		rate.PushValue(completed - last)
		last = completed
		obs.Get().Debug("progress", "completed", completed, "total", total, "combos_per_tick", rate.GetAverage())
		return completed
	}

	for {
		select {
		case <-done:
			fn(tick(), total)
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(tick(), total)
		}
	}
}

// archivePath returns the on-disk path for shader's archive, matching
// the original layout of <ShaderPath>/shaders/fxc/<name>.vcs.
func archivePath(shaderPath, shader string) string {
	return filepath.Join(shaderPath, "shaders", "fxc", shader+".vcs")
}

// UpToDate reports whether every #shader entry declared by file already
// has an on-disk archive whose stored SourceCRC32 matches file's
// current contents, meaning a Run over file would compile nothing new.
// Run itself calls UpToDate unless Options.Force is set; it is also
// exported so a caller can short-circuit (e.g. to skip building the
// Options and standing up an executor at all) before calling Run.
func UpToDate(shaderPath, file string) (bool, error) {
	crc, err := parser.FileCRC32(filepath.Join(shaderPath, file))
	if err != nil {
		return false, err
	}

	descs, err := parser.Parse(shaderPath, file)
	if err != nil {
		return false, err
	}
	entries, err := combo.Describe(descs)
	if err != nil {
		return false, err
	}

	for _, e := range entries {
		f, err := os.Open(archivePath(shaderPath, e.Name))
		if err != nil {
			return false, nil
		}
		header, err := archive.ReadHeader(f)
		f.Close()
		if err != nil || header.SourceCRC32 != crc {
			return false, nil
		}
	}
	return true, nil
}

// writeShaderArchive drains shader's accumulated static combos from st
// and either writes its archive (success) or deletes any stale archive
// left from a previous run (at least one combo failed). wrote reports
// whether a new archive was written.
func writeShaderArchive(shaderPath string, st *store.Store, e combo.EntryInfo, sourceCRC uint32) (path string, wrote bool, err error) {
	path = archivePath(shaderPath, e.Name)

	statics, hadError, ok := st.TakeShader(e.Name)
	if !ok {
		return path, false, nil
	}
	if hadError {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return path, false, fmt.Errorf("removing stale archive: %w", rmErr)
		}
		return path, false, nil
	}

	records := make([]archive.Record, 0, len(statics))
	for staticID, acc := range statics {
		if !acc.HasPacked() {
			continue
		}
		records = append(records, archive.Record{StaticID: mustUint32(staticID), Packed: acc.Packed})
	}

	info, ok := st.ShaderInfo(e.Name, func() (store.ShaderInfo, bool) { return shaderInfoFromEntry(e), true })
	if !ok {
		return path, false, fmt.Errorf("no shader info available for %q", e.Name)
	}

	header := archive.Header{
		Version:            1,
		TotalShaderCombos:  mustInt32(info.NumStaticCombos),
		TotalDynamicCombos: mustInt32(info.NumDynamicCombos),
		CentroidMask:       info.CentroidMask,
		SourceCRC32:        sourceCRC,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, false, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return path, false, fmt.Errorf("creating archive file: %w", err)
	}
	defer f.Close()

	if err := archive.Write(f, header, records); err != nil {
		return path, false, fmt.Errorf("writing archive: %w", err)
	}

	st.MarkWrittenToDisk(e.Name)
	return path, true, nil
}

// mustUint32 narrows a uint64 static/dynamic id known by construction
// to fit in 32 bits (the archive format's dictionary and record types
// are u32, matching the on-disk header). A value that does not fit is
// an invariant violation, not a recoverable error.
func mustUint32(v uint64) uint32 {
	if v > 0xFFFFFFFF {
		panic(fmt.Sprintf("shadercompile: id %d overflows uint32", v))
	}
	return uint32(v)
}

// mustInt32 narrows a uint64 combo-space size to int32, matching the
// archive header's signed 32-bit fields. A combo space this large is
// an invariant violation the original tool could never have hit
// either (it used the same signed 32-bit field).
func mustInt32(v uint64) int32 {
	if v > 0x7FFFFFFF {
		panic(fmt.Sprintf("shadercompile: combo count %d overflows int32", v))
	}
	return int32(v)
}
