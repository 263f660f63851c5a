// Package parser turns a shader description file into the axis/skip
// description the combo package enumerates. This is the one in-scope
// piece of the core's "external parser" collaborator: something has to
// turn a file on disk into a combo.EntryDescription, or the enumerator
// never has anything to enumerate.
//
// The file format is a small line-oriented directive language: one or
// more #shader ... #end blocks, each declaring a name, a source file,
// a shader version, static and dynamic axes, skip expressions, and an
// optional centroid mask. #include pulls in another file's directives
// (and, transitively, its own #shader blocks), which is why parsing
// keeps a per-run cache of raw file contents: a header shared by many
// shaders in the same compile should only be read from disk once.
package parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Alivebyte/ShaderCompile/cache"
	"github.com/Alivebyte/ShaderCompile/combo"
	"github.com/Alivebyte/ShaderCompile/internal/obs"
)

// SupportedVersions is the closed set of shader version tags accepted
// by -ver and by #version directives.
var SupportedVersions = map[string]bool{
	"vs_1_1": true,
	"vs_2_0": true,
	"vs_2_x": true,
	"vs_3_0": true,
	"ps_1_1": true,
	"ps_1_4": true,
	"ps_2_0": true,
	"ps_2_b": true,
	"ps_2_x": true,
	"ps_3_0": true,
}

// Parse reads path (resolved against baseDir) and returns one
// combo.EntryDescription per #shader block declared by the file or any
// file it transitively #includes.
func Parse(baseDir, path string) ([]combo.EntryDescription, error) {
	ic := cache.NewSharded[string, []byte](64, cache.StringHasher)
	var descs []combo.EntryDescription
	seen := map[string]bool{}
	if err := parseFile(baseDir, path, ic, &descs, seen); err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("parser: %s declares no #shader blocks", path)
	}
	return descs, nil
}

// FileCRC32 returns the CRC32 (IEEE polynomial, matching archive.Header's
// SourceCRC32 and the original Parser::CheckCrc) of path's raw bytes,
// for the CLI's skip-if-unchanged check.
func FileCRC32(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("parser: %s: %w", path, err)
	}
	return crc32.ChecksumIEEE(data), nil
}

type blockState struct {
	name, source, version string
	centroid              uint32
	staticAxes            []combo.Axis
	dynamicAxes           []combo.Axis
	skips                 []combo.Expr
}

func (b *blockState) toDescription() combo.EntryDescription {
	source := b.source
	if source == "" {
		source = b.name
	}
	return combo.EntryDescription{
		Name:          b.name,
		SourceFile:    source,
		ShaderVersion: b.version,
		StaticAxes:    b.staticAxes,
		DynamicAxes:   b.dynamicAxes,
		Skips:         b.skips,
		CentroidMask:  b.centroid,
	}
}

func parseFile(baseDir, relPath string, ic *cache.ShardedCache[string, []byte], out *[]combo.EntryDescription, seen map[string]bool) error {
	full := filepath.Join(baseDir, relPath)
	if seen[full] {
		obs.Get().Log(context.Background(), obs.LevelTrace, "preprocessor: skipping already-included file", "path", full)
		return nil
	}
	seen[full] = true

	data, err := readCached(ic, full)
	if err != nil {
		return fmt.Errorf("parser: %s: %w", relPath, err)
	}
	obs.Get().Log(context.Background(), obs.LevelTrace, "preprocessor: parsing file", "path", full, "bytes", len(data))

	var cur *blockState
	lineNo := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		fields := strings.Fields(line)
		directive := fields[0]

		switch directive {
		case "#shader":
			if cur != nil {
				return fmt.Errorf("parser: %s:%d: nested #shader before matching #end", relPath, lineNo)
			}
			if len(fields) < 2 {
				return fmt.Errorf("parser: %s:%d: #shader requires a name", relPath, lineNo)
			}
			cur = &blockState{name: strings.Join(fields[1:], " ")}

		case "#end":
			if cur == nil {
				return fmt.Errorf("parser: %s:%d: #end without an open #shader block", relPath, lineNo)
			}
			*out = append(*out, cur.toDescription())
			cur = nil

		case "#source":
			if err := requireBlock(cur, relPath, lineNo, directive); err != nil {
				return err
			}
			cur.source = strings.Join(fields[1:], " ")

		case "#version":
			if err := requireBlock(cur, relPath, lineNo, directive); err != nil {
				return err
			}
			v := strings.Join(fields[1:], " ")
			if !SupportedVersions[v] {
				return fmt.Errorf("parser: %s:%d: unsupported shader version %q", relPath, lineNo, v)
			}
			cur.version = v

		case "#centroid":
			if err := requireBlock(cur, relPath, lineNo, directive); err != nil {
				return err
			}
			if len(fields) != 2 {
				return fmt.Errorf("parser: %s:%d: #centroid requires one mask value", relPath, lineNo)
			}
			mask, err := strconv.ParseUint(fields[1], 0, 32)
			if err != nil {
				return fmt.Errorf("parser: %s:%d: bad centroid mask %q: %w", relPath, lineNo, fields[1], err)
			}
			cur.centroid = uint32(mask)

		case "#static", "#dynamic":
			if err := requireBlock(cur, relPath, lineNo, directive); err != nil {
				return err
			}
			if len(fields) != 4 {
				return fmt.Errorf("parser: %s:%d: %s expects NAME MIN MAX", relPath, lineNo, directive)
			}
			min, err := strconv.Atoi(fields[2])
			if err != nil {
				return fmt.Errorf("parser: %s:%d: bad min %q: %w", relPath, lineNo, fields[2], err)
			}
			max, err := strconv.Atoi(fields[3])
			if err != nil {
				return fmt.Errorf("parser: %s:%d: bad max %q: %w", relPath, lineNo, fields[3], err)
			}
			axis := combo.Axis{Name: fields[1], Min: min, Max: max}
			if directive == "#static" {
				cur.staticAxes = append(cur.staticAxes, axis)
			} else {
				cur.dynamicAxes = append(cur.dynamicAxes, axis)
			}

		case "#skip":
			if err := requireBlock(cur, relPath, lineNo, directive); err != nil {
				return err
			}
			if len(fields) < 2 {
				return fmt.Errorf("parser: %s:%d: #skip requires an expression", relPath, lineNo)
			}
			expr, err := ParseSkipExpr(strings.Join(fields[1:], " "))
			if err != nil {
				return fmt.Errorf("parser: %s:%d: %w", relPath, lineNo, err)
			}
			cur.skips = append(cur.skips, expr)

		case "#include":
			if len(fields) != 2 {
				return fmt.Errorf("parser: %s:%d: #include expects a single path", relPath, lineNo)
			}
			incPath := filepath.Join(filepath.Dir(relPath), fields[1])
			obs.Get().Log(context.Background(), obs.LevelTrace, "preprocessor: #include", "from", relPath, "line", lineNo, "include", incPath)
			if err := parseFile(baseDir, incPath, ic, out, seen); err != nil {
				return err
			}

		default:
			return fmt.Errorf("parser: %s:%d: unknown directive %q", relPath, lineNo, directive)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("parser: %s: %w", relPath, err)
	}
	if cur != nil {
		return fmt.Errorf("parser: %s: #shader %q missing #end", relPath, cur.name)
	}
	return nil
}

func requireBlock(cur *blockState, path string, line int, directive string) error {
	if cur == nil {
		return fmt.Errorf("parser: %s:%d: %s outside a #shader block", path, line, directive)
	}
	return nil
}

func readCached(ic *cache.ShardedCache[string, []byte], full string) ([]byte, error) {
	if data, ok := ic.Get(full); ok {
		obs.Get().Log(context.Background(), obs.LevelTrace, "preprocessor: include cache hit", "path", full)
		return data, nil
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	ic.Set(full, data)
	obs.Get().Log(context.Background(), obs.LevelTrace, "preprocessor: include cache miss, read from disk", "path", full)
	return data, nil
}
