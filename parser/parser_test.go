package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Alivebyte/ShaderCompile/combo"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", name, err)
	}
}

func TestParseSingleShader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test.fxc", `
#shader MyShader
#source myshader.fxc
#version ps_3_0
#centroid 0x3
#static FOO 0 3
#dynamic BAR 0 7
#skip FOO==3 && BAR>4
#end
`)

	descs, err := Parse(dir, "test.fxc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(descs) != 1 {
		t.Fatalf("len(descs) = %d, want 1", len(descs))
	}
	d := descs[0]
	if d.Name != "MyShader" || d.SourceFile != "myshader.fxc" || d.ShaderVersion != "ps_3_0" {
		t.Errorf("unexpected description: %+v", d)
	}
	if d.CentroidMask != 0x3 {
		t.Errorf("CentroidMask = %#x, want 0x3", d.CentroidMask)
	}
	if len(d.StaticAxes) != 1 || d.StaticAxes[0].Name != "FOO" || d.StaticAxes[0].Max != 3 {
		t.Errorf("StaticAxes = %+v", d.StaticAxes)
	}
	if len(d.DynamicAxes) != 1 || d.DynamicAxes[0].Name != "BAR" || d.DynamicAxes[0].Max != 7 {
		t.Errorf("DynamicAxes = %+v", d.DynamicAxes)
	}
	if len(d.Skips) != 1 {
		t.Fatalf("len(Skips) = %d, want 1", len(d.Skips))
	}
	if !d.Skips[0].Eval(map[string]int{"FOO": 3, "BAR": 5}) {
		t.Error("expected skip expression to evaluate true for FOO=3,BAR=5")
	}
	if d.Skips[0].Eval(map[string]int{"FOO": 2, "BAR": 5}) {
		t.Error("expected skip expression to evaluate false for FOO=2,BAR=5")
	}
}

func TestParseDefaultsSourceToName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test.fxc", `
#shader OnlyName
#version vs_3_0
#static A 0 0
#dynamic B 0 0
#end
`)
	descs, err := Parse(dir, "test.fxc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if descs[0].SourceFile != "OnlyName" {
		t.Errorf("SourceFile = %q, want %q", descs[0].SourceFile, "OnlyName")
	}
}

func TestParseMultipleShaderBlocks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test.fxc", `
#shader First
#version ps_2_0
#static A 0 1
#dynamic B 0 1
#end
#shader Second
#version ps_3_0
#static A 0 1
#dynamic B 0 1
#end
`)
	descs, err := Parse(dir, "test.fxc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("len(descs) = %d, want 2", len(descs))
	}
	if descs[0].Name != "First" || descs[1].Name != "Second" {
		t.Errorf("unexpected order/names: %q, %q", descs[0].Name, descs[1].Name)
	}
}

func TestParseInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.inc", `
#shader FromCommon
#version ps_2_0
#static A 0 0
#dynamic B 0 0
#end
`)
	writeFile(t, dir, "test.fxc", `
#include common.inc
#shader Local
#version ps_2_0
#static A 0 0
#dynamic B 0 0
#end
`)

	descs, err := Parse(dir, "test.fxc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("len(descs) = %d, want 2", len(descs))
	}
	if descs[0].Name != "FromCommon" || descs[1].Name != "Local" {
		t.Errorf("unexpected order: %q, %q", descs[0].Name, descs[1].Name)
	}
}

func TestParseDiamondIncludeReadOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.inc", `
#shader Common
#version ps_2_0
#static A 0 0
#dynamic B 0 0
#end
`)
	writeFile(t, dir, "a.inc", "#include common.inc\n")
	writeFile(t, dir, "b.inc", "#include common.inc\n")
	writeFile(t, dir, "test.fxc", `
#include a.inc
#include b.inc
#shader Top
#version ps_2_0
#static A 0 0
#dynamic B 0 0
#end
`)

	descs, err := Parse(dir, "test.fxc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// common.inc's #shader block is only reachable once, even though
	// two different includes pull it in.
	count := 0
	for _, d := range descs {
		if d.Name == "Common" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Common shader block reached %d times, want 1", count)
	}
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test.fxc", `
#shader Bad
#version xx_9_9
#end
`)
	if _, err := Parse(dir, "test.fxc"); err == nil {
		t.Fatal("expected an error for unsupported version")
	}
}

func TestParseRejectsMissingEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test.fxc", `
#shader Unterminated
#version ps_2_0
`)
	if _, err := Parse(dir, "test.fxc"); err == nil {
		t.Fatal("expected an error for a missing #end")
	}
}

func TestParseRejectsDirectiveOutsideBlock(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test.fxc", `
#static A 0 1
#shader S
#version ps_2_0
#end
`)
	if _, err := Parse(dir, "test.fxc"); err == nil {
		t.Fatal("expected an error for a directive outside a #shader block")
	}
}

func TestParseRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.fxc", "// nothing here\n")
	if _, err := Parse(dir, "empty.fxc"); err == nil {
		t.Fatal("expected an error for a file with no #shader blocks")
	}
}

func TestParseSkipExprPrecedence(t *testing.T) {
	e, err := ParseSkipExpr("A==1 && B==2 || C==3")
	if err != nil {
		t.Fatalf("ParseSkipExpr: %v", err)
	}
	// (A==1 && B==2) || C==3
	if !e.Eval(map[string]int{"A": 1, "B": 2, "C": 0}) {
		t.Error("expected true for A=1,B=2,C=0")
	}
	if !e.Eval(map[string]int{"A": 0, "B": 0, "C": 3}) {
		t.Error("expected true for C=3 alone")
	}
	if e.Eval(map[string]int{"A": 1, "B": 0, "C": 0}) {
		t.Error("expected false when only A matches")
	}
}

func TestParseSkipExprNotAndParens(t *testing.T) {
	e, err := ParseSkipExpr("!(A==1 || B==1)")
	if err != nil {
		t.Fatalf("ParseSkipExpr: %v", err)
	}
	if e.Eval(map[string]int{"A": 1, "B": 0}) {
		t.Error("expected false when A==1")
	}
	if !e.Eval(map[string]int{"A": 0, "B": 0}) {
		t.Error("expected true when neither matches")
	}
}

func TestParseSkipExprRejectsGarbage(t *testing.T) {
	if _, err := ParseSkipExpr("A == "); err == nil {
		t.Fatal("expected an error for a truncated expression")
	}
	if _, err := ParseSkipExpr("A === 1"); err == nil {
		t.Fatal("expected an error for a malformed operator")
	}
}

func TestFileCRC32(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.fxc", "hello world")
	writeFile(t, dir, "b.fxc", "hello world")
	writeFile(t, dir, "c.fxc", "something else")

	crcA, err := FileCRC32(filepath.Join(dir, "a.fxc"))
	if err != nil {
		t.Fatalf("FileCRC32: %v", err)
	}
	crcB, err := FileCRC32(filepath.Join(dir, "b.fxc"))
	if err != nil {
		t.Fatalf("FileCRC32: %v", err)
	}
	crcC, err := FileCRC32(filepath.Join(dir, "c.fxc"))
	if err != nil {
		t.Fatalf("FileCRC32: %v", err)
	}
	if crcA != crcB {
		t.Error("identical file contents should produce identical CRCs")
	}
	if crcA == crcC {
		t.Error("different file contents should produce different CRCs")
	}
}

func TestWriteInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test.fxc", `
#shader My Shader
#version ps_3_0
#centroid 0x7
#static A 0 1
#dynamic B 0 3
#end
`)
	descs, err := Parse(dir, "test.fxc")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	entries, err := combo.Describe(descs)
	if err != nil {
		t.Fatalf("combo.Describe: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteInclude(&buf, entries); err != nil {
		t.Fatalf("WriteInclude: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "MY_SHADER_NUM_STATIC_COMBOS 2") {
		t.Errorf("missing static combo count define, got:\n%s", out)
	}
	if !strings.Contains(out, "MY_SHADER_NUM_DYNAMIC_COMBOS 4") {
		t.Errorf("missing dynamic combo count define, got:\n%s", out)
	}
	if !strings.Contains(out, "MY_SHADER_CENTROID_MASK 0x7u") {
		t.Errorf("missing centroid mask define, got:\n%s", out)
	}

	var empty bytes.Buffer
	if err := WriteInclude(&empty, nil); err != nil {
		t.Fatalf("WriteInclude(nil): %v", err)
	}
	if empty.Len() != 0 {
		t.Errorf("WriteInclude(nil) wrote %d bytes, want 0", empty.Len())
	}
}
