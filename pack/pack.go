// Package pack packs a static combo's dynamic-combo bytecode blocks
// into the compressed-or-raw buffer format the archive writer stores
// one per static combo.
package pack

import (
	"bytes"
	"compress/bzip2"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/ulikunitz/xz/lzma"
)

// MaxUnpackedBlock bounds how much uncompressed data accumulates
// before a flush, keeping any single LZMA attempt's working set
// bounded regardless of how many dynamic combos a static combo has.
const MaxUnpackedBlock = 512 * 1024

// Tag bits occupying the top two bits of each flushed segment's
// 32-bit length-with-flag word.
const (
	tagBzip2Unused  = 0x00000000
	tagLZMA         = 0x40000000
	tagUncompressed = 0x80000000
	tagMask         = 0xC0000000
	lengthMask      = ^uint32(tagMask)
)

// Block is one dynamic combo's compiled bytecode, keyed by its
// dynamic id.
type Block struct {
	DynamicID uint64
	Bytecode  []byte
}

// Pack concatenates blocks (sorted ascending by DynamicID) into one or
// more flushed segments, each independently LZMA-compressed if that
// shrinks it, and returns the resulting buffer.
func Pack(blocks []Block) []byte {
	sorted := make([]Block, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DynamicID < sorted[j].DynamicID })

	var out bytes.Buffer
	var unpacked bytes.Buffer

	flush := func() {
		if unpacked.Len() == 0 {
			return
		}
		out.Write(flushSegment(unpacked.Bytes()))
		unpacked.Reset()
	}

	var hdr [8]byte
	for _, b := range sorted {
		if unpacked.Len()+len(b.Bytecode)+16 >= MaxUnpackedBlock {
			flush()
		}
		binary.LittleEndian.PutUint32(hdr[0:4], uint32(b.DynamicID))
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(b.Bytecode)))
		unpacked.Write(hdr[:])
		unpacked.Write(b.Bytecode)
	}
	flush()

	return out.Bytes()
}

// flushSegment compresses data with LZMA; if that fails or does not
// shrink it, it falls back to storing data uncompressed. Either way the
// result is prefixed with a 32-bit tag-and-length word.
func flushSegment(data []byte) []byte {
	compressed, ok := tryCompress(data)

	var tag uint32
	var payload []byte
	if ok && len(compressed) < len(data) {
		tag = tagLZMA | (uint32(len(compressed)) & lengthMask)
		payload = compressed
	} else {
		tag = tagUncompressed | (uint32(len(data)) & lengthMask)
		payload = data
	}

	out := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(out, tag)
	return append(out, payload...)
}

// Decode is Pack's inverse: it walks the flushed segments in a packed
// region, decompressing each as needed, and returns every dynamic
// block it contains in the order they appear.
func Decode(packed []byte) ([]Block, error) {
	var out []Block

	for len(packed) > 0 {
		if len(packed) < 4 {
			return nil, fmt.Errorf("pack: truncated segment header (%d bytes left)", len(packed))
		}
		word := binary.LittleEndian.Uint32(packed)
		tag := word & tagMask
		length := word & lengthMask
		packed = packed[4:]

		if uint64(length) > uint64(len(packed)) {
			return nil, fmt.Errorf("pack: segment claims %d bytes, only %d remain", length, len(packed))
		}
		segment := packed[:length]
		packed = packed[length:]

		raw, err := decodeSegment(tag, segment)
		if err != nil {
			return nil, err
		}

		for len(raw) > 0 {
			if len(raw) < 8 {
				return nil, fmt.Errorf("pack: truncated block header (%d bytes left)", len(raw))
			}
			dynID := binary.LittleEndian.Uint32(raw)
			blen := binary.LittleEndian.Uint32(raw[4:8])
			raw = raw[8:]
			if uint64(blen) > uint64(len(raw)) {
				return nil, fmt.Errorf("pack: block claims %d bytes, only %d remain", blen, len(raw))
			}
			out = append(out, Block{DynamicID: uint64(dynID), Bytecode: raw[:blen]})
			raw = raw[blen:]
		}
	}
	return out, nil
}

func decodeSegment(tag uint32, segment []byte) ([]byte, error) {
	switch tag {
	case tagUncompressed:
		return segment, nil
	case tagLZMA:
		r, err := lzma.NewReader(bytes.NewReader(segment))
		if err != nil {
			return nil, fmt.Errorf("pack: lzma reader: %w", err)
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("pack: lzma decompress: %w", err)
		}
		return raw, nil
	case tagBzip2Unused:
		// Older archives used this tag for bzip2-compressed segments.
		// Pack never emits it (Go's compress/bzip2 is decode-only), but
		// Decode still has to read archives written by that era.
		raw, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(segment)))
		if err != nil {
			return nil, fmt.Errorf("pack: bzip2 decompress: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("pack: unknown segment tag %#x", tag)
	}
}

func tryCompress(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := lzma.NewWriter(&buf)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
