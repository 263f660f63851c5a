// Package archive writes and reads the compiled-shader archive format:
// a fixed header, a static-combo dictionary, an alias section for
// deduplicated combos, and the packed payload regions the pack package
// produces.
package archive

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed, 28-byte on-disk size of Header.
const HeaderSize = 28

// sentinelStaticID terminates the static-combo dictionary: it sorts
// last (being the maximum uint32) and carries no payload.
const sentinelStaticID = 0xFFFFFFFF

// Header is the archive's fixed-size preamble.
type Header struct {
	Version            uint32
	TotalShaderCombos  int32
	TotalDynamicCombos int32
	Flags              uint32
	CentroidMask       uint32
	NumStaticCombos    uint32 // including the sentinel
	SourceCRC32        uint32
}

func (h Header) encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.Version)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.TotalShaderCombos))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(h.TotalDynamicCombos))
	binary.LittleEndian.PutUint32(buf[12:16], h.Flags)
	binary.LittleEndian.PutUint32(buf[16:20], h.CentroidMask)
	binary.LittleEndian.PutUint32(buf[20:24], h.NumStaticCombos)
	binary.LittleEndian.PutUint32(buf[24:28], h.SourceCRC32)
	return buf
}

func decodeHeader(buf [HeaderSize]byte) Header {
	return Header{
		Version:            binary.LittleEndian.Uint32(buf[0:4]),
		TotalShaderCombos:  int32(binary.LittleEndian.Uint32(buf[4:8])),
		TotalDynamicCombos: int32(binary.LittleEndian.Uint32(buf[8:12])),
		Flags:              binary.LittleEndian.Uint32(buf[12:16]),
		CentroidMask:       binary.LittleEndian.Uint32(buf[16:20]),
		NumStaticCombos:    binary.LittleEndian.Uint32(buf[20:24]),
		SourceCRC32:        binary.LittleEndian.Uint32(buf[24:28]),
	}
}

// ReadHeader reads just the 28-byte header from r, for callers (the
// CLI's CRC-based skip-if-unchanged check) that need SourceCRC32
// without decoding the rest of the archive.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("archive: read header: %w", err)
	}
	return decodeHeader(buf), nil
}
