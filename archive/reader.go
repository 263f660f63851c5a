package archive

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadResult is a fully parsed archive: its header, dictionary
// (sentinel excluded), aliases, and each non-aliased static combo's
// raw packed payload.
type ReadResult struct {
	Header  Header
	Dict    []DictEntry
	Aliases []Alias
	Payload map[uint32][]byte
}

// Read parses a full archive from r.
func Read(r io.ReadSeeker) (*ReadResult, error) {
	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return nil, fmt.Errorf("archive: read header: %w", err)
	}
	header := decodeHeader(hdrBuf)

	if header.NumStaticCombos == 0 {
		return nil, fmt.Errorf("archive: header claims zero static combos (missing sentinel)")
	}

	fullDict := make([]DictEntry, header.NumStaticCombos)
	for i := range fullDict {
		staticID, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("archive: read dictionary entry %d: %w", i, err)
		}
		offset, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("archive: read dictionary entry %d: %w", i, err)
		}
		fullDict[i] = DictEntry{StaticID: staticID, FileOffset: offset}
	}
	if fullDict[len(fullDict)-1].StaticID != sentinelStaticID {
		return nil, fmt.Errorf("archive: last dictionary entry is not the sentinel")
	}

	numAliases, err := readU32(r)
	if err != nil {
		return nil, fmt.Errorf("archive: read alias count: %w", err)
	}
	aliases := make([]Alias, numAliases)
	for i := range aliases {
		staticID, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("archive: read alias %d: %w", i, err)
		}
		aliasOf, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("archive: read alias %d: %w", i, err)
		}
		aliases[i] = Alias{StaticID: staticID, AliasOf: aliasOf}
	}

	dict := fullDict[:len(fullDict)-1]
	payload := make(map[uint32][]byte, len(dict))
	for i, e := range dict {
		next := fullDict[i+1]
		if next.FileOffset < e.FileOffset+4 {
			return nil, fmt.Errorf("archive: static %d has a negative-length region", e.StaticID)
		}
		regionLen := next.FileOffset - e.FileOffset - 4

		if _, err := r.Seek(int64(e.FileOffset), io.SeekStart); err != nil {
			return nil, fmt.Errorf("archive: seek to static %d: %w", e.StaticID, err)
		}
		data := make([]byte, regionLen)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("archive: read payload for static %d: %w", e.StaticID, err)
		}
		marker, err := readU32(r)
		if err != nil {
			return nil, fmt.Errorf("archive: read end marker for static %d: %w", e.StaticID, err)
		}
		if marker != endOfDynamicCombos {
			return nil, fmt.Errorf("archive: static %d missing end-of-dynamic-combos marker, got %#x", e.StaticID, marker)
		}
		payload[e.StaticID] = data
	}

	return &ReadResult{Header: header, Dict: dict, Aliases: aliases, Payload: payload}, nil
}

// ResolvePayload returns the raw packed payload for staticID, following
// a single alias hop if staticID itself has no direct payload.
func (rr *ReadResult) ResolvePayload(staticID uint32) ([]byte, bool) {
	if data, ok := rr.Payload[staticID]; ok {
		return data, true
	}
	for _, a := range rr.Aliases {
		if a.StaticID == staticID {
			data, ok := rr.Payload[a.AliasOf]
			return data, ok
		}
	}
	return nil, false
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}
