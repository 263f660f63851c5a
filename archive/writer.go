package archive

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
)

// staticComboHashSize is the number of dedup buckets, matching the
// original's STATIC_COMBO_HASH_SIZE.
const staticComboHashSize = 73

// endOfDynamicCombos terminates each payload region.
const endOfDynamicCombos = 0xFFFFFFFF

// Record is one static combo's already-packed payload (the output of
// pack.Pack), ready to be deduplicated and written.
type Record struct {
	StaticID uint32
	Packed   []byte
}

// DictEntry is one dictionary row: a static id and the absolute file
// offset of its payload (or, for the sentinel, the end of file).
type DictEntry struct {
	StaticID   uint32
	FileOffset uint32
}

// Alias records that one static combo's content is identical to
// another's, so only the latter's payload is stored.
type Alias struct {
	StaticID uint32
	AliasOf  uint32
}

type bucketEntry struct {
	crc32    uint32
	data     []byte
	staticID uint32
}

// Write deduplicates records, builds the dictionary and alias
// section, and writes the full archive to w, back-patching the
// dictionary's file offsets once the payload positions are known. w
// must support Seek (an *os.File, or any in-memory WriteSeeker).
func Write(w io.WriteSeeker, header Header, records []Record) error {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StaticID < sorted[j].StaticID })

	buckets := make(map[uint32][]bucketEntry, staticComboHashSize)
	var aliases []Alias
	var kept []Record

	for _, r := range sorted {
		crc := crc32.ChecksumIEEE(r.Packed)
		key := crc % staticComboHashSize

		matchID, matched := findMatch(buckets[key], crc, r.Packed)
		if matched {
			aliases = append(aliases, Alias{StaticID: r.StaticID, AliasOf: matchID})
			continue
		}

		buckets[key] = append(buckets[key], bucketEntry{crc32: crc, data: r.Packed, staticID: r.StaticID})
		kept = append(kept, r)
	}

	sort.Slice(aliases, func(i, j int) bool { return aliases[i].StaticID < aliases[j].StaticID })
	sort.Slice(kept, func(i, j int) bool { return kept[i].StaticID < kept[j].StaticID })

	dict := make([]DictEntry, len(kept)+1)
	for i, r := range kept {
		dict[i] = DictEntry{StaticID: r.StaticID}
	}
	dict[len(kept)] = DictEntry{StaticID: sentinelStaticID}

	header.NumStaticCombos = uint32(len(dict))

	hdrBuf := header.encode()
	if _, err := w.Write(hdrBuf[:]); err != nil {
		return fmt.Errorf("archive: write header: %w", err)
	}

	dictStart, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("archive: seek: %w", err)
	}
	placeholder := make([]byte, len(dict)*8)
	if _, err := w.Write(placeholder); err != nil {
		return fmt.Errorf("archive: write dictionary placeholder: %w", err)
	}

	if err := writeU32(w, uint32(len(aliases))); err != nil {
		return err
	}
	for _, a := range aliases {
		if err := writeU32(w, a.StaticID); err != nil {
			return err
		}
		if err := writeU32(w, a.AliasOf); err != nil {
			return err
		}
	}

	for i, r := range kept {
		offset, err := w.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("archive: seek: %w", err)
		}
		dict[i].FileOffset = uint32(offset)

		if _, err := w.Write(r.Packed); err != nil {
			return fmt.Errorf("archive: write payload for static %d: %w", r.StaticID, err)
		}
		if err := writeU32(w, endOfDynamicCombos); err != nil {
			return err
		}
	}

	finalOffset, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("archive: seek: %w", err)
	}
	dict[len(dict)-1].FileOffset = uint32(finalOffset)

	if _, err := w.Seek(dictStart, io.SeekStart); err != nil {
		return fmt.Errorf("archive: seek back to dictionary: %w", err)
	}
	for _, e := range dict {
		if err := writeU32(w, e.StaticID); err != nil {
			return err
		}
		if err := writeU32(w, e.FileOffset); err != nil {
			return err
		}
	}

	if _, err := w.Seek(finalOffset, io.SeekStart); err != nil {
		return fmt.Errorf("archive: seek to end: %w", err)
	}
	return nil
}

func findMatch(bucket []bucketEntry, crc uint32, data []byte) (uint32, bool) {
	for _, e := range bucket {
		if e.crc32 == crc && len(e.data) == len(data) && string(e.data) == string(data) {
			return e.staticID, true
		}
	}
	return 0, false
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	if err != nil {
		return fmt.Errorf("archive: write: %w", err)
	}
	return nil
}
