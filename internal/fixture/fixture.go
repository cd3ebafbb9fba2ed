// Package fixture builds small BIN documents and WAD archives for tests.
package fixture

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/honux/lol-parser/pkg/hashes"
)

// LE encodes values little-endian; []byte and string are appended verbatim.
func LE(vs ...any) []byte {
	var b bytes.Buffer
	for _, v := range vs {
		switch v := v.(type) {
		case []byte:
			b.Write(v)
		case string:
			b.WriteString(v)
		default:
			if err := binary.Write(&b, binary.LittleEndian, v); err != nil {
				panic(err)
			}
		}
	}
	return b.Bytes()
}

// Str encodes a u16 length-prefixed string.
func Str(s string) []byte { return LE(uint16(len(s)), s) }

// Field encodes one (name, tag, value) triple.
func Field[T ~uint8](name uint32, tag T, value ...any) []byte {
	return LE(name, uint8(tag), LE(value...))
}

// StructBody encodes a STRUCT or EMBEDDED value: type hash, size, field block.
func StructBody(typeHash uint32, fields ...[]byte) []byte {
	body := append(LE(uint16(len(fields))), bytes.Join(fields, nil)...)
	return LE(typeHash, uint32(len(body)), body)
}

// EntryBody encodes a top-level entry: size, entry hash, field block.
func EntryBody(name uint32, fields ...[]byte) []byte {
	body := append(LE(name, uint16(len(fields))), bytes.Join(fields, nil)...)
	return LE(uint32(len(body)), body)
}

// Document encodes a full BIN stream. files is written only for version 2.
func Document(version uint32, files []string, types []uint32, entries ...[]byte) []byte {
	b := LE("PROP", version)
	if version == 2 {
		b = append(b, LE(uint32(len(files)))...)
		for _, f := range files {
			b = append(b, Str(f)...)
		}
	}
	b = append(b, LE(uint32(len(types)))...)
	for _, t := range types {
		b = append(b, LE(t)...)
	}
	return append(b, bytes.Join(entries, nil)...)
}

// Bin encodes a version 1 document with a single entry.
func Bin(entryType, entryName uint32, fields ...[]byte) []byte {
	return Document(1, nil, []uint32{entryType}, EntryBody(entryName, fields...))
}

// GzipBytes compresses p as a gzip stream.
func GzipBytes(p []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(p); err != nil {
		panic(err)
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// ZstdBytes compresses p as a single zstd frame.
func ZstdBytes(p []byte) []byte {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(err)
	}
	defer enc.Close()
	return enc.EncodeAll(p, nil)
}

// Entry is one payload of an archive built by Wad or Archive.
type Entry struct {
	Path     string
	Data     []byte
	Gzip     bool
	Zstd     bool
	Redirect bool

	Code    uint8  // compression code in the table; derived from the flags when zero
	Stored  []byte // payload bytes as written; derived from Data when nil
	RawSize int    // raw size in the table; len(Data) when zero
	Corrupt bool   // write a wrong checksum
	Flags   [3]uint8
}

func (e Entry) payload() ([]byte, uint8) {
	p, code := e.Data, uint8(0)
	switch {
	case e.Redirect:
		p, code = []byte(e.Path), 2
	case e.Gzip:
		p, code = GzipBytes(e.Data), 1
	case e.Zstd:
		p, code = ZstdBytes(e.Data), 3
	}
	if e.Stored != nil {
		p = e.Stored
	}
	if e.Code != 0 {
		code = e.Code
	}
	return p, code
}

// Header holds the archive-level fields written by Archive.
type Header struct {
	Major, Minor uint8
	// Signature is length-prefixed and zero padded to 83 bytes in v2, and
	// zero padded to 256 bytes in v3.
	Signature []byte
	Checksum  uint64
}

// Wad encodes a version 3.4 archive with valid checksums.
func Wad(entries ...Entry) []byte {
	return Archive(Header{Major: 3, Minor: 4}, entries...)
}

// Archive lays out a header, the entry table and the payloads in order.
// Majors other than 1, 2 and 3 get a v1-shaped header.
func Archive(h Header, entries ...Entry) []byte {
	head := LE([]byte{'R', 'W', h.Major, h.Minor})
	rowSize := 32
	switch h.Major {
	case 2:
		sig := h.Signature
		if len(sig) < 83 {
			sig = append(bytes.Clone(sig), make([]byte, 83-len(sig))...)
		}
		head = append(head, LE(uint8(len(h.Signature)), sig)...)
		head = append(head, LE(h.Checksum, uint16(len(head)+16), uint16(rowSize), uint32(len(entries)))...)
	case 3:
		sig := append(bytes.Clone(h.Signature), make([]byte, max(0, 256-len(h.Signature)))...)
		head = append(head, LE(sig, h.Checksum, uint32(len(entries)))...)
	default:
		rowSize = 24
		head = append(head, LE(uint16(12), uint16(rowSize), uint32(len(entries)))...)
	}

	offset := len(head) + rowSize*len(entries)
	var table, data bytes.Buffer
	for _, e := range entries {
		p, code := e.payload()
		rawSize := e.RawSize
		if rawSize == 0 {
			rawSize = len(e.Data)
		}
		row := LE(hashes.PathHash64(e.Path), uint32(offset), uint32(len(p)), uint32(rawSize))
		if rowSize == 24 {
			row = append(row, LE(uint32(code))...)
		} else {
			sum := sha256.Sum256(p)
			if e.Corrupt {
				sum[0] ^= 0xFF
			}
			row = append(row, LE(code, e.Flags, sum[:8])...)
		}
		table.Write(row)
		data.Write(p)
		offset += len(p)
	}
	return append(append(head, table.Bytes()...), data.Bytes()...)
}
