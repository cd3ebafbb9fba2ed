package wad

import "fmt"

// headerPrefix starts every WAD file: two reserved bytes ("RW" in practice)
// and the format version.
type headerPrefix struct {
	Reserved     [2]byte
	VersionMajor uint8
	VersionMinor uint8
}

// headerV1 follows the prefix in version 1 archives.
type headerV1 struct {
	HeaderOffset uint16 // offset of the entry table
	CellSize     uint16 // size of one entry record
	Count        uint32
}

// v2SignatureArea is the minimum span of the length-prefixed v2 signature;
// shorter signatures are zero padded up to it.
const v2SignatureArea = 83

// headerV2 follows the v2 signature area.
type headerV2 struct {
	Checksum     uint64
	HeaderOffset uint16
	CellSize     uint16
	Count        uint32
}

// v3SignatureSize is the fixed signature block of version 3 archives.
const v3SignatureSize = 256

// headerV3 follows the v3 signature block.
type headerV3 struct {
	Checksum uint64
	Count    uint32
}

// entryV1 is one 24-byte table row of a version 1 archive.
type entryV1 struct {
	PathHash       uint64
	Offset         uint32
	CompressedSize uint32
	RawSize        uint32
	Compression    uint32
}

const entryV1Size = 24

// entryV2 is one 32-byte table row shared by versions 2 and 3.
type entryV2 struct {
	PathHash       uint64
	Offset         uint32
	CompressedSize uint32
	RawSize        uint32
	Compression    uint8
	Duplicate      uint8
	Unknown1       uint8
	Unknown2       uint8
	SHA256         uint64 // first 8 bytes of the SHA-256 of the stored bytes
}

const entryV2Size = 32

// Compression is an entry's storage code.
type Compression uint32

const (
	CompressionNone     Compression = 0
	CompressionGzip     Compression = 1
	CompressionRedirect Compression = 2 // alias with no payload of its own
	CompressionZstd     Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionRedirect:
		return "redirect"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint32(c))
	}
}

// Entry is one row of the archive's table of contents.
type Entry struct {
	// Key is the canonical 16-digit lowercase hex rendering of PathHash.
	Key            string
	PathHash       uint64
	Offset         uint32
	CompressedSize uint32
	RawSize        uint32
	Compression    Compression

	// Opaque v2/v3 flags, passed through verbatim.
	Duplicate uint8
	Unknown1  uint8
	Unknown2  uint8

	// Checksum is the stored truncated SHA-256; HasChecksum is false for v1.
	Checksum    uint64
	HasChecksum bool
}

// IsRedirect reports whether e aliases another entry and carries no payload.
func (e *Entry) IsRedirect() bool { return e.Compression == CompressionRedirect }

// StoredSize is the number of bytes e occupies in the archive.
func (e *Entry) StoredSize() uint32 {
	if e.Compression != CompressionNone {
		return e.CompressedSize
	}
	return e.RawSize
}
