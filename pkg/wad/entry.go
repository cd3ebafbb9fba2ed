package wad

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/honux/lol-parser/pkg/diag"
)

var (
	gzipMagic = []byte{0x1F, 0x8B}
	zstdMagic = []byte{0x28, 0xB5}
)

// TruncatedSHA256 returns the first 8 bytes of the SHA-256 of p as a
// little-endian integer, the form stored in v2 and v3 entry tables.
func TruncatedSHA256(p []byte) uint64 {
	sum := sha256.Sum256(p)
	return binary.LittleEndian.Uint64(sum[:8])
}

// RawData returns the bytes stored for e, before any decompression:
// CompressedSize bytes for compressed entries, RawSize bytes otherwise.
func (a *Archive) RawData(e *Entry) ([]byte, error) {
	size := int64(e.StoredSize())
	off := int64(e.Offset)
	if off+size > a.src.Size() {
		return nil, diag.Errorf(diag.KindTruncatedData, "wad", off,
			"entry %s needs %d bytes, archive has %d", e.Key, size, a.src.Size()-off)
	}
	buf := make([]byte, size)
	n, err := a.src.ReadAt(buf, off)
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		return nil, diag.Errorf(diag.KindTruncatedData, "wad", off+int64(n), "entry %s", e.Key)
	}
	return nil, fmt.Errorf("failed to read entry %s: %w", e.Key, err)
}

// Verify checks e's stored bytes against its truncated SHA-256. Entries
// without a checksum (v1 archives) always pass. A mismatch is returned as an
// IntegrityMismatch error regardless of strict mode.
func (a *Archive) Verify(e *Entry) error {
	if !e.HasChecksum {
		return nil
	}
	raw, err := a.RawData(e)
	if err != nil {
		return err
	}
	if d, ok := checkIntegrity(e, raw); !ok {
		return d.Err("wad")
	}
	return nil
}

func checkIntegrity(e *Entry, raw []byte) (diag.Diagnostic, bool) {
	if !e.HasChecksum {
		return diag.Diagnostic{}, true
	}
	got := TruncatedSHA256(raw)
	if got == e.Checksum {
		return diag.Diagnostic{}, true
	}
	return diag.Diagnostic{
		Kind:    diag.KindIntegrityMismatch,
		Offset:  int64(e.Offset),
		Key:     e.Key,
		Message: fmt.Sprintf("expected checksum %016x, computed %016x", e.Checksum, got),
	}, false
}

// Content returns e's decoded payload. Redirect entries have no payload and
// yield nil without error.
//
// Integrity and size mismatches are recorded as diagnostics and the content
// is still returned, unless the archive was opened WithStrict.
func (a *Archive) Content(e *Entry) ([]byte, error) {
	if e.IsRedirect() {
		return nil, nil
	}
	raw, err := a.RawData(e)
	if err != nil {
		return nil, err
	}
	if d, ok := checkIntegrity(e, raw); !ok {
		if err := a.problem(d); err != nil {
			return nil, err
		}
	}

	data := raw
	if e.Compression != CompressionNone {
		if data, err = a.decompress(e, raw); err != nil {
			return nil, err
		}
	}

	if uint64(len(data)) != uint64(e.RawSize) {
		err := a.problem(diag.Diagnostic{
			Kind:    diag.KindSizeMismatch,
			Offset:  int64(e.Offset),
			Key:     e.Key,
			Message: fmt.Sprintf("decoded %d bytes, table says %d", len(data), e.RawSize),
		})
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

// decompress picks the codec from the payload's leading magic.
//
// Output is read at most one byte past RawSize, so an oversized stream still
// surfaces as a size mismatch, and never past the decoder memory limit.
func (a *Archive) decompress(e *Entry, raw []byte) ([]byte, error) {
	var (
		r     io.Reader
		codec string
	)
	switch {
	case bytes.HasPrefix(raw, gzipMagic):
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream of entry %s: %w", e.Key, err)
		}
		defer zr.Close()
		r, codec = zr, "gzip"

	case bytes.HasPrefix(raw, zstdMagic):
		zopts := []zstd.DOption{zstd.WithDecoderConcurrency(1)}
		if a.cfg.maxDecoderMemory > 0 {
			zopts = append(zopts, zstd.WithDecoderMaxMemory(a.cfg.maxDecoderMemory))
		}
		dec, err := zstd.NewReader(bytes.NewReader(raw), zopts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		defer dec.Close()
		r, codec = dec, "zstd"

	default:
		magic := raw[:min(len(raw), 2)]
		return nil, diag.Errorf(diag.KindUnsupportedCompression, "wad", int64(e.Offset),
			"entry %s (%s) starts with % x", e.Key, e.Compression, magic)
	}

	limit := int64(e.RawSize) + 1
	capped := a.cfg.maxDecoderMemory > 0 && a.cfg.maxDecoderMemory < uint64(limit)
	if capped {
		limit = int64(a.cfg.maxDecoderMemory)
	}
	out := bytes.NewBuffer(make([]byte, 0, initialCapacity(e, raw)))
	if _, err := io.Copy(out, io.LimitReader(r, limit)); err != nil {
		return nil, fmt.Errorf("failed to decompress %s entry %s: %w", codec, e.Key, err)
	}
	if capped && int64(out.Len()) == limit {
		return nil, fmt.Errorf("entry %s: decoded size exceeds the %d byte decoder limit", e.Key, limit)
	}
	return out.Bytes(), nil
}

// maxExpansion bounds the starting output buffer relative to the stored size.
const maxExpansion = 16

// initialCapacity sizes the output buffer from RawSize, trusting it only as
// far as the stored bytes make plausible. The buffer still grows as needed.
func initialCapacity(e *Entry, raw []byte) int {
	return int(min(uint64(e.RawSize), uint64(len(raw))*maxExpansion+512))
}
