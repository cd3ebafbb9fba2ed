// Package wad reads WAD asset archives.
//
// An archive is a small versioned header, a table of entries keyed by the
// 64-bit hash of each asset path, and the entry payloads. The table is
// decoded once by Open; payloads are then read on demand with positioned
// reads, so RawData, Content and Verify may be called from many goroutines.
package wad

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/honux/lol-parser/pkg/diag"
	"github.com/honux/lol-parser/pkg/hashes"
)

// ErrEntryNotFound is returned when a key or path is not in the archive.
var ErrEntryNotFound = errors.New("entry not found")

// Source is random-access storage holding an archive. *bytes.Reader
// satisfies it directly; Open wraps an *os.File.
type Source interface {
	io.ReaderAt
	Size() int64
}

type fileSource struct {
	*os.File
	size int64
}

func (f fileSource) Size() int64 { return f.size }

// Archive is a decoded WAD table of contents over its byte source.
type Archive struct {
	Version      uint8
	VersionMinor uint8
	Signature    []byte // ECDSA signature (v2) or signature block (v3)
	Checksum     uint64 // v2 and v3 only
	HeaderOffset uint16 // v1 and v2 only
	CellSize     uint16 // v1 and v2 only

	entries map[string]*Entry
	src     Source
	closer  io.Closer
	cfg     *config
	report  *diag.Report
}

// Open opens and decodes the archive at path. The file stays open until
// Close.
func Open(path string, opts ...Option) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAD file %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat WAD file %s: %w", path, err)
	}
	a, err := OpenSource(fileSource{File: f, size: st.Size()}, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read WAD file %s: %w", path, err)
	}
	a.closer = f
	return a, nil
}

// OpenSource decodes the archive held in src. The caller keeps ownership of
// src; Close on the returned archive does not close it.
func OpenSource(src Source, opts ...Option) (*Archive, error) {
	cfg := newConfig(opts)
	a := &Archive{
		entries: make(map[string]*Entry),
		src:     src,
		cfg:     cfg,
		report:  diag.NewReport(cfg.logger),
	}
	if err := a.readTable(io.NewSectionReader(src, 0, src.Size())); err != nil {
		return nil, err
	}
	cfg.logger.Debug("opened WAD archive",
		slog.Int("version", int(a.Version)),
		slog.Int("minor", int(a.VersionMinor)),
		slog.Int("entries", len(a.entries)))
	return a, nil
}

// Close releases the underlying file when the archive was created by Open.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// readRecord decodes one fixed-size little-endian record at r's position.
func readRecord(r *io.SectionReader, v any) error {
	at, _ := r.Seek(0, io.SeekCurrent)
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return diag.Errorf(diag.KindTruncatedData, "wad", at, "need %d bytes", binary.Size(v))
		}
		return fmt.Errorf("failed to read WAD header at offset %d: %w", at, err)
	}
	return nil
}

func (a *Archive) readTable(r *io.SectionReader) error {
	var prefix headerPrefix
	if err := readRecord(r, &prefix); err != nil {
		return err
	}
	a.Version, a.VersionMinor = prefix.VersionMajor, prefix.VersionMinor

	var count uint32
	switch a.Version {
	case 1:
		var h headerV1
		if err := readRecord(r, &h); err != nil {
			return err
		}
		a.HeaderOffset, a.CellSize, count = h.HeaderOffset, h.CellSize, h.Count
	case 2:
		var sigLen uint8
		if err := readRecord(r, &sigLen); err != nil {
			return err
		}
		a.Signature = make([]byte, sigLen)
		if err := readRecord(r, a.Signature); err != nil {
			return err
		}
		if pad := v2SignatureArea - int64(sigLen); pad > 0 {
			if _, err := r.Seek(pad, io.SeekCurrent); err != nil {
				return err
			}
		}
		var h headerV2
		if err := readRecord(r, &h); err != nil {
			return err
		}
		a.Checksum, a.HeaderOffset, a.CellSize, count = h.Checksum, h.HeaderOffset, h.CellSize, h.Count
	case 3:
		a.Signature = make([]byte, v3SignatureSize)
		if err := readRecord(r, a.Signature); err != nil {
			return err
		}
		var h headerV3
		if err := readRecord(r, &h); err != nil {
			return err
		}
		a.Checksum, count = h.Checksum, h.Count
	default:
		return diag.Errorf(diag.KindUnsupportedVersion, "wad", 2, "version %d.%d", a.Version, a.VersionMinor)
	}

	at, _ := r.Seek(0, io.SeekCurrent)
	recordSize := int64(entryV2Size)
	if a.Version == 1 {
		recordSize = entryV1Size
	}
	if need := int64(count) * recordSize; need > r.Size()-at {
		return diag.Errorf(diag.KindTruncatedData, "wad", at, "table of %d entries needs %d bytes, have %d", count, need, r.Size()-at)
	}

	if a.Version == 1 {
		rows := make([]entryV1, count)
		if err := readRecord(r, rows); err != nil {
			return err
		}
		for i, row := range rows {
			a.add(&Entry{
				PathHash:       row.PathHash,
				Offset:         row.Offset,
				CompressedSize: row.CompressedSize,
				RawSize:        row.RawSize,
				Compression:    Compression(row.Compression),
			}, at+int64(i)*recordSize)
		}
		return nil
	}

	rows := make([]entryV2, count)
	if err := readRecord(r, rows); err != nil {
		return err
	}
	for i, row := range rows {
		a.add(&Entry{
			PathHash:       row.PathHash,
			Offset:         row.Offset,
			CompressedSize: row.CompressedSize,
			RawSize:        row.RawSize,
			Compression:    Compression(row.Compression),
			Duplicate:      row.Duplicate,
			Unknown1:       row.Unknown1,
			Unknown2:       row.Unknown2,
			Checksum:       row.SHA256,
			HasChecksum:    true,
		}, at+int64(i)*recordSize)
	}
	return nil
}

// add indexes e by its key; a repeated key replaces the earlier row.
func (a *Archive) add(e *Entry, at int64) {
	e.Key = hashes.FormatPathHash(e.PathHash)
	if _, dup := a.entries[e.Key]; dup {
		a.report.Add(diag.Diagnostic{
			Kind:    diag.KindDuplicateKey,
			Offset:  at,
			Key:     e.Key,
			Message: "path hash appears more than once in the entry table",
		})
	}
	a.entries[e.Key] = e
}

// Len returns the number of distinct entries.
func (a *Archive) Len() int { return len(a.entries) }

// Entry returns the entry for a hash key given in any case, with or without
// leading zeros. The result is a copy; the archive's table never changes
// after Open.
func (a *Archive) Entry(key string) (*Entry, error) {
	norm, err := hashes.NormalizeKey(key)
	if err != nil {
		return nil, err
	}
	e, ok := a.entries[norm]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, norm)
	}
	c := *e
	return &c, nil
}

// Find returns a copy of the entry for an original asset path.
func (a *Archive) Find(path string) (*Entry, error) {
	key := hashes.PathHash(path)
	e, ok := a.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrEntryNotFound, path, key)
	}
	c := *e
	return &c, nil
}

// Entries returns copies of every entry ordered by data offset, then key.
func (a *Archive) Entries() []*Entry {
	out := a.sorted()
	for i, e := range out {
		c := *e
		out[i] = &c
	}
	return out
}

func (a *Archive) sorted() []*Entry {
	out := make([]*Entry, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(x, y *Entry) int {
		return cmp.Or(cmp.Compare(x.Offset, y.Offset), strings.Compare(x.Key, y.Key))
	})
	return out
}

// Diagnostics returns the non-fatal problems found so far, both while reading
// the table and while reading payloads.
func (a *Archive) Diagnostics() []diag.Diagnostic {
	return a.report.Items()
}

// problem records d, or returns it as an error in strict mode.
func (a *Archive) problem(d diag.Diagnostic) error {
	if a.cfg.strict {
		return d.Err("wad")
	}
	a.report.Add(d)
	return nil
}
