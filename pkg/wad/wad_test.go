package wad

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honux/lol-parser/internal/fixture"
	"github.com/honux/lol-parser/pkg/diag"
	"github.com/honux/lol-parser/pkg/hashes"
)

var (
	testSignature = []byte{0xDE, 0xAD, 0xBE, 0xEF}

	v1 = fixture.Header{Major: 1, Minor: 1}
	v2 = fixture.Header{Major: 2, Minor: 1, Signature: testSignature, Checksum: 0x1122334455667788}
	v3 = fixture.Header{Major: 3, Minor: 1, Signature: bytes.Repeat([]byte{0x5A}, v3SignatureSize), Checksum: 0x8877665544332211}
)

func openBytes(t *testing.T, b []byte, opts ...Option) *Archive {
	t.Helper()
	a, err := OpenSource(bytes.NewReader(b), opts...)
	require.NoError(t, err)
	return a
}

func writeArchive(t *testing.T, b []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wad")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

var (
	plainText  = []byte("plain text entry, stored as is")
	packedText = bytes.Repeat([]byte("compressible payload "), 64)
)

func TestOpen_V1(t *testing.T) {
	path := writeArchive(t, fixture.Archive(v1,
		fixture.Entry{Path: "data/plain.txt", Data: plainText},
		fixture.Entry{Path: "data/packed.bin", Data: packedText, Gzip: true},
	))
	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, uint8(1), a.Version)
	assert.Equal(t, uint8(1), a.VersionMinor)
	assert.Equal(t, uint16(12), a.HeaderOffset)
	assert.Equal(t, uint16(entryV1Size), a.CellSize)
	assert.Equal(t, 2, a.Len())

	e, err := a.Find("data/packed.bin")
	require.NoError(t, err)
	assert.Equal(t, hashes.PathHash("data/packed.bin"), e.Key)
	assert.False(t, e.HasChecksum)
	assert.Equal(t, CompressionGzip, e.Compression)

	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, packedText, content)
	assert.Len(t, content, int(e.RawSize))

	raw, err := a.RawData(e)
	require.NoError(t, err)
	assert.Len(t, raw, int(e.CompressedSize))
	assert.Equal(t, gzipMagic, raw[:2])

	require.NoError(t, a.Verify(e))
	assert.Empty(t, a.Diagnostics())
}

func TestOpen_V2(t *testing.T) {
	a := openBytes(t, fixture.Archive(v2,
		fixture.Entry{Path: "assets/a.dds", Data: plainText, Flags: [3]uint8{1, 2, 3}},
		fixture.Entry{Path: "assets/b.bin", Data: packedText, Zstd: true},
	))

	assert.Equal(t, uint8(2), a.Version)
	assert.Equal(t, testSignature, a.Signature)
	assert.Equal(t, uint64(0x1122334455667788), a.Checksum)
	assert.Equal(t, uint16(104), a.HeaderOffset)
	assert.Equal(t, uint16(entryV2Size), a.CellSize)

	e, err := a.Find("ASSETS/A.DDS")
	require.NoError(t, err)
	assert.True(t, e.HasChecksum)
	assert.Equal(t, uint8(1), e.Duplicate)
	assert.Equal(t, uint8(2), e.Unknown1)
	assert.Equal(t, uint8(3), e.Unknown2)
	require.NoError(t, a.Verify(e))

	e, err = a.Find("assets/b.bin")
	require.NoError(t, err)
	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, packedText, content)
	assert.Empty(t, a.Diagnostics())
}

func TestOpen_V2LongSignature(t *testing.T) {
	sig := bytes.Repeat([]byte{7}, 90)
	a := openBytes(t, fixture.Archive(fixture.Header{Major: 2, Signature: sig, Checksum: 9},
		fixture.Entry{Path: "after/sig", Data: plainText}))
	assert.Equal(t, sig, a.Signature)
	assert.Equal(t, uint64(9), a.Checksum)
	require.Equal(t, 1, a.Len())

	e, err := a.Find("after/sig")
	require.NoError(t, err)
	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, plainText, content)
}

func TestOpen_V3(t *testing.T) {
	a := openBytes(t, fixture.Archive(v3,
		fixture.Entry{Path: "x/one.bin", Data: plainText, Zstd: true},
		fixture.Entry{Path: "x/two.bin", Data: packedText, Gzip: true},
	))

	assert.Equal(t, uint8(3), a.Version)
	assert.Len(t, a.Signature, v3SignatureSize)
	assert.Equal(t, uint64(0x8877665544332211), a.Checksum)

	for _, f := range []struct {
		path string
		want []byte
	}{{"x/one.bin", plainText}, {"x/two.bin", packedText}} {
		e, err := a.Find(f.path)
		require.NoError(t, err)
		got, err := a.Content(e)
		require.NoError(t, err)
		assert.Equal(t, f.want, got)
	}
}

func TestOpen_UnsupportedVersion(t *testing.T) {
	for _, major := range []uint8{0, 4, 9} {
		_, err := OpenSource(bytes.NewReader(fixture.Archive(fixture.Header{Major: major})))
		require.Error(t, err)
		assert.ErrorIs(t, err, diag.ErrUnsupportedVersion, "major %d", major)
	}
}

func TestOpen_Truncated(t *testing.T) {
	full := fixture.Archive(v2, fixture.Entry{Path: "a", Data: plainText})
	for _, n := range []int{0, 3, 50, 100, 110} {
		_, err := OpenSource(bytes.NewReader(full[:n]))
		assert.ErrorIs(t, err, diag.ErrTruncatedData, "cut at %d", n)
	}

	// A table that claims more rows than the file can hold.
	b := fixture.LE([]byte{'R', 'W', 3, 0}, make([]byte, v3SignatureSize), uint64(0), uint32(1<<30))
	_, err := OpenSource(bytes.NewReader(b))
	assert.ErrorIs(t, err, diag.ErrTruncatedData)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.wad"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRawData_PayloadPastEnd(t *testing.T) {
	full := fixture.Archive(v1, fixture.Entry{Path: "a", Data: plainText})
	a := openBytes(t, full[:len(full)-5])
	e, err := a.Find("a")
	require.NoError(t, err)

	_, err = a.RawData(e)
	assert.ErrorIs(t, err, diag.ErrTruncatedData)
	_, err = a.Content(e)
	assert.ErrorIs(t, err, diag.ErrTruncatedData)
}

func TestContent_Redirect(t *testing.T) {
	a := openBytes(t, fixture.Archive(v3,
		fixture.Entry{Path: "alias", Redirect: true, Stored: []byte("redirect/target.bin")}))
	e, err := a.Find("alias")
	require.NoError(t, err)
	assert.True(t, e.IsRedirect())

	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Nil(t, content)

	raw, err := a.RawData(e)
	require.NoError(t, err)
	assert.Equal(t, []byte("redirect/target.bin"), raw)
}

func TestContent_IntegrityAdvisory(t *testing.T) {
	a := openBytes(t, fixture.Archive(v2, fixture.Entry{Path: "bad", Data: packedText, Gzip: true, Corrupt: true}))
	e, err := a.Find("bad")
	require.NoError(t, err)

	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, packedText, content)

	ds := a.Diagnostics()
	require.Len(t, ds, 1)
	assert.Equal(t, diag.KindIntegrityMismatch, ds[0].Kind)
	assert.Equal(t, e.Key, ds[0].Key)

	assert.ErrorIs(t, a.Verify(e), diag.ErrIntegrityMismatch)
}

func TestContent_IntegrityStrict(t *testing.T) {
	a := openBytes(t, fixture.Archive(v2, fixture.Entry{Path: "bad", Data: plainText, Corrupt: true}), WithStrict(true))
	e, err := a.Find("bad")
	require.NoError(t, err)

	_, err = a.Content(e)
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.ErrIntegrityMismatch)

	var de *diag.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, int64(e.Offset), de.Offset)
	assert.Empty(t, a.Diagnostics())
}

func TestContent_UnsupportedCompression(t *testing.T) {
	a := openBytes(t, fixture.Archive(v3,
		fixture.Entry{Path: "odd", Data: plainText, Code: 4, Stored: []byte("LZ4?")},
		fixture.Entry{Path: "fine", Data: plainText},
	))

	e, err := a.Find("odd")
	require.NoError(t, err)
	_, err = a.Content(e)
	assert.ErrorIs(t, err, diag.ErrUnsupportedCompression)

	e, err = a.Find("fine")
	require.NoError(t, err)
	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, plainText, content)
}

func TestContent_CodecChosenByMagic(t *testing.T) {
	// Flagged gzip, but the payload is zstd.
	a := openBytes(t, fixture.Archive(v3,
		fixture.Entry{Path: "p", Data: packedText, Gzip: true, Stored: fixture.ZstdBytes(packedText)}))
	e, err := a.Find("p")
	require.NoError(t, err)
	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, packedText, content)
}

func TestContent_SizeMismatch(t *testing.T) {
	b := fixture.Archive(v1, fixture.Entry{Path: "s", Data: packedText, Gzip: true, RawSize: len(packedText) + 1})

	a := openBytes(t, b)
	e, err := a.Find("s")
	require.NoError(t, err)
	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, packedText, content)
	require.Len(t, a.Diagnostics(), 1)
	assert.Equal(t, diag.KindSizeMismatch, a.Diagnostics()[0].Kind)

	strict := openBytes(t, b, WithStrict(true))
	_, err = strict.Content(e)
	assert.ErrorIs(t, err, diag.ErrSizeMismatch)
}

func TestContent_ForgedRawSizeDoesNotPreallocate(t *testing.T) {
	for _, entry := range []fixture.Entry{
		{Path: "gz", Data: []byte("tiny"), Gzip: true, RawSize: 0x7FFFFFFF},
		{Path: "zs", Data: []byte("tiny"), Zstd: true, RawSize: 0x7FFFFFFF},
	} {
		a := openBytes(t, fixture.Archive(v3, entry))
		e, err := a.Find(entry.Path)
		require.NoError(t, err)

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		content, err := a.Content(e)
		runtime.ReadMemStats(&after)

		require.NoError(t, err, entry.Path)
		assert.Equal(t, []byte("tiny"), content)
		assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20), entry.Path)
		require.Len(t, a.Diagnostics(), 1)
		assert.Equal(t, diag.KindSizeMismatch, a.Diagnostics()[0].Kind)
	}
}

func TestContent_OutputBoundedByRawSize(t *testing.T) {
	for _, entry := range []fixture.Entry{
		{Path: "gz", Data: packedText, Gzip: true, RawSize: 10},
		{Path: "zs", Data: packedText, Zstd: true, RawSize: 10},
	} {
		a := openBytes(t, fixture.Archive(v3, entry))
		e, err := a.Find(entry.Path)
		require.NoError(t, err)

		content, err := a.Content(e)
		require.NoError(t, err)
		assert.Len(t, content, 11, entry.Path)
		require.Len(t, a.Diagnostics(), 1)
		assert.Equal(t, diag.KindSizeMismatch, a.Diagnostics()[0].Kind)
	}
}

func TestContent_DecoderMemoryLimit(t *testing.T) {
	b := fixture.Archive(v3, fixture.Entry{Path: "big", Data: packedText, Gzip: true})
	a := openBytes(t, b, WithMaxDecoderMemory(100))
	e, err := a.Find("big")
	require.NoError(t, err)
	_, err = a.Content(e)
	assert.ErrorContains(t, err, "decoder limit")

	a = openBytes(t, b, WithMaxDecoderMemory(1<<20))
	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, packedText, content)
}

func TestOpen_DuplicatePathHash(t *testing.T) {
	a := openBytes(t, fixture.Archive(v3,
		fixture.Entry{Path: "same", Data: []byte("first")},
		fixture.Entry{Path: "SAME", Data: []byte("second")},
	))
	assert.Equal(t, 1, a.Len())

	e, err := a.Find("same")
	require.NoError(t, err)
	content, err := a.Content(e)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), content)

	ds := a.Diagnostics()
	require.Len(t, ds, 1)
	assert.Equal(t, diag.KindDuplicateKey, ds[0].Kind)
	assert.Equal(t, hashes.PathHash("same"), ds[0].Key)
}

func TestEntryLookup(t *testing.T) {
	a := openBytes(t, fixture.Archive(v1, fixture.Entry{Path: "data/plain.txt", Data: plainText}))
	key := hashes.PathHash("data/plain.txt")

	e, err := a.Entry(key)
	require.NoError(t, err)
	assert.Equal(t, key, e.Key)

	e2, err := a.Entry("0X" + string(bytes.ToUpper([]byte(key))))
	require.NoError(t, err)
	assert.Equal(t, e, e2)

	_, err = a.Entry("0")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = a.Find("data/missing.txt")
	assert.ErrorIs(t, err, ErrEntryNotFound)
	_, err = a.Entry("not a key")
	assert.Error(t, err)
}

func TestEntries_AreCopies(t *testing.T) {
	a := openBytes(t, fixture.Archive(v3, fixture.Entry{Path: "keep", Data: plainText}))

	e, err := a.Find("keep")
	require.NoError(t, err)
	e.Offset, e.RawSize, e.Compression = 0, 1, CompressionZstd

	listed := a.Entries()
	require.Len(t, listed, 1)
	listed[0].Key = "changed"

	fresh, err := a.Find("keep")
	require.NoError(t, err)
	assert.Equal(t, hashes.PathHash("keep"), fresh.Key)
	assert.Equal(t, CompressionNone, fresh.Compression)
	content, err := a.Content(fresh)
	require.NoError(t, err)
	assert.Equal(t, plainText, content)
}

func TestEntries_SortedByOffset(t *testing.T) {
	a := openBytes(t, fixture.Archive(v3,
		fixture.Entry{Path: "c", Data: []byte("ccc")},
		fixture.Entry{Path: "a", Data: []byte("a")},
		fixture.Entry{Path: "b", Data: []byte("bb")},
	))
	var keys []string
	for _, e := range a.Entries() {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{hashes.PathHash("c"), hashes.PathHash("a"), hashes.PathHash("b")}, keys)
}

func TestCompressionString(t *testing.T) {
	assert.Equal(t, "gzip", CompressionGzip.String())
	assert.Equal(t, "redirect", CompressionRedirect.String())
	assert.Equal(t, "compression(7)", Compression(7).String())
}
