package hashes

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honux/lol-parser/pkg/diag"
)

func TestNameHash_KnownValues(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0x811C9DC5},
		{"a", 3826002220},
		{"name", 2369371622},
		{"SkinCharacterDataProperties", 2607278582},
		{"mSpellCalculations", 2488738436},
	}
	for _, tc := range tests {
		got, err := NameHash(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, "NameHash(%q)", tc.in)
	}
}

func TestNameHash_CaseInsensitive(t *testing.T) {
	inputs := []string{"mCharacterName", "SPELLNAMES", "x", "Mixed_Case-123/Path.bin", "~!@#$%^&*()"}
	for _, s := range inputs {
		base, err := NameHash(s)
		require.NoError(t, err)
		upper, err := NameHash(strings.ToUpper(s))
		require.NoError(t, err)
		lower, err := NameHash(strings.ToLower(s))
		require.NoError(t, err)
		assert.Equal(t, base, upper, s)
		assert.Equal(t, base, lower, s)
	}
}

func TestNameHash_RejectsNonASCII(t *testing.T) {
	_, err := NameHash("café")
	require.Error(t, err)
	assert.ErrorIs(t, err, diag.ErrEncoding)
	assert.Equal(t, diag.KindEncoding, diag.KindOf(err))
}

func TestMustNameHash_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNameHash("ÿ") })
	assert.Equal(t, uint32(2369371622), MustNameHash("Name"))
}

func TestPathHash(t *testing.T) {
	assert.Equal(t, "ef46db3751d8e999", PathHash(""))
	assert.Equal(t, "44bc2cf5ad770999", PathHash("abc"))
	assert.Equal(t, "611d601b17222a88", PathHash("data/characters/aatrox/aatrox.bin"))
	assert.Equal(t, PathHash("data/characters/aatrox/aatrox.bin"), PathHash("DATA/Characters/Aatrox/Aatrox.bin"))
}

func TestPathHash_Format(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{16}$`)
	for _, s := range []string{"x", "", "assets/a.dds", "UPPER.TEX", strings.Repeat("z", 300)} {
		h := PathHash(s)
		assert.Len(t, h, PathHashLen)
		assert.Regexp(t, re, h)
	}
}

func TestFormatPathHash_ZeroPads(t *testing.T) {
	assert.Equal(t, "0000000000000000", FormatPathHash(0))
	assert.Equal(t, "00000000000000ff", FormatPathHash(0xff))
	assert.Equal(t, "ffffffffffffffff", FormatPathHash(^uint64(0)))
}

func TestParsePathHash(t *testing.T) {
	h, err := ParsePathHash("00000000000000FF")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xff), h)

	h, err = ParsePathHash("0xABC")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xabc), h)

	key, err := NormalizeKey("ABC")
	require.NoError(t, err)
	assert.Equal(t, "0000000000000abc", key)

	_, err = ParsePathHash("")
	assert.Error(t, err)
	_, err = ParsePathHash("not-hex")
	assert.Error(t, err)
	_, err = ParsePathHash("11112222333344445")
	assert.Error(t, err)
}
