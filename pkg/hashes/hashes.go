// Package hashes implements the two name hashes used by the game data formats:
// a 32-bit FNV-1a over lowercased ASCII for BIN field and type names, and a
// 64-bit xxHash over the lowercased asset path for WAD entry keys.
package hashes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/honux/lol-parser/pkg/diag"
)

const (
	fnvOffset32 uint32 = 0x811C9DC5
	fnvPrime32  uint32 = 0x01000193

	// PathHashLen is the length of a rendered path hash key.
	PathHashLen = 16
)

// NameHash returns the case-insensitive FNV-1a hash of s.
// Only ASCII input is accepted; anything else fails with diag.ErrEncoding.
func NameHash(s string) (uint32, error) {
	hash := fnvOffset32
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 {
			return 0, diag.Errorf(diag.KindEncoding, "name hash", int64(i), "non-ASCII byte 0x%02x in %q", c, s)
		}
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		hash = (hash ^ uint32(c)) * fnvPrime32
	}
	return hash, nil
}

// MustNameHash is like NameHash but panics on non-ASCII input.
// It is meant for compile-time constant names.
func MustNameHash(s string) uint32 {
	h, err := NameHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// PathHash returns the canonical entry key for an asset path: the xxHash64
// (seed 0) of the lowercased path, as 16 lowercase zero-padded hex digits.
func PathHash(path string) string {
	return FormatPathHash(PathHash64(path))
}

// PathHash64 returns the numeric form of PathHash.
func PathHash64(path string) uint64 {
	lower := cases.Lower(language.Und).String(path)
	return xxhash.Sum64String(lower)
}

// FormatPathHash renders h as a canonical entry key.
func FormatPathHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// ParsePathHash parses a rendered key back to its numeric form.
// Upper-case digits and an optional 0x prefix are accepted.
func ParsePathHash(key string) (uint64, error) {
	s := strings.TrimPrefix(strings.ToLower(key), "0x")
	if s == "" || len(s) > PathHashLen {
		return 0, fmt.Errorf("invalid path hash %q", key)
	}
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid path hash %q: %w", key, err)
	}
	return h, nil
}

// NormalizeKey returns the canonical form of a hash key given in any case or
// with fewer than 16 digits.
func NormalizeKey(key string) (string, error) {
	h, err := ParsePathHash(key)
	if err != nil {
		return "", err
	}
	return FormatPathHash(h), nil
}
