// Package wadbin decodes BIN documents stored inside WAD archives.
package wadbin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/honux/lol-parser/pkg/bin"
	"github.com/honux/lol-parser/pkg/hashes"
	"github.com/honux/lol-parser/pkg/wad"
)

// ErrRedirect is returned when the requested entry only aliases another one.
var ErrRedirect = errors.New("entry is a redirect")

// Resolve finds the entry named by ref, which is either a 16-digit path hash
// key or an original asset path.
func Resolve(a *wad.Archive, ref string) (*wad.Entry, error) {
	if a == nil {
		return nil, errors.New("archive is nil")
	}
	if ref == "" {
		return nil, errors.New("entry reference cannot be empty")
	}
	if looksLikeKey(ref) {
		if e, err := a.Entry(ref); err == nil {
			return e, nil
		}
	}
	return a.Find(ref)
}

func looksLikeKey(ref string) bool {
	s := strings.TrimPrefix(strings.ToLower(ref), "0x")
	if len(s) != hashes.PathHashLen {
		return false
	}
	_, err := hashes.ParsePathHash(s)
	return err == nil
}

// Open reads the entry named by ref from a and decodes it as a BIN document.
func Open(a *wad.Archive, ref string, opts ...bin.Option) (*bin.Document, error) {
	e, err := Resolve(a, ref)
	if err != nil {
		return nil, err
	}
	if e.IsRedirect() {
		return nil, fmt.Errorf("%w: %s", ErrRedirect, e.Key)
	}

	data, err := a.Content(e)
	if err != nil {
		return nil, fmt.Errorf("failed to read BIN entry %s: %w", e.Key, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("BIN entry %s has no content", e.Key)
	}

	doc, err := bin.DecodeBytes(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to decode BIN entry %s: %w", e.Key, err)
	}
	return doc, nil
}
