package hashes

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

//go:embed hashes.json
var embeddedHashes []byte

// Dictionary maps precomputed 32-bit name hashes back to readable names.
// A Dictionary is immutable after construction and safe for concurrent reads.
type Dictionary struct {
	names map[uint32]string
}

// NewDictionary builds a dictionary from the given names, hashing each one.
func NewDictionary(names ...string) (*Dictionary, error) {
	d := &Dictionary{names: make(map[uint32]string, len(names))}
	for _, n := range names {
		h, err := NameHash(n)
		if err != nil {
			return nil, err
		}
		d.names[h] = n
	}
	return d, nil
}

// LoadDictionary reads a JSON object whose keys are hashes written in decimal
// or 0x-prefixed hexadecimal and whose values are the resolved names.
func LoadDictionary(r io.Reader) (*Dictionary, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode hash dictionary: %w", err)
	}
	d := &Dictionary{names: make(map[uint32]string, len(raw))}
	for k, v := range raw {
		h, err := strconv.ParseUint(k, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid hash key %q in dictionary: %w", k, err)
		}
		d.names[uint32(h)] = v
	}
	return d, nil
}

// LoadDictionaryFile is LoadDictionary over a file on disk.
func LoadDictionaryFile(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hash dictionary %s: %w", path, err)
	}
	defer f.Close()
	return LoadDictionary(f)
}

// Lookup returns the name for h, if known.
func (d *Dictionary) Lookup(h uint32) (string, bool) {
	if d == nil {
		return "", false
	}
	n, ok := d.names[h]
	return n, ok
}

// Len returns the number of known hashes.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

var defaultDictionary = sync.OnceValue(func() *Dictionary {
	d, err := LoadDictionary(bytes.NewReader(embeddedHashes))
	if err != nil {
		panic(fmt.Sprintf("embedded hash dictionary is invalid: %v", err))
	}
	return d
})

// Default returns the process-wide dictionary built from the embedded table.
// It is loaded on first use and never modified afterwards.
func Default() *Dictionary {
	return defaultDictionary()
}
