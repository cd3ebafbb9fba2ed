// Package bin decodes BIN property-bag documents.
//
// A document is a "PROP" magic, a version, an optional list of associated
// files, a table of entry-type hashes and one entry body per table slot.
// Every entry is a struct of hash-keyed fields; field values are selected by
// a one-byte tag and may nest arbitrarily deep.
package bin

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/honux/lol-parser/pkg/diag"
)

// Magic is the leading signature of every BIN document.
var Magic = [4]byte{'P', 'R', 'O', 'P'}

// Document is the result of decoding one BIN stream.
type Document struct {
	Version         uint32
	AssociatedFiles []string
	// Entries maps an entry-type hash to every entry of that type, in file order.
	Entries map[uint32][]*Struct
	// EntryOrder lists entry-type hashes in first-seen order.
	EntryOrder  []uint32
	Diagnostics []diag.Diagnostic
}

// Option configures decoding.
type Option func(*config)

type config struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report non-fatal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open decodes the BIN file at path.
func Open(path string, opts ...Option) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open BIN file: %w", err)
	}
	defer f.Close()

	doc, err := Decode(bufio.NewReader(f), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return doc, nil
}

// DecodeBytes decodes a BIN document held in memory.
func DecodeBytes(data []byte, opts ...Option) (*Document, error) {
	return Decode(bytes.NewReader(data), opts...)
}

// Decode reads one BIN document from r. Fatal problems are returned as
// *diag.Error; duplicate keys are recorded on Document.Diagnostics.
func Decode(r io.Reader, opts ...Option) (*Document, error) {
	cfg := newConfig(opts)
	d := &decoder{c: newCursor(r), report: diag.NewReport(cfg.logger)}
	doc, err := d.document()
	if err != nil {
		return nil, err
	}
	doc.Diagnostics = d.report.Items()
	cfg.logger.Debug("decoded BIN document",
		slog.Int("version", int(doc.Version)),
		slog.Int("entry_types", len(doc.EntryOrder)),
		slog.Int("diagnostics", len(doc.Diagnostics)))
	return doc, nil
}

type decoder struct {
	c      *cursor
	report *diag.Report
}

func (d *decoder) document() (*Document, error) {
	var magic [4]byte
	if err := d.c.fill(magic[:]); err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, diag.Errorf(diag.KindBadMagic, "bin", 0, "got %q", magic[:])
	}

	version, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	if version != 1 && version != 2 {
		return nil, diag.Errorf(diag.KindUnsupportedVersion, "bin", 4, "version %d", version)
	}
	doc := &Document{Version: version, Entries: make(map[uint32][]*Struct)}

	if version == 2 {
		count, err := d.c.u32()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < count; i++ {
			s, err := d.readString()
			if err != nil {
				return nil, fmt.Errorf("associated file %d: %w", i, err)
			}
			doc.AssociatedFiles = append(doc.AssociatedFiles, string(s))
		}
	}

	count, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	types := make([]uint32, 0, min(count, 4096))
	for i := uint32(0); i < count; i++ {
		h, err := d.c.u32()
		if err != nil {
			return nil, err
		}
		types = append(types, h)
	}

	for i, typeHash := range types {
		s, err := d.entry(typeHash)
		if err != nil {
			return nil, fmt.Errorf("entry %d (type %d): %w", i, typeHash, err)
		}
		if _, seen := doc.Entries[typeHash]; !seen {
			doc.EntryOrder = append(doc.EntryOrder, typeHash)
		}
		doc.Entries[typeHash] = append(doc.Entries[typeHash], s)
	}
	return doc, nil
}

// entry decodes an entry body: length, entry hash, then a struct field block.
func (d *decoder) entry(typeHash uint32) (*Struct, error) {
	length, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	name, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	s := &Struct{Kind: StructNormal, TypeHash: typeHash, Name: name, DataSize: length}
	if err := d.fields(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *decoder) structValue(kind StructKind) (*Struct, error) {
	typeHash, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	s := &Struct{Kind: kind, TypeHash: typeHash}
	if typeHash == 0 {
		return s, nil
	}
	if s.DataSize, err = d.c.u32(); err != nil {
		return nil, err
	}
	if err := d.fields(s); err != nil {
		return nil, err
	}
	return s, nil
}

// fields reads a u16 count followed by (name, tag, value) triples into s.
func (d *decoder) fields(s *Struct) error {
	count, err := d.c.u16()
	if err != nil {
		return err
	}
	s.Fields = make([]Field, 0, count)
	index := make(map[uint32]int, count)
	for i := uint16(0); i < count; i++ {
		at := d.c.off
		name, err := d.c.u32()
		if err != nil {
			return err
		}
		v, err := d.tagged()
		if err != nil {
			return fmt.Errorf("field %d: %w", name, err)
		}
		if j, dup := index[name]; dup {
			s.Fields[j].Value = v
			d.report.Add(diag.Diagnostic{
				Kind:    diag.KindDuplicateKey,
				Offset:  at,
				Key:     strconv.FormatUint(uint64(name), 10),
				Message: fmt.Sprintf("struct %d repeats field %d", s.TypeHash, name),
			})
			continue
		}
		index[name] = len(s.Fields)
		s.Fields = append(s.Fields, Field{Name: name, Value: v})
	}
	return nil
}

// tagged reads a tag byte and the value it selects.
func (d *decoder) tagged() (Value, error) {
	at := d.c.off
	tag, err := d.c.u8()
	if err != nil {
		return nil, err
	}
	return d.value(FieldType(tag), at)
}

// elemType reads a container's element tag. It is validated lazily by value,
// so an empty container with an unknown element tag still decodes.
func (d *decoder) elemType() (FieldType, int64, error) {
	at := d.c.off
	tag, err := d.c.u8()
	return FieldType(tag), at, err
}

// value decodes one value of type t; tagAt is where t was read, for errors.
func (d *decoder) value(t FieldType, tagAt int64) (Value, error) {
	c := d.c
	switch t {
	case TypeVector3Uint8:
		var v Vec3U16
		for i := range v {
			x, err := c.u16()
			if err != nil {
				return nil, err
			}
			v[i] = x
		}
		return v, nil
	case TypeBool:
		x, err := c.u8()
		return Bool(x != 0), err
	case TypeInt8:
		x, err := c.u8()
		return Int8(int8(x)), err
	case TypeUint8:
		x, err := c.u8()
		return Uint8(x), err
	case TypeInt16:
		x, err := c.u16()
		return Int16(int16(x)), err
	case TypeUint16:
		x, err := c.u16()
		return Uint16(x), err
	case TypeInt32:
		x, err := c.u32()
		return Int32(int32(x)), err
	case TypeUint32:
		x, err := c.u32()
		return Uint32(x), err
	case TypeInt64:
		x, err := c.u64()
		return Int64(int64(x)), err
	case TypeUint64:
		x, err := c.u64()
		return Uint64(x), err
	case TypeFloat:
		x, err := c.f32()
		return Float(x), err
	case TypeVector2Float:
		var v Vec2
		err := c.floats(v[:])
		return v, err
	case TypeVector3Float:
		var v Vec3
		err := c.floats(v[:])
		return v, err
	case TypeVector4Float:
		var v Vec4
		err := c.floats(v[:])
		return v, err
	case TypeMatrix4x4:
		var v Matrix44
		err := c.floats(v[:])
		return v, err
	case TypeRGBA:
		var v RGBA
		err := c.fill(v[:])
		return v, err
	case TypeString:
		return d.readString()
	case TypeHash:
		x, err := c.u32()
		return Hash(x), err
	case TypeHashLink:
		x, err := c.u32()
		return HashLink(x), err
	case TypePadding:
		x, err := c.u8()
		return Padding(x), err
	case TypeStruct:
		return d.structValue(StructNormal)
	case TypeEmbedded:
		return d.structValue(StructEmbedded)
	case TypeFieldList:
		return d.list()
	case TypeArray:
		return d.array()
	case TypeMap:
		return d.mapValue()
	default:
		return nil, diag.Errorf(diag.KindUnknownFieldType, "bin", tagAt, "tag %d", uint8(t))
	}
}

func (d *decoder) readString() (String, error) {
	n, err := d.c.u16()
	if err != nil {
		return "", err
	}
	at := d.c.off
	p, err := d.c.bytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", diag.Errorf(diag.KindEncoding, "bin", at, "string of %d bytes is not valid UTF-8", n)
	}
	return String(p), nil
}

func (d *decoder) list() (*List, error) {
	elem, elemAt, err := d.elemType()
	if err != nil {
		return nil, err
	}
	unknown, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	count, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	l := &List{Elem: elem, Unknown: unknown, Items: make([]Value, 0, min(count, 1024))}
	for i := uint32(0); i < count; i++ {
		v, err := d.value(elem, elemAt)
		if err != nil {
			return nil, fmt.Errorf("list item %d: %w", i, err)
		}
		l.Items = append(l.Items, v)
	}
	return l, nil
}

func (d *decoder) array() (*Array, error) {
	elem, elemAt, err := d.elemType()
	if err != nil {
		return nil, err
	}
	count, err := d.c.u8()
	if err != nil {
		return nil, err
	}
	a := &Array{Elem: elem, Items: make([]Value, 0, count)}
	for i := uint8(0); i < count; i++ {
		v, err := d.value(elem, elemAt)
		if err != nil {
			return nil, fmt.Errorf("array item %d: %w", i, err)
		}
		a.Items = append(a.Items, v)
	}
	return a, nil
}

func (d *decoder) mapValue() (*Map, error) {
	key, keyAt, err := d.elemType()
	if err != nil {
		return nil, err
	}
	val, valAt, err := d.elemType()
	if err != nil {
		return nil, err
	}
	unknown, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	count, err := d.c.u32()
	if err != nil {
		return nil, err
	}
	m := &Map{Key: key, Val: val, Unknown: unknown, Entries: make([]MapEntry, 0, min(count, 1024))}
	index := make(map[Value]int)
	for i := uint32(0); i < count; i++ {
		at := d.c.off
		k, err := d.value(key, keyAt)
		if err != nil {
			return nil, fmt.Errorf("map key %d: %w", i, err)
		}
		v, err := d.value(val, valAt)
		if err != nil {
			return nil, fmt.Errorf("map value %d: %w", i, err)
		}
		if j, dup := index[k]; dup {
			m.Entries[j].Value = v
			d.report.Add(diag.Diagnostic{
				Kind:    diag.KindDuplicateKey,
				Offset:  at,
				Key:     fmt.Sprint(k),
				Message: fmt.Sprintf("map repeats key %v", k),
			})
			continue
		}
		index[k] = len(m.Entries)
		m.Entries = append(m.Entries, MapEntry{Key: k, Value: v})
	}
	return m, nil
}
