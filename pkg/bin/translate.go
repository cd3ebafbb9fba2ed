package bin

import (
	"fmt"
	"math"
	"strconv"

	"github.com/honux/lol-parser/pkg/hashes"
)

// Tree renders the document as a generic tree of maps, slices and scalars,
// keeping every hash in its numeric form. See Translate.
func (d *Document) Tree() map[string]any {
	return Translate(d, nil).(map[string]any)
}

// Translate renders v as a generic tree suitable for encoding/json and
// replaces every hash key or HASH value found in dict with its name.
// Unknown hashes are kept: keys as decimal strings, values as numbers.
// A nil dict translates nothing.
//
// v may be a *Document, any Value, or a tree previously produced by Translate
// (map[string]any / []any), in which case decimal keys are resolved again.
//
// Shapes:
//
//	*Document       {typeHash: [ {field: value, ...}, ... ]}
//	*Struct         {typeHash: {field: value, ...}}, or nil when IsNull
//	*Map            {key: value, ...}
//	*List, *Array   [value, ...]
func Translate(v any, dict *hashes.Dictionary) any {
	t := translator{dict: dict}
	return t.any(v)
}

type translator struct {
	dict *hashes.Dictionary
}

func (t translator) key(h uint32) string {
	if name, ok := t.dict.Lookup(h); ok {
		return name
	}
	return strconv.FormatUint(uint64(h), 10)
}

func (t translator) any(v any) any {
	switch v := v.(type) {
	case *Document:
		return t.document(v)
	case Value:
		return t.value(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			if h, err := strconv.ParseUint(k, 10, 32); err == nil {
				k = t.key(uint32(h))
			}
			out[k] = t.any(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = t.any(child)
		}
		return out
	default:
		return v
	}
}

func (t translator) document(d *Document) map[string]any {
	out := make(map[string]any, len(d.Entries))
	for _, typeHash := range d.EntryOrder {
		entries := d.Entries[typeHash]
		list := make([]any, len(entries))
		for i, s := range entries {
			list[i] = t.fields(s)
		}
		out[t.key(typeHash)] = list
	}
	return out
}

func (t translator) fields(s *Struct) map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[t.key(f.Name)] = t.value(f.Value)
	}
	return out
}

func (t translator) value(v Value) any {
	switch v := v.(type) {
	case *Struct:
		if v.IsNull() {
			return nil
		}
		return map[string]any{t.key(v.TypeHash): t.fields(v)}
	case *List:
		return t.items(v.Items)
	case *Array:
		return t.items(v.Items)
	case *Map:
		out := make(map[string]any, len(v.Entries))
		for _, e := range v.Entries {
			out[t.mapKey(e.Key)] = t.value(e.Value)
		}
		return out
	case Hash:
		if name, ok := t.dict.Lookup(uint32(v)); ok {
			return name
		}
		return uint32(v)
	case Bool:
		return bool(v)
	case Int8:
		return int8(v)
	case Uint8:
		return uint8(v)
	case Int16:
		return int16(v)
	case Uint16:
		return uint16(v)
	case Int32:
		return int32(v)
	case Uint32:
		return uint32(v)
	case Int64:
		return int64(v)
	case Uint64:
		return uint64(v)
	case Float:
		return jsonFloat(float32(v))
	case HashLink:
		return uint32(v)
	case Padding:
		return uint8(v)
	case String:
		return string(v)
	case Vec3U16:
		return []any{v[0], v[1], v[2]}
	case Vec2:
		return floats(v[:])
	case Vec3:
		return floats(v[:])
	case Vec4:
		return floats(v[:])
	case Matrix44:
		return floats(v[:])
	case RGBA:
		return []any{v[0], v[1], v[2], v[3]}
	default:
		return fmt.Sprint(v)
	}
}

func (t translator) items(vs []Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = t.value(v)
	}
	return out
}

// mapKey renders a map key. Every integer key that fits in 32 bits is
// looked up in the dictionary, whatever its declared width or sign.
func (t translator) mapKey(k Value) string {
	switch k := k.(type) {
	case Hash:
		return t.key(uint32(k))
	case HashLink:
		return t.key(uint32(k))
	case Uint8:
		return t.key(uint32(k))
	case Uint16:
		return t.key(uint32(k))
	case Uint32:
		return t.key(uint32(k))
	case Uint64:
		return t.unsignedKey(uint64(k))
	case Int8:
		return t.signedKey(int64(k))
	case Int16:
		return t.signedKey(int64(k))
	case Int32:
		return t.signedKey(int64(k))
	case Int64:
		return t.signedKey(int64(k))
	case String:
		return string(k)
	default:
		return fmt.Sprint(t.value(k))
	}
}

func (t translator) unsignedKey(v uint64) string {
	if v <= math.MaxUint32 {
		return t.key(uint32(v))
	}
	return strconv.FormatUint(v, 10)
}

func (t translator) signedKey(v int64) string {
	if v >= 0 {
		return t.unsignedKey(uint64(v))
	}
	return strconv.FormatInt(v, 10)
}

func floats(fs []float32) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = jsonFloat(f)
	}
	return out
}

// jsonFloat returns f, or its name when f has no JSON number form.
func jsonFloat(f float32) any {
	switch {
	case math.IsNaN(float64(f)):
		return "NaN"
	case math.IsInf(float64(f), 1):
		return "+Inf"
	case math.IsInf(float64(f), -1):
		return "-Inf"
	}
	return f
}
