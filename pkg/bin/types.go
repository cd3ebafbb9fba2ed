package bin

import "fmt"

// FieldType is the one-byte tag that selects a field's on-disk layout.
type FieldType uint8

const (
	TypeVector3Uint8 FieldType = iota // three u16 values despite the name
	TypeBool
	TypeInt8
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeFloat
	TypeVector2Float
	TypeVector3Float
	TypeVector4Float
	TypeMatrix4x4
	TypeRGBA
	TypeString
	TypeHash
	TypeFieldList
	TypeStruct
	TypeEmbedded
	TypeHashLink
	TypeArray
	TypeMap
	TypePadding

	numFieldTypes
)

var fieldTypeNames = [numFieldTypes]string{
	"VECTOR3_UINT8", "BOOL", "INT8", "UINT8", "INT16", "UINT16", "INT32", "UINT32",
	"INT64", "UINT64", "FLOAT", "VECTOR2_FLOAT", "VECTOR3_FLOAT", "VECTOR4_FLOAT",
	"MATRIX_4X4", "RGBA", "STRING", "HASH", "FIELD_LIST", "STRUCT", "EMBEDDED",
	"HASH_LINK", "ARRAY", "MAP", "PADDING",
}

// Valid reports whether t is one of the known field kinds.
func (t FieldType) Valid() bool { return t < numFieldTypes }

func (t FieldType) String() string {
	if t.Valid() {
		return fieldTypeNames[t]
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// Value is a decoded field. The concrete type is determined by the field tag:
//
//	BOOL        Bool          VECTOR3_UINT8  Vec3U16
//	INT8..64    Int8..Int64   VECTOR2_FLOAT  Vec2
//	UINT8..64   Uint8..Uint64 VECTOR3_FLOAT  Vec3
//	FLOAT       Float         VECTOR4_FLOAT  Vec4
//	STRING      String        MATRIX_4X4     Matrix44
//	HASH        Hash          RGBA           RGBA
//	HASH_LINK   HashLink      PADDING        Padding
//	STRUCT      *Struct       EMBEDDED       *Struct (Kind == StructEmbedded)
//	FIELD_LIST  *List         ARRAY          *Array
//	MAP         *Map
type Value interface {
	Type() FieldType
}

type (
	Bool     bool
	Int8     int8
	Uint8    uint8
	Int16    int16
	Uint16   uint16
	Int32    int32
	Uint32   uint32
	Int64    int64
	Uint64   uint64
	Float    float32
	Hash     uint32
	HashLink uint32
	Padding  uint8
	String   string
	Vec3U16  [3]uint16
	Vec2     [2]float32
	Vec3     [3]float32
	Vec4     [4]float32
	Matrix44 [16]float32
	RGBA     [4]uint8
)

func (Bool) Type() FieldType     { return TypeBool }
func (Int8) Type() FieldType     { return TypeInt8 }
func (Uint8) Type() FieldType    { return TypeUint8 }
func (Int16) Type() FieldType    { return TypeInt16 }
func (Uint16) Type() FieldType   { return TypeUint16 }
func (Int32) Type() FieldType    { return TypeInt32 }
func (Uint32) Type() FieldType   { return TypeUint32 }
func (Int64) Type() FieldType    { return TypeInt64 }
func (Uint64) Type() FieldType   { return TypeUint64 }
func (Float) Type() FieldType    { return TypeFloat }
func (Hash) Type() FieldType     { return TypeHash }
func (HashLink) Type() FieldType { return TypeHashLink }
func (Padding) Type() FieldType  { return TypePadding }
func (String) Type() FieldType   { return TypeString }
func (Vec3U16) Type() FieldType  { return TypeVector3Uint8 }
func (Vec2) Type() FieldType     { return TypeVector2Float }
func (Vec3) Type() FieldType     { return TypeVector3Float }
func (Vec4) Type() FieldType     { return TypeVector4Float }
func (Matrix44) Type() FieldType { return TypeMatrix4x4 }
func (RGBA) Type() FieldType     { return TypeRGBA }

// StructKind distinguishes STRUCT from EMBEDDED; both share one layout.
type StructKind uint8

const (
	StructNormal StructKind = iota
	StructEmbedded
)

// Field is one named member of a Struct.
type Field struct {
	Name  uint32 // name hash
	Value Value
}

// Struct is a typed bag of fields keyed by name hash.
// A TypeHash of 0 marks an empty struct with no size or fields on disk.
type Struct struct {
	Kind     StructKind
	TypeHash uint32
	// Name is the per-entry hash of a top-level entry; zero for nested structs.
	Name     uint32
	DataSize uint32
	Fields   []Field
}

func (s *Struct) Type() FieldType {
	if s.Kind == StructEmbedded {
		return TypeEmbedded
	}
	return TypeStruct
}

// IsNull reports whether s is the zero-type-hash empty struct.
func (s *Struct) IsNull() bool { return s.TypeHash == 0 }

// Get returns the field with the given name hash.
func (s *Struct) Get(name uint32) (Value, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// List is a FIELD_LIST: a homogeneous, u32-counted sequence.
type List struct {
	Elem    FieldType
	Unknown uint32
	Items   []Value
}

func (*List) Type() FieldType { return TypeFieldList }

// Array is a homogeneous sequence with a one-byte count.
type Array struct {
	Elem  FieldType
	Items []Value
}

func (*Array) Type() FieldType { return TypeArray }

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map is a homogeneous key/value table. Entries keep file order; a repeated
// key replaces the earlier value in place.
type Map struct {
	Key     FieldType
	Val     FieldType
	Unknown uint32
	Entries []MapEntry
}

func (*Map) Type() FieldType { return TypeMap }

// Get returns the value stored under key.
func (m *Map) Get(key Value) (Value, bool) {
	for _, e := range m.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}
