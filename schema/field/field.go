// Package field provides fluent builders for defining entity fields.
//
// Field names follow database conventions (snake_case). A field carries a
// primitive type name that the compiler resolves through a fixed name table:
//
//	field.String("email")
//	field.Int64("view_count")
//	field.UUID("id").PrimaryKey()
//	field.Named("deleted_at", "Option<DateTime>")
//
// Unrecognized type names resolve to TypeOther and are only usable together
// with a user-supplied ValueConverter.
package field

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Type is the resolved primitive type of a field.
type Type uint8

// Resolved field types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeString
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeTime
	TypeUUID
	TypeJSON
	TypeOther
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeString:  "string",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeUint8:   "uint8",
	TypeUint16:  "uint16",
	TypeUint32:  "uint32",
	TypeUint64:  "uint64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeTime:    "time.Time",
	TypeUUID:    "uuid.UUID",
	TypeJSON:    "json",
	TypeOther:   "other",
}

// String returns the Go-facing name of the type.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("invalid=%d", t)
}

// Numeric reports whether the type is an integer or a float.
func (t Type) Numeric() bool {
	return t >= TypeInt8 && t <= TypeFloat64
}

// Integer reports whether the type is a signed or unsigned integer.
func (t Type) Integer() bool {
	return t >= TypeInt8 && t <= TypeUint64
}

// Float reports whether the type is a floating point number.
func (t Type) Float() bool {
	return t == TypeFloat32 || t == TypeFloat64
}

// Valid reports whether the type is a known, usable type.
func (t Type) Valid() bool {
	return t > TypeInvalid && t <= TypeOther
}

// primitives maps declared type names to resolved types. Both the schema
// surface spellings (Int, BigInt, DateTime, ...) and the Go spellings
// (int32, int64, ...) are accepted.
var primitives = map[string]Type{
	"Boolean": TypeBool,
	"bool":    TypeBool,

	"String": TypeString,
	"string": TypeString,

	"Int":    TypeInt32,
	"BigInt": TypeInt64,
	"int8":   TypeInt8,
	"int16":  TypeInt16,
	"int32":  TypeInt32,
	"int64":  TypeInt64,
	"int":    TypeInt64,

	"uint8":  TypeUint8,
	"uint16": TypeUint16,
	"uint32": TypeUint32,
	"uint64": TypeUint64,

	"Float":   TypeFloat64,
	"float32": TypeFloat32,
	"float64": TypeFloat64,

	"DateTime":  TypeTime,
	"Date":      TypeTime,
	"Timestamp": TypeTime,

	"UUID": TypeUUID,
	"Uuid": TypeUUID,
	"uuid": TypeUUID,

	"Json": TypeJSON,
	"JSON": TypeJSON,
}

// Resolve maps a declared type name to its resolved type. An Option<T>
// wrapper unwraps to T and marks the field nullable. Names outside the
// primitive table resolve to TypeOther.
func Resolve(name string) (typ Type, nullable bool) {
	name = strings.TrimSpace(name)
	if inner, ok := strings.CutPrefix(name, "Option<"); ok && strings.HasSuffix(inner, ">") {
		nullable = true
		name = strings.TrimSuffix(inner, ">")
	}
	if t, ok := primitives[name]; ok {
		return t, nullable
	}
	return TypeOther, nullable
}

// ValueConverter converts between an opaque field value and its
// backend-native representation. Required for TypeOther fields.
type ValueConverter interface {
	// ToBackend converts a field value to a driver value.
	ToBackend(v any) (driver.Value, error)
	// FromBackend converts a driver value back to the field value.
	FromBackend(v any) (any, error)
}

// Descriptor is the raw declarative description of one field.
// It is the input to the compiler, not the resolved form.
type Descriptor struct {
	Name       string         // field name (snake_case).
	TypeName   string         // declared type name.
	Type       Type           // resolved type.
	Nullable   bool           // accepts NULL; Option<T> or Optional().
	PrimaryKey bool           // field is the entity primary key.
	Unique     bool           // field carries a unique constraint.
	StorageKey string         // column name override.
	Converter  ValueConverter // converter for TypeOther fields.
	Err        error          // builder error, checked by the compiler.
}

// Column returns the backing column name of the field.
func (d *Descriptor) Column() string {
	if d.StorageKey != "" {
		return d.StorageKey
	}
	return d.Name
}

// Builder is the fluent descriptor builder returned by the constructors.
type Builder struct {
	desc *Descriptor
}

// Named creates a field from a raw declared type name. Use it for types
// that have no dedicated constructor, including Option<T> wrappers.
func Named(name, typeName string) *Builder {
	typ, nullable := Resolve(typeName)
	return &Builder{desc: &Descriptor{
		Name:     name,
		TypeName: typeName,
		Type:     typ,
		Nullable: nullable,
	}}
}

// String creates a string field.
func String(name string) *Builder { return Named(name, "String") }

// Bool creates a boolean field.
func Bool(name string) *Builder { return Named(name, "Boolean") }

// Int8 creates an int8 field.
func Int8(name string) *Builder { return Named(name, "int8") }

// Int16 creates an int16 field.
func Int16(name string) *Builder { return Named(name, "int16") }

// Int32 creates an int32 field.
func Int32(name string) *Builder { return Named(name, "int32") }

// Int creates an int32 field (the schema surface Int).
func Int(name string) *Builder { return Named(name, "Int") }

// Int64 creates an int64 field.
func Int64(name string) *Builder { return Named(name, "int64") }

// Uint8 creates a uint8 field.
func Uint8(name string) *Builder { return Named(name, "uint8") }

// Uint16 creates a uint16 field.
func Uint16(name string) *Builder { return Named(name, "uint16") }

// Uint32 creates a uint32 field.
func Uint32(name string) *Builder { return Named(name, "uint32") }

// Uint64 creates a uint64 field.
func Uint64(name string) *Builder { return Named(name, "uint64") }

// Float32 creates a float32 field.
func Float32(name string) *Builder { return Named(name, "float32") }

// Float64 creates a float64 field.
func Float64(name string) *Builder { return Named(name, "Float") }

// Time creates a timestamp field.
func Time(name string) *Builder { return Named(name, "DateTime") }

// UUID creates a UUID field.
func UUID(name string) *Builder { return Named(name, "UUID") }

// JSON creates a JSON document field.
func JSON(name string) *Builder { return Named(name, "Json") }

// Other creates an opaque field handled by the given converter.
func Other(name string, conv ValueConverter) *Builder {
	b := Named(name, "other")
	b.desc.Converter = conv
	if conv == nil {
		b.desc.Err = fmt.Errorf("field %q: type %q requires a ValueConverter", name, "other")
	}
	return b
}

// PrimaryKey marks the field as the entity primary key.
func (b *Builder) PrimaryKey() *Builder {
	b.desc.PrimaryKey = true
	return b
}

// Unique adds a unique constraint to the field.
func (b *Builder) Unique() *Builder {
	b.desc.Unique = true
	return b
}

// Optional marks the field as nullable.
func (b *Builder) Optional() *Builder {
	b.desc.Nullable = true
	return b
}

// StorageKey overrides the backing column name.
func (b *Builder) StorageKey(column string) *Builder {
	b.desc.StorageKey = column
	return b
}

// Converter sets the value converter for opaque fields.
func (b *Builder) Converter(conv ValueConverter) *Builder {
	b.desc.Converter = conv
	return b
}

// Descriptor returns the built field descriptor.
func (b *Builder) Descriptor() *Descriptor {
	if b.desc.Err == nil && b.desc.Type == TypeOther && b.desc.Converter == nil {
		b.desc.Err = fmt.Errorf("field %q: unrecognized type %q requires a ValueConverter", b.desc.Name, b.desc.TypeName)
	}
	return b.desc
}
