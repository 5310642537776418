// Package key implements the polymorphic primary-key value used across the
// strata runtime. A Key is a closed tagged union over the supported backend
// key types; it can be constructed before the backend type of the target
// field is known and coerced to the concrete kind at execution time.
package key

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Kind is the concrete type tag of a Key.
type Kind uint8

// Key kinds.
const (
	KindInvalid Kind = iota
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindString
	KindBool
	KindUUID
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindInt8:    "int8",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindUint8:   "uint8",
	KindUint16:  "uint16",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindString:  "string",
	KindBool:    "bool",
	KindUUID:    "uuid",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("invalid=%d", k)
}

// Signed reports whether the kind is a signed integer.
func (k Kind) Signed() bool { return k >= KindInt8 && k <= KindInt64 }

// Unsigned reports whether the kind is an unsigned integer.
func (k Kind) Unsigned() bool { return k >= KindUint8 && k <= KindUint64 }

// Float reports whether the kind is a floating point number.
func (k Kind) Float() bool { return k == KindFloat32 || k == KindFloat64 }

// Key is a polymorphic primary-key value. The zero Key is invalid.
type Key struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	s    string
	b    bool
	id   uuid.UUID
}

// Constructors, one per supported kind.

// Int8 returns an int8 key.
func Int8(v int8) Key { return Key{kind: KindInt8, i: int64(v)} }

// Int16 returns an int16 key.
func Int16(v int16) Key { return Key{kind: KindInt16, i: int64(v)} }

// Int32 returns an int32 key.
func Int32(v int32) Key { return Key{kind: KindInt32, i: int64(v)} }

// Int64 returns an int64 key.
func Int64(v int64) Key { return Key{kind: KindInt64, i: v} }

// Uint8 returns a uint8 key.
func Uint8(v uint8) Key { return Key{kind: KindUint8, u: uint64(v)} }

// Uint16 returns a uint16 key.
func Uint16(v uint16) Key { return Key{kind: KindUint16, u: uint64(v)} }

// Uint32 returns a uint32 key.
func Uint32(v uint32) Key { return Key{kind: KindUint32, u: uint64(v)} }

// Uint64 returns a uint64 key.
func Uint64(v uint64) Key { return Key{kind: KindUint64, u: v} }

// Float32 returns a float32 key.
func Float32(v float32) Key { return Key{kind: KindFloat32, f: float64(v)} }

// Float64 returns a float64 key.
func Float64(v float64) Key { return Key{kind: KindFloat64, f: v} }

// String returns a string key.
func String(v string) Key { return Key{kind: KindString, s: v} }

// Bool returns a bool key.
func Bool(v bool) Key { return Key{kind: KindBool, b: v} }

// UUID returns a UUID key.
func UUID(v uuid.UUID) Key { return Key{kind: KindUUID, id: v} }

// Kind returns the type tag of the key.
func (k Key) Kind() Kind { return k.kind }

// Valid reports whether the key holds a value.
func (k Key) Valid() bool { return k.kind != KindInvalid }

// Equal reports structural equality: same kind and same payload.
func (k Key) Equal(o Key) bool {
	if k.kind != o.kind {
		return false
	}
	switch {
	case k.kind.Signed():
		return k.i == o.i
	case k.kind.Unsigned():
		return k.u == o.u
	case k.kind.Float():
		return k.f == o.f
	case k.kind == KindString:
		return k.s == o.s
	case k.kind == KindBool:
		return k.b == o.b
	case k.kind == KindUUID:
		return k.id == o.id
	}
	return k.kind == KindInvalid
}

// Hash returns a stable 64-bit hash of the key. Equal keys hash equal.
func (k Key) Hash() uint64 {
	d := xxhash.New()
	var buf [9]byte
	buf[0] = byte(k.kind)
	switch {
	case k.kind.Signed():
		binary.BigEndian.PutUint64(buf[1:], uint64(k.i))
		d.Write(buf[:])
	case k.kind.Unsigned():
		binary.BigEndian.PutUint64(buf[1:], k.u)
		d.Write(buf[:])
	case k.kind.Float():
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(k.f))
		d.Write(buf[:])
	case k.kind == KindBool:
		buf[1] = 0
		if k.b {
			buf[1] = 1
		}
		d.Write(buf[:2])
	case k.kind == KindUUID:
		d.Write(buf[:1])
		d.Write(k.id[:])
	default:
		d.Write(buf[:1])
		d.WriteString(k.s)
	}
	return d.Sum64()
}

// String returns the display form of the key value.
func (k Key) String() string {
	switch {
	case k.kind.Signed():
		return strconv.FormatInt(k.i, 10)
	case k.kind.Unsigned():
		return strconv.FormatUint(k.u, 10)
	case k.kind == KindFloat32:
		return strconv.FormatFloat(k.f, 'g', -1, 32)
	case k.kind == KindFloat64:
		return strconv.FormatFloat(k.f, 'g', -1, 64)
	case k.kind == KindString:
		return k.s
	case k.kind == KindBool:
		return strconv.FormatBool(k.b)
	case k.kind == KindUUID:
		return k.id.String()
	}
	return "<invalid>"
}

// Value returns the backend-native value of the key. Unsigned values above
// the int64 range travel as decimal strings, since database drivers accept
// only int64 integers.
func (k Key) Value() (driver.Value, error) {
	switch {
	case k.kind.Signed():
		return k.i, nil
	case k.kind.Unsigned():
		if k.u > math.MaxInt64 {
			return strconv.FormatUint(k.u, 10), nil
		}
		return int64(k.u), nil
	case k.kind.Float():
		return k.f, nil
	case k.kind == KindString:
		return k.s, nil
	case k.kind == KindBool:
		return k.b, nil
	case k.kind == KindUUID:
		return k.id.String(), nil
	}
	return nil, fmt.Errorf("key: invalid key has no backend value")
}

// FromBackend reconstructs a key of the given kind from a backend value.
// It is the inverse of Value for the same kind.
func FromBackend(kind Kind, v any) (Key, error) {
	switch {
	case kind.Signed():
		i, err := asInt64(v)
		if err != nil {
			return Key{}, fmt.Errorf("key: %s: %w", kind, err)
		}
		return signedKey(kind, i)
	case kind.Unsigned():
		u, err := asUint64(v)
		if err != nil {
			return Key{}, fmt.Errorf("key: %s: %w", kind, err)
		}
		return unsignedKey(kind, u)
	case kind.Float():
		f, err := asFloat64(v)
		if err != nil {
			return Key{}, fmt.Errorf("key: %s: %w", kind, err)
		}
		if kind == KindFloat32 {
			return Float32(float32(f)), nil
		}
		return Float64(f), nil
	case kind == KindString:
		s, err := asString(v)
		if err != nil {
			return Key{}, fmt.Errorf("key: string: %w", err)
		}
		return String(s), nil
	case kind == KindBool:
		switch b := v.(type) {
		case bool:
			return Bool(b), nil
		case int64:
			return Bool(b != 0), nil
		}
		return Key{}, fmt.Errorf("key: bool: unsupported backend value %T", v)
	case kind == KindUUID:
		s, err := asString(v)
		if err != nil {
			return Key{}, fmt.Errorf("key: uuid: %w", err)
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return Key{}, fmt.Errorf("key: uuid: %w", err)
		}
		return UUID(id), nil
	}
	return Key{}, fmt.Errorf("key: cannot reconstruct kind %s", kind)
}

// Parse converts a string to a key by trying each kind in a fixed order:
// signed integer widths narrowest first, unsigned 64-bit for values past the
// int64 range, float widths, bool, UUID, and finally the raw string. An
// integer width is accepted only when the value fits it exactly, so wide
// values are never narrowed.
func Parse(s string) Key {
	for _, w := range [...]struct {
		kind Kind
		bits int
	}{
		{KindInt8, 8}, {KindInt16, 16}, {KindInt32, 32}, {KindInt64, 64},
	} {
		if i, err := strconv.ParseInt(s, 10, w.bits); err == nil {
			k, _ := signedKey(w.kind, i)
			return k
		}
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Uint64(u)
	}
	if f, err := strconv.ParseFloat(s, 32); err == nil {
		return Float32(float32(f))
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float64(f)
	}
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return Bool(strings.EqualFold(s, "true"))
	}
	if id, err := uuid.Parse(s); err == nil {
		return UUID(id)
	}
	return String(s)
}

// Coerce converts the key to the given kind. Numeric conversions are
// accepted only when the value is representable exactly; string keys are
// re-parsed toward the target kind.
func (k Key) Coerce(kind Kind) (Key, error) {
	if k.kind == kind {
		return k, nil
	}
	switch {
	case kind.Signed():
		switch {
		case k.kind.Signed():
			return signedKey(kind, k.i)
		case k.kind.Unsigned():
			if k.u > math.MaxInt64 {
				return Key{}, coerceErr(k, kind)
			}
			return signedKey(kind, int64(k.u))
		case k.kind == KindString:
			i, err := strconv.ParseInt(k.s, 10, 64)
			if err != nil {
				return Key{}, coerceErr(k, kind)
			}
			return signedKey(kind, i)
		}
	case kind.Unsigned():
		switch {
		case k.kind.Unsigned():
			return unsignedKey(kind, k.u)
		case k.kind.Signed():
			if k.i < 0 {
				return Key{}, coerceErr(k, kind)
			}
			return unsignedKey(kind, uint64(k.i))
		case k.kind == KindString:
			u, err := strconv.ParseUint(k.s, 10, 64)
			if err != nil {
				return Key{}, coerceErr(k, kind)
			}
			return unsignedKey(kind, u)
		}
	case kind.Float():
		switch {
		case k.kind.Float(), k.kind.Signed(), k.kind.Unsigned():
			f := k.f
			if k.kind.Signed() {
				f = float64(k.i)
			} else if k.kind.Unsigned() {
				f = float64(k.u)
			}
			if kind == KindFloat32 {
				return Float32(float32(f)), nil
			}
			return Float64(f), nil
		case k.kind == KindString:
			f, err := strconv.ParseFloat(k.s, 64)
			if err != nil {
				return Key{}, coerceErr(k, kind)
			}
			if kind == KindFloat32 {
				return Float32(float32(f)), nil
			}
			return Float64(f), nil
		}
	case kind == KindString:
		if k.kind == KindInvalid {
			return Key{}, coerceErr(k, kind)
		}
		return String(k.String()), nil
	case kind == KindBool:
		if k.kind == KindString {
			b, err := strconv.ParseBool(k.s)
			if err != nil {
				return Key{}, coerceErr(k, kind)
			}
			return Bool(b), nil
		}
	case kind == KindUUID:
		if k.kind == KindString {
			id, err := uuid.Parse(k.s)
			if err != nil {
				return Key{}, coerceErr(k, kind)
			}
			return UUID(id), nil
		}
	}
	return Key{}, coerceErr(k, kind)
}

// TypeRegistry resolves the declared key kind of an entity field.
// The compiled entity graph implements it.
type TypeRegistry interface {
	KeyKind(entity, field string) (Kind, bool)
}

// CoerceFor converts the key to the declared kind of the given entity
// field. Fields unknown to the registry leave the key unchanged, so generic
// callers keep working against external entities.
func CoerceFor(reg TypeRegistry, entity, field string, k Key) (Key, error) {
	kind, ok := reg.KeyKind(entity, field)
	if !ok {
		return k, nil
	}
	return k.Coerce(kind)
}

func coerceErr(k Key, kind Kind) error {
	return fmt.Errorf("key: cannot coerce %s value %q to %s", k.kind, k.String(), kind)
}

func signedKey(kind Kind, i int64) (Key, error) {
	var lo, hi int64
	switch kind {
	case KindInt8:
		lo, hi = math.MinInt8, math.MaxInt8
	case KindInt16:
		lo, hi = math.MinInt16, math.MaxInt16
	case KindInt32:
		lo, hi = math.MinInt32, math.MaxInt32
	case KindInt64:
		return Int64(i), nil
	default:
		return Key{}, fmt.Errorf("key: %s is not a signed kind", kind)
	}
	if i < lo || i > hi {
		return Key{}, fmt.Errorf("key: value %d out of range for %s", i, kind)
	}
	return Key{kind: kind, i: i}, nil
}

func unsignedKey(kind Kind, u uint64) (Key, error) {
	var hi uint64
	switch kind {
	case KindUint8:
		hi = math.MaxUint8
	case KindUint16:
		hi = math.MaxUint16
	case KindUint32:
		hi = math.MaxUint32
	case KindUint64:
		return Uint64(u), nil
	default:
		return Key{}, fmt.Errorf("key: %s is not an unsigned kind", kind)
	}
	if u > hi {
		return Key{}, fmt.Errorf("key: value %d out of range for %s", u, kind)
	}
	return Key{kind: kind, u: u}, nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	}
	return 0, fmt.Errorf("unsupported backend value %T", v)
}

func asUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("negative backend value %d", n)
		}
		return uint64(n), nil
	case []byte:
		return strconv.ParseUint(string(n), 10, 64)
	case string:
		return strconv.ParseUint(n, 10, 64)
	}
	return 0, fmt.Errorf("unsupported backend value %T", v)
}

func asFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("unsupported backend value %T", v)
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", fmt.Errorf("unsupported backend value %T", v)
}
