package state

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strconv"

	"golang.org/x/xerrors"
)

// Type is the type of a value stored in a cell or passed as an argument.
type Type byte

const (
	// UnitType is the type of the empty value.
	UnitType Type = iota

	// BoolType is the type of a boolean.
	BoolType

	// U64Type is the type of an unsigned 64-bit integer.
	U64Type

	// U256Type is the type of an unsigned 256-bit integer.
	U256Type

	// StringType is the type of a UTF-8 string.
	StringType

	// KeyType is the type of a key of the global state.
	KeyType
)

const u256Size = 32

var typeNames = map[Type]string{
	UnitType:   "Unit",
	BoolType:   "Bool",
	U64Type:    "U64",
	U256Type:   "U256",
	StringType: "String",
	KeyType:    "Key",
}

// ParseType returns the type from its name.
func ParseType(name string) (Type, error) {
	for typ, n := range typeNames {
		if n == name {
			return typ, nil
		}
	}

	return 0, xerrors.Errorf("unknown type '%s'", name)
}

// String implements fmt.Stringer.
func (t Type) String() string {
	name, found := typeNames[t]
	if !found {
		return fmt.Sprintf("Type(%d)", byte(t))
	}

	return name
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	name, found := typeNames[t]
	if !found {
		return nil, xerrors.Errorf("unknown type %d", byte(t))
	}

	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	typ, err := ParseType(string(text))
	if err != nil {
		return err
	}

	*t = typ

	return nil
}

// Value is a typed value. Its binary form is one byte for the type followed by
// the payload:
//   - Unit: empty
//   - Bool: one byte, 0 or 1
//   - U64: 8 bytes little-endian
//   - U256: 32 bytes big-endian
//   - String: the UTF-8 bytes
//   - Key: the binary form of the key
type Value struct {
	typ  Type
	data []byte
}

// Unit returns the empty value.
func Unit() Value {
	return Value{typ: UnitType}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	data := []byte{0}
	if b {
		data[0] = 1
	}

	return Value{typ: BoolType, data: data}
}

// U64 returns an unsigned 64-bit value.
func U64(v uint64) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, v)

	return Value{typ: U64Type, data: data}
}

// U256 returns an unsigned 256-bit value, or an error if the integer is
// negative or does not fit in 256 bits.
func U256(v *big.Int) (Value, error) {
	if v.Sign() < 0 {
		return Value{}, xerrors.Errorf("negative integer %v", v)
	}

	if v.BitLen() > u256Size*8 {
		return Value{}, xerrors.Errorf("integer %v overflows 256 bits", v)
	}

	data := make([]byte, u256Size)
	v.FillBytes(data)

	return Value{typ: U256Type, data: data}, nil
}

// String returns a string value.
func String(s string) Value {
	return Value{typ: StringType, data: []byte(s)}
}

// KeyValue returns a value holding the key.
func KeyValue(k Key) Value {
	data, err := k.MarshalBinary()
	if err != nil {
		// Keys can only be built with a known kind.
		panic(err)
	}

	return Value{typ: KeyType, data: data}
}

// NewValueFromBytes returns the value from its binary form. The payload is
// checked against the type.
func NewValueFromBytes(data []byte) (Value, error) {
	if len(data) == 0 {
		return Value{}, xerrors.New("empty value")
	}

	typ := Type(data[0])
	payload := data[1:]

	switch typ {
	case UnitType:
		if len(payload) != 0 {
			return Value{}, xerrors.Errorf("unit with %d bytes", len(payload))
		}
	case BoolType:
		if len(payload) != 1 || payload[0] > 1 {
			return Value{}, xerrors.Errorf("malformed bool %#x", payload)
		}
	case U64Type:
		if len(payload) != 8 {
			return Value{}, xerrors.Errorf("u64 with %d bytes", len(payload))
		}
	case U256Type:
		if len(payload) != u256Size {
			return Value{}, xerrors.Errorf("u256 with %d bytes", len(payload))
		}
	case StringType:
	case KeyType:
		var key Key
		err := key.UnmarshalBinary(payload)
		if err != nil {
			return Value{}, xerrors.Errorf("malformed key: %v", err)
		}
	default:
		return Value{}, xerrors.Errorf("unknown type %d", byte(typ))
	}

	value := Value{
		typ:  typ,
		data: make([]byte, len(payload)),
	}

	copy(value.data, payload)

	return value, nil
}

// GetType returns the type of the value.
func (v Value) GetType() Type {
	return v.typ
}

// AsBool returns the boolean, or an error if the value is not a boolean.
func (v Value) AsBool() (bool, error) {
	if v.typ != BoolType {
		return false, xerrors.Errorf("expected Bool but got %v", v.typ)
	}

	return v.data[0] == 1, nil
}

// AsU64 returns the unsigned 64-bit integer. A U256 is accepted as long as it
// fits in 64 bits, wider values are an error and are never truncated.
func (v Value) AsU64() (uint64, error) {
	switch v.typ {
	case U64Type:
		return binary.LittleEndian.Uint64(v.data), nil
	case U256Type:
		n := new(big.Int).SetBytes(v.data)
		if !n.IsUint64() {
			return 0, xerrors.Errorf("u256 %v overflows u64", n)
		}

		return n.Uint64(), nil
	default:
		return 0, xerrors.Errorf("expected U64 but got %v", v.typ)
	}
}

// AsU256 returns the unsigned 256-bit integer. A U64 is widened.
func (v Value) AsU256() (*big.Int, error) {
	switch v.typ {
	case U64Type:
		return new(big.Int).SetUint64(binary.LittleEndian.Uint64(v.data)), nil
	case U256Type:
		return new(big.Int).SetBytes(v.data), nil
	default:
		return nil, xerrors.Errorf("expected U256 but got %v", v.typ)
	}
}

// AsString returns the string, or an error if the value is not a string.
func (v Value) AsString() (string, error) {
	if v.typ != StringType {
		return "", xerrors.Errorf("expected String but got %v", v.typ)
	}

	return string(v.data), nil
}

// AsKey returns the key, or an error if the value is not a key.
func (v Value) AsKey() (Key, error) {
	if v.typ != KeyType {
		return Key{}, xerrors.Errorf("expected Key but got %v", v.typ)
	}

	var key Key
	err := key.UnmarshalBinary(v.data)
	if err != nil {
		return Key{}, xerrors.Errorf("malformed key: %v", err)
	}

	return key, nil
}

// Equal returns true when both values have the same type and payload.
func (v Value) Equal(other Value) bool {
	return v.typ == other.typ && string(v.data) == string(other.data)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (v Value) MarshalBinary() ([]byte, error) {
	return append([]byte{byte(v.typ)}, v.data...), nil
}

// Bytes returns the binary form of the value.
func (v Value) Bytes() []byte {
	data, _ := v.MarshalBinary()
	return data
}

// String implements fmt.Stringer. It returns a human readable form of the
// value.
func (v Value) String() string {
	switch v.typ {
	case UnitType:
		return "()"
	case BoolType:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case U64Type:
		n, _ := v.AsU64()
		return strconv.FormatUint(n, 10)
	case U256Type:
		n, _ := v.AsU256()
		return n.String()
	case StringType:
		return strconv.Quote(string(v.data))
	case KeyType:
		key, err := v.AsKey()
		if err != nil {
			return "malformed_key"
		}

		return key.String()
	default:
		return "unknown"
	}
}
