package state

import (
	"strings"

	"golang.org/x/xerrors"
)

// KeyKind is the kind of object a key is referring to.
type KeyKind byte

const (
	// AccountKind is the kind of a key to an account.
	AccountKind KeyKind = iota + 1

	// HashKind is the kind of a key to a stored contract.
	HashKind

	// PackageKind is the kind of a key to a contract package.
	PackageKind

	// URefKind is the kind of a key to a storage cell.
	URefKind
)

var kindPrefixes = map[KeyKind]string{
	AccountKind: "account",
	HashKind:    "hash",
	PackageKind: "package",
	URefKind:    "uref",
}

// String implements fmt.Stringer. It returns the text prefix of the kind.
func (k KeyKind) String() string {
	prefix, found := kindPrefixes[k]
	if !found {
		return "unknown"
	}

	return prefix
}

// Key is a reference to an object of the global state. It is what named keys
// are bound to.
type Key struct {
	kind KeyKind
	addr Address
}

// NewAccountKey returns a key to the account.
func NewAccountKey(addr Address) Key {
	return Key{kind: AccountKind, addr: addr}
}

// NewHashKey returns a key to the stored contract.
func NewHashKey(addr Address) Key {
	return Key{kind: HashKind, addr: addr}
}

// NewPackageKey returns a key to the contract package.
func NewPackageKey(addr Address) Key {
	return Key{kind: PackageKind, addr: addr}
}

// NewURef returns a key to the storage cell.
func NewURef(addr Address) Key {
	return Key{kind: URefKind, addr: addr}
}

// ParseKey returns the key from its text form "<kind>-<hex address>".
func ParseKey(text string) (Key, error) {
	sep := strings.LastIndexByte(text, '-')
	if sep < 0 {
		return Key{}, xerrors.Errorf("malformed key '%s'", text)
	}

	kind := KeyKind(0)
	for k, prefix := range kindPrefixes {
		if prefix == text[:sep] {
			kind = k
		}
	}

	if kind == 0 {
		return Key{}, xerrors.Errorf("unknown key kind '%s'", text[:sep])
	}

	addr, err := ParseAddress(text[sep+1:])
	if err != nil {
		return Key{}, xerrors.Errorf("invalid key '%s': %v", text, err)
	}

	return Key{kind: kind, addr: addr}, nil
}

// GetKind returns the kind of the key.
func (k Key) GetKind() KeyKind {
	return k.kind
}

// GetAddress returns the address the key is referring to.
func (k Key) GetAddress() Address {
	return k.addr
}

// IntoURef returns the address of the storage cell, or an error if the key is
// not a reference to a cell.
func (k Key) IntoURef() (Address, error) {
	if k.kind != URefKind {
		return Address{}, xerrors.Errorf("key '%v' is not a uref", k)
	}

	return k.addr, nil
}

// IntoHash returns the address of the stored contract, or an error if the key
// is not a reference to a contract.
func (k Key) IntoHash() (Address, error) {
	if k.kind != HashKind {
		return Address{}, xerrors.Errorf("key '%v' is not a contract hash", k)
	}

	return k.addr, nil
}

// String implements fmt.Stringer. It returns the text form of the key.
func (k Key) String() string {
	return k.kind.String() + "-" + k.addr.String()
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) {
	if _, found := kindPrefixes[k.kind]; !found {
		return nil, xerrors.Errorf("unknown key kind %d", k.kind)
	}

	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(text []byte) error {
	key, err := ParseKey(string(text))
	if err != nil {
		return err
	}

	*k = key

	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler. The key is written as one
// byte for the kind followed by the address.
func (k Key) MarshalBinary() ([]byte, error) {
	if _, found := kindPrefixes[k.kind]; !found {
		return nil, xerrors.Errorf("unknown key kind %d", k.kind)
	}

	return append([]byte{byte(k.kind)}, k.addr[:]...), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (k *Key) UnmarshalBinary(data []byte) error {
	if len(data) != AddressSize+1 {
		return xerrors.Errorf("key has %d bytes instead of %d", len(data), AddressSize+1)
	}

	kind := KeyKind(data[0])
	if _, found := kindPrefixes[kind]; !found {
		return xerrors.Errorf("unknown key kind %d", kind)
	}

	k.kind = kind
	copy(k.addr[:], data[1:])

	return nil
}
