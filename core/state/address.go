package state

import (
	"encoding/binary"
	"encoding/hex"

	"go.dedis.ch/optreg/core/access"
	"go.dedis.ch/optreg/crypto"
	"golang.org/x/xerrors"
)

// AddressSize is the size in bytes of an address.
const AddressSize = 32

// Address is the opaque identifier of an account, a contract, a package or a
// storage cell.
type Address [AddressSize]byte

// ParseAddress returns the address of its hexadecimal form.
func ParseAddress(text string) (Address, error) {
	var addr Address

	data, err := hex.DecodeString(text)
	if err != nil {
		return addr, xerrors.Errorf("malformed address: %v", err)
	}

	if len(data) != AddressSize {
		return addr, xerrors.Errorf("address has %d bytes instead of %d",
			len(data), AddressSize)
	}

	copy(addr[:], data)

	return addr, nil
}

// String implements fmt.Stringer. It returns the hexadecimal form of the
// address.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}

	*a = addr

	return nil
}

// AccountHash returns the address of the account owned by the identity.
func AccountHash(ident access.Identity) (Address, error) {
	var addr Address

	data, err := ident.MarshalBinary()
	if err != nil {
		return addr, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	h := crypto.NewSha256Factory().New()
	h.Write(data)

	copy(addr[:], h.Sum(nil))

	return addr, nil
}

// AddressGenerator derives fresh addresses from a seed. Two generators with
// the same seed produce the same sequence, and different seeds give disjoint
// sequences with overwhelming probability.
type AddressGenerator struct {
	hashFac crypto.HashFactory
	seed    []byte
	counter uint64
}

// NewAddressGenerator returns a generator for the seed, usually the
// identifier of the transaction being executed.
func NewAddressGenerator(seed []byte) *AddressGenerator {
	return &AddressGenerator{
		hashFac: crypto.NewSha256Factory(),
		seed:    seed,
	}
}

// Next returns the next address of the sequence.
func (g *AddressGenerator) Next() Address {
	var addr Address

	counter := make([]byte, 8)
	binary.LittleEndian.PutUint64(counter, g.counter)

	h := g.hashFac.New()
	h.Write(g.seed)
	h.Write(counter)

	copy(addr[:], h.Sum(nil))

	g.counter++

	return addr
}
