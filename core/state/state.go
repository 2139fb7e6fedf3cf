// Package state implements the global state of the ledger on top of a store.
//
// The state contains storage cells addressed by opaque references (URefs),
// account records holding a namespace of named keys, and the records of the
// stored contracts and their packages. Every object is saved under a prefixed
// key of the underlying store:
//
//	cell:<address>     -> binary value
//	account:<address>  -> JSON record
//	contract:<address> -> JSON record
//	package:<address>  -> JSON record
package state

import (
	"encoding/json"

	"go.dedis.ch/optreg/core/store"
	"golang.org/x/xerrors"
)

const (
	cellPrefix     = "cell:"
	accountPrefix  = "account:"
	contractPrefix = "contract:"
	packagePrefix  = "package:"
)

// ErrNotFound is returned when a record or a cell does not exist.
var ErrNotFound = xerrors.New("not found")

// Reader provides the read primitives of the state.
type Reader struct {
	store store.Readable
}

// NewReader returns a reader over the store.
func NewReader(r store.Readable) Reader {
	return Reader{
		store: r,
	}
}

// ReadCell returns the value of the cell at the address.
func (r Reader) ReadCell(addr Address) (Value, error) {
	data, err := r.store.Get(makeKey(cellPrefix, addr))
	if err != nil {
		return Value{}, xerrors.Errorf("failed to read cell: %v", err)
	}

	if data == nil {
		return Value{}, xerrors.Errorf("cell %v: %w", addr, ErrNotFound)
	}

	value, err := NewValueFromBytes(data)
	if err != nil {
		return Value{}, xerrors.Errorf("cell %v is corrupted: %v", addr, err)
	}

	return value, nil
}

// GetAccount returns the account record. An unknown account is returned empty
// as every address can own an account.
func (r Reader) GetAccount(hash Address) (Account, error) {
	account := Account{
		Hash:      hash,
		NamedKeys: NamedKeys{},
	}

	found, err := r.readRecord(accountPrefix, hash, &account)
	if err != nil {
		return account, xerrors.Errorf("failed to read account: %v", err)
	}

	if found && account.NamedKeys == nil {
		account.NamedKeys = NamedKeys{}
	}

	return account, nil
}

// GetContract returns the record of the stored contract.
func (r Reader) GetContract(hash Address) (Contract, error) {
	var contract Contract

	found, err := r.readRecord(contractPrefix, hash, &contract)
	if err != nil {
		return contract, xerrors.Errorf("failed to read contract: %v", err)
	}

	if !found {
		return contract, xerrors.Errorf("contract %v: %w", hash, ErrNotFound)
	}

	if contract.NamedKeys == nil {
		contract.NamedKeys = NamedKeys{}
	}

	return contract, nil
}

// GetPackage returns the record of the contract package.
func (r Reader) GetPackage(hash Address) (Package, error) {
	var pkg Package

	found, err := r.readRecord(packagePrefix, hash, &pkg)
	if err != nil {
		return pkg, xerrors.Errorf("failed to read package: %v", err)
	}

	if !found {
		return pkg, xerrors.Errorf("package %v: %w", hash, ErrNotFound)
	}

	return pkg, nil
}

// Query returns the value the key is referring to. A uref gives the value of
// the cell, the other kinds give the key itself when the object exists.
func (r Reader) Query(key Key) (Value, error) {
	var err error

	switch key.GetKind() {
	case URefKind:
		return r.ReadCell(key.GetAddress())
	case HashKind:
		_, err = r.GetContract(key.GetAddress())
	case PackageKind:
		_, err = r.GetPackage(key.GetAddress())
	case AccountKind:
		_, err = r.GetAccount(key.GetAddress())
	default:
		return Value{}, xerrors.Errorf("unsupported key kind %v", key.GetKind())
	}

	if err != nil {
		return Value{}, err
	}

	return KeyValue(key), nil
}

func (r Reader) readRecord(prefix string, addr Address, rec interface{}) (bool, error) {
	data, err := r.store.Get(makeKey(prefix, addr))
	if err != nil {
		return false, err
	}

	if data == nil {
		return false, nil
	}

	err = json.Unmarshal(data, rec)
	if err != nil {
		return false, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	return true, nil
}

// State provides the read and write primitives of the state.
type State struct {
	Reader

	snap store.Snapshot
}

// New returns the state over the snapshot.
func New(snap store.Snapshot) State {
	return State{
		Reader: NewReader(snap),
		snap:   snap,
	}
}

// WriteCell sets the value of the cell at the address.
func (s State) WriteCell(addr Address, value Value) error {
	err := s.snap.Set(makeKey(cellPrefix, addr), value.Bytes())
	if err != nil {
		return xerrors.Errorf("failed to write cell: %v", err)
	}

	return nil
}

// PutAccount stores the account record.
func (s State) PutAccount(account Account) error {
	err := s.writeRecord(accountPrefix, account.Hash, account)
	if err != nil {
		return xerrors.Errorf("failed to write account: %v", err)
	}

	return nil
}

// PutContract stores the contract record.
func (s State) PutContract(contract Contract) error {
	err := s.writeRecord(contractPrefix, contract.Hash, contract)
	if err != nil {
		return xerrors.Errorf("failed to write contract: %v", err)
	}

	return nil
}

// PutPackage stores the package record.
func (s State) PutPackage(pkg Package) error {
	err := s.writeRecord(packagePrefix, pkg.Hash, pkg)
	if err != nil {
		return xerrors.Errorf("failed to write package: %v", err)
	}

	return nil
}

func (s State) writeRecord(prefix string, addr Address, rec interface{}) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return xerrors.Errorf("failed to marshal: %v", err)
	}

	return s.snap.Set(makeKey(prefix, addr), data)
}

func makeKey(prefix string, addr Address) []byte {
	return append([]byte(prefix), addr[:]...)
}
