package state

import (
	"sort"
	"strings"
)

// NamedKeys is a namespace mapping human readable names to keys.
type NamedKeys map[string]Key

// Get returns the key bound to the name if any.
func (nk NamedKeys) Get(name string) (Key, bool) {
	key, found := nk[name]
	return key, found
}

// Names returns the names of the namespace in ascending order.
func (nk NamedKeys) Names() []string {
	return nk.WithPrefix("")
}

// WithPrefix returns the names starting with the prefix in ascending order.
func (nk NamedKeys) WithPrefix(prefix string) []string {
	names := make([]string, 0, len(nk))
	for name := range nk {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// Clone returns a copy of the namespace.
func (nk NamedKeys) Clone() NamedKeys {
	clone := make(NamedKeys, len(nk))
	for name, key := range nk {
		clone[name] = key
	}

	return clone
}

// Access is the access level of an entry point.
type Access string

const (
	// PublicAccess allows any account to call the entry point.
	PublicAccess Access = "Public"
)

// Parameter is a named and typed parameter of an entry point.
type Parameter struct {
	Name string
	Type Type
}

// EntryPoint is a named procedure exposed by a stored contract.
type EntryPoint struct {
	Name   string
	Params []Parameter
	Ret    Type
	Access Access
}

// EntryPoints is the table of entry points of a contract.
type EntryPoints []EntryPoint

// Get returns the entry point with the name if it exists.
func (eps EntryPoints) Get(name string) (EntryPoint, bool) {
	for _, ep := range eps {
		if ep.Name == name {
			return ep, true
		}
	}

	return EntryPoint{}, false
}

// Account is the record of an account. The nonce is the number of
// transactions accepted for this account.
type Account struct {
	Hash      Address
	Nonce     uint64
	NamedKeys NamedKeys
}

// Contract is the record of a stored contract. The code is the name of the
// native implementation serving the entry points.
type Contract struct {
	Hash        Address
	Package     Address
	Code        string
	EntryPoints EntryPoints
	NamedKeys   NamedKeys
}

// Package is the record of a contract package. The access cell is the handle
// given to the installer to manage the package.
type Package struct {
	Hash     Address
	Access   Address
	Versions []Address
}
