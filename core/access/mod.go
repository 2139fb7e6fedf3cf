// Package access defines the identity of the accounts submitting transactions.
//
// The registry does not restrict who can call an entry point, but the identity
// of the caller still decides in which account namespace the keys are bound.
package access

import "encoding"

// Identity is an abstraction to uniquely identify a signer.
type Identity interface {
	encoding.BinaryMarshaler
	encoding.TextMarshaler
}
