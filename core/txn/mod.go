// Package txn defines the abstraction of transactions.
//
// A transaction is the input of a contract execution. It is uniquely
// identifiable via a digest and it is ordered with the nonce that acts as a
// sequence number of the identity that created it. The arguments are named and
// carry the binary form of typed values.
//
// The manager helps to create transactions as the nonce needs to be correct for
// the transaction to be accepted.
package txn

import (
	"go.dedis.ch/optreg/core/access"
	"go.dedis.ch/optreg/serde"
)

// Transaction is what triggers a contract execution by passing it as part of
// the input.
type Transaction interface {
	serde.Message

	// GetID returns the unique identifier for the transaction.
	GetID() []byte

	// GetNonce returns the nonce of the transaction which corresponds to the
	// sequence number of a unique identity.
	GetNonce() uint64

	// GetIdentity returns the identity that created the transaction.
	GetIdentity() access.Identity

	// GetArg is a getter for the arguments of the transaction. It returns nil
	// when the argument is not set.
	GetArg(key string) []byte
}

// Factory is the definition of a factory to deserialize transaction
// messages.
type Factory interface {
	serde.Factory

	TransactionOf(serde.Context, []byte) (Transaction, error)
}

// Arg is a generic argument that can be stored in a transaction.
type Arg struct {
	Key   string
	Value []byte
}

// Manager is a manager to create transaction. It can help creating
// transactions when some information is required like the current nonce.
type Manager interface {
	Make(args ...Arg) (Transaction, error)

	Sync() error
}
