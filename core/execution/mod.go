// Package execution defines the service that applies a transaction to a
// snapshot of the state.
package execution

import (
	"go.dedis.ch/optreg/core/store"
	"go.dedis.ch/optreg/core/txn"
)

// Step is a context of execution. It contains the transaction to execute and
// the transactions of the same batch that were executed before it.
type Step struct {
	Previous []txn.Transaction
	Current  txn.Transaction
}

// Result is the result of a transaction execution.
type Result struct {
	// Accepted is the success state of the transaction.
	Accepted bool

	// Message gives a chance to the execution to explain why a transaction has
	// failed.
	Message string

	// GasUsed is the amount of gas consumed by the execution.
	GasUsed uint64
}

// Service is the execution service that defines the primitives to execute a
// transaction.
type Service interface {
	// Execute must apply the transaction to the snapshot and return the result
	// of it. An error is returned only when the execution could not be
	// performed, a failing transaction is reported by the result.
	Execute(snap store.Snapshot, step Step) (Result, error)
}
