package options

import (
	"context"
	"sync"

	"go.dedis.ch/optreg/core/execution"
	"go.dedis.ch/optreg/core/execution/native"
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/core/txn"
	"golang.org/x/xerrors"
)

// Submitter is the interface of the component that executes the
// transactions, usually the ledger.
type Submitter interface {
	Submit(ctx context.Context, tx txn.Transaction) (execution.Result, error)
}

// Client creates and submits the transactions of the registry for the
// identity of the manager. Copies of a client share the same manager and
// submit one transaction at a time so that the nonces stay in order.
type Client struct {
	lock   *sync.Mutex
	mgr    txn.Manager
	ledger Submitter
}

// NewClient returns a client of the registry.
func NewClient(mgr txn.Manager, ledger Submitter) Client {
	return Client{
		lock:   new(sync.Mutex),
		mgr:    mgr,
		ledger: ledger,
	}
}

// Install submits the installer of the registry. A zero gas limit keeps the
// default of the node.
func (c Client) Install(ctx context.Context, gas uint64) (execution.Result, error) {
	return c.submit(ctx, withGas(InstallArgs(), gas))
}

// Create submits a call to create_option.
func (c Client) Create(ctx context.Context, id, strike, expiry, gas uint64) (execution.Result, error) {
	return c.submit(ctx, withGas(CreateArgs(id, strike, expiry), gas))
}

// Exercise submits a call to exercise_option.
func (c Client) Exercise(ctx context.Context, id, gas uint64) (execution.Result, error) {
	return c.submit(ctx, withGas(ExerciseArgs(id), gas))
}

func (c Client) submit(ctx context.Context, args []txn.Arg) (execution.Result, error) {
	// The nonce is taken by Make and only given back by Sync on a rejection,
	// the three steps must not interleave with another submission.
	c.lock.Lock()
	defer c.lock.Unlock()

	tx, err := c.mgr.Make(args...)
	if err != nil {
		return execution.Result{}, xerrors.Errorf("failed to make tx: %v", err)
	}

	res, err := c.ledger.Submit(ctx, tx)
	if err != nil {
		return res, xerrors.Errorf("failed to submit tx: %v", err)
	}

	if !res.Accepted {
		// The nonce is not consumed by a rejected transaction.
		err = c.mgr.Sync()
		if err != nil {
			return res, xerrors.Errorf("failed to sync manager: %v", err)
		}
	}

	return res, nil
}

// InstallArgs returns the arguments of a session installing the registry.
func InstallArgs() []txn.Arg {
	return []txn.Arg{
		{Key: native.SessionArg, Value: state.String(ContractName).Bytes()},
	}
}

// CreateArgs returns the arguments of a call to create_option on the registry
// installed by the caller.
func CreateArgs(id, strike, expiry uint64) []txn.Arg {
	return append(callArgs(CreateEntryPoint),
		txn.Arg{Key: IDArg, Value: state.U64(id).Bytes()},
		txn.Arg{Key: StrikeArg, Value: state.U64(strike).Bytes()},
		txn.Arg{Key: ExpiryArg, Value: state.U64(expiry).Bytes()},
	)
}

// ExerciseArgs returns the arguments of a call to exercise_option on the
// registry installed by the caller.
func ExerciseArgs(id uint64) []txn.Arg {
	return append(callArgs(ExerciseEntryPoint),
		txn.Arg{Key: IDArg, Value: state.U64(id).Bytes()},
	)
}

func callArgs(entryPoint string) []txn.Arg {
	return []txn.Arg{
		{Key: native.ContractNameArg, Value: state.String(RegistryKey).Bytes()},
		{Key: native.EntryPointArg, Value: state.String(entryPoint).Bytes()},
	}
}

func withGas(args []txn.Arg, gas uint64) []txn.Arg {
	if gas == 0 {
		return args
	}

	return append(args, txn.Arg{Key: native.GasArg, Value: state.U64(gas).Bytes()})
}
