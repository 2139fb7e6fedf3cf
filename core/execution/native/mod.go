// Package native implements an execution service to run native contracts.
//
// A native contract is written in Go and packaged with the node. It is
// registered under the name of its code and interacts with the global state
// only through the runtime given by the service, which charges gas for every
// primitive.
//
// A transaction either runs the installer of a contract as session code, or
// calls an entry point of a stored contract:
//
//	session:     optreg.session=<code name>
//	stored call: optreg.contract=<hash key> or optreg.contract_name=<named key>,
//	             optreg.entrypoint=<name>, plus the arguments of the entry point
//
// Every argument is the binary form of a typed value.
package native

import (
	"github.com/rs/zerolog"
	"go.dedis.ch/optreg"
	"go.dedis.ch/optreg/core/execution"
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/core/store"
	"go.dedis.ch/optreg/core/txn"
	"golang.org/x/xerrors"
)

const (
	// SessionArg is the argument key in the transaction to run the installer
	// of a contract. The value is the code name of the contract.
	SessionArg = "optreg.session"

	// ContractArg is the argument key in the transaction to look up a stored
	// contract by its hash key.
	ContractArg = "optreg.contract"

	// ContractNameArg is the argument key in the transaction to look up a
	// stored contract by a named key of the caller.
	ContractNameArg = "optreg.contract_name"

	// EntryPointArg is the argument key in the transaction for the entry point
	// to call.
	EntryPointArg = "optreg.entrypoint"

	// GasArg is the argument key in the transaction for the gas limit.
	GasArg = "optreg.gas"
)

// Contract is the interface to implement to register a contract that will be
// executed natively.
type Contract interface {
	// Install runs as session code in the context of the installing account.
	// It usually publishes the contract with Runtime.NewContract.
	Install(rt Runtime) error

	// Execute runs the entry point of a stored contract.
	Execute(entryPoint string, rt Runtime) error
}

// Handles are the keys given when a contract is published.
type Handles struct {
	Contract state.Key
	Package  state.Key
	Access   state.Key
}

// Runtime is the host API available to the contract code during an execution.
// Every call consumes gas and fails with ErrOutOfGas when the limit is
// reached.
type Runtime interface {
	// GetCaller returns the account hash of the transaction identity.
	GetCaller() state.Address

	// GetNamedArg returns the argument of the transaction.
	GetNamedArg(name string) (state.Value, error)

	// U64Arg returns the argument of the transaction as an unsigned 64-bit
	// integer.
	U64Arg(name string) (uint64, error)

	// NewURef allocates a fresh storage cell holding the value and returns a
	// reference to it.
	NewURef(value state.Value) (state.Key, error)

	// Read returns the value of the cell the reference is pointing to.
	Read(uref state.Key) (state.Value, error)

	// Write overwrites the value of an existing cell.
	Write(uref state.Key, value state.Value) error

	// GetKey returns the key bound to the name in the caller's namespace.
	GetKey(name string) (state.Key, bool, error)

	// PutKey binds the name to the key in the caller's namespace.
	PutKey(name string, key state.Key) error

	// GetContractKey returns the key bound to the name in the namespace of the
	// stored contract being executed.
	GetContractKey(name string) (state.Key, bool, error)

	// NewContract publishes a contract of the session code with the entry
	// points and the initial named keys. Only available to session code.
	NewContract(eps state.EntryPoints, namedKeys state.NamedKeys) (Handles, error)
}

// Service is an execution service for packaged contracts.
//
// - implements execution.Service
type Service struct {
	contracts map[string]Contract
	gasLimit  uint64
	logger    zerolog.Logger
}

// ServiceOption is the type of option to create a service.
type ServiceOption func(*Service)

// WithGasLimit sets the gas limit of the transactions that do not specify
// one.
func WithGasLimit(limit uint64) ServiceOption {
	return func(s *Service) {
		s.gasLimit = limit
	}
}

// NewExecution returns a new native execution.
func NewExecution(opts ...ServiceOption) *Service {
	s := &Service{
		contracts: map[string]Contract{},
		gasLimit:  DefaultGasLimit,
		logger:    optreg.Logger.With().Str("role", "native").Logger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Set stores the contract using the name as the key. A session transaction can
// install this contract by using the same name as the session argument.
func (ns *Service) Set(name string, contract Contract) {
	ns.contracts[name] = contract
}

// Execute implements execution.Service. It runs either the installer or the
// entry point requested by the transaction. A contract failure, including the
// exhaustion of the gas, gives a rejected result. The caller is in charge of
// discarding the writes of a rejected transaction.
func (ns *Service) Execute(snap store.Snapshot, step execution.Step) (execution.Result, error) {
	tx := step.Current

	caller, err := state.AccountHash(tx.GetIdentity())
	if err != nil {
		return execution.Result{}, xerrors.Errorf("failed to get caller: %v", err)
	}

	res := execution.Result{}

	meter, err := ns.makeMeter(tx)
	if err != nil {
		res.Message = err.Error()
		return res, nil
	}

	rt := &runtime{
		tx:     tx,
		state:  state.New(snap),
		caller: caller,
		gen:    state.NewAddressGenerator(tx.GetID()),
		meter:  meter,
	}

	err = ns.run(rt)

	res.GasUsed = meter.used

	if err != nil {
		ns.logger.Debug().Err(err).Hex("tx", tx.GetID()).Msg("transaction rejected")

		res.Message = err.Error()
		return res, nil
	}

	res.Accepted = true

	return res, nil
}

func (ns *Service) makeMeter(tx txn.Transaction) (*gasMeter, error) {
	limit := ns.gasLimit

	data := tx.GetArg(GasArg)
	if data != nil {
		value, err := state.NewValueFromBytes(data)
		if err != nil {
			return nil, xerrors.Errorf("invalid gas limit: %v", err)
		}

		limit, err = value.AsU64()
		if err != nil {
			return nil, xerrors.Errorf("invalid gas limit: %v", err)
		}
	}

	return newGasMeter(limit), nil
}

func (ns *Service) run(rt *runtime) error {
	err := rt.meter.charge(BaseCost)
	if err != nil {
		return err
	}

	if rt.tx.GetArg(SessionArg) != nil {
		return ns.runSession(rt)
	}

	return ns.runStored(rt)
}

func (ns *Service) runSession(rt *runtime) error {
	name, err := stringArg(rt.tx, SessionArg)
	if err != nil {
		return err
	}

	contract := ns.contracts[name]
	if contract == nil {
		return xerrors.Errorf("unknown contract '%s'", name)
	}

	rt.code = name

	err = contract.Install(rt)
	if err != nil {
		return xerrors.Errorf("failed to install '%s': %v", name, err)
	}

	ns.logger.Info().Str("contract", name).Stringer("account", rt.caller).
		Msg("contract installed")

	return nil
}

func (ns *Service) runStored(rt *runtime) error {
	hash, err := ns.resolveContract(rt)
	if err != nil {
		return err
	}

	record, err := rt.state.GetContract(hash)
	if err != nil {
		return xerrors.Errorf("failed to get contract: %v", err)
	}

	epName, err := stringArg(rt.tx, EntryPointArg)
	if err != nil {
		return err
	}

	ep, found := record.EntryPoints.Get(epName)
	if !found {
		return xerrors.Errorf("unknown entry point '%s'", epName)
	}

	if ep.Access != state.PublicAccess {
		return xerrors.Errorf("entry point '%s' is not public", epName)
	}

	err = checkParams(rt, ep)
	if err != nil {
		return xerrors.Errorf("entry point '%s': %v", epName, err)
	}

	contract := ns.contracts[record.Code]
	if contract == nil {
		return xerrors.Errorf("unknown contract '%s'", record.Code)
	}

	rt.code = record.Code
	rt.contract = &record

	err = contract.Execute(epName, rt)
	if err != nil {
		return xerrors.Errorf("%s failed: %v", epName, err)
	}

	return nil
}

func (ns *Service) resolveContract(rt *runtime) (state.Address, error) {
	if rt.tx.GetArg(ContractArg) != nil {
		value, err := state.NewValueFromBytes(rt.tx.GetArg(ContractArg))
		if err != nil {
			return state.Address{}, xerrors.Errorf("invalid contract argument: %v", err)
		}

		key, err := value.AsKey()
		if err != nil {
			return state.Address{}, xerrors.Errorf("invalid contract argument: %v", err)
		}

		return key.IntoHash()
	}

	if rt.tx.GetArg(ContractNameArg) == nil {
		return state.Address{}, xerrors.New("missing contract argument")
	}

	name, err := stringArg(rt.tx, ContractNameArg)
	if err != nil {
		return state.Address{}, err
	}

	key, found, err := rt.GetKey(name)
	if err != nil {
		return state.Address{}, err
	}

	if !found {
		return state.Address{}, xerrors.Errorf("named key '%s' not found", name)
	}

	return key.IntoHash()
}

// checkParams verifies that every parameter of the entry point is given with
// a compatible type.
func checkParams(rt *runtime, ep state.EntryPoint) error {
	for _, param := range ep.Params {
		value, err := rt.GetNamedArg(param.Name)
		if err != nil {
			return err
		}

		err = checkType(value, param.Type)
		if err != nil {
			return xerrors.Errorf("argument '%s': %v", param.Name, err)
		}
	}

	return nil
}

func checkType(value state.Value, typ state.Type) error {
	if typ == state.U64Type {
		_, err := value.AsU64()
		return err
	}

	if value.GetType() != typ {
		return xerrors.Errorf("expected %v but got %v", typ, value.GetType())
	}

	return nil
}

func stringArg(tx txn.Transaction, name string) (string, error) {
	data := tx.GetArg(name)
	if data == nil {
		return "", xerrors.Errorf("missing argument '%s'", name)
	}

	value, err := state.NewValueFromBytes(data)
	if err != nil {
		return "", xerrors.Errorf("argument '%s': %v", name, err)
	}

	str, err := value.AsString()
	if err != nil {
		return "", xerrors.Errorf("argument '%s': %v", name, err)
	}

	return str, nil
}
