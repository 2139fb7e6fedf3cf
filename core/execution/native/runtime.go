package native

import (
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/core/txn"
	"golang.org/x/xerrors"
)

// runtime is the host API of one execution.
//
// - implements native.Runtime
type runtime struct {
	tx     txn.Transaction
	state  state.State
	caller state.Address
	gen    *state.AddressGenerator
	meter  *gasMeter

	// code is the name of the contract code being executed.
	code string
	// contract is the record of the stored contract, or nil for session code.
	contract *state.Contract
}

// GetCaller implements native.Runtime.
func (rt *runtime) GetCaller() state.Address {
	return rt.caller
}

// GetNamedArg implements native.Runtime.
func (rt *runtime) GetNamedArg(name string) (state.Value, error) {
	err := rt.meter.charge(ArgCost)
	if err != nil {
		return state.Value{}, err
	}

	data := rt.tx.GetArg(name)
	if data == nil {
		return state.Value{}, xerrors.Errorf("missing argument '%s'", name)
	}

	value, err := state.NewValueFromBytes(data)
	if err != nil {
		return state.Value{}, xerrors.Errorf("malformed argument '%s': %v", name, err)
	}

	return value, nil
}

// U64Arg implements native.Runtime.
func (rt *runtime) U64Arg(name string) (uint64, error) {
	value, err := rt.GetNamedArg(name)
	if err != nil {
		return 0, err
	}

	n, err := value.AsU64()
	if err != nil {
		return 0, xerrors.Errorf("malformed argument '%s': %v", name, err)
	}

	return n, nil
}

// NewURef implements native.Runtime.
func (rt *runtime) NewURef(value state.Value) (state.Key, error) {
	err := rt.meter.charge(NewURefCost)
	if err != nil {
		return state.Key{}, err
	}

	addr := rt.gen.Next()

	err = rt.state.WriteCell(addr, value)
	if err != nil {
		return state.Key{}, xerrors.Errorf("failed to create cell: %v", err)
	}

	return state.NewURef(addr), nil
}

// Read implements native.Runtime.
func (rt *runtime) Read(uref state.Key) (state.Value, error) {
	err := rt.meter.charge(ReadCost)
	if err != nil {
		return state.Value{}, err
	}

	addr, err := uref.IntoURef()
	if err != nil {
		return state.Value{}, err
	}

	return rt.state.ReadCell(addr)
}

// Write implements native.Runtime.
func (rt *runtime) Write(uref state.Key, value state.Value) error {
	err := rt.meter.charge(WriteCost)
	if err != nil {
		return err
	}

	addr, err := uref.IntoURef()
	if err != nil {
		return err
	}

	_, err = rt.state.ReadCell(addr)
	if err != nil {
		return xerrors.Errorf("failed to write: %w", err)
	}

	return rt.state.WriteCell(addr, value)
}

// GetKey implements native.Runtime.
func (rt *runtime) GetKey(name string) (state.Key, bool, error) {
	err := rt.meter.charge(GetKeyCost)
	if err != nil {
		return state.Key{}, false, err
	}

	account, err := rt.state.GetAccount(rt.caller)
	if err != nil {
		return state.Key{}, false, err
	}

	key, found := account.NamedKeys.Get(name)

	return key, found, nil
}

// PutKey implements native.Runtime.
func (rt *runtime) PutKey(name string, key state.Key) error {
	err := rt.meter.charge(PutKeyCost)
	if err != nil {
		return err
	}

	account, err := rt.state.GetAccount(rt.caller)
	if err != nil {
		return err
	}

	account.NamedKeys[name] = key

	return rt.state.PutAccount(account)
}

// GetContractKey implements native.Runtime.
func (rt *runtime) GetContractKey(name string) (state.Key, bool, error) {
	err := rt.meter.charge(GetKeyCost)
	if err != nil {
		return state.Key{}, false, err
	}

	if rt.contract == nil {
		return state.Key{}, false, xerrors.New("no stored contract in session code")
	}

	key, found := rt.contract.NamedKeys.Get(name)

	return key, found, nil
}

// NewContract implements native.Runtime. It allocates the contract, the
// package and the access cell of the package.
func (rt *runtime) NewContract(eps state.EntryPoints, namedKeys state.NamedKeys) (Handles, error) {
	err := rt.meter.charge(NewContractCost)
	if err != nil {
		return Handles{}, err
	}

	if rt.contract != nil {
		return Handles{}, xerrors.New("contracts can only be published by session code")
	}

	contractHash := rt.gen.Next()
	packageHash := rt.gen.Next()
	access := rt.gen.Next()

	err = rt.state.WriteCell(access, state.Unit())
	if err != nil {
		return Handles{}, xerrors.Errorf("failed to create access: %v", err)
	}

	err = rt.state.PutPackage(state.Package{
		Hash:     packageHash,
		Access:   access,
		Versions: []state.Address{contractHash},
	})
	if err != nil {
		return Handles{}, err
	}

	if namedKeys == nil {
		namedKeys = state.NamedKeys{}
	}

	err = rt.state.PutContract(state.Contract{
		Hash:        contractHash,
		Package:     packageHash,
		Code:        rt.code,
		EntryPoints: eps,
		NamedKeys:   namedKeys.Clone(),
	})
	if err != nil {
		return Handles{}, err
	}

	handles := Handles{
		Contract: state.NewHashKey(contractHash),
		Package:  state.NewPackageKey(packageHash),
		Access:   state.NewURef(access),
	}

	return handles, nil
}
