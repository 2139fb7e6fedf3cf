package native

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/optreg/core/execution"
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/core/txn/signed"
	"go.dedis.ch/optreg/internal/testing/fake"
	"golang.org/x/xerrors"
)

func TestService_Set(t *testing.T) {
	srvc := NewExecution(WithGasLimit(10))
	require.Equal(t, uint64(10), srvc.gasLimit)

	srvc.Set("abc", counterContract{})
	require.Len(t, srvc.contracts, 1)

	srvc.Set("abc", counterContract{})
	require.Len(t, srvc.contracts, 1)
}

func TestService_Session(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("counter", counterContract{})

	snap := fake.NewSnapshot()

	res, err := srvc.Execute(snap, makeStep(t, 0, session("counter")...))
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Message)
	require.Equal(t, BaseCost+NewURefCost+NewContractCost+PutKeyCost, res.GasUsed)

	reader := state.NewReader(snap)

	account, err := reader.GetAccount(caller(t))
	require.NoError(t, err)

	key, found := account.NamedKeys.Get("counter_contract")
	require.True(t, found)
	require.Equal(t, state.HashKind, key.GetKind())

	contract, err := reader.GetContract(key.GetAddress())
	require.NoError(t, err)
	require.Equal(t, "counter", contract.Code)
	require.Len(t, contract.EntryPoints, 2)

	pkg, err := reader.GetPackage(contract.Package)
	require.NoError(t, err)
	require.Equal(t, []state.Address{contract.Hash}, pkg.Versions)

	access, err := reader.ReadCell(pkg.Access)
	require.NoError(t, err)
	require.Equal(t, state.UnitType, access.GetType())

	res, err = srvc.Execute(snap, makeStep(t, 1, session("unknown")...))
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, "unknown contract 'unknown'", res.Message)

	res, err = srvc.Execute(snap, makeStep(t, 1, signed.WithArg(SessionArg, state.U64(1).Bytes())))
	require.NoError(t, err)
	require.Equal(t, "argument 'optreg.session': expected String but got U64", res.Message)

	srvc.Set("bad", badContract{})
	res, err = srvc.Execute(snap, makeStep(t, 1, session("bad")...))
	require.NoError(t, err)
	require.Equal(t, fake.Err("failed to install 'bad'"), res.Message)
}

func TestService_StoredCall(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("counter", counterContract{})

	snap := fake.NewSnapshot()
	install(t, srvc, snap)

	for i := 0; i < 2; i++ {
		res, err := srvc.Execute(snap, makeStep(t, 1,
			call("increment", signed.WithArg("amount", state.U64(5).Bytes()))...))
		require.NoError(t, err)
		require.True(t, res.Accepted, res.Message)
	}

	require.Equal(t, uint64(10), readCounter(t, snap))

	hash := getContractKey(t, snap)
	res, err := srvc.Execute(snap, makeStep(t, 3,
		signed.WithArg(ContractArg, state.KeyValue(hash).Bytes()),
		signed.WithArg(EntryPointArg, state.String("increment").Bytes()),
		signed.WithArg("amount", state.U64(1).Bytes())))
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Message)
	require.Equal(t, uint64(11), readCounter(t, snap))
}

func TestService_StoredCallFailures(t *testing.T) {
	srvc := NewExecution()
	srvc.Set("counter", counterContract{})

	snap := fake.NewSnapshot()
	install(t, srvc, snap)

	amount := signed.WithArg("amount", state.U64(1).Bytes())

	res := execute(t, srvc, snap, signed.WithArg(EntryPointArg, state.String("increment").Bytes()))
	require.Equal(t, "missing contract argument", res.Message)

	res = execute(t, srvc, snap, call("unknown")...)
	require.Equal(t, "unknown entry point 'unknown'", res.Message)

	res = execute(t, srvc, snap, call("private")...)
	require.Equal(t, "entry point 'private' is not public", res.Message)

	res = execute(t, srvc, snap, call("increment")...)
	require.Equal(t, "entry point 'increment': missing argument 'amount'", res.Message)

	res = execute(t, srvc, snap, call("increment",
		signed.WithArg("amount", state.String("5").Bytes()))...)
	require.Equal(t, "entry point 'increment': argument 'amount': expected U64 but got String",
		res.Message)

	res = execute(t, srvc, snap, call("increment", signed.WithArg("amount", []byte{}))...)
	require.Equal(t, "entry point 'increment': malformed argument 'amount': empty value",
		res.Message)

	res = execute(t, srvc, snap,
		signed.WithArg(ContractNameArg, state.String("unknown").Bytes()),
		signed.WithArg(EntryPointArg, state.String("increment").Bytes()))
	require.Equal(t, "named key 'unknown' not found", res.Message)

	res = execute(t, srvc, snap,
		signed.WithArg(ContractArg, state.KeyValue(state.NewURef(state.Address{})).Bytes()))
	require.Regexp(t, "^key 'uref-0+' is not a contract hash$", res.Message)

	res = execute(t, srvc, snap,
		signed.WithArg(ContractArg, state.KeyValue(state.NewHashKey(state.Address{})).Bytes()))
	require.Regexp(t, "^failed to get contract: contract 0+: not found$", res.Message)

	res = execute(t, srvc, snap, signed.WithArg(ContractArg, state.String("abc").Bytes()))
	require.Equal(t, "invalid contract argument: expected Key but got String", res.Message)

	res = execute(t, srvc, snap, call("increment", amount, signed.WithArg(GasArg, state.U64(150).Bytes()))...)
	require.False(t, res.Accepted)
	require.Contains(t, res.Message, "out of gas")
	require.Equal(t, uint64(150), res.GasUsed)

	res = execute(t, srvc, snap, call("increment", amount, signed.WithArg(GasArg, state.Bool(true).Bytes()))...)
	require.Equal(t, "invalid gas limit: expected U64 but got Bool", res.Message)

	res = execute(t, srvc, snap, call("increment", amount, signed.WithArg(GasArg, []byte{0xff}))...)
	require.Equal(t, "invalid gas limit: unknown type 255", res.Message)

	srvc = NewExecution()
	res = execute(t, srvc, snap, call("increment", amount)...)
	require.Equal(t, "unknown contract 'counter'", res.Message)

	_, err := srvc.Execute(snap, execution.Step{Current: makeBadIdentityTx(t)})
	require.EqualError(t, err, fake.Err("failed to get caller: failed to marshal identity"))
}

func TestService_GasLimit(t *testing.T) {
	srvc := NewExecution(WithGasLimit(BaseCost))
	srvc.Set("counter", counterContract{})

	snap := fake.NewSnapshot()

	res, err := srvc.Execute(snap, makeStep(t, 0, session("counter")...))
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, "failed to install 'counter': gas limit of 100 reached: out of gas",
		res.Message)

	res, err = srvc.Execute(snap, makeStep(t, 0, session("counter")...))
	require.NoError(t, err)
	require.False(t, res.Accepted)

	res, err = srvc.Execute(snap, makeStep(t, 0,
		append(session("counter"), signed.WithArg(GasArg, state.U64(50).Bytes()))...))
	require.NoError(t, err)
	require.Equal(t, "gas limit of 50 reached: out of gas", res.Message)
}

func TestGasMeter_Charge(t *testing.T) {
	meter := newGasMeter(10)

	require.NoError(t, meter.charge(4))
	require.NoError(t, meter.charge(6))
	require.Equal(t, uint64(10), meter.used)

	err := meter.charge(1)
	require.True(t, xerrors.Is(err, ErrOutOfGas))

	meter = newGasMeter(10)
	err = meter.charge(11)
	require.True(t, xerrors.Is(err, ErrOutOfGas))
	require.Equal(t, uint64(10), meter.used)
}

// -----------------------------------------------------------------------------
// Utility functions

// counterContract keeps a counter in its own named keys and increments it by
// the amount of the transaction.
type counterContract struct{}

func (counterContract) Install(rt Runtime) error {
	eps := state.EntryPoints{
		{
			Name:   "increment",
			Params: []state.Parameter{{Name: "amount", Type: state.U64Type}},
			Ret:    state.UnitType,
			Access: state.PublicAccess,
		},
		{
			Name:   "private",
			Ret:    state.UnitType,
			Access: state.Access("Groups"),
		},
	}

	counter, err := rt.NewURef(state.U64(0))
	if err != nil {
		return err
	}

	handles, err := rt.NewContract(eps, state.NamedKeys{"counter": counter})
	if err != nil {
		return err
	}

	return rt.PutKey("counter_contract", handles.Contract)
}

func (counterContract) Execute(ep string, rt Runtime) error {
	amount, err := rt.U64Arg("amount")
	if err != nil {
		return err
	}

	key, _, err := rt.GetContractKey("counter")
	if err != nil {
		return err
	}

	value, err := rt.Read(key)
	if err != nil {
		return err
	}

	counter, err := value.AsU64()
	if err != nil {
		return err
	}

	return rt.Write(key, state.U64(counter+amount))
}

type badContract struct{}

func (badContract) Install(Runtime) error {
	return fake.GetError()
}

func (badContract) Execute(string, Runtime) error {
	return fake.GetError()
}

func session(name string) []signed.TransactionOption {
	return []signed.TransactionOption{
		signed.WithArg(SessionArg, state.String(name).Bytes()),
	}
}

func call(ep string, opts ...signed.TransactionOption) []signed.TransactionOption {
	return append([]signed.TransactionOption{
		signed.WithArg(ContractNameArg, state.String("counter_contract").Bytes()),
		signed.WithArg(EntryPointArg, state.String(ep).Bytes()),
	}, opts...)
}

func makeStep(t *testing.T, nonce uint64, opts ...signed.TransactionOption) execution.Step {
	tx, err := signed.NewTransaction(nonce, fake.PublicKey{}, opts...)
	require.NoError(t, err)

	return execution.Step{Current: tx}
}

func makeBadIdentityTx(t *testing.T) *signed.Transaction {
	tx, err := signed.NewTransaction(0, badIdentity{})
	require.NoError(t, err)

	return tx
}

// badIdentity can be fingerprinted once but fails afterwards.
type badIdentity struct {
	fake.PublicKey
}

func (badIdentity) MarshalBinary() ([]byte, error) {
	if badIdentityCounter.Done() {
		return nil, fake.GetError()
	}

	badIdentityCounter.Decrease()

	return []byte("PK"), nil
}

var badIdentityCounter = fake.NewCounter(1)

func execute(t *testing.T, srvc *Service, snap *fake.InMemorySnapshot,
	opts ...signed.TransactionOption) execution.Result {

	res, err := srvc.Execute(snap, makeStep(t, 1, opts...))
	require.NoError(t, err)
	require.False(t, res.Accepted)

	return res
}

func install(t *testing.T, srvc *Service, snap *fake.InMemorySnapshot) {
	res, err := srvc.Execute(snap, makeStep(t, 0, session("counter")...))
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Message)
}

func caller(t *testing.T) state.Address {
	addr, err := state.AccountHash(fake.PublicKey{})
	require.NoError(t, err)

	return addr
}

func getContractKey(t *testing.T, snap *fake.InMemorySnapshot) state.Key {
	account, err := state.NewReader(snap).GetAccount(caller(t))
	require.NoError(t, err)

	key, found := account.NamedKeys.Get("counter_contract")
	require.True(t, found)

	return key
}

func readCounter(t *testing.T, snap *fake.InMemorySnapshot) uint64 {
	reader := state.NewReader(snap)

	contract, err := reader.GetContract(getContractKey(t, snap).GetAddress())
	require.NoError(t, err)

	value, err := reader.ReadCell(contract.NamedKeys["counter"].GetAddress())
	require.NoError(t, err)

	counter, err := value.AsU64()
	require.NoError(t, err)

	return counter
}
