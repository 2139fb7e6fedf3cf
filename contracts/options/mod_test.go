package options

import (
	"context"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/optreg/core/execution/native"
	"go.dedis.ch/optreg/core/ledger"
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/core/store/mem"
	"go.dedis.ch/optreg/core/txn/signed"
	"go.dedis.ch/optreg/crypto/ed25519"
	"go.dedis.ch/optreg/internal/testing/fake"
	"golang.org/x/xerrors"
)

const expiry = 1_735_689_600

func TestInstall_CountIsZero(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	require.Equal(t, uint64(0), env.count(t))

	nk := env.namedKeys(t)

	registry, found := nk.Get(RegistryKey)
	require.True(t, found)
	require.Equal(t, state.HashKind, registry.GetKind())

	pkg, found := nk.Get(PackageKey)
	require.True(t, found)
	require.Equal(t, state.PackageKind, pkg.GetKind())

	access, found := nk.Get(AccessKey)
	require.True(t, found)
	require.Equal(t, state.URefKind, access.GetKind())

	err := env.ledger.View(func(r state.Reader) error {
		contract, err := r.GetContract(registry.GetAddress())
		require.NoError(t, err)
		require.Equal(t, ContractName, contract.Code)
		require.Equal(t, EntryPoints(), contract.EntryPoints)
		require.Equal(t, contract.Package, pkg.GetAddress())

		_, found := contract.NamedKeys.Get(CountKey)
		require.True(t, found)

		return nil
	})
	require.NoError(t, err)
}

func TestCreate_SingleOption(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	env.create(t, 1, 1_000_000, expiry)

	require.Equal(t, state.U64(1), env.cell(t, OptionKey(1)))
	require.Equal(t, state.U64(1_000_000), env.cell(t, StrikeKey(1)))
	require.Equal(t, state.U64(expiry), env.cell(t, ExpiryKey(1)))
	require.Equal(t, state.Bool(false), env.cell(t, ExercisedKey(1)))
	require.Equal(t, uint64(1), env.count(t))
}

func TestCreate_CountMonotonicity(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	for i := uint64(0); i < 5; i++ {
		require.Equal(t, i, env.count(t))

		env.create(t, i, 1_000_000*(i+1), expiry+i*86_400)
	}

	require.Equal(t, uint64(5), env.count(t))

	for i := uint64(0); i < 5; i++ {
		require.Equal(t, state.U64(i), env.cell(t, OptionKey(i)))
		require.Equal(t, state.U64(1_000_000*(i+1)), env.cell(t, StrikeKey(i)))
		require.Equal(t, state.U64(expiry+i*86_400), env.cell(t, ExpiryKey(i)))
	}
}

func TestCreate_Boundary(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	env.create(t, math.MaxUint64-1, math.MaxUint64, math.MaxUint64)

	require.Equal(t, state.U64(math.MaxUint64-1), env.cell(t, "option_18446744073709551614"))
	require.Equal(t, state.U64(math.MaxUint64), env.cell(t, StrikeKey(math.MaxUint64-1)))
	require.Equal(t, state.U64(math.MaxUint64), env.cell(t, ExpiryKey(math.MaxUint64-1)))
}

func TestCreate_ZeroStrike(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	env.create(t, 7, 0, expiry)

	require.Equal(t, state.U64(0), env.cell(t, StrikeKey(7)))
}

func TestCreate_RepeatedID(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	env.create(t, 3, 10, expiry)
	first, _ := env.namedKeys(t).Get(OptionKey(3))

	env.exercise(t, 3)
	env.create(t, 3, 20, expiry+1)

	second, _ := env.namedKeys(t).Get(OptionKey(3))
	require.NotEqual(t, first, second)

	require.Equal(t, state.U64(20), env.cell(t, StrikeKey(3)))
	require.Equal(t, state.Bool(false), env.cell(t, ExercisedKey(3)))
	require.Equal(t, uint64(2), env.count(t))
}

func TestCreate_DistinctIDs(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	env.create(t, 1, 100, expiry)
	env.create(t, 10, 200, expiry+1)

	require.Equal(t, state.U64(100), env.cell(t, StrikeKey(1)))
	require.Equal(t, state.U64(200), env.cell(t, StrikeKey(10)))

	env.exercise(t, 10)
	require.Equal(t, state.Bool(false), env.cell(t, ExercisedKey(1)))
	require.Equal(t, state.Bool(true), env.cell(t, ExercisedKey(10)))
}

func TestCreate_U256Strike(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	strike, err := state.U256(big.NewInt(1_000_000))
	require.NoError(t, err)

	args := CreateArgs(2, 0, expiry)
	args[3].Value = strike.Bytes()

	tx, err := env.mgr.Make(args...)
	require.NoError(t, err)

	res, err := env.ledger.Submit(context.Background(), tx)
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Message)
	require.Equal(t, state.U64(1_000_000), env.cell(t, StrikeKey(2)))

	wide, err := state.U256(new(big.Int).Lsh(big.NewInt(1), 64))
	require.NoError(t, err)

	args[3].Value = wide.Bytes()

	tx, err = env.mgr.Make(args...)
	require.NoError(t, err)

	res, err = env.ledger.Submit(context.Background(), tx)
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Contains(t, res.Message, "argument 'strike_price'")
}

func TestClient_ConcurrentCreate(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	n := 50

	var wg sync.WaitGroup
	wg.Add(n)

	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		go func(id uint64) {
			defer wg.Done()

			res, err := env.client.Create(context.Background(), id, 1, expiry, 0)
			if err != nil {
				errs <- err
			} else if !res.Accepted {
				errs <- xerrors.Errorf("option %d rejected: %s", id, res.Message)
			}
		}(uint64(i + 1))
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, uint64(n), env.count(t))
}

func TestCreate_OutOfGas(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	// The limits cover a failure on the allocations, after one to four
	// bindings, and around the write of the count.
	limits := []uint64{500, 1000, 1100, 1200, 1300, 1350, 1400, 1450, 1500, 1549}

	for _, limit := range limits {
		res, err := env.client.Create(context.Background(), 1, 1_000_000, expiry, limit)
		require.NoError(t, err)
		require.False(t, res.Accepted, "gas %d", limit)
		require.Contains(t, res.Message, "out of gas", "gas %d", limit)
		require.Equal(t, limit, res.GasUsed)

		nk := env.namedKeys(t)
		for _, name := range KeysOf(1) {
			_, found := nk.Get(name)
			require.False(t, found, "gas %d: %s", limit, name)
		}

		require.Equal(t, uint64(0), env.count(t), "gas %d", limit)
	}

	// The manager is synchronized after the rejections.
	env.create(t, 1, 1_000_000, expiry)
	require.Equal(t, uint64(1), env.count(t))
}

func TestCreate_MissingArgument(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	tx, err := env.mgr.Make(CreateArgs(1, 2, 3)[:4]...)
	require.NoError(t, err)

	res, err := env.ledger.Submit(context.Background(), tx)
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, "entry point 'create_option': missing argument 'expiry'", res.Message)
	require.Equal(t, uint64(0), env.count(t))
}

func TestExercise_Idempotent(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	env.create(t, 1, 1_000_000, expiry)

	for i := 0; i < 3; i++ {
		env.exercise(t, 1)
		require.Equal(t, state.Bool(true), env.cell(t, ExercisedKey(1)))
	}

	require.Equal(t, uint64(1), env.count(t))
}

func TestExercise_WithoutCreate(t *testing.T) {
	env := newEnv(t)
	env.install(t)

	env.exercise(t, 42)

	require.Equal(t, state.Bool(true), env.cell(t, ExercisedKey(42)))

	_, found := env.namedKeys(t).Get(OptionKey(42))
	require.False(t, found)

	require.Equal(t, uint64(0), env.count(t))
}

func TestExercise_NotInstalled(t *testing.T) {
	env := newEnv(t)

	res, err := env.client.Exercise(context.Background(), 1, 0)
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, "named key 'option_registry' not found", res.Message)
}

func TestContract_Execute(t *testing.T) {
	contract := Contract{cmd: fakeCmd{}}

	require.NoError(t, contract.Execute(CreateEntryPoint, nil))
	require.NoError(t, contract.Execute(ExerciseEntryPoint, nil))

	err := contract.Execute("unknown", nil)
	require.EqualError(t, err, "unknown entry point 'unknown'")

	contract.cmd = fakeCmd{err: fake.GetError()}

	err = contract.Execute(CreateEntryPoint, nil)
	require.EqualError(t, err, fake.Err("create"))

	err = contract.Execute(ExerciseEntryPoint, nil)
	require.EqualError(t, err, fake.Err("exercise"))
}

func TestContract_InstallFailures(t *testing.T) {
	contract := NewContract()

	rt := newFakeRuntime()
	rt.errNewURef = fake.GetError()
	err := contract.Install(rt)
	require.EqualError(t, err, fake.Err("failed to create count"))

	rt = newFakeRuntime()
	rt.errNewContract = fake.GetError()
	err = contract.Install(rt)
	require.EqualError(t, err, fake.Err("failed to publish"))

	rt = newFakeRuntime()
	rt.errPutKey = fake.GetError()
	err = contract.Install(rt)
	require.EqualError(t, err, fake.Err("failed to bind 'option_registry'"))
}

func TestCommand_CreateFailures(t *testing.T) {
	cmd := registryCommand{}

	rt := newFakeRuntime()
	delete(rt.args, ExpiryArg)
	err := cmd.create(rt)
	require.EqualError(t, err, "missing argument 'expiry'")

	rt = newFakeRuntime()
	rt.errNewURef = fake.GetError()
	err = cmd.create(rt)
	require.EqualError(t, err, fake.Err("failed to allocate 'option_1'"))

	rt = newFakeRuntime()
	rt.errPutKey = fake.GetError()
	err = cmd.create(rt)
	require.EqualError(t, err, fake.Err("failed to bind 'option_1'"))

	rt = newFakeRuntime()
	rt.errGetKey = fake.GetError()
	err = cmd.create(rt)
	require.EqualError(t, err, fake.Err("failed to get 'option_count'"))

	rt = newFakeRuntime()
	delete(rt.contractKeys, CountKey)
	err = cmd.create(rt)
	require.EqualError(t, err, "named key 'option_count' not found")

	rt = newFakeRuntime()
	rt.errRead = fake.GetError()
	err = cmd.create(rt)
	require.EqualError(t, err, fake.Err("failed to read 'option_count'"))

	rt = newFakeRuntime()
	rt.cells[rt.contractKeys[CountKey]] = state.Bool(true)
	err = cmd.create(rt)
	require.EqualError(t, err, "'option_count' is corrupted: expected U64 but got Bool")

	rt = newFakeRuntime()
	rt.errWrite = fake.GetError()
	err = cmd.create(rt)
	require.EqualError(t, err, fake.Err("failed to write 'option_count'"))
}

func TestCommand_CountWraps(t *testing.T) {
	rt := newFakeRuntime()
	rt.cells[rt.contractKeys[CountKey]] = state.U64(math.MaxUint64)

	err := registryCommand{}.create(rt)
	require.NoError(t, err)
	require.Equal(t, state.U64(0), rt.cells[rt.contractKeys[CountKey]])
}

func TestCommand_ExerciseFailures(t *testing.T) {
	cmd := registryCommand{}

	rt := newFakeRuntime()
	delete(rt.args, IDArg)
	err := cmd.exercise(rt)
	require.EqualError(t, err, "missing argument 'id'")

	rt = newFakeRuntime()
	rt.errGetKey = fake.GetError()
	err = cmd.exercise(rt)
	require.EqualError(t, err, fake.Err("failed to get 'option_1_exercised'"))

	rt = newFakeRuntime()
	rt.keys[ExercisedKey(1)] = state.NewHashKey(state.Address{1})
	err = cmd.exercise(rt)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to write 'option_1_exercised': ")
	require.Contains(t, err.Error(), "is not a uref")

	rt = newFakeRuntime()
	rt.errNewURef = fake.GetError()
	err = cmd.exercise(rt)
	require.EqualError(t, err, fake.Err("failed to allocate 'option_1_exercised'"))

	rt = newFakeRuntime()
	rt.errPutKey = fake.GetError()
	err = cmd.exercise(rt)
	require.EqualError(t, err, fake.Err("failed to bind 'option_1_exercised'"))
}

// -----------------------------------------------------------------------------
// Utility functions

type testEnv struct {
	ledger  *ledger.Ledger
	mgr     *signed.TransactionManager
	client  Client
	account state.Address
}

func newEnv(t *testing.T) testEnv {
	exec := native.NewExecution()
	RegisterContract(exec, NewContract())

	l := ledger.NewLedger(mem.NewTrie(), exec)

	signer := ed25519.NewSigner()

	account, err := state.AccountHash(signer.GetPublicKey())
	require.NoError(t, err)

	mgr := signed.NewManager(signer, l)

	return testEnv{
		ledger:  l,
		mgr:     mgr,
		client:  NewClient(mgr, l),
		account: account,
	}
}

func (env testEnv) install(t *testing.T) {
	res, err := env.client.Install(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Message)
}

func (env testEnv) create(t *testing.T, id, strike, expiry uint64) {
	res, err := env.client.Create(context.Background(), id, strike, expiry, 0)
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Message)
}

func (env testEnv) exercise(t *testing.T, id uint64) {
	res, err := env.client.Exercise(context.Background(), id, 0)
	require.NoError(t, err)
	require.True(t, res.Accepted, res.Message)
}

func (env testEnv) count(t *testing.T) uint64 {
	var count uint64

	err := env.ledger.View(func(r state.Reader) error {
		var err error
		count, err = NewReader(r).Count(env.account)
		return err
	})
	require.NoError(t, err)

	return count
}

func (env testEnv) namedKeys(t *testing.T) state.NamedKeys {
	var nk state.NamedKeys

	err := env.ledger.View(func(r state.Reader) error {
		account, err := r.GetAccount(env.account)
		nk = account.NamedKeys
		return err
	})
	require.NoError(t, err)

	return nk
}

func (env testEnv) cell(t *testing.T, name string) state.Value {
	key, found := env.namedKeys(t).Get(name)
	require.True(t, found, name)

	var value state.Value

	err := env.ledger.View(func(r state.Reader) error {
		var err error
		value, err = r.Query(key)
		return err
	})
	require.NoError(t, err)

	return value
}

type fakeCmd struct {
	err error
}

func (c fakeCmd) create(native.Runtime) error {
	if c.err != nil {
		return xerrors.Errorf("create: %v", c.err)
	}

	return nil
}

func (c fakeCmd) exercise(native.Runtime) error {
	if c.err != nil {
		return xerrors.Errorf("exercise: %v", c.err)
	}

	return nil
}

// fakeRuntime is a runtime over maps. Every cell is a fresh address made of a
// counter.
type fakeRuntime struct {
	native.Runtime

	args         map[string]uint64
	cells        map[state.Key]state.Value
	keys         state.NamedKeys
	contractKeys state.NamedKeys
	counter      byte

	errNewURef     error
	errPutKey      error
	errGetKey      error
	errRead        error
	errWrite       error
	errNewContract error
}

func newFakeRuntime() *fakeRuntime {
	count := state.NewURef(state.Address{0xff})

	return &fakeRuntime{
		args: map[string]uint64{
			IDArg:     1,
			StrikeArg: 2,
			ExpiryArg: 3,
		},
		cells:        map[state.Key]state.Value{count: state.U64(0)},
		keys:         state.NamedKeys{},
		contractKeys: state.NamedKeys{CountKey: count},
	}
}

func (rt *fakeRuntime) U64Arg(name string) (uint64, error) {
	value, found := rt.args[name]
	if !found {
		return 0, xerrors.Errorf("missing argument '%s'", name)
	}

	return value, nil
}

func (rt *fakeRuntime) NewURef(value state.Value) (state.Key, error) {
	if rt.errNewURef != nil {
		return state.Key{}, rt.errNewURef
	}

	rt.counter++
	key := state.NewURef(state.Address{rt.counter})
	rt.cells[key] = value

	return key, nil
}

func (rt *fakeRuntime) Read(key state.Key) (state.Value, error) {
	if rt.errRead != nil {
		return state.Value{}, rt.errRead
	}

	return rt.cells[key], nil
}

func (rt *fakeRuntime) Write(key state.Key, value state.Value) error {
	if rt.errWrite != nil {
		return rt.errWrite
	}

	_, err := key.IntoURef()
	if err != nil {
		return err
	}

	rt.cells[key] = value

	return nil
}

func (rt *fakeRuntime) GetKey(name string) (state.Key, bool, error) {
	if rt.errGetKey != nil {
		return state.Key{}, false, rt.errGetKey
	}

	key, found := rt.keys.Get(name)
	return key, found, nil
}

func (rt *fakeRuntime) PutKey(name string, key state.Key) error {
	if rt.errPutKey != nil {
		return rt.errPutKey
	}

	rt.keys[name] = key

	return nil
}

func (rt *fakeRuntime) GetContractKey(name string) (state.Key, bool, error) {
	if rt.errGetKey != nil {
		return state.Key{}, false, rt.errGetKey
	}

	key, found := rt.contractKeys.Get(name)
	return key, found, nil
}

func (rt *fakeRuntime) NewContract(eps state.EntryPoints, nk state.NamedKeys) (native.Handles, error) {
	if rt.errNewContract != nil {
		return native.Handles{}, rt.errNewContract
	}

	return native.Handles{
		Contract: state.NewHashKey(state.Address{1}),
		Package:  state.NewPackageKey(state.Address{2}),
		Access:   state.NewURef(state.Address{3}),
	}, nil
}
