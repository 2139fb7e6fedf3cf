// Package options implements the option registry, a native contract that lets
// an account create option records and mark them as exercised.
//
// The records live in the named keys of the calling account. For an option N,
// the keys option_N, option_N_strike, option_N_expiry and option_N_exercised
// are bound to cells holding the id, the strike price, the expiry and the
// exercised flag. The contract keeps the number of created options in its own
// named key option_count.
package options

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.dedis.ch/optreg"
	"go.dedis.ch/optreg/core/execution/native"
	"go.dedis.ch/optreg/core/state"
	"golang.org/x/xerrors"
)

const (
	// ContractName is the name of the contract code.
	ContractName = "go.dedis.ch/optreg.OptionRegistry"

	// RegistryKey is the named key of the installing account bound to the
	// contract hash.
	RegistryKey = "option_registry"

	// PackageKey is the named key of the installing account bound to the
	// package hash.
	PackageKey = "option_registry_package"

	// AccessKey is the named key of the installing account bound to the access
	// URef of the package.
	AccessKey = "option_registry_access"

	// CountKey is the named key of the contract bound to the number of created
	// options.
	CountKey = "option_count"

	// CreateEntryPoint is the name of the entry point to create an option.
	CreateEntryPoint = "create_option"

	// ExerciseEntryPoint is the name of the entry point to exercise an option.
	ExerciseEntryPoint = "exercise_option"

	// IDArg is the argument's name for the option id.
	IDArg = "id"

	// StrikeArg is the argument's name for the strike price.
	StrikeArg = "strike_price"

	// ExpiryArg is the argument's name for the expiry timestamp.
	ExpiryArg = "expiry"
)

var (
	promCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optreg_options_created_total",
		Help: "number of options created",
	})

	promExercised = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optreg_options_exercised_total",
		Help: "number of exercise calls",
	})
)

func init() {
	optreg.PromCollectors = append(optreg.PromCollectors, promCreated, promExercised)
}

// commands defines the entry points of the registry. This interface helps in
// testing the contract.
type commands interface {
	create(rt native.Runtime) error
	exercise(rt native.Runtime) error
}

// RegisterContract registers the registry to the given execution service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is the option registry.
//
// - implements native.Contract
type Contract struct {
	cmd commands
}

// NewContract creates a new option registry.
func NewContract() Contract {
	return Contract{cmd: registryCommand{}}
}

// Install implements native.Contract. It publishes the registry with a zero
// count and binds its handles in the namespace of the installing account.
func (c Contract) Install(rt native.Runtime) error {
	count, err := rt.NewURef(state.U64(0))
	if err != nil {
		return xerrors.Errorf("failed to create count: %v", err)
	}

	handles, err := rt.NewContract(EntryPoints(), state.NamedKeys{CountKey: count})
	if err != nil {
		return xerrors.Errorf("failed to publish: %v", err)
	}

	bindings := []struct {
		name string
		key  state.Key
	}{
		{name: RegistryKey, key: handles.Contract},
		{name: PackageKey, key: handles.Package},
		{name: AccessKey, key: handles.Access},
	}

	for _, b := range bindings {
		err = rt.PutKey(b.name, b.key)
		if err != nil {
			return xerrors.Errorf("failed to bind '%s': %v", b.name, err)
		}
	}

	return nil
}

// Execute implements native.Contract. It runs the entry point.
func (c Contract) Execute(entryPoint string, rt native.Runtime) error {
	switch entryPoint {
	case CreateEntryPoint:
		return c.cmd.create(rt)
	case ExerciseEntryPoint:
		return c.cmd.exercise(rt)
	default:
		return xerrors.Errorf("unknown entry point '%s'", entryPoint)
	}
}

// registryCommand implements the entry points of the registry.
//
// - implements commands
type registryCommand struct{}

// create implements commands. It binds the four keys of the option and
// increments the count.
func (registryCommand) create(rt native.Runtime) error {
	id, err := rt.U64Arg(IDArg)
	if err != nil {
		return err
	}

	strike, err := rt.U64Arg(StrikeArg)
	if err != nil {
		return err
	}

	expiry, err := rt.U64Arg(ExpiryArg)
	if err != nil {
		return err
	}

	fields := []struct {
		name  string
		value state.Value
	}{
		{name: OptionKey(id), value: state.U64(id)},
		{name: StrikeKey(id), value: state.U64(strike)},
		{name: ExpiryKey(id), value: state.U64(expiry)},
	}

	urefs := make([]state.Key, len(fields))
	for i, field := range fields {
		urefs[i], err = rt.NewURef(field.value)
		if err != nil {
			return xerrors.Errorf("failed to allocate '%s': %v", field.name, err)
		}
	}

	for i, field := range fields {
		err = rt.PutKey(field.name, urefs[i])
		if err != nil {
			return xerrors.Errorf("failed to bind '%s': %v", field.name, err)
		}
	}

	err = newFlag(rt, ExercisedKey(id), false)
	if err != nil {
		return err
	}

	count, err := incrementCount(rt)
	if err != nil {
		return err
	}

	promCreated.Inc()

	optreg.Logger.Info().
		Str("contract", "options").
		Uint64("id", id).
		Uint64("count", count).
		Msg("option created")

	return nil
}

// exercise implements commands. It sets the exercised flag of the option,
// binding a new flag when the option has none.
func (registryCommand) exercise(rt native.Runtime) error {
	id, err := rt.U64Arg(IDArg)
	if err != nil {
		return err
	}

	name := ExercisedKey(id)

	key, found, err := rt.GetKey(name)
	if err != nil {
		return xerrors.Errorf("failed to get '%s': %v", name, err)
	}

	if found {
		err = rt.Write(key, state.Bool(true))
		if err != nil {
			return xerrors.Errorf("failed to write '%s': %v", name, err)
		}
	} else {
		err = newFlag(rt, name, true)
		if err != nil {
			return err
		}
	}

	promExercised.Inc()

	optreg.Logger.Info().
		Str("contract", "options").
		Uint64("id", id).
		Msg("option exercised")

	return nil
}

func newFlag(rt native.Runtime, name string, value bool) error {
	uref, err := rt.NewURef(state.Bool(value))
	if err != nil {
		return xerrors.Errorf("failed to allocate '%s': %v", name, err)
	}

	err = rt.PutKey(name, uref)
	if err != nil {
		return xerrors.Errorf("failed to bind '%s': %v", name, err)
	}

	return nil
}

// incrementCount adds one to the count of the contract and returns the new
// value. The count wraps around after the maximum value.
func incrementCount(rt native.Runtime) (uint64, error) {
	key, found, err := rt.GetContractKey(CountKey)
	if err != nil {
		return 0, xerrors.Errorf("failed to get '%s': %v", CountKey, err)
	}

	if !found {
		return 0, xerrors.Errorf("named key '%s' not found", CountKey)
	}

	value, err := rt.Read(key)
	if err != nil {
		return 0, xerrors.Errorf("failed to read '%s': %v", CountKey, err)
	}

	count, err := value.AsU64()
	if err != nil {
		return 0, xerrors.Errorf("'%s' is corrupted: %v", CountKey, err)
	}

	count++

	err = rt.Write(key, state.U64(count))
	if err != nil {
		return 0, xerrors.Errorf("failed to write '%s': %v", CountKey, err)
	}

	return count, nil
}
