package options

import (
	"sort"

	"go.dedis.ch/optreg/core/state"
	"golang.org/x/xerrors"
)

// ErrNotInstalled is returned when the account has no registry bound.
var ErrNotInstalled = xerrors.New("registry not installed")

// OptionState is the state of an option id in a namespace.
type OptionState int

const (
	// Absent means that no key of the option is bound, or only a flag that
	// is not set.
	Absent OptionState = iota

	// Created means that the option exists and has not been exercised.
	Created

	// Exercised means that the exercised flag of the option is set.
	Exercised
)

var stateNames = map[OptionState]string{
	Absent:    "absent",
	Created:   "created",
	Exercised: "exercised",
}

// String implements fmt.Stringer.
func (s OptionState) String() string {
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s OptionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OptionState) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}

	return xerrors.Errorf("unknown option state '%s'", text)
}

// Option is the view of an option read from a namespace. The fields are zero
// when the option has been exercised without being created.
type Option struct {
	ID        uint64      `json:"id"`
	Strike    uint64      `json:"strike_price"`
	Expiry    uint64      `json:"expiry"`
	Exercised bool        `json:"exercised"`
	State     OptionState `json:"state"`
}

// Reader reads the options of an account from the committed state.
type Reader struct {
	state state.Reader
}

// NewReader returns a reader of the options over the state.
func NewReader(r state.Reader) Reader {
	return Reader{state: r}
}

// Get returns the option of the account with the given id.
func (r Reader) Get(account state.Address, id uint64) (Option, error) {
	acc, err := r.state.GetAccount(account)
	if err != nil {
		return Option{}, xerrors.Errorf("failed to read account: %v", err)
	}

	return r.getFrom(acc.NamedKeys, id)
}

func (r Reader) getFrom(nk state.NamedKeys, id uint64) (Option, error) {
	opt := Option{ID: id}

	_, created := nk.Get(OptionKey(id))
	if created {
		opt.State = Created

		fields := []struct {
			name  string
			value *uint64
		}{
			{name: StrikeKey(id), value: &opt.Strike},
			{name: ExpiryKey(id), value: &opt.Expiry},
		}

		for _, field := range fields {
			value, err := r.readCell(nk, field.name)
			if err != nil {
				return opt, err
			}

			*field.value, err = value.AsU64()
			if err != nil {
				return opt, xerrors.Errorf("'%s' is corrupted: %v", field.name, err)
			}
		}
	}

	_, bound := nk.Get(ExercisedKey(id))
	if bound {
		value, err := r.readCell(nk, ExercisedKey(id))
		if err != nil {
			return opt, err
		}

		opt.Exercised, err = value.AsBool()
		if err != nil {
			return opt, xerrors.Errorf("'%s' is corrupted: %v", ExercisedKey(id), err)
		}
	}

	if opt.Exercised {
		opt.State = Exercised
	}

	return opt, nil
}

// List returns the options of the account that are not absent, in ascending
// order of id.
func (r Reader) List(account state.Address) ([]Option, error) {
	acc, err := r.state.GetAccount(account)
	if err != nil {
		return nil, xerrors.Errorf("failed to read account: %v", err)
	}

	ids := []uint64{}
	seen := map[uint64]struct{}{}

	for _, name := range acc.NamedKeys.WithPrefix(optionPrefix) {
		id, ok := parseOptionName(name)
		if !ok {
			continue
		}

		if _, found := seen[id]; !found {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	opts := make([]Option, 0, len(ids))
	for _, id := range ids {
		opt, err := r.getFrom(acc.NamedKeys, id)
		if err != nil {
			return nil, xerrors.Errorf("option %d: %v", id, err)
		}

		if opt.State != Absent {
			opts = append(opts, opt)
		}
	}

	return opts, nil
}

// Count returns the option count of the registry installed by the account.
func (r Reader) Count(account state.Address) (uint64, error) {
	acc, err := r.state.GetAccount(account)
	if err != nil {
		return 0, xerrors.Errorf("failed to read account: %v", err)
	}

	key, found := acc.NamedKeys.Get(RegistryKey)
	if !found {
		return 0, ErrNotInstalled
	}

	hash, err := key.IntoHash()
	if err != nil {
		return 0, xerrors.Errorf("'%s' is corrupted: %v", RegistryKey, err)
	}

	contract, err := r.state.GetContract(hash)
	if err != nil {
		return 0, xerrors.Errorf("failed to read contract: %v", err)
	}

	value, err := r.readCell(contract.NamedKeys, CountKey)
	if err != nil {
		return 0, err
	}

	count, err := value.AsU64()
	if err != nil {
		return 0, xerrors.Errorf("'%s' is corrupted: %v", CountKey, err)
	}

	return count, nil
}

func (r Reader) readCell(nk state.NamedKeys, name string) (state.Value, error) {
	key, found := nk.Get(name)
	if !found {
		return state.Value{}, xerrors.Errorf("named key '%s': %w", name, state.ErrNotFound)
	}

	addr, err := key.IntoURef()
	if err != nil {
		return state.Value{}, xerrors.Errorf("'%s' is corrupted: %v", name, err)
	}

	value, err := r.state.ReadCell(addr)
	if err != nil {
		return state.Value{}, xerrors.Errorf("failed to read '%s': %v", name, err)
	}

	return value, nil
}
