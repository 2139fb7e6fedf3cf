package options

import (
	"strconv"
	"strings"

	"go.dedis.ch/optreg/core/state"
)

const (
	optionPrefix    = "option_"
	strikeSuffix    = "_strike"
	expirySuffix    = "_expiry"
	exercisedSuffix = "_exercised"
)

// OptionKey returns the named key bound to the id cell of the option.
func OptionKey(id uint64) string {
	return optionPrefix + strconv.FormatUint(id, 10)
}

// StrikeKey returns the named key bound to the strike price cell of the
// option.
func StrikeKey(id uint64) string {
	return OptionKey(id) + strikeSuffix
}

// ExpiryKey returns the named key bound to the expiry cell of the option.
func ExpiryKey(id uint64) string {
	return OptionKey(id) + expirySuffix
}

// ExercisedKey returns the named key bound to the exercised flag of the
// option.
func ExercisedKey(id uint64) string {
	return OptionKey(id) + exercisedSuffix
}

// KeysOf returns the four named keys of the option.
func KeysOf(id uint64) []string {
	return []string{OptionKey(id), StrikeKey(id), ExpiryKey(id), ExercisedKey(id)}
}

// parseOptionName returns the id of an option from one of its named keys.
func parseOptionName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, optionPrefix) {
		return 0, false
	}

	rest := name[len(optionPrefix):]

	for _, suffix := range []string{strikeSuffix, expirySuffix, exercisedSuffix} {
		if strings.HasSuffix(rest, suffix) {
			rest = rest[:len(rest)-len(suffix)]
			break
		}
	}

	// OptionKey never produces leading zeros.
	if len(rest) > 1 && rest[0] == '0' {
		return 0, false
	}

	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}

// EntryPoints returns the entry point table of the registry.
func EntryPoints() state.EntryPoints {
	return state.EntryPoints{
		{
			Name: CreateEntryPoint,
			Params: []state.Parameter{
				{Name: IDArg, Type: state.U64Type},
				{Name: StrikeArg, Type: state.U64Type},
				{Name: ExpiryArg, Type: state.U64Type},
			},
			Ret:    state.UnitType,
			Access: state.PublicAccess,
		},
		{
			Name: ExerciseEntryPoint,
			Params: []state.Parameter{
				{Name: IDArg, Type: state.U64Type},
			},
			Ret:    state.UnitType,
			Access: state.PublicAccess,
		},
	}
}
