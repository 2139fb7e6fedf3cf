package controller

import (
	"fmt"

	"go.dedis.ch/optreg/cli/node"
	"go.dedis.ch/optreg/core/ledger"
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/crypto"
	"golang.org/x/xerrors"
)

// keysAction prints the named keys of an account.
//
// - implements node.ActionTemplate
type keysAction struct{}

// Execute implements node.ActionTemplate. It prints one line per named key in
// ascending order of name.
func (keysAction) Execute(ctx node.Context) error {
	l, err := resolveLedger(ctx)
	if err != nil {
		return err
	}

	addr, err := AccountFromFlags(ctx)
	if err != nil {
		return err
	}

	return l.View(func(r state.Reader) error {
		account, err := r.GetAccount(addr)
		if err != nil {
			return xerrors.Errorf("failed to read account: %v", err)
		}

		for _, name := range account.NamedKeys.Names() {
			fmt.Fprintf(ctx.Out, "%s: %v", name, account.NamedKeys[name])
		}

		return nil
	})
}

// queryAction prints the value behind a key.
//
// - implements node.ActionTemplate
type queryAction struct{}

// Execute implements node.ActionTemplate.
func (queryAction) Execute(ctx node.Context) error {
	l, err := resolveLedger(ctx)
	if err != nil {
		return err
	}

	key, err := state.ParseKey(ctx.Flags.String("key"))
	if err != nil {
		return xerrors.Errorf("invalid key: %v", err)
	}

	return l.View(func(r state.Reader) error {
		value, err := r.Query(key)
		if err != nil {
			return xerrors.Errorf("failed to query: %v", err)
		}

		fmt.Fprintf(ctx.Out, "%v", value)

		return nil
	})
}

// accountAction prints the account of the node.
//
// - implements node.ActionTemplate
type accountAction struct{}

// Execute implements node.ActionTemplate.
func (accountAction) Execute(ctx node.Context) error {
	l, err := resolveLedger(ctx)
	if err != nil {
		return err
	}

	var signer crypto.Signer
	err = ctx.Injector.Resolve(&signer)
	if err != nil {
		return xerrors.Errorf("failed to resolve signer: %v", err)
	}

	addr, err := state.AccountHash(signer.GetPublicKey())
	if err != nil {
		return xerrors.Errorf("failed to get account: %v", err)
	}

	nonce, err := l.GetNonce(signer.GetPublicKey())
	if err != nil {
		return xerrors.Errorf("failed to get nonce: %v", err)
	}

	fmt.Fprintf(ctx.Out, "account: %v", addr)
	fmt.Fprintf(ctx.Out, "nonce: %d", nonce)

	return nil
}

// AccountFromFlags returns the account of the "account" flag, or the account
// of the node when the flag is empty.
func AccountFromFlags(ctx node.Context) (state.Address, error) {
	text := ctx.Flags.String("account")
	if text != "" {
		addr, err := state.ParseAddress(text)
		if err != nil {
			return addr, xerrors.Errorf("invalid account: %v", err)
		}

		return addr, nil
	}

	var signer crypto.Signer
	err := ctx.Injector.Resolve(&signer)
	if err != nil {
		return state.Address{}, xerrors.Errorf("failed to resolve signer: %v", err)
	}

	addr, err := state.AccountHash(signer.GetPublicKey())
	if err != nil {
		return addr, xerrors.Errorf("failed to get account: %v", err)
	}

	return addr, nil
}

func resolveLedger(ctx node.Context) (*ledger.Ledger, error) {
	var l *ledger.Ledger
	err := ctx.Injector.Resolve(&l)
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve ledger: %v", err)
	}

	return l, nil
}
