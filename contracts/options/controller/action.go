package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"go.dedis.ch/optreg/cli/node"
	"go.dedis.ch/optreg/contracts/options"
	"go.dedis.ch/optreg/core/execution"
	"go.dedis.ch/optreg/core/ledger"
	ledgerctrl "go.dedis.ch/optreg/core/ledger/controller"
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/internal/tracing"
	"golang.org/x/xerrors"
)

// installAction submits the installer of the registry.
//
// - implements node.ActionTemplate
type installAction struct{}

// Execute implements node.ActionTemplate.
func (installAction) Execute(ctx node.Context) error {
	client, err := resolveClient(ctx)
	if err != nil {
		return err
	}

	res, err := client.Install(opContext("install"), ctx.Flags.Uint64("gas"))

	return printResult(ctx, res, err)
}

// createAction submits a call to create_option.
//
// - implements node.ActionTemplate
type createAction struct{}

// Execute implements node.ActionTemplate.
func (createAction) Execute(ctx node.Context) error {
	client, err := resolveClient(ctx)
	if err != nil {
		return err
	}

	res, err := client.Create(opContext("create"),
		ctx.Flags.Uint64("id"),
		ctx.Flags.Uint64("strike"),
		ctx.Flags.Uint64("expiry"),
		ctx.Flags.Uint64("gas"),
	)

	return printResult(ctx, res, err)
}

// exerciseAction submits a call to exercise_option.
//
// - implements node.ActionTemplate
type exerciseAction struct{}

// Execute implements node.ActionTemplate.
func (exerciseAction) Execute(ctx node.Context) error {
	client, err := resolveClient(ctx)
	if err != nil {
		return err
	}

	res, err := client.Exercise(opContext("exercise"),
		ctx.Flags.Uint64("id"),
		ctx.Flags.Uint64("gas"),
	)

	return printResult(ctx, res, err)
}

// showAction prints one option as JSON.
//
// - implements node.ActionTemplate
type showAction struct{}

// Execute implements node.ActionTemplate.
func (showAction) Execute(ctx node.Context) error {
	return view(ctx, func(r options.Reader, account state.Address) (interface{}, error) {
		return r.Get(account, ctx.Flags.Uint64("id"))
	})
}

// listAction prints the options of an account as JSON.
//
// - implements node.ActionTemplate
type listAction struct{}

// Execute implements node.ActionTemplate.
func (listAction) Execute(ctx node.Context) error {
	return view(ctx, func(r options.Reader, account state.Address) (interface{}, error) {
		return r.List(account)
	})
}

// countAction prints the option count of the registry of an account.
//
// - implements node.ActionTemplate
type countAction struct{}

// Execute implements node.ActionTemplate.
func (countAction) Execute(ctx node.Context) error {
	return view(ctx, func(r options.Reader, account state.Address) (interface{}, error) {
		return r.Count(account)
	})
}

func view(ctx node.Context, fn func(options.Reader, state.Address) (interface{}, error)) error {
	var l *ledger.Ledger
	err := ctx.Injector.Resolve(&l)
	if err != nil {
		return xerrors.Errorf("failed to resolve ledger: %v", err)
	}

	account, err := ledgerctrl.AccountFromFlags(ctx)
	if err != nil {
		return err
	}

	var res interface{}

	err = l.View(func(r state.Reader) error {
		res, err = fn(options.NewReader(r), account)
		return err
	})
	if err != nil {
		return xerrors.Errorf("failed to read: %v", err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return xerrors.Errorf("failed to marshal: %v", err)
	}

	fmt.Fprintf(ctx.Out, "%s", data)

	return nil
}

func resolveClient(ctx node.Context) (options.Client, error) {
	var client options.Client
	err := ctx.Injector.Resolve(&client)
	if err != nil {
		return client, xerrors.Errorf("failed to resolve client: %v", err)
	}

	return client, nil
}

func printResult(ctx node.Context, res execution.Result, err error) error {
	if err != nil {
		return err
	}

	if !res.Accepted {
		return xerrors.Errorf("transaction rejected: %s", res.Message)
	}

	fmt.Fprintf(ctx.Out, "transaction accepted (gas used: %d)", res.GasUsed)

	return nil
}

func opContext(op string) context.Context {
	return context.WithValue(context.Background(), tracing.OperationKey, op)
}
