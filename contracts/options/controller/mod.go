// Package controller implements the initializer of the option registry and
// the commands to use it from the CLI.
package controller

import (
	"go.dedis.ch/optreg/cli"
	"go.dedis.ch/optreg/cli/node"
	"go.dedis.ch/optreg/contracts/options"
	"go.dedis.ch/optreg/core/execution/native"
	"go.dedis.ch/optreg/core/ledger"
	"go.dedis.ch/optreg/core/txn"
	"golang.org/x/xerrors"
)

// miniController registers the option registry to the native execution.
//
// - implements node.Initializer
type miniController struct{}

// NewController creates a new controller for the option registry.
func NewController() node.Initializer {
	return miniController{}
}

// SetCommands implements node.Initializer.
func (miniController) SetCommands(builder node.Builder) {
	gasFlag := cli.Uint64Flag{
		Name:  "gas",
		Usage: "gas limit of the transaction, the node's default when zero",
	}

	accountFlag := cli.StringFlag{
		Name:  "account",
		Usage: "hexadecimal address of the account, the node's one by default",
	}

	idFlag := cli.Uint64Flag{
		Name:     "id",
		Usage:    "identifier of the option",
		Required: true,
	}

	cmd := builder.SetCommand("option")
	cmd.SetDescription("interact with the option registry")

	sub := cmd.SetSubCommand("install")
	sub.SetDescription("install the option registry in the node's account")
	sub.SetFlags(gasFlag)
	sub.SetAction(builder.MakeAction(installAction{}))

	sub = cmd.SetSubCommand("create")
	sub.SetDescription("create an option")
	sub.SetFlags(
		idFlag,
		cli.Uint64Flag{
			Name:     "strike",
			Usage:    "strike price of the option",
			Required: true,
		},
		cli.Uint64Flag{
			Name:     "expiry",
			Usage:    "expiry timestamp of the option",
			Required: true,
		},
		gasFlag,
	)
	sub.SetAction(builder.MakeAction(createAction{}))

	sub = cmd.SetSubCommand("exercise")
	sub.SetDescription("exercise an option")
	sub.SetFlags(idFlag, gasFlag)
	sub.SetAction(builder.MakeAction(exerciseAction{}))

	sub = cmd.SetSubCommand("show")
	sub.SetDescription("print an option")
	sub.SetFlags(idFlag, accountFlag)
	sub.SetAction(builder.MakeAction(showAction{}))

	sub = cmd.SetSubCommand("list")
	sub.SetDescription("print the options of an account")
	sub.SetFlags(accountFlag)
	sub.SetAction(builder.MakeAction(listAction{}))

	sub = cmd.SetSubCommand("count")
	sub.SetDescription("print the option count of the registry of an account")
	sub.SetFlags(accountFlag)
	sub.SetAction(builder.MakeAction(countAction{}))
}

// OnStart implements node.Initializer. It registers the option registry and
// injects a client for the node's account.
func (miniController) OnStart(flags cli.Flags, inj node.Injector) error {
	var exec *native.Service
	err := inj.Resolve(&exec)
	if err != nil {
		return xerrors.Errorf("failed to resolve native service: %v", err)
	}

	var mgr txn.Manager
	err = inj.Resolve(&mgr)
	if err != nil {
		return xerrors.Errorf("failed to resolve manager: %v", err)
	}

	var l *ledger.Ledger
	err = inj.Resolve(&l)
	if err != nil {
		return xerrors.Errorf("failed to resolve ledger: %v", err)
	}

	options.RegisterContract(exec, options.NewContract())

	inj.Inject(options.NewClient(mgr, l))

	return nil
}

// OnStop implements node.Initializer.
func (miniController) OnStop(inj node.Injector) error {
	return nil
}
