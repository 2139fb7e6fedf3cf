// Package controller implements the initializer of the ledger. It creates the
// signer of the node, the native execution service, the persistent state and
// the transaction manager.
package controller

import (
	"path/filepath"

	"go.dedis.ch/optreg"
	"go.dedis.ch/optreg/cli"
	"go.dedis.ch/optreg/cli/node"
	"go.dedis.ch/optreg/core/execution/native"
	"go.dedis.ch/optreg/core/ledger"
	"go.dedis.ch/optreg/core/store/kv"
	"go.dedis.ch/optreg/core/txn/signed"
	"go.dedis.ch/optreg/crypto/ed25519"
	"go.dedis.ch/optreg/crypto/loader"
	"go.dedis.ch/optreg/internal/tracing"
	"golang.org/x/xerrors"
)

const (
	// PrivateKeyFile is the name of the file holding the private key of the
	// node in the config folder.
	PrivateKeyFile = "private.key"

	bucketName  = "optreg"
	serviceName = "optreg-ledger"
)

var getTracer = tracing.GetTracer

// minimal is the initializer of the ledger.
//
// - implements node.Initializer
type minimal struct{}

// NewController returns the initializer of the ledger.
func NewController() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer. It registers the commands to
// inspect the state.
func (minimal) SetCommands(builder node.Builder) {
	cmd := builder.SetCommand("keys")
	cmd.SetDescription("print the named keys of an account")
	cmd.SetFlags(cli.StringFlag{
		Name:  "account",
		Usage: "hexadecimal address of the account, the node's one by default",
	})
	cmd.SetAction(builder.MakeAction(keysAction{}))

	cmd = builder.SetCommand("query")
	cmd.SetDescription("print the value behind a key of the global state")
	cmd.SetFlags(cli.StringFlag{
		Name:     "key",
		Usage:    "key in the form <kind>-<hex address>",
		Required: true,
	})
	cmd.SetAction(builder.MakeAction(queryAction{}))

	cmd = builder.SetCommand("account")
	cmd.SetDescription("print the address and the nonce of the node's account")
	cmd.SetAction(builder.MakeAction(accountAction{}))
}

// OnStart implements node.Initializer. It creates and injects the ledger and
// its components.
func (minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	var db kv.DB
	err := inj.Resolve(&db)
	if err != nil {
		return xerrors.Errorf("failed to resolve db: %v", err)
	}

	// The configuration is optional.
	var cfg node.Config
	err = inj.Resolve(&cfg)
	if err != nil && !xerrors.Is(err, node.ErrNotFound) {
		return xerrors.Errorf("failed to resolve config: %v", err)
	}

	fload := loader.NewFileLoader(filepath.Join(flags.Path("config"), PrivateKeyFile))

	keydata, err := fload.LoadOrCreate(keyGenerator{})
	if err != nil {
		return xerrors.Errorf("failed to load key: %v", err)
	}

	signer, err := ed25519.NewSignerFromBytes(keydata)
	if err != nil {
		return xerrors.Errorf("failed to create signer: %v", err)
	}

	var opts []native.ServiceOption
	if cfg.GasLimit > 0 {
		opts = append(opts, native.WithGasLimit(cfg.GasLimit))
	}

	exec := native.NewExecution(opts...)

	tracer, err := getTracer(serviceName)
	if err != nil {
		return xerrors.Errorf("failed to get tracer: %v", err)
	}

	trie := kv.NewTrie(db, []byte(bucketName))

	l := ledger.NewLedger(trie, exec, ledger.WithTracer(tracer))

	mgr := signed.NewManager(signer, l)

	// The node may restart with transactions already applied.
	err = mgr.Sync()
	if err != nil {
		return xerrors.Errorf("failed to sync manager: %v", err)
	}

	inj.Inject(signer)
	inj.Inject(exec)
	inj.Inject(l)
	inj.Inject(mgr)

	logger := optreg.Logger.With().Str("role", "ledger events").Logger()
	inj.Inject(startEventLogger(l, logger))

	return nil
}

// OnStop implements node.Initializer. It stops the logger of the ledger
// events if it has been started.
func (minimal) OnStop(inj node.Injector) error {
	var el *eventLogger
	err := inj.Resolve(&el)
	if err == nil {
		el.stop()
	}

	return nil
}

// keyGenerator generates the private key of a new node.
//
// - implements loader.Generator
type keyGenerator struct{}

// Generate implements loader.Generator. It returns the binary form of a fresh
// Ed25519 private key.
func (keyGenerator) Generate() ([]byte, error) {
	signer := ed25519.NewSigner()

	data, err := signer.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal signer: %v", err)
	}

	return data, nil
}
