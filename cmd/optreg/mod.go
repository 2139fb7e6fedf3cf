// Package main implements a node of the option registry.
//
// Start a node, optionally with the HTTP gateway:
//
//	optreg --config /tmp/node1 start --listen 127.0.0.1:8080
//
// Then use the commands of the running node:
//
//	optreg --config /tmp/node1 option install
//	optreg --config /tmp/node1 option create --id 1 --strike 1000 --expiry 1735689600
//	optreg --config /tmp/node1 option exercise --id 1
//	optreg --config /tmp/node1 option show --id 1
//	optreg --config /tmp/node1 keys
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/optreg/cli/node"
	options "go.dedis.ch/optreg/contracts/options/controller"
	ledger "go.dedis.ch/optreg/core/ledger/controller"
	db "go.dedis.ch/optreg/core/store/kv/controller"
	gateway "go.dedis.ch/optreg/proxy/http/controller"
)

type config struct {
	Channel chan os.Signal
	Writer  io.Writer
}

func main() {
	err := run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	return runWithCfg(args, config{})
}

func runWithCfg(args []string, cfg config) error {
	builder := node.NewBuilderWithCfg(
		cfg.Channel,
		cfg.Writer,
		db.NewController(),
		ledger.NewController(),
		options.NewController(),
		gateway.NewController(),
	)

	app := builder.Build()

	return app.Run(args)
}
