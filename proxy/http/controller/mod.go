// Package controller implements the initializer of the HTTP gateway. The
// gateway is started with the node when a listen address is given, either
// with the start flag or in the configuration file.
package controller

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.dedis.ch/optreg"
	"go.dedis.ch/optreg/cli"
	"go.dedis.ch/optreg/cli/node"
	"go.dedis.ch/optreg/core/ledger"
	"go.dedis.ch/optreg/proxy"
	proxyhttp "go.dedis.ch/optreg/proxy/http"
	"golang.org/x/xerrors"
)

const (
	listenFlag = "listen"

	defaultProm = "/metrics"

	startTimeout = 5 * time.Second
)

var proxyFac func(string) proxy.Proxy = func(addr string) proxy.Proxy {
	return proxyhttp.NewHTTP(addr)
}

// minimal is the initializer of the gateway.
//
// - implements node.Initializer
type minimal struct{}

// NewController returns the initializer of the gateway.
func NewController() node.Initializer {
	return minimal{}
}

// SetCommands implements node.Initializer. It adds the listen flag to the
// start command.
func (minimal) SetCommands(builder node.Builder) {
	builder.SetStartFlags(cli.StringFlag{
		Name:  listenFlag,
		Usage: "address of the HTTP gateway, for instance 127.0.0.1:8080",
	})
}

// OnStart implements node.Initializer. It starts and injects the gateway when
// an address is configured.
func (minimal) OnStart(flags cli.Flags, inj node.Injector) error {
	addr := flags.String(listenFlag)
	if addr == "" {
		var cfg node.Config
		err := inj.Resolve(&cfg)
		if err != nil && !xerrors.Is(err, node.ErrNotFound) {
			return xerrors.Errorf("failed to resolve config: %v", err)
		}

		addr = cfg.Listen
	}

	if addr == "" {
		return nil
	}

	var l *ledger.Ledger
	err := inj.Resolve(&l)
	if err != nil {
		return xerrors.Errorf("failed to resolve ledger: %v", err)
	}

	srv := proxyFac(addr)

	gw := newGateway(l)
	gw.register(srv)

	registry := prometheus.NewRegistry()

	for _, c := range optreg.PromCollectors {
		err = registry.Register(c)
		if err != nil {
			return xerrors.Errorf("failed to register collector: %v", err)
		}
	}

	srv.RegisterHandler(defaultProm,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP, http.MethodGet)

	go srv.Listen()

	start := time.Now()
	for srv.GetAddr() == nil {
		if time.Since(start) > startTimeout {
			return xerrors.New("failed to start proxy server")
		}

		time.Sleep(10 * time.Millisecond)
	}

	optreg.Logger.Info().Stringer("addr", srv.GetAddr()).Msg("gateway started")

	inj.Inject(srv)

	return nil
}

// OnStop implements node.Initializer. It stops the gateway if it has been
// started.
func (minimal) OnStop(inj node.Injector) error {
	var srv proxy.Proxy
	err := inj.Resolve(&srv)
	if err == nil {
		srv.Stop()
	}

	return nil
}
