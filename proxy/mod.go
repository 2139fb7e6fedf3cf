// Package proxy defines the HTTP gateway of the node.
package proxy

import (
	"net"
	"net/http"
)

// Proxy defines the primitives to implement an http server that handles
// client side requests.
type Proxy interface {
	// Listen starts the proxy server. This call is assumed to be blocking.
	Listen()

	// Stop stops the proxy server.
	Stop()

	// RegisterHandler registers a new handler for the path and the methods,
	// or every method when none is given. The path can hold variables as
	// {name}.
	RegisterHandler(path string, handler func(http.ResponseWriter, *http.Request), methods ...string)

	// GetAddr returns the address the server is listening on, or nil if it is
	// not listening yet.
	GetAddr() net.Addr
}
