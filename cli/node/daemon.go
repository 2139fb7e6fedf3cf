package node

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/optreg"
	"go.dedis.ch/optreg/cli"
	"golang.org/x/xerrors"
)

const (
	// SocketFile is the name of the unix socket of the daemon in the config
	// folder.
	SocketFile = "daemon.sock"

	ioTimeout = 30 * time.Second

	headerSize = 2
)

var promActions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "optreg_daemon_actions_total",
	Help: "total number of actions run by the daemon",
}, []string{"status"})

func init() {
	optreg.PromCollectors = append(optreg.PromCollectors, promActions)
}

// event is a JSON message sent by the daemon to the client. An event with the
// failure flag terminates the command with the output as the error message.
type event struct {
	Failed bool   `json:"failed,omitempty"`
	Output string `json:"output"`
}

// socketClient sends actions to the daemon of a running node.
//
// - implements node.Client
type socketClient struct {
	socketpath  string
	out         io.Writer
	dialTimeout time.Duration
	dialFn      func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// Send implements node.Client. It writes the action to the daemon and copies
// the events to the output until the daemon closes the connection.
func (c socketClient) Send(data []byte) error {
	conn, err := c.dialFn("unix", c.socketpath, c.dialTimeout)
	if err != nil {
		return xerrors.Errorf("couldn't open connection: %v", err)
	}

	defer conn.Close()

	_, err = conn.Write(data)
	if err != nil {
		return xerrors.Errorf("couldn't write to daemon: %v", err)
	}

	dec := json.NewDecoder(conn)

	for {
		var evt event

		err = dec.Decode(&evt)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("failed to decode event: %v", err)
		}

		if evt.Failed {
			return xerrors.New(evt.Output)
		}

		fmt.Fprintln(c.out, evt.Output)
	}
}

// socketDaemon runs the actions of the clients on the node. The permissions
// are those of the socket file.
//
// - implements node.Daemon
type socketDaemon struct {
	sync.WaitGroup

	logger      zerolog.Logger
	socketpath  string
	injector    Injector
	actions     *actionMap
	closing     chan struct{}
	readTimeout time.Duration
	listenFn    func(network, addr string) (net.Listener, error)
	dialFn      func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// Listen implements node.Daemon. It binds the socket and serves the clients
// in the background. The socket file left by a node that did not stop
// properly is replaced.
func (d *socketDaemon) Listen() error {
	err := d.clearStale()
	if err != nil {
		return err
	}

	socket, err := d.listenFn("unix", d.socketpath)
	if err != nil {
		return xerrors.Errorf("couldn't bind socket: %v", err)
	}

	d.Add(2)

	go func() {
		defer d.Done()

		<-d.closing
		socket.Close()
	}()

	go func() {
		defer d.Done()

		for {
			conn, err := socket.Accept()
			if err != nil {
				select {
				case <-d.closing:
				default:
					d.logger.Err(err).Msg("daemon closed unexpectedly")
				}

				return
			}

			go d.handleConn(conn)
		}
	}()

	return nil
}

func (d *socketDaemon) clearStale() error {
	_, err := os.Stat(d.socketpath)
	if err != nil {
		return nil
	}

	if d.dialFn != nil {
		conn, err := d.dialFn("unix", d.socketpath, time.Second)
		if err == nil {
			conn.Close()
			return xerrors.Errorf("a node is already running on '%s'", d.socketpath)
		}
	}

	err = os.Remove(d.socketpath)
	if err != nil {
		return xerrors.Errorf("failed to remove stale socket: %v", err)
	}

	d.logger.Warn().Msg("stale socket removed")

	return nil
}

func (d *socketDaemon) handleConn(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(d.readTimeout))

	header := make([]byte, headerSize)

	_, err := io.ReadFull(conn, header)
	if err == io.EOF {
		// Probing the daemon opens and closes a connection without a header.
		return
	}
	if err != nil {
		d.fail(conn, xerrors.Errorf("stream corrupted: %v", err))
		return
	}

	fset := make(FlagSet)

	err = json.NewDecoder(conn).Decode(&fset)
	if err != nil {
		d.fail(conn, xerrors.Errorf("failed to decode flags: %v", err))
		return
	}

	id := binary.LittleEndian.Uint16(header)

	action := d.actions.Get(id)
	if action == nil {
		d.fail(conn, xerrors.Errorf("unknown command '%d'", id))
		return
	}

	start := time.Now()

	err = action.Execute(Context{
		Injector: d.injector,
		Flags:    fset,
		Out:      newClientWriter(conn),
	})

	d.logger.Debug().
		Uint16("action", id).
		Interface("flags", fset).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("action done")

	if err != nil {
		d.fail(conn, xerrors.Errorf("command error: %v", err))
		return
	}

	promActions.WithLabelValues("ok").Inc()
}

func (d *socketDaemon) fail(conn net.Conn, err error) {
	promActions.WithLabelValues("error").Inc()

	err = json.NewEncoder(conn).Encode(event{Failed: true, Output: err.Error()})
	if err != nil {
		d.logger.Warn().Err(err).Msg("connection to client has error")
	}
}

// Close implements node.Daemon. It closes the socket and waits for the
// listener to return.
func (d *socketDaemon) Close() error {
	close(d.closing)
	d.Wait()

	return nil
}

// clientWriter sends every write to the client as an event.
//
// - implements io.Writer
type clientWriter struct {
	enc *json.Encoder
}

func newClientWriter(w io.Writer) *clientWriter {
	return &clientWriter{
		enc: json.NewEncoder(w),
	}
}

// Write implements io.Writer.
func (w *clientWriter) Write(data []byte) (int, error) {
	err := w.enc.Encode(event{Output: string(data)})
	if err != nil {
		return 0, xerrors.Errorf("while packing data: %v", err)
	}

	return len(data), nil
}

// socketFactory creates the daemon and the clients from the config folder.
//
// - implements node.DaemonFactory
type socketFactory struct {
	injector Injector
	actions  *actionMap
	out      io.Writer
}

// ClientFromContext implements node.DaemonFactory.
func (f socketFactory) ClientFromContext(flags cli.Flags) (Client, error) {
	client := socketClient{
		socketpath:  socketPath(flags),
		out:         f.out,
		dialTimeout: ioTimeout,
		dialFn:      net.DialTimeout,
	}

	return client, nil
}

// DaemonFromContext implements node.DaemonFactory.
func (f socketFactory) DaemonFromContext(flags cli.Flags) (Daemon, error) {
	path := socketPath(flags)

	daemon := &socketDaemon{
		logger:      optreg.Logger.With().Str("role", "daemon").Str("socket", path).Logger(),
		socketpath:  path,
		injector:    f.injector,
		actions:     f.actions,
		closing:     make(chan struct{}),
		readTimeout: ioTimeout,
		listenFn:    net.Listen,
		dialFn:      net.DialTimeout,
	}

	return daemon, nil
}

func socketPath(flags cli.Flags) string {
	return filepath.Join(flags.Path("config"), SocketFile)
}
