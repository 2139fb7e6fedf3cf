// Package ledger implements a single-node ledger that orders the transactions
// one by one and applies them to the global state.
//
// Each transaction is executed against a staged snapshot of the state. The
// writes are committed only when the execution is accepted, together with the
// increment of the nonce of the account, so that a transaction either applies
// completely or leaves the state untouched.
package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/optreg"
	"go.dedis.ch/optreg/core/access"
	"go.dedis.ch/optreg/core/execution"
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/core/store"
	"go.dedis.ch/optreg/core/txn"
	"go.dedis.ch/optreg/internal/tracing"
	"golang.org/x/xerrors"
)

var (
	promTxs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optreg_ledger_transactions_total",
		Help: "total number of accepted transactions",
	})

	promRejectedTxs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "optreg_ledger_transactions_rejected_total",
		Help: "total number of rejected transactions",
	})

	promGas = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "optreg_ledger_transaction_gas",
		Help:    "gas used by the executed transactions",
		Buckets: prometheus.ExponentialBuckets(100, 2, 12),
	})
)

func init() {
	optreg.PromCollectors = append(optreg.PromCollectors, promTxs,
		promRejectedTxs, promGas)
}

// errRejected aborts a stage when the execution is not accepted.
var errRejected = xerrors.New("transaction rejected")

// Event is the event notified for every submitted transaction.
type Event struct {
	// Index is the number of accepted transactions, including this one if it
	// was accepted.
	Index  uint64
	TxID   []byte
	Result execution.Result
}

// Ledger is a single-node ledger.
//
// - implements signed.Client
type Ledger struct {
	sync.RWMutex

	trie    store.Trie
	exec    execution.Service
	index   uint64
	watcher *watcher
	tracer  opentracing.Tracer
	logger  zerolog.Logger
}

// Option is the type of option to create a ledger.
type Option func(*Ledger)

// WithTracer sets the tracer of the spans of the submissions.
func WithTracer(tracer opentracing.Tracer) Option {
	return func(l *Ledger) {
		l.tracer = tracer
	}
}

// NewLedger returns a ledger applying the transactions to the trie with the
// execution service.
func NewLedger(trie store.Trie, exec execution.Service, opts ...Option) *Ledger {
	l := &Ledger{
		trie:    trie,
		exec:    exec,
		watcher: newWatcher(),
		tracer:  opentracing.NoopTracer{},
		logger:  optreg.Logger.With().Str("role", "ledger").Logger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Submit executes the transaction and commits its writes if it is accepted.
// A transaction with an unexpected nonce, or failing during the execution, is
// rejected and the state is left untouched. An error is returned only when
// the ledger failed to process the transaction.
func (l *Ledger) Submit(ctx context.Context, tx txn.Transaction) (execution.Result, error) {
	span, _ := opentracing.StartSpanFromContextWithTracer(ctx, l.tracer, "submit")
	defer span.Finish()

	span.SetTag(tracing.OperationTag, operationOf(ctx))
	span.SetTag("tx", hex.EncodeToString(tx.GetID()))
	span.SetTag("nonce", tx.GetNonce())

	l.Lock()
	defer l.Unlock()

	res, err := l.apply(tx)
	if err != nil {
		span.SetTag("error", true)
		span.LogKV("event", "error", "message", err.Error())

		return res, xerrors.Errorf("failed to apply tx: %v", err)
	}

	span.SetTag("accepted", res.Accepted)
	span.SetTag("gas", res.GasUsed)

	promGas.Observe(float64(res.GasUsed))

	if res.Accepted {
		l.index++
		promTxs.Inc()

		l.logger.Debug().Hex("tx", tx.GetID()).Uint64("index", l.index).
			Msg("transaction accepted")
	} else {
		promRejectedTxs.Inc()

		l.logger.Info().Hex("tx", tx.GetID()).Str("reason", res.Message).
			Msg("transaction rejected")
	}

	l.watcher.notify(Event{
		Index:  l.index,
		TxID:   tx.GetID(),
		Result: res,
	})

	return res, nil
}

func (l *Ledger) apply(tx txn.Transaction) (execution.Result, error) {
	caller, err := state.AccountHash(tx.GetIdentity())
	if err != nil {
		return execution.Result{}, xerrors.Errorf("failed to get caller: %v", err)
	}

	account, err := state.NewReader(l.trie).GetAccount(caller)
	if err != nil {
		return execution.Result{}, xerrors.Errorf("failed to read account: %v", err)
	}

	if tx.GetNonce() != account.Nonce {
		res := execution.Result{
			Message: fmt.Sprintf("nonce mismatch: expected %d but got %d",
				account.Nonce, tx.GetNonce()),
		}

		return res, nil
	}

	var res execution.Result

	next, err := l.trie.Stage(func(snap store.Snapshot) error {
		var err error

		res, err = l.exec.Execute(snap, execution.Step{Current: tx})
		if err != nil {
			return xerrors.Errorf("failed to execute: %v", err)
		}

		if !res.Accepted {
			return errRejected
		}

		st := state.New(snap)

		account, err := st.GetAccount(caller)
		if err != nil {
			return xerrors.Errorf("failed to read account: %v", err)
		}

		account.Nonce++

		err = st.PutAccount(account)
		if err != nil {
			return xerrors.Errorf("failed to update nonce: %v", err)
		}

		return nil
	})

	if err == errRejected {
		return res, nil
	}

	if err != nil {
		return execution.Result{}, err
	}

	l.trie = next

	return res, nil
}

// View calls the function with a reader of the committed state. No
// transaction is applied while the function is running.
func (l *Ledger) View(fn func(state.Reader) error) error {
	l.RLock()
	defer l.RUnlock()

	return fn(state.NewReader(l.trie))
}

// GetNonce implements signed.Client. It returns the nonce expected for the
// next transaction of the identity.
func (l *Ledger) GetNonce(ident access.Identity) (uint64, error) {
	addr, err := state.AccountHash(ident)
	if err != nil {
		return 0, xerrors.Errorf("failed to get account: %v", err)
	}

	var nonce uint64

	err = l.View(func(r state.Reader) error {
		account, err := r.GetAccount(addr)
		if err != nil {
			return err
		}

		nonce = account.Nonce

		return nil
	})
	if err != nil {
		return 0, xerrors.Errorf("failed to read account: %v", err)
	}

	return nonce, nil
}

// Watch returns a channel populated with the events of the submissions until
// the context is done.
func (l *Ledger) Watch(ctx context.Context) <-chan Event {
	ch := make(chan Event, 1)

	obs := observer{ch: ch}
	l.watcher.add(obs)

	go func() {
		<-ctx.Done()
		l.watcher.remove(obs)
	}()

	return ch
}

func operationOf(ctx context.Context) string {
	op, ok := ctx.Value(tracing.OperationKey).(string)
	if !ok {
		return tracing.UndefinedOperation
	}

	return op
}
