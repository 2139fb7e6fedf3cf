package controller

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.dedis.ch/optreg"
	"go.dedis.ch/optreg/contracts/options"
	"go.dedis.ch/optreg/core/ledger"
	"go.dedis.ch/optreg/core/state"
	"go.dedis.ch/optreg/core/txn/signed"
	"go.dedis.ch/optreg/internal/tracing"
	"go.dedis.ch/optreg/proxy"
	proxyhttp "go.dedis.ch/optreg/proxy/http"
	"go.dedis.ch/optreg/serde"
	sjson "go.dedis.ch/optreg/serde/json"
	"golang.org/x/xerrors"

	// Registers the JSON format of the signed transactions.
	_ "go.dedis.ch/optreg/core/txn/signed/json"
)

const maxBodySize = 1 << 20

// TxResponse is the response to a submitted transaction.
type TxResponse struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
	GasUsed  uint64 `json:"gas_used"`
}

// OptionsResponse is the response listing the options of an account. The
// count is missing when the account has not installed the registry.
type OptionsResponse struct {
	Options []options.Option `json:"options"`
	Count   *uint64          `json:"count,omitempty"`
}

// ValueResponse is the response holding the value behind a key.
type ValueResponse struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ErrorResponse is the response of a failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// gateway serves the ledger over HTTP.
type gateway struct {
	ledger *ledger.Ledger
	txFac  signed.TransactionFactory
	ctx    serde.Context
}

func newGateway(l *ledger.Ledger) gateway {
	return gateway{
		ledger: l,
		txFac:  signed.NewTransactionFactory(),
		ctx:    sjson.NewContext(),
	}
}

func (gw gateway) register(srv proxy.Proxy) {
	srv.RegisterHandler("/transactions", gw.submit, http.MethodPost)
	srv.RegisterHandler("/accounts/{account}/keys", gw.keys, http.MethodGet)
	srv.RegisterHandler("/accounts/{account}/options", gw.listOptions, http.MethodGet)
	srv.RegisterHandler("/accounts/{account}/options/{id}", gw.getOption, http.MethodGet)
	srv.RegisterHandler("/query/{key}", gw.query, http.MethodGet)
}

// submit decodes a signed transaction and submits it to the ledger.
func (gw gateway) submit(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, xerrors.Errorf("failed to read body: %v", err))
		return
	}

	tx, err := gw.txFac.TransactionOf(gw.ctx, data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, xerrors.Errorf("invalid transaction: %v", err))
		return
	}

	ctx := context.WithValue(r.Context(), tracing.OperationKey, "http")

	res, err := gw.ledger.Submit(ctx, tx)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, r, http.StatusOK, TxResponse{
		ID:       hex.EncodeToString(tx.GetID()),
		Accepted: res.Accepted,
		Message:  res.Message,
		GasUsed:  res.GasUsed,
	})
}

// keys returns the named keys of an account.
func (gw gateway) keys(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAccount(w, r)
	if !ok {
		return
	}

	var nk state.NamedKeys

	err := gw.ledger.View(func(rd state.Reader) error {
		account, err := rd.GetAccount(addr)
		nk = account.NamedKeys
		return err
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, r, http.StatusOK, nk)
}

// listOptions returns the options of an account and the count of its
// registry.
func (gw gateway) listOptions(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAccount(w, r)
	if !ok {
		return
	}

	var resp OptionsResponse

	err := gw.ledger.View(func(rd state.Reader) error {
		reader := options.NewReader(rd)

		var err error
		resp.Options, err = reader.List(addr)
		if err != nil {
			return err
		}

		count, err := reader.Count(addr)
		if xerrors.Is(err, options.ErrNotInstalled) {
			return nil
		}

		resp.Count = &count

		return err
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// getOption returns one option, or a not found error when it is absent.
func (gw gateway) getOption(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAccount(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, xerrors.Errorf("invalid id: %v", err))
		return
	}

	var opt options.Option

	err = gw.ledger.View(func(rd state.Reader) error {
		var err error
		opt, err = options.NewReader(rd).Get(addr, id)
		return err
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	if opt.State == options.Absent {
		writeError(w, r, http.StatusNotFound, xerrors.Errorf("option %d not found", id))
		return
	}

	writeJSON(w, r, http.StatusOK, opt)
}

// query returns the value behind a key of the global state.
func (gw gateway) query(w http.ResponseWriter, r *http.Request) {
	key, err := state.ParseKey(mux.Vars(r)["key"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, xerrors.Errorf("invalid key: %v", err))
		return
	}

	var value state.Value

	err = gw.ledger.View(func(rd state.Reader) error {
		var err error
		value, err = rd.Query(key)
		return err
	})
	if xerrors.Is(err, state.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, r, http.StatusOK, ValueResponse{
		Type:  value.GetType().String(),
		Value: value.String(),
	})
}

func parseAccount(w http.ResponseWriter, r *http.Request) (state.Address, bool) {
	addr, err := state.ParseAddress(mux.Vars(r)["account"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, xerrors.Errorf("invalid account: %v", err))
		return addr, false
	}

	return addr, true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		optreg.Logger.Warn().Err(err).Str("requestID", proxyhttp.RequestID(r)).
			Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	writeJSON(w, r, status, ErrorResponse{
		Error:     err.Error(),
		RequestID: proxyhttp.RequestID(r),
	})
}
