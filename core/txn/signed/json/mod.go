// Package json defines the JSON messages for the signed transactions.
package json

import (
	"go.dedis.ch/optreg/core/txn/signed"
	"go.dedis.ch/optreg/crypto"
	"go.dedis.ch/optreg/serde"
	"golang.org/x/xerrors"
)

func init() {
	signed.RegisterTransactionFormat(serde.FormatJSON, txFormat{})
}

// TransactionJSON is the JSON message of a transaction. The public key, the
// signature and the argument values are the base64 of their binary form.
type TransactionJSON struct {
	Nonce     uint64
	Args      map[string][]byte
	PublicKey []byte
	Signature []byte
}

// txFormat is the JSON format engine for transactions.
//
// - implements serde.FormatEngine
type txFormat struct {
	hashFactory crypto.HashFactory
}

// Encode implements serde.FormatEngine. It returns the JSON data of the
// provided transaction if appropriate, otherwise it returns an error.
func (fmt txFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	tx, ok := msg.(*signed.Transaction)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	if tx.GetSignature() == nil {
		return nil, xerrors.New("signature is missing")
	}

	args := make(map[string][]byte)
	for _, arg := range tx.GetArgs() {
		args[arg] = tx.GetArg(arg)
	}

	pubkey, err := tx.GetPublicKey().MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to encode public key: %v", err)
	}

	sig, err := tx.GetSignature().MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to encode signature: %v", err)
	}

	m := TransactionJSON{
		Nonce:     tx.GetNonce(),
		Args:      args,
		PublicKey: pubkey,
		Signature: sig,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It returns the transaction from the
// JSON data if appropriate, otherwise it returns an error. The signature is
// verified against the public key.
func (fmt txFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := TransactionJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	pubkey, err := decodePublicKey(ctx, m.PublicKey)
	if err != nil {
		return nil, xerrors.Errorf("public key: %v", err)
	}

	sig, err := decodeSignature(ctx, m.Signature)
	if err != nil {
		return nil, xerrors.Errorf("signature: %v", err)
	}

	opts := make([]signed.TransactionOption, 0, len(m.Args)+2)
	for key, value := range m.Args {
		opts = append(opts, signed.WithArg(key, value))
	}

	opts = append(opts, signed.WithSignature(sig))

	if fmt.hashFactory != nil {
		opts = append(opts, signed.WithHashFactory(fmt.hashFactory))
	}

	tx, err := signed.NewTransaction(m.Nonce, pubkey, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to create tx: %v", err)
	}

	return tx, nil
}

func decodePublicKey(ctx serde.Context, data []byte) (crypto.PublicKey, error) {
	factory := ctx.GetFactory(signed.PublicKeyFac{})

	fac, ok := factory.(crypto.PublicKeyFactory)
	if !ok {
		return nil, xerrors.Errorf("invalid factory '%T'", factory)
	}

	pubkey, err := fac.FromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("malformed: %v", err)
	}

	return pubkey, nil
}

func decodeSignature(ctx serde.Context, data []byte) (crypto.Signature, error) {
	factory := ctx.GetFactory(signed.SignatureFac{})

	fac, ok := factory.(crypto.SignatureFactory)
	if !ok {
		return nil, xerrors.Errorf("invalid factory '%T'", factory)
	}

	sig, err := fac.SignatureFromBytes(data)
	if err != nil {
		return nil, xerrors.Errorf("malformed: %v", err)
	}

	return sig, nil
}
