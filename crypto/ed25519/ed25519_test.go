package ed25519

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/optreg/internal/testing/fake"
)

func TestPublicKey_New(t *testing.T) {
	point := suite.Point()
	pointBuf, err := point.MarshalBinary()
	require.NoError(t, err)

	pubKey, err := NewPublicKey(pointBuf)
	require.NoError(t, err)

	require.True(t, pubKey.GetPoint().Equal(point))

	_, err = NewPublicKey([]byte{})
	require.EqualError(t, err, "couldn't unmarshal point: invalid Ed25519 curve point")
}

func TestPublicKey_NewFromPoint(t *testing.T) {
	point := suite.Point()
	pk := NewPublicKeyFromPoint(point)
	require.True(t, pk.GetPoint().Equal(point))
}

func TestPublicKey_MarshalBinary(t *testing.T) {
	point := suite.Point()
	pointBuf, err := point.MarshalBinary()
	require.NoError(t, err)

	pk := PublicKey{point: point}
	pointBuf2, err := pk.MarshalBinary()
	require.NoError(t, err)

	require.Equal(t, pointBuf, pointBuf2)
}

func TestPublicKey_Verify(t *testing.T) {
	privKey := suite.Scalar().Pick(suite.RandomStream())
	pubKey := suite.Point().Mul(privKey, nil)
	pk := PublicKey{point: pubKey}

	msg := []byte("hello")
	signature, err := schnorr.Sign(suite, privKey, msg)
	require.NoError(t, err)

	err = pk.Verify(msg, Signature{data: signature})
	require.NoError(t, err)

	err = pk.Verify(msg, fake.Signature{})
	require.EqualError(t, err, "invalid signature type 'fake.Signature'")

	err = pk.Verify(msg, Signature{data: []byte{}})
	// the second error part depends on kyber implementation
	require.Regexp(t, "^schnorr verify failed: ", err)
}

func TestPublicKey_Equal(t *testing.T) {
	point := suite.Point()
	pk := PublicKey{point: point}
	pk2 := PublicKey{point: point}

	require.True(t, pk.Equal(pk2))
	require.False(t, pk.Equal(fake.PublicKey{}))

	point2 := suite.Point().Pick(suite.RandomStream())
	pk2 = PublicKey{point: point2}

	require.False(t, pk.Equal(pk2))
}

func TestPublicKey_MarshalText(t *testing.T) {
	point := suite.Point()
	pk := PublicKey{point: point}

	res, err := pk.MarshalText()
	require.NoError(t, err)
	require.Regexp(t, "^schnorr:", string(res))

	pk.point = badPoint{}
	_, err = pk.MarshalText()
	require.EqualError(t, err, fake.Err("couldn't marshal"))
}

func TestPublicKey_String(t *testing.T) {
	point := suite.Point()
	pk := PublicKey{point: point}

	res := pk.String()
	require.Regexp(t, "^schnorr:[a-f0-9]{16}$", res)

	pk.point = badPoint{}
	res = pk.String()
	require.Equal(t, "schnorr:malformed_point", res)
}

func TestSignature_MarshalBinary(t *testing.T) {
	sig := NewSignature([]byte("hello"))

	data, err := sig.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), data)
}

func TestSignature_Equal(t *testing.T) {
	sig := NewSignature([]byte("hello"))

	require.True(t, sig.Equal(NewSignature([]byte("hello"))))
	require.False(t, sig.Equal(NewSignature([]byte("oops"))))
	require.False(t, sig.Equal(fake.Signature{}))
}

func TestPublicKeyFactory_FromBytes(t *testing.T) {
	signer := NewSigner()

	data, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	pk, err := NewPublicKeyFactory().FromBytes(data)
	require.NoError(t, err)
	require.True(t, pk.Equal(signer.GetPublicKey()))

	_, err = NewPublicKeyFactory().FromBytes(nil)
	require.EqualError(t, err,
		"failed to unmarshal the key: couldn't unmarshal point: invalid Ed25519 curve point")
}

func TestSignatureFactory_SignatureFromBytes(t *testing.T) {
	sig, err := NewSignatureFactory().SignatureFromBytes([]byte{1, 2})
	require.NoError(t, err)
	require.Equal(t, NewSignature([]byte{1, 2}), sig)

	_, err = NewSignatureFactory().SignatureFromBytes(nil)
	require.EqualError(t, err, "empty signature")
}

func TestSigner_FromBytes(t *testing.T) {
	signer := NewSigner()

	data, err := signer.MarshalBinary()
	require.NoError(t, err)

	restored, err := NewSignerFromBytes(data)
	require.NoError(t, err)
	require.True(t, restored.GetPublicKey().Equal(signer.GetPublicKey()))

	_, err = NewSignerFromBytes([]byte{1})
	require.Regexp(t, "^couldn't unmarshal scalar: ", err)
}

func TestSigner_GetFactories(t *testing.T) {
	signer := NewSigner()

	require.Equal(t, publicKeyFactory{}, signer.GetPublicKeyFactory())
	require.Equal(t, signatureFactory{}, signer.GetSignatureFactory())
}

func TestSigner_GetPrivateKey(t *testing.T) {
	kp := key.NewKeyPair(suite)
	signer := Signer{keyPair: kp}

	secret := signer.GetPrivateKey()
	require.True(t, secret.Equal(kp.Private))
}

func TestSigner_Sign(t *testing.T) {
	kp := key.NewKeyPair(suite)
	signer := Signer{keyPair: kp}

	f := func(msg []byte) bool {
		signature, err := signer.Sign(msg)
		require.NoError(t, err)

		signData, err := signature.MarshalBinary()
		require.NoError(t, err)

		err = schnorr.Verify(suite, kp.Public, msg, signData)
		require.NoError(t, err)

		return true
	}

	err := quick.Check(f, nil)
	require.NoError(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

type badPoint struct {
	kyber.Point
}

func (p badPoint) MarshalBinary() ([]byte, error) {
	return nil, fake.GetError()
}
