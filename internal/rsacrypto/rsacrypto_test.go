// Copyright (c) 2025 Justin Cranford

package rsacrypto_test

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"mfacore/internal/algorithm"
	"mfacore/internal/rsacrypto"
)

func TestGenerateKeyPair_DefaultsTo2048(t *testing.T) {
	t.Parallel()

	pair, err := rsacrypto.GenerateKeyPair(0)
	require.NoError(t, err)
	require.Equal(t, rsacrypto.DefaultKeyBits, pair.Private.N.BitLen())
	require.Equal(t, pair.Public, &pair.Private.PublicKey)
}

func TestGenerateKeyPair_RespectsExplicitBits(t *testing.T) {
	t.Parallel()

	pair, err := rsacrypto.GenerateKeyPair(3072)
	require.NoError(t, err)
	require.Equal(t, 3072, pair.Private.N.BitLen())
}

func TestSignBase64URL_VerifiesAgainstPublicKey(t *testing.T) {
	t.Parallel()

	pair, err := rsacrypto.GenerateKeyPair(rsacrypto.DefaultKeyBits)
	require.NoError(t, err)

	data := []byte("challenge-bytes-to-sign")

	sig, err := rsacrypto.SignBase64URL(pair.Private, algorithm.SHA256, data)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	raw, err := base64.RawURLEncoding.DecodeString(sig)
	require.NoError(t, err)

	digest, err := algorithm.Hash(algorithm.SHA256, data)
	require.NoError(t, err)

	cryptoHash, err := algorithm.CryptoHash(algorithm.SHA256)
	require.NoError(t, err)
	require.NoError(t, rsa.VerifyPKCS1v15(pair.Public, cryptoHash, digest, raw))
}

func TestSignBase64URL_RejectsInvalidAlgorithm(t *testing.T) {
	t.Parallel()

	pair, err := rsacrypto.GenerateKeyPair(rsacrypto.DefaultKeyBits)
	require.NoError(t, err)

	_, err = rsacrypto.SignBase64URL(pair.Private, algorithm.SigningAlgorithm("bogus"), []byte("x"))
	require.Error(t, err)
}

func TestPublicKeyX509Base64_RoundTrips(t *testing.T) {
	t.Parallel()

	pair, err := rsacrypto.GenerateKeyPair(rsacrypto.DefaultKeyBits)
	require.NoError(t, err)

	encoded, err := rsacrypto.PublicKeyX509Base64(pair.Public)
	require.NoError(t, err)

	der, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	parsed, err := x509.ParsePKIXPublicKey(der)
	require.NoError(t, err)

	parsedRSA, ok := parsed.(*rsa.PublicKey)
	require.True(t, ok)
	require.Equal(t, pair.Public.N, parsedRSA.N)
	require.Equal(t, pair.Public.E, parsedRSA.E)
}
