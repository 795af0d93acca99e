// Copyright (c) 2025 Justin Cranford

// Package service implements the MFAServiceController and its two
// concrete variants (cloud, on-premise) described in spec.md §4.7: pending
// transaction retrieval, completion (raw and convenience-signing forms),
// QR login, and token refresh.
package service

import (
	"context"
	"crypto/rsa"
	"time"

	"mfacore/internal/algorithm"
	"mfacore/internal/apperr"
	"mfacore/internal/authenticator"
	"mfacore/internal/factor"
	"mfacore/internal/httpclient"
	"mfacore/internal/keystore"
	"mfacore/internal/rsacrypto"
	"mfacore/internal/telemetry"
)

// Action is the caller's disposition on a pending transaction.
type Action string

const (
	ActionVerify Action = "verify"
	ActionDeny   Action = "deny"
)

// PendingTransaction is the normalized shape both backend variants are
// mapped into (spec.md §6 "Pending transaction shape"). ShortID is always
// the first 4 code points of ID.
type PendingTransaction struct {
	ID             string
	ShortID        string
	Message        string
	PostbackURI    string
	KeyName        string
	FactorID       string
	FactorType     string
	DataToSign     string
	TimeStamp      time.Time
	AdditionalData map[string]string
}

// newPendingTransaction derives ShortID from id and fills the rest from
// the given fields, the single construction path both variants funnel
// through so the ShortID rule is applied exactly once.
func newPendingTransaction(id, message, postbackURI, keyName, factorID, factorType, dataToSign string, ts time.Time, additionalData map[string]string) PendingTransaction {
	runes := []rune(id)
	shortLen := 4

	if len(runes) < shortLen {
		shortLen = len(runes)
	}

	return PendingTransaction{
		ID:             id,
		ShortID:        string(runes[:shortLen]),
		Message:        message,
		PostbackURI:    postbackURI,
		KeyName:        keyName,
		FactorID:       factorID,
		FactorType:     factorType,
		DataToSign:     dataToSign,
		TimeStamp:      ts,
		AdditionalData: additionalData,
	}
}

// Deps bundles the capabilities both service variants consume.
type Deps struct {
	HTTP      httpclient.Client
	KeyStore  keystore.Store
	Telemetry *telemetry.Service
}

// Service is the capability spec.md §4.7 names: retrieve, complete, log in
// via QR, refresh the token.
type Service interface {
	NextTransaction(ctx context.Context, filter string) (PendingTransaction, int, error)
	CompleteTransaction(ctx context.Context, txn PendingTransaction, action Action, signedData string) error
	CompleteTransactionWithFactor(ctx context.Context, txn PendingTransaction, f factor.FactorType, action Action) error
	Login(ctx context.Context, qrLoginURL, code string) error
	RefreshToken(ctx context.Context, refreshToken, accountName, pushToken string, additionalData map[string]string) (authenticator.Token, error)
}

// Controller wraps a Service built from a caller-supplied authenticator and
// exposes TransactionFactor, the lookup spec.md §4.7 hangs off the
// controller rather than the service.
type Controller struct {
	svc  Service
	auth authenticator.Authenticator
}

// NewController builds the concrete Service matching auth's variant
// (cloud or on-premise), per spec.md §9 "the host tries each in order" —
// here the host already knows the concrete variant from how it was
// constructed or decoded, so this is a direct type switch rather than a
// shape-guessing dispatch.
func NewController(auth authenticator.Authenticator, deps Deps) (*Controller, error) {
	switch a := auth.(type) {
	case *authenticator.CloudAuthenticator:
		return &Controller{svc: newCloudService(a, deps), auth: auth}, nil
	case *authenticator.OnPremiseAuthenticator:
		return &Controller{svc: newOnPremiseService(a, deps), auth: auth}, nil
	default:
		return nil, apperr.InvalidState()
	}
}

// Service returns the concrete Service for direct use.
func (c *Controller) Service() Service { return c.svc }

// TransactionFactor implements spec.md §4.7/§8 "Transaction factor lookup":
// the first enrolled factor whose key label equals pending.KeyName, or
// ok=false if none matches.
func (c *Controller) TransactionFactor(pending PendingTransaction) (factor.FactorType, bool) {
	for _, f := range c.auth.EnrolledFactors() {
		if name, ok := factor.KeyLabel(f); ok && name == pending.KeyName {
			return f, true
		}
	}

	return factor.FactorType{}, false
}

// convenienceHashAlgorithm implements spec.md §4.7's reduced mapping for
// the sign-with-local-key path: sha384 and sha512 pass through, every
// other algorithm (including sha1 and sha256) signs with SHA-256.
func convenienceHashAlgorithm(a algorithm.SigningAlgorithm) algorithm.SigningAlgorithm {
	switch a {
	case algorithm.SHA384, algorithm.SHA512:
		return a
	default:
		return algorithm.SHA256
	}
}

// signWithLocalKey implements spec.md §4.7's convenience signing path:
// fetch the private key labeled name from the key store (itself a
// suspension point when the key is access-controlled), hash dataToSign per
// convenienceHashAlgorithm, sign, and Base64URL-encode.
func signWithLocalKey(ctx context.Context, store keystore.Store, name string, alg algorithm.SigningAlgorithm, dataToSign []byte) (string, error) {
	key, err := store.Read(ctx, name)
	if err != nil {
		return "", apperr.UnderlyingError(err)
	}

	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return "", apperr.InvalidKey()
	}

	return rsacrypto.SignBase64URL(priv, convenienceHashAlgorithm(alg), dataToSign)
}
